package address

import (
	"encoding/json"
	"testing"
)

func TestCanonicalIdempotent(t *testing.T) {
	in := []any{"udp", []any{"9.9.9.9", json.Number("9999")}, "alice"}
	once := Canonical(in)
	twice := Canonical(once)
	k1, err := KeyOf(once)
	if err != nil {
		t.Fatalf("key once: %v", err)
	}
	k2, err := KeyOf(twice)
	if err != nil {
		t.Fatalf("key twice: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("canonicalization not idempotent")
	}
}

func TestCanonicalNumberForms(t *testing.T) {
	forms := []any{
		[]any{"udp", []any{"host", 9999}},
		[]any{"udp", []any{"host", int64(9999)}},
		[]any{"udp", []any{"host", float64(9999)}},
		[]any{"udp", []any{"host", json.Number("9999")}},
		Address{"udp", []any{"host", uint32(9999)}},
	}
	want, err := KeyOf(forms[0])
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	for i, f := range forms[1:] {
		got, err := KeyOf(f)
		if err != nil {
			t.Fatalf("form %d: %v", i+1, err)
		}
		if got != want {
			t.Fatalf("form %d canonicalizes differently", i+1)
		}
	}
}

func TestCanonicalScalarsPassThrough(t *testing.T) {
	if Canonical("x") != "x" {
		t.Fatalf("string changed")
	}
	if Canonical(nil) != nil {
		t.Fatalf("nil changed")
	}
	// unsupported types pass through unchanged
	type odd struct{ A int }
	v := odd{A: 1}
	if Canonical(v) != v {
		t.Fatalf("struct changed")
	}
}

func TestFromJSON(t *testing.T) {
	a, err := FromJSON([]byte(`["local", null, "alice"]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(a) != 3 || a[0] != "local" || a[1] != nil || a[2] != "alice" {
		t.Fatalf("unexpected address: %v", a)
	}
	if _, err := FromJSON([]byte(`"scalar"`)); err == nil {
		t.Fatalf("want error for non-list")
	}
	if _, err := FromJSON([]byte(`{broken`)); err == nil {
		t.Fatalf("want error for bad json")
	}
}

func TestJackClientKeys(t *testing.T) {
	a := New("udp", []any{"9.9.9.9", 9999}, "alice")
	jk, err := JackKey(a)
	if err != nil {
		t.Fatalf("jack key: %v", err)
	}
	ck, err := ClientKey(a)
	if err != nil {
		t.Fatalf("client key: %v", err)
	}
	if jk == ck {
		t.Fatalf("jack and client keys should differ")
	}
	// prefix-only address still yields the same jack key
	jk2, err := JackKey(New("udp", []any{"9.9.9.9", 9999}))
	if err != nil {
		t.Fatalf("jack key 2: %v", err)
	}
	if jk != jk2 {
		t.Fatalf("jack key should ignore the client component")
	}
	if _, err := JackKey(New("udp")); err == nil {
		t.Fatalf("want error for 1-component jack address")
	}
	if _, err := ClientKey(New("udp", "loc")); err == nil {
		t.Fatalf("want error for 2-component client address")
	}
}

func TestString(t *testing.T) {
	a := New("local", nil, "alice")
	if a.String() != `["local",null,"alice"]` {
		t.Fatalf("string = %s", a.String())
	}
}
