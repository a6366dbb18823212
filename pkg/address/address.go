// Package address defines the routing addresses used to key jacks and
// clients in the switch registry. An address is an ordered list of 2-3
// components: [transport_type, location] for a jack, and
// [transport_type, location, client_id] for a client. The location
// component may itself be a nested list (e.g. ["udp", ["9.9.9.9", 9999]]).
package address

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	cbor "github.com/fxamacker/cbor/v2"
)

// Address is an ordered routing address. Treat it as immutable once it has
// been used as a registry key.
type Address []any

// Key is the hashable canonical form of an address (or address prefix),
// derived from deterministic CBOR. Two addresses that canonicalize equal
// always produce the same Key.
type Key string

// Canonical recursively normalizes v into canonical component form:
// nested lists become fresh []any slices, integral numbers collapse to
// int64 regardless of the decoder that produced them, and json.Number
// values are resolved. Scalars and unsupported types pass through
// unchanged. Canonical is idempotent.
func Canonical(v any) any {
	switch x := v.(type) {
	case Address:
		return canonicalList(x)
	case []any:
		return canonicalList(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return canonicalFloat(f)
		}
		return x.String()
	case float64:
		return canonicalFloat(x)
	case float32:
		return canonicalFloat(float64(x))
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return canonicalUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return canonicalUint(x)
	default:
		return v
	}
}

func canonicalList(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = Canonical(v)
	}
	return out
}

func canonicalFloat(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
		return int64(f)
	}
	return f
}

func canonicalUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

// New builds an address from components (already canonicalized).
func New(components ...any) Address {
	return Address(canonicalList(components))
}

// FromJSON decodes a JSON array into a canonical Address.
func FromJSON(b []byte) (Address, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	list, ok := Canonical(v).([]any)
	if !ok {
		return nil, fmt.Errorf("address is not a list: %T", v)
	}
	return Address(list), nil
}

// Canonical returns the canonicalized copy of the address.
func (a Address) Canonical() Address {
	return Address(canonicalList(a))
}

// Type returns the transport-type component, or nil for an empty address.
func (a Address) Type() any {
	if len(a) == 0 {
		return nil
	}
	return Canonical(a[0])
}

func (a Address) String() string {
	b, err := json.Marshal([]any(a.Canonical()))
	if err != nil {
		return fmt.Sprintf("%v", []any(a))
	}
	return string(b)
}

var (
	encOnce sync.Once
	encMode cbor.EncMode
	encErr  error
)

func enc() (cbor.EncMode, error) {
	encOnce.Do(func() {
		encMode, encErr = cbor.CanonicalEncOptions().EncMode()
	})
	return encMode, encErr
}

// KeyOf renders any canonicalizable value to its Key form.
func KeyOf(v any) (Key, error) {
	em, err := enc()
	if err != nil {
		return "", err
	}
	b, err := em.Marshal(Canonical(v))
	if err != nil {
		return "", fmt.Errorf("encode address key: %w", err)
	}
	return Key(b), nil
}

// JackKey derives the registry key for a jack: the first two components.
func JackKey(a Address) (Key, error) {
	if len(a) < 2 {
		return "", fmt.Errorf("jack address needs 2 components, got %d", len(a))
	}
	return KeyOf([]any(a[:2]))
}

// ClientKey derives the registry key for a client: the first three components.
func ClientKey(a Address) (Key, error) {
	if len(a) < 3 {
		return "", fmt.Errorf("client address needs 3 components, got %d", len(a))
	}
	return KeyOf([]any(a[:3]))
}
