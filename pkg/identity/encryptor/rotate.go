package encryptor

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// SchemeRotate descriptor: ["rotate", n]. A toy symmetric scheme that keys a
// SHA-256 digest by rotating every byte by n. Useful for tests and examples;
// provides no real security.
const SchemeRotate = "rotate"

func init() {
	RegisterScheme(SchemeRotate, newRotate)
}

type rotateEncryptor struct{ n int64 }

func newRotate(params []any) (Encryptor, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("rotate needs an offset param")
	}
	n, ok := params[0].(int64)
	if !ok {
		return nil, fmt.Errorf("rotate offset is not an integer: %v", params[0])
	}
	return &rotateEncryptor{n: n}, nil
}

func (e *rotateEncryptor) Proto() []any { return []any{SchemeRotate, e.n} }

func (e *rotateEncryptor) Sign(data []byte) ([]byte, error) {
	h := sha256.Sum256(data)
	out := make([]byte, len(h))
	for i, b := range h {
		out[i] = b + byte(e.n%256)
	}
	return out, nil
}

func (e *rotateEncryptor) Verify(sig, data []byte) bool {
	want, _ := e.Sign(data)
	return subtle.ConstantTimeCompare(sig, want) == 1
}

// Public returns the encryptor itself: the scheme is symmetric, there is no
// public half to split off.
func (e *rotateEncryptor) Public() (Encryptor, error) { return e, nil }

func (e *rotateEncryptor) IsPublic() bool { return false }
