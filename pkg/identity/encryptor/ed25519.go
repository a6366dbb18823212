package encryptor

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// SchemeEd25519 descriptor: ["ed25519", "<base64url key>"]. A 64-byte key is
// a private key, a 32-byte key is public-only. With no params a fresh
// keypair is generated.
const SchemeEd25519 = "ed25519"

func init() {
	RegisterScheme(SchemeEd25519, newEd25519)
}

type ed25519Encryptor struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func newEd25519(params []any) (Encryptor, error) {
	if len(params) == 0 {
		return GenerateEd25519()
	}
	s, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("ed25519 key is not a string: %v", params[0])
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode ed25519 key: %w", err)
	}
	switch len(b) {
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(b)
		return &ed25519Encryptor{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
	case ed25519.PublicKeySize:
		return &ed25519Encryptor{pub: ed25519.PublicKey(b)}, nil
	default:
		return nil, fmt.Errorf("ed25519 key has invalid length %d", len(b))
	}
}

// GenerateEd25519 creates an encryptor around a fresh keypair.
func GenerateEd25519() (Encryptor, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &ed25519Encryptor{priv: priv, pub: pub}, nil
}

func (e *ed25519Encryptor) Proto() []any {
	if e.priv != nil {
		return []any{SchemeEd25519, base64.RawURLEncoding.EncodeToString(e.priv)}
	}
	return []any{SchemeEd25519, base64.RawURLEncoding.EncodeToString(e.pub)}
}

func (e *ed25519Encryptor) Sign(data []byte) ([]byte, error) {
	if e.priv == nil {
		return nil, errors.New("ed25519: public-only encryptor cannot sign")
	}
	return ed25519.Sign(e.priv, data), nil
}

func (e *ed25519Encryptor) Verify(sig, data []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(e.pub, data, sig)
}

func (e *ed25519Encryptor) Public() (Encryptor, error) {
	return &ed25519Encryptor{pub: e.pub}, nil
}

func (e *ed25519Encryptor) IsPublic() bool { return e.priv == nil }
