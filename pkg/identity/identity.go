// Package identity models the cryptographic identities used by jacks and
// clients that need authentication. The routing core never inspects key
// material; it only relies on the sign/verify capability exposed here.
package identity

import (
	"fmt"
	"sync"

	"ejswitch/pkg/address"
	"ejswitch/pkg/identity/encryptor"
)

// Required serialized fields, checked in this order by Deserialize.
var requiredFields = []string{"name", "location", "encryptor"}

// Identity couples a display name, a routing location and an encryptor
// descriptor. Arbitrary extra fields survive a serialize/deserialize round
// trip untouched.
type Identity struct {
	mu       sync.Mutex
	contents map[string]any
	enc      encryptor.Encryptor
}

// New builds an identity. extra may be nil.
func New(name string, encProto []any, location address.Address, extra map[string]any) *Identity {
	contents := make(map[string]any, len(extra)+3)
	for k, v := range extra {
		contents[k] = v
	}
	contents["name"] = name
	contents["location"] = []any(location.Canonical())
	contents["encryptor"] = address.Canonical(encProto)
	return &Identity{contents: contents}
}

func (i *Identity) Name() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	s, _ := i.contents["name"].(string)
	return s
}

// Location returns the identity's routing address.
func (i *Identity) Location() address.Address {
	i.mu.Lock()
	defer i.mu.Unlock()
	if l, ok := address.Canonical(i.contents["location"]).([]any); ok {
		return address.Address(l)
	}
	return nil
}

// Get reads an arbitrary serialized field.
func (i *Identity) Get(key string) (any, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.contents[key]
	return v, ok
}

// Set writes an arbitrary serialized field. Setting "encryptor" drops the
// cached encryptor instance.
func (i *Identity) Set(key string, v any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.contents[key] = v
	if key == "encryptor" {
		i.enc = nil
	}
}

// Encryptor returns the live encryptor, instantiating it from the
// descriptor on first use.
func (i *Identity) Encryptor() (encryptor.Encryptor, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.encryptorLocked()
}

func (i *Identity) encryptorLocked() (encryptor.Encryptor, error) {
	if i.enc != nil {
		return i.enc, nil
	}
	proto, ok := address.Canonical(i.contents["encryptor"]).([]any)
	if !ok {
		return nil, fmt.Errorf("encryptor descriptor is not a list: %v", i.contents["encryptor"])
	}
	enc, err := encryptor.Make(proto)
	if err != nil {
		return nil, err
	}
	i.enc = enc
	return enc, nil
}

// Sign signs plaintext with the identity's encryptor.
func (i *Identity) Sign(plaintext []byte) ([]byte, error) {
	enc, err := i.Encryptor()
	if err != nil {
		return nil, err
	}
	return enc.Sign(plaintext)
}

// Verify checks a signature over plaintext.
func (i *Identity) Verify(sig, plaintext []byte) (bool, error) {
	enc, err := i.Encryptor()
	if err != nil {
		return false, err
	}
	return enc.Verify(sig, plaintext), nil
}

// Public returns a copy of the identity holding only the public component
// of its encryptor. Extra fields are not carried over.
func (i *Identity) Public() (*Identity, error) {
	enc, err := i.Encryptor()
	if err != nil {
		return nil, err
	}
	pub, err := enc.Public()
	if err != nil {
		return nil, err
	}
	return New(i.Name(), pub.Proto(), i.Location(), nil), nil
}

// IsPublic reports whether the identity holds no private key material.
func (i *Identity) IsPublic() (bool, error) {
	enc, err := i.Encryptor()
	if err != nil {
		return false, err
	}
	return enc.IsPublic(), nil
}

// Serialize renders the identity to a plain map. The encryptor field is
// refreshed from the live encryptor when one has been instantiated.
func (i *Identity) Serialize() map[string]any {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.enc != nil {
		i.contents["encryptor"] = i.enc.Proto()
	}
	out := make(map[string]any, len(i.contents))
	for k, v := range i.contents {
		out[k] = v
	}
	return out
}

// Deserialize rebuilds an identity from its serialized map form. Required
// fields are checked in a fixed order; the first missing one is named in
// the error.
func Deserialize(m map[string]any) (*Identity, error) {
	for _, req := range requiredFields {
		if _, ok := m[req]; !ok {
			return nil, fmt.Errorf("missing ident property: %q", req)
		}
	}
	name, ok := m["name"].(string)
	if !ok {
		return nil, fmt.Errorf("ident name is not a string: %v", m["name"])
	}
	loc, ok := address.Canonical(m["location"]).([]any)
	if !ok {
		return nil, fmt.Errorf("ident location is not a list: %v", m["location"])
	}
	encProto, ok := address.Canonical(m["encryptor"]).([]any)
	if !ok {
		return nil, fmt.Errorf("ident encryptor is not a list: %v", m["encryptor"])
	}
	extra := make(map[string]any)
	for k, v := range m {
		switch k {
		case "name", "location", "encryptor":
		default:
			extra[k] = v
		}
	}
	return New(name, encProto, address.Address(loc), extra), nil
}
