// Package encryptor provides the pluggable signing schemes used by
// identities. A scheme is addressed by a descriptor list
// ["scheme_name", params...]; the registry turns descriptors into live
// Encryptor instances.
package encryptor

import (
	"fmt"
	"sync"

	"ejswitch/pkg/address"
)

// Encryptor signs and verifies payloads for one identity.
type Encryptor interface {
	// Proto returns the descriptor this encryptor reconstructs from.
	Proto() []any
	Sign(data []byte) ([]byte, error)
	Verify(sig, data []byte) bool
	// Public returns an encryptor holding only public material. Symmetric
	// schemes return themselves.
	Public() (Encryptor, error)
	// IsPublic reports whether the encryptor holds no private material.
	IsPublic() bool
}

// Factory builds an encryptor from descriptor params (descriptor minus the
// scheme name).
type Factory func(params []any) (Encryptor, error)

var (
	regMu     sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterScheme makes a scheme available to Make. Later registrations
// overwrite earlier ones.
func RegisterScheme(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[name] = f
}

// Make instantiates an encryptor from its descriptor.
func Make(proto []any) (Encryptor, error) {
	if len(proto) == 0 {
		return nil, fmt.Errorf("empty encryptor descriptor")
	}
	name, ok := address.Canonical(proto[0]).(string)
	if !ok {
		return nil, fmt.Errorf("encryptor scheme name is not a string: %v", proto[0])
	}
	regMu.RLock()
	f := factories[name]
	regMu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("unknown encryptor scheme: %q", name)
	}
	return f(address.Canonical(proto[1:]).([]any))
}
