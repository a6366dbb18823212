package router

import (
	"sync"

	"ejswitch/pkg/address"
)

type jackEntry struct {
	jack    Jack
	typeKey address.Key // canonical key of the transport-type component
}

// registry holds the two independent address-keyed maps. Registration can
// race with dispatch, so mutation takes the write lock while lookups take
// the read lock.
type registry struct {
	mu      sync.RWMutex
	jacks   map[address.Key]*jackEntry
	clients map[address.Key]Client
}

func (g *registry) init() {
	g.jacks = make(map[address.Key]*jackEntry)
	g.clients = make(map[address.Key]Client)
}

// addJack stores a jack and reports, via threaded() evaluated under the
// lock, whether the caller must start it.
func (g *registry) addJack(j Jack, threaded func() bool) (start bool, err error) {
	iface := j.Interface()
	key, err := address.JackKey(iface)
	if err != nil {
		return false, err
	}
	tkey, err := address.KeyOf(iface.Type())
	if err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.jacks[key] = &jackEntry{jack: j, typeKey: tkey}
	return threaded(), nil
}

func (g *registry) addClient(c Client) error {
	key, err := address.ClientKey(c.Interface())
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[key] = c
	return nil
}

// LookupClient returns the client registered at the exact 3-component
// address, if any.
func (g *registry) LookupClient(addr address.Address) (Client, bool) {
	key, err := address.ClientKey(addr)
	if err != nil {
		return nil, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.clients[key]
	return c, ok
}

// LookupJack returns some registered jack whose transport-type component
// matches the queried address, ignoring location. With several jacks of one
// transport type the winner follows map iteration order and is
// implementation-defined; this loose "any jack of this kind" policy is
// deliberate (multiple physical jacks can service one logical transport)
// and must not be tightened to an exact match.
func (g *registry) LookupJack(addr address.Address) (Jack, bool) {
	tkey, err := address.KeyOf(addr.Type())
	if err != nil {
		return nil, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.jacks {
		if e.typeKey == tkey {
			return e.jack, true
		}
	}
	return nil, false
}

// jackSnapshotLocked copies the current jack set; callers hold mu.
func (g *registry) jackSnapshotLocked() []Jack {
	out := make([]Jack, 0, len(g.jacks))
	for _, e := range g.jacks {
		out = append(out, e.jack)
	}
	return out
}
