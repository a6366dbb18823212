package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"ejswitch/pkg/address"
	"ejswitch/pkg/codec"
)

// Cache is a thread-safe identity store keyed by canonical client address.
type Cache struct {
	mu    sync.RWMutex
	byKey map[address.Key]*Identity
}

func NewCache() *Cache {
	return &Cache{byKey: make(map[address.Key]*Identity)}
}

// Update inserts or replaces the identity stored at its location.
func (c *Cache) Update(id *Identity) error {
	key, err := address.ClientKey(id.Location())
	if err != nil {
		return fmt.Errorf("identity %q: %w", id.Name(), err)
	}
	c.mu.Lock()
	c.byKey[key] = id
	c.mu.Unlock()
	return nil
}

// Lookup finds the identity registered at a location.
func (c *Cache) Lookup(loc address.Address) (*Identity, bool) {
	key, err := address.ClientKey(loc)
	if err != nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byKey[key]
	return id, ok
}

// Remove deletes the identity at a location, if present.
func (c *Cache) Remove(loc address.Address) {
	key, err := address.ClientKey(loc)
	if err != nil {
		return
	}
	c.mu.Lock()
	delete(c.byKey, key)
	c.mu.Unlock()
}

// All returns a snapshot of the cached identities, ordered by name for
// stable listings.
func (c *Cache) All() []*Identity {
	c.mu.RLock()
	out := make([]*Identity, 0, len(c.byKey))
	for _, id := range c.byKey {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Encode serializes the cache contents with the given codec.
func (c *Cache) Encode(cdc codec.Codec) ([]byte, error) {
	ids := c.All()
	docs := make([]map[string]any, len(ids))
	for i, id := range ids {
		docs[i] = id.Serialize()
	}
	return cdc.Marshal(docs)
}

// Decode merges serialized identities into the cache. Each entry must carry
// the required identity fields.
func (c *Cache) Decode(cdc codec.Codec, b []byte) error {
	var docs []map[string]any
	if err := cdc.Unmarshal(b, &docs); err != nil {
		return fmt.Errorf("decode identity cache: %w", err)
	}
	for _, doc := range docs {
		id, err := Deserialize(doc)
		if err != nil {
			return err
		}
		if err := c.Update(id); err != nil {
			return err
		}
	}
	return nil
}

// cacheCodecs resolves cache files to codecs by content type.
var cacheCodecs = codec.NewRegistry()

func init() {
	if c, err := codec.CBOR(); err == nil {
		cacheCodecs.Register(c)
	}
}

func fileCodec(path string) (codec.Codec, error) {
	ct := codec.ContentJSON
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		ct = codec.ContentCBOR
	}
	cdc := cacheCodecs.Get(ct)
	if cdc == nil {
		return nil, fmt.Errorf("no codec registered for %s", ct)
	}
	return cdc, nil
}

// LoadFile reads an identity cache from disk. The codec is picked from the
// file extension: .cbor decodes as CBOR, anything else as JSON.
func LoadFile(path string) (*Cache, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cdc, err := fileCodec(path)
	if err != nil {
		return nil, err
	}
	c := NewCache()
	if err := c.Decode(cdc, b); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveFile writes the cache next to how LoadFile reads it, choosing the
// codec from the path extension.
func (c *Cache) SaveFile(path string) error {
	cdc, err := fileCodec(path)
	if err != nil {
		return err
	}
	b, err := c.Encode(cdc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
