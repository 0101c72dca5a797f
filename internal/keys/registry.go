package keys

import "winsync/internal/types"

type entry struct {
	id   string
	item types.Item
}

// Registry maps provider identities to opaque row keys for the items a list tracks.
// It does no locking; the owning engine serializes access.
type Registry struct {
	gen   Generator
	byID  map[string]string
	byKey map[string]entry
}

func NewRegistry(gen Generator) *Registry {
	if gen == nil {
		gen = &CounterGenerator{}
	}
	return &Registry{
		gen:   gen,
		byID:  make(map[string]string),
		byKey: make(map[string]entry),
	}
}

// Assign returns the key already tracked for id, or mints one. created reports whether the
// key is new. The stored item is replaced by the given one either way.
func (r *Registry) Assign(id string, item types.Item) (key string, created bool) {
	if k, ok := r.byID[id]; ok {
		r.byKey[k] = entry{id: id, item: item}
		return k, false
	}
	k := r.gen.Next()
	r.byID[id] = k
	r.byKey[k] = entry{id: id, item: item}
	return k, true
}

// Release forgets key. Callers must not release a key an unacknowledged batch still uses.
// Releasing an unknown key is a no-op and returns false.
func (r *Registry) Release(key string) (types.Item, bool) {
	e, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	delete(r.byKey, key)
	if r.byID[e.id] == key {
		delete(r.byID, e.id)
	}
	return e.item, true
}

func (r *Registry) Get(key string) (types.Item, bool) {
	e, ok := r.byKey[key]
	return e.item, ok
}

func (r *Registry) KeyOf(id string) (string, bool) {
	k, ok := r.byID[id]
	return k, ok
}

func (r *Registry) Has(key string) bool {
	_, ok := r.byKey[key]
	return ok
}

func (r *Registry) Len() int { return len(r.byKey) }

// Keys returns every live key, in no particular order.
func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		out = append(out, k)
	}
	return out
}
