package list

import (
	"sort"
	"sync"

	"winsync/internal/types"
)

// Registry indexes open lists by id.
type Registry struct {
	mu    sync.RWMutex
	lists map[string]*List
}

func NewRegistry() *Registry {
	return &Registry{lists: make(map[string]*List)}
}

func (r *Registry) Add(l *List) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[l.ID()]; ok {
		return types.Err(types.ErrInvalidConfig, nil, "list %s already registered", l.ID())
	}
	r.lists[l.ID()] = l
	return nil
}

func (r *Registry) Get(id string) (*List, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lists[id]
	if !ok {
		return nil, types.Err(types.ErrNotFound, nil, "list %s", id)
	}
	return l, nil
}

// Remove closes and forgets the list with id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	l, ok := r.lists[id]
	delete(r.lists, id)
	r.mu.Unlock()
	if ok {
		l.Close()
	}
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.lists))
	for id := range r.lists {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Close() {
	for _, id := range r.IDs() {
		r.Remove(id)
	}
}
