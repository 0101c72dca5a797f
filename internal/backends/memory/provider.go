package memory

import (
	"context"
	"sync"

	"winsync/internal/backends/items"
	"winsync/internal/ports"
	"winsync/internal/types"
)

// Provider keeps a list's items in process. Filters are JMESPath boolean expressions and
// sort entries are field names. Every mutation notifies change listeners.
type Provider struct {
	mu        sync.RWMutex
	idField   string
	items     []types.Item
	listeners map[int]func(ports.ChangeEvent)
	nextID    int
}

func NewProvider(idField string, initial ...types.Item) *Provider {
	if idField == "" {
		idField = types.DefaultIDField
	}
	return &Provider{
		idField:   idField,
		items:     append([]types.Item(nil), initial...),
		listeners: make(map[int]func(ports.ChangeEvent)),
	}
}

func (p *Provider) view(q types.Query) ([]types.Item, error) {
	p.mu.RLock()
	snapshot := append([]types.Item(nil), p.items...)
	p.mu.RUnlock()
	if q.Filter == "" && len(q.Sort) == 0 {
		return snapshot, nil
	}
	return items.Apply(snapshot, q.Filter, q.Sort)
}

func (p *Provider) Size(_ context.Context, q types.Query) (int, error) {
	v, err := p.view(q)
	if err != nil {
		return 0, err
	}
	return len(v), nil
}

func (p *Provider) Fetch(_ context.Context, q types.Query) ([]types.Item, error) {
	v, err := p.view(q)
	if err != nil {
		return nil, err
	}
	return items.Window(v, q.Offset, q.Limit), nil
}

func (p *Provider) ItemID(item types.Item) string {
	return items.ID(item, p.idField)
}

// Set replaces every item.
func (p *Provider) Set(all []types.Item) {
	p.mu.Lock()
	p.items = append([]types.Item(nil), all...)
	p.mu.Unlock()
	p.notify(ports.ChangeEvent{Kind: ports.RefreshAll})
}

func (p *Provider) Add(item ...types.Item) {
	p.mu.Lock()
	p.items = append(p.items, item...)
	p.mu.Unlock()
	p.notify(ports.ChangeEvent{Kind: ports.RefreshAll})
}

// Update replaces the item with the same id in place. It reports whether one was found.
func (p *Provider) Update(item types.Item) bool {
	id := p.ItemID(item)
	p.mu.Lock()
	found := false
	for i, it := range p.items {
		if items.ID(it, p.idField) == id {
			p.items[i] = item
			found = true
			break
		}
	}
	p.mu.Unlock()
	if found {
		p.notify(ports.ChangeEvent{Kind: ports.RefreshItem, Item: item})
	}
	return found
}

func (p *Provider) Remove(id string) bool {
	p.mu.Lock()
	found := false
	for i, it := range p.items {
		if items.ID(it, p.idField) == id {
			p.items = append(p.items[:i:i], p.items[i+1:]...)
			found = true
			break
		}
	}
	p.mu.Unlock()
	if found {
		p.notify(ports.ChangeEvent{Kind: ports.RefreshAll})
	}
	return found
}

func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

func (p *Provider) OnChange(fn func(ports.ChangeEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Provider) notify(ev ports.ChangeEvent) {
	p.mu.RLock()
	fns := make([]func(ports.ChangeEvent), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
