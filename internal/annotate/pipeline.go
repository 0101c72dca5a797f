package annotate

import (
	"sync"

	"winsync/internal/types"
)

// Annotator writes named fields into an item's wire representation.
// The item key is already present under types.KeyField when Annotate runs.
type Annotator interface {
	Annotate(item types.Item, rep types.Representation) error
}

// AnnotatorFunc adapts a function to Annotator.
type AnnotatorFunc func(item types.Item, rep types.Representation) error

func (f AnnotatorFunc) Annotate(item types.Item, rep types.Representation) error {
	return f(item, rep)
}

// Destroyer is implemented by annotators that keep per-row state. Destroy is called once
// the row's key has been released.
type Destroyer interface {
	Destroy(key string, item types.Item)
}

type slot struct {
	id int
	a  Annotator
}

// Pipeline is an ordered, composable set of annotators. Execution order is registration
// order.
type Pipeline struct {
	mu      sync.RWMutex
	slots   []slot
	nextID  int
	version uint64
}

func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Registration removes its annotator from the pipeline. Remove is idempotent.
type Registration struct {
	once sync.Once
	p    *Pipeline
	id   int
}

func (r *Registration) Remove() {
	if r == nil {
		return
	}
	r.once.Do(func() { r.p.remove(r.id) })
}

func (p *Pipeline) Add(a Annotator) *Registration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.slots = append(p.slots, slot{id: p.nextID, a: a})
	p.version++
	return &Registration{p: p, id: p.nextID}
}

func (p *Pipeline) remove(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.slots {
		if s.id == id {
			p.slots = append(p.slots[:i:i], p.slots[i+1:]...)
			p.version++
			return
		}
	}
}

// Version changes every time an annotator is added or removed.
func (p *Pipeline) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.slots)
}

func (p *Pipeline) snapshot() []slot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]slot(nil), p.slots...)
}

// Annotate builds the representation of item under key by folding every annotator over a
// fresh map.
func (p *Pipeline) Annotate(item types.Item, key string) (types.Representation, error) {
	rep := types.Representation{types.KeyField: key}
	for i, s := range p.snapshot() {
		if err := s.a.Annotate(item, rep); err != nil {
			return nil, types.Err(types.ErrAnnotatorFailure, err, "annotator #%d, key %s", i, key)
		}
	}
	// annotators may not rebind the key
	rep[types.KeyField] = key
	return rep, nil
}

// Destroy notifies every Destroyer that key is gone.
func (p *Pipeline) Destroy(key string, item types.Item) {
	for _, s := range p.snapshot() {
		if d, ok := s.a.(Destroyer); ok {
			d.Destroy(key, item)
		}
	}
}
