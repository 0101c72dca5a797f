package list

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"winsync/internal/annotate"
	"winsync/internal/datasource"
	"winsync/internal/engine"
	"winsync/internal/keys"
	"winsync/internal/ports"
	"winsync/internal/render"
	"winsync/internal/types"
)

type options struct {
	renderer  *render.Renderer
	generator keys.Generator
}

type Option func(*options)

// WithRenderer overrides the renderer built from the list config.
func WithRenderer(r *render.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithGenerator overrides the key strategy of the list config.
func WithGenerator(g keys.Generator) Option {
	return func(o *options) { o.generator = g }
}

// Status is a point-in-time view of a list's synchronization state.
type Status struct {
	ID       string      `json:"id"`
	State    string      `json:"state"`
	Range    types.Range `json:"range"`
	Size     int         `json:"size"`
	Pending  bool        `json:"pending"`
	Awaiting int64       `json:"awaiting,omitempty"`
	LiveKeys int         `json:"liveKeys"`
}

// List is a virtualized list bound to one data provider and one remote peer. It owns the
// annotation pipeline, the active renderer and the sync engine.
type List struct {
	mu          sync.Mutex
	cfg         types.ListConfig
	source      *datasource.Source
	pipeline    *annotate.Pipeline
	engine      *engine.Engine
	renderer    *render.Renderer
	rendererAnn annotate.Annotator
	rendererReg *annotate.Registration
	placeholder string
	unlisten    func()
	changed     chan struct{}
	closed      bool
}

func New(cfg types.ListConfig, provider ports.DataProvider, transport ports.Transport, opts ...Option) (*List, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, types.Err(types.ErrInvalidConfig, err, "list %s", cfg.ID)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.renderer == nil {
		r, err := render.FromConfig(cfg.Renderer)
		if err != nil {
			return nil, types.Err(types.ErrInvalidConfig, err, "list %s", cfg.ID)
		}
		o.renderer = r
	}
	if o.generator == nil {
		o.generator = keys.GeneratorFor(cfg.KeyStrategy)
	}

	l := &List{
		cfg:         cfg,
		source:      datasource.New(provider, cfg.Query, cfg.SizeCacheTTL()),
		pipeline:    annotate.NewPipeline(),
		renderer:    o.renderer,
		placeholder: cfg.PlaceholderTemplate,
		changed:     make(chan struct{}, 1),
	}
	l.rendererAnn = o.renderer.Annotator()
	l.rendererReg = l.pipeline.Add(l.rendererAnn)

	e, err := engine.New(engine.Options{
		ListID:    cfg.ID,
		Source:    l.source,
		Pipeline:  l.pipeline,
		Keys:      keys.NewRegistry(o.generator),
		Transport: transport,
	})
	if err != nil {
		return nil, err
	}
	l.engine = e
	l.listen(provider)
	return l, nil
}

func (l *List) ID() string { return l.cfg.ID }

func (l *List) Config() types.ListConfig { return l.cfg }

// Changed is signalled when the provider reported a change. The host should Flush.
func (l *List) Changed() <-chan struct{} { return l.changed }

// SetRenderer replaces the renderer. The old renderer forgets every live row, and every
// active row is re-sent with the new renderer's properties on the next cycle.
func (l *List) SetRenderer(r *render.Renderer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.rendererAnn.(annotate.Destroyer); ok {
		l.engine.EachLive(d.Destroy)
	}
	l.rendererReg.Remove()
	l.renderer = r
	l.rendererAnn = r.Annotator()
	l.rendererReg = l.pipeline.Add(l.rendererAnn)
	l.engine.Reset()
}

func (l *List) Renderer() *render.Renderer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.renderer
}

// AddAnnotator registers an extra annotator after the renderer. Removing the returned
// registration takes it out again.
func (l *List) AddAnnotator(a annotate.Annotator) *annotate.Registration {
	reg := l.pipeline.Add(a)
	l.engine.Reset()
	return reg
}

func (l *List) SetPlaceholderTemplate(t string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.placeholder = t
}

// Template is the client item template: the renderer template plus the placeholder branch.
func (l *List) Template() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return render.ItemTemplate(l.placeholder, l.renderer)
}

// SetDataProvider swaps the provider behind the list and rebuilds the window from it.
func (l *List) SetDataProvider(p ports.DataProvider) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unlisten != nil {
		l.unlisten()
		l.unlisten = nil
	}
	l.source.SetProvider(p)
	l.listen(p)
	l.engine.Reset()
}

func (l *List) SetFilter(filter string) {
	l.source.SetFilter(filter)
	l.engine.Reset()
}

func (l *List) SetSort(sort []string) {
	l.source.SetSort(sort)
	l.engine.Reset()
}

func (l *List) RequestRange(start, length int) error {
	return l.engine.RequestRange(start, length)
}

func (l *List) Acknowledge(updateID int64) bool {
	return l.engine.Acknowledge(updateID)
}

func (l *List) Flush(ctx context.Context) (bool, error) {
	return l.engine.Flush(ctx)
}

// Refresh re-sends the row of item if it is visible.
func (l *List) Refresh(item types.Item) bool {
	return l.engine.RefreshItem(item)
}

func (l *List) RefreshAll() {
	l.engine.Reset()
}

// Bind records that the row under key is rendered externally as externalID and re-sends
// the row so the client receives its ref artifact.
func (l *List) Bind(key, externalID string) error {
	l.mu.Lock()
	table := l.renderer.SideTable()
	l.mu.Unlock()
	if table == nil {
		return types.Err(types.ErrInvalidEvent, nil, "list %s has no component renderer", l.cfg.ID)
	}
	item, ok := l.engine.ItemFor(key)
	if !ok {
		return types.Err(types.ErrNotFound, nil, "list %s key %s", l.cfg.ID, key)
	}
	table.Bind(key, externalID)
	l.engine.RefreshItem(item)
	return nil
}

func (l *List) KeyFor(item types.Item) (string, bool) { return l.engine.KeyFor(item) }

func (l *List) ItemFor(key string) (types.Item, bool) { return l.engine.ItemFor(key) }

func (l *List) Status() Status {
	st := Status{
		ID:       l.cfg.ID,
		State:    l.engine.State().String(),
		Range:    l.engine.ActiveRange(),
		Size:     l.engine.Size(),
		Pending:  l.engine.PendingFlush(),
		LiveKeys: l.engine.LiveKeys(),
	}
	if id, ok := l.engine.AwaitingUpdateID(); ok {
		st.Awaiting = id
	}
	return st
}

// Close detaches the list from its provider's change notifications.
func (l *List) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.unlisten != nil {
		l.unlisten()
		l.unlisten = nil
	}
}

func (l *List) listen(p ports.DataProvider) {
	n, ok := p.(ports.ChangeNotifier)
	if !ok {
		return
	}
	l.unlisten = n.OnChange(l.onChange)
}

func (l *List) onChange(ev ports.ChangeEvent) {
	switch ev.Kind {
	case ports.RefreshItem:
		if !l.engine.RefreshItem(ev.Item) {
			return
		}
	default:
		l.engine.Reset()
	}
	log.WithFields(log.Fields{"list": l.cfg.ID, "kind": ev.Kind}).Debug("provider changed")
	select {
	case l.changed <- struct{}{}:
	default:
	}
}
