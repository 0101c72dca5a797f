package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"winsync/internal/annotate"
	"winsync/internal/datasource"
	"winsync/internal/keys"
	"winsync/internal/ports"
	"winsync/internal/types"
	"winsync/internal/updater"
)

// Options wires an engine to its collaborators. Source, Pipeline and Transport are required.
type Options struct {
	ListID    string
	Source    *datasource.Source
	Pipeline  *annotate.Pipeline
	Keys      *keys.Registry
	Transport ports.Transport
	NewQueue  updater.Factory
}

// window is the remote-side state one batch leaves behind.
type window struct {
	rng       types.Range
	keys      []string // key per position of rng
	size      int
	sizeKnown bool
}

type inflight struct {
	updateID   int64
	next       window
	passivated []string
}

// Engine synchronizes a requested window of a list with the remote side. At most one batch
// is in flight; acknowledgments are fenced on the update id.
//
// Every method takes the engine lock, so events are handled one at a time in arrival order.
// Flush holds the lock while it talks to the provider and the transport, which means a
// Transport must not call back into the engine from Send.
type Engine struct {
	mu sync.Mutex

	listID    string
	source    *datasource.Source
	pipeline  *annotate.Pipeline
	keys      *keys.Registry
	transport ports.Transport
	newQueue  updater.Factory

	state     State
	requested types.Range
	pending   bool

	acked        window
	flight       *inflight
	nextUpdateID int64

	resendAll       bool
	pipelineVersion uint64
	refreshed       map[string]types.Item
}

func New(opts Options) (*Engine, error) {
	if opts.Source == nil || opts.Pipeline == nil || opts.Transport == nil {
		return nil, fmt.Errorf("engine: source, pipeline and transport are required")
	}
	if opts.Keys == nil {
		opts.Keys = keys.NewRegistry(nil)
	}
	if opts.NewQueue == nil {
		opts.NewQueue = updater.New
	}
	return &Engine{
		listID:          opts.ListID,
		source:          opts.Source,
		pipeline:        opts.Pipeline,
		keys:            opts.Keys,
		transport:       opts.Transport,
		newQueue:        opts.NewQueue,
		nextUpdateID:    1,
		pipelineVersion: opts.Pipeline.Version(),
		refreshed:       make(map[string]types.Item),
	}, nil
}

// RequestRange records the window the client wants. It does no I/O; the next Flush services
// it. Requests made while a batch is awaiting acknowledgment coalesce, the latest one wins.
func (e *Engine) RequestRange(start, length int) error {
	r, err := types.NewRange(start, length)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requested = r
	e.pending = true
	if e.state == AwaitingAck {
		log.WithFields(log.Fields{
			"list":     e.listID,
			"range":    r.String(),
			"awaiting": e.flight.updateID,
		}).Debug("range request queued until acknowledgment")
	}
	return nil
}

// Flush builds and commits the next batch if one is due. It returns false without error
// when there is nothing to do or a batch is still awaiting acknowledgment. On failure no
// batch is committed, the engine stays Idle and the request stays pending for a retry.
func (e *Engine) Flush(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == AwaitingAck || !e.pending {
		return false, nil
	}
	e.state = Building
	c := &cycle{e: e}
	committed, err := e.build(ctx, c)
	if err != nil {
		c.rollback()
		e.state = Idle
		failedCycles.WithLabelValues(e.listID, failureReason(err)).Inc()
		log.WithError(err).WithFields(log.Fields{
			"list":  e.listID,
			"range": e.requested.String(),
		}).Warn("synchronization cycle failed")
		return false, err
	}
	if !committed {
		e.state = Idle
	}
	liveKeys.WithLabelValues(e.listID).Set(float64(e.keys.Len()))
	return committed, nil
}

func (e *Engine) build(ctx context.Context, c *cycle) (bool, error) {
	size, err := e.source.Size(ctx)
	if err != nil {
		return false, err
	}
	version := e.pipeline.Version()
	prev := e.acked.rng
	effective := e.requested.RestrictTo(types.Range{Length: size})
	resend := e.resendAll || version != e.pipelineVersion ||
		!(prev.Intersects(effective) || (prev.IsEmpty() && effective.IsEmpty()))

	var segments []types.Range
	if resend {
		segments = []types.Range{effective}
	} else {
		before, _, after := effective.PartitionWith(prev)
		segments = []types.Range{before, after}
	}

	// Fetch only what the remote side does not have yet. A short read means the dataset
	// shrank under us; everything from that point on is gone.
	fetched := make(map[int]types.Item)
	limit := size
	for _, seg := range segments {
		seg = seg.RestrictTo(types.Range{Length: limit})
		if seg.IsEmpty() {
			continue
		}
		items, err := e.source.Fetch(ctx, seg)
		if err != nil {
			return false, err
		}
		for i, item := range items {
			fetched[seg.Start+i] = item
		}
		if len(items) < seg.Length {
			limit = seg.Start + len(items)
		}
	}
	if limit < size {
		log.WithFields(log.Fields{
			"list":     e.listID,
			"reported": size,
			"observed": limit,
		}).Debug("provider returned fewer items than its size, clamping")
		size = limit
		effective = e.requested.RestrictTo(types.Range{Length: size})
	}

	next := window{
		rng:       effective,
		keys:      make([]string, effective.Length),
		size:      size,
		sizeKnown: true,
	}
	reps := make(map[int]types.Representation, len(fetched))
	for i := effective.Start; i < effective.End(); i++ {
		if item, ok := fetched[i]; ok {
			key, rep, err := c.annotate(item)
			if err != nil {
				return false, err
			}
			next.keys[i-effective.Start] = key
			reps[i] = rep
			continue
		}
		if !prev.Contains(i) {
			return false, fmt.Errorf("engine: row %d neither fetched nor previously sent", i)
		}
		key := e.acked.keys[i-prev.Start]
		next.keys[i-effective.Start] = key
		if item, ok := e.refreshed[key]; ok {
			_, rep, err := c.annotate(item)
			if err != nil {
				return false, err
			}
			reps[i] = rep
		}
	}

	q := e.newQueue(e.listID, size, !e.acked.sizeKnown || e.acked.size != size)
	bounds := types.Range{Length: size}
	before, _, after := prev.PartitionWith(effective)
	for _, gone := range []types.Range{before, after} {
		gone = gone.RestrictTo(bounds)
		q.Clear(gone.Start, gone.Length)
	}
	runStart := effective.Start
	var run []types.Representation
	for i := effective.Start; i <= effective.End(); i++ {
		if rep, ok := reps[i]; ok && i < effective.End() {
			if len(run) == 0 {
				runStart = i
			}
			run = append(run, rep)
			continue
		}
		if len(run) > 0 {
			q.Set(runStart, run)
			run = nil
		}
	}

	if q.Len() == 0 {
		e.pending = false
		e.resendAll = false
		e.pipelineVersion = version
		clear(e.refreshed)
		return false, nil
	}

	passivated := difference(e.acked.keys, next.keys)
	updateID := e.nextUpdateID
	e.nextUpdateID++
	ops := q.Ops()
	err = q.Commit(ctx, updateID, func(id int64) {
		e.flight = &inflight{updateID: id, next: next, passivated: passivated}
		e.state = AwaitingAck
	}, e.transport)
	if err != nil {
		// The id is burnt: a late acknowledgment for it is stale.
		e.flight = nil
		e.resendAll = true
		return false, err
	}

	e.pending = false
	e.resendAll = false
	e.pipelineVersion = version
	clear(e.refreshed)

	batchesCommitted.WithLabelValues(e.listID).Inc()
	for _, op := range ops {
		operationsEmitted.WithLabelValues(e.listID, string(op.Op)).Inc()
	}
	log.WithFields(log.Fields{
		"list":     e.listID,
		"updateId": updateID,
		"range":    effective.String(),
		"size":     size,
		"ops":      len(ops),
		"resend":   resend,
	}).Debug("batch committed")
	return true, nil
}

// Acknowledge confirms that the remote side applied updateID. Only the id currently
// awaiting acknowledgment is accepted; anything else is a stale or duplicate delivery and
// changes nothing. Keys of rows that left the window with the accepted batch are released.
func (e *Engine) Acknowledge(updateID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != AwaitingAck || e.flight == nil || e.flight.updateID != updateID {
		staleAcks.WithLabelValues(e.listID).Inc()
		fields := log.Fields{"list": e.listID, "updateId": updateID, "state": e.state.String()}
		if e.flight != nil {
			fields["awaiting"] = e.flight.updateID
		}
		log.WithFields(fields).Debug("ignoring stale acknowledgment")
		return false
	}
	f := e.flight
	e.flight = nil
	e.acked = f.next
	e.state = Idle

	active := make(map[string]struct{}, len(e.acked.keys))
	for _, k := range e.acked.keys {
		active[k] = struct{}{}
	}
	for _, k := range f.passivated {
		if _, ok := active[k]; ok {
			continue
		}
		if item, ok := e.keys.Release(k); ok {
			e.pipeline.Destroy(k, item)
		}
	}
	liveKeys.WithLabelValues(e.listID).Set(float64(e.keys.Len()))
	return true
}

// Reset forces the next cycle to regenerate the whole requested window from the provider.
// A batch already awaiting acknowledgment stays fenced; the rebuild happens after it.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resendAll = true
	e.pending = true
	e.source.Invalidate()
}

// RefreshItem re-sends the row of item on the next cycle if the item is tracked.
func (e *Engine) RefreshItem(item types.Item) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	key, ok := e.keys.KeyOf(e.source.ItemID(item))
	if !ok {
		return false
	}
	e.refreshed[key] = item
	e.pending = true
	return true
}

func (e *Engine) ListID() string { return e.listID }

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// PendingFlush reports whether a Flush would have work to do once the engine is Idle.
func (e *Engine) PendingFlush() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

func (e *Engine) AwaitingUpdateID() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.flight == nil {
		return 0, false
	}
	return e.flight.updateID, true
}

func (e *Engine) RequestedRange() types.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requested
}

// ActiveRange is the window as of the last acknowledged batch.
func (e *Engine) ActiveRange() types.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acked.rng
}

// Size is the dataset size as of the last acknowledged batch.
func (e *Engine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acked.size
}

// ActiveKeys returns the keys of the acknowledged window in row order.
func (e *Engine) ActiveKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.acked.keys...)
}

func (e *Engine) KeyFor(item types.Item) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keys.KeyOf(e.source.ItemID(item))
}

func (e *Engine) ItemFor(key string) (types.Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keys.Get(key)
}

// EachLive calls fn for every key the registry still holds, including rows of a batch
// awaiting acknowledgment. fn runs under the engine lock and must not call back into it.
func (e *Engine) EachLive(fn func(key string, item types.Item)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range e.keys.Keys() {
		if item, ok := e.keys.Get(k); ok {
			fn(k, item)
		}
	}
}

func (e *Engine) LiveKeys() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keys.Len()
}

// cycle tracks what one Building pass did to the key registry so it can be undone.
type cycle struct {
	e       *Engine
	created []string
}

func (c *cycle) annotate(item types.Item) (string, types.Representation, error) {
	key, created := c.e.keys.Assign(c.e.source.ItemID(item), item)
	if created {
		c.created = append(c.created, key)
	}
	rep, err := c.e.pipeline.Annotate(item, key)
	if err != nil {
		return "", nil, err
	}
	return key, rep, nil
}

func (c *cycle) rollback() {
	for _, k := range c.created {
		if item, ok := c.e.keys.Release(k); ok {
			c.e.pipeline.Destroy(k, item)
		}
	}
	c.created = nil
}

func difference(old, next []string) []string {
	keep := make(map[string]struct{}, len(next))
	for _, k := range next {
		keep[k] = struct{}{}
	}
	var out []string
	for _, k := range old {
		if _, ok := keep[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, types.ErrProviderFailure):
		return "provider"
	case errors.Is(err, types.ErrAnnotatorFailure):
		return "annotator"
	case errors.Is(err, types.ErrTransportFailure):
		return "transport"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "other"
}
