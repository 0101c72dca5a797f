package updater

import (
	"context"
	"errors"

	"winsync/internal/ports"
	"winsync/internal/types"
)

var ErrCommitted = errors.New("update queue already committed")

// Queue accumulates the operations of one synchronization cycle. Nothing reaches the
// transport before Commit, so the remote side never sees a partial batch.
type Queue struct {
	listID    string
	size      int
	ops       []types.Operation
	committed bool
}

// Factory starts the queue for one cycle.
type Factory func(listID string, size int, declareSize bool) *Queue

// New starts a queue for a dataset of the given size. When declareSize is set the size
// declaration is the first operation of the batch.
func New(listID string, size int, declareSize bool) *Queue {
	q := &Queue{listID: listID, size: size}
	if declareSize {
		q.ops = append(q.ops, types.UpdateSize(size))
	}
	return q
}

func (q *Queue) Size() int { return q.size }

// Set declares the representations of a contiguous run starting at start.
func (q *Queue) Set(start int, items []types.Representation) {
	if q.committed || len(items) == 0 {
		return
	}
	q.ops = append(q.ops, types.Set(start, items))
}

// Clear declares a contiguous run as placeholder rows.
func (q *Queue) Clear(start, length int) {
	if q.committed || length <= 0 {
		return
	}
	q.ops = append(q.ops, types.Clear(start, length))
}

func (q *Queue) Len() int { return len(q.ops) }

// Ops returns a copy of the queued operations.
func (q *Queue) Ops() []types.Operation {
	return append([]types.Operation(nil), q.ops...)
}

// Commit is the only side-effecting call: confirm is told the update id first, then every
// queued operation goes to t as one ordered batch, then the log is cleared. The log is
// cleared on failure too; a failed batch is never resent.
func (q *Queue) Commit(ctx context.Context, updateID int64, confirm func(int64), t ports.Transport) error {
	if q.committed {
		return ErrCommitted
	}
	q.committed = true
	if confirm != nil {
		confirm(updateID)
	}
	batch := types.Batch{ListID: q.listID, UpdateID: updateID, Ops: q.ops}
	q.ops = nil
	if err := t.Send(ctx, batch); err != nil {
		return types.Err(types.ErrTransportFailure, err, "update %d", updateID)
	}
	return nil
}
