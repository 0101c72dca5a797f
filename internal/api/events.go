package api

import (
	"context"

	log "github.com/sirupsen/logrus"

	"winsync/internal/list"
	"winsync/internal/types"
)

// Result reports what an event did to a list.
type Result struct {
	Status    string `json:"status"`
	Committed bool   `json:"committed"`
	Awaiting  int64  `json:"awaiting,omitempty"`
	Stale     bool   `json:"stale,omitempty"`
}

// Apply feeds one client event to l and flushes, so queued range requests are serviced as
// soon as the acknowledgment they waited for arrives. A stale acknowledgment is reported in
// the result, not as an error.
func Apply(ctx context.Context, l *list.List, ev types.ListEvent) (Result, error) {
	if err := ev.Validate(); err != nil {
		return Result{}, err
	}
	var res Result
	switch ev.Type {
	case types.EventRange:
		if err := l.RequestRange(ev.Start, ev.Length); err != nil {
			return Result{}, err
		}
	case types.EventAck:
		if !l.Acknowledge(ev.UpdateID) {
			res.Stale = true
		}
	case types.EventBind:
		if err := l.Bind(ev.Key, ev.ExternalID); err != nil {
			return Result{}, err
		}
	case types.EventRefresh:
		if ev.Item == nil {
			l.RefreshAll()
		} else if !l.Refresh(ev.Item) {
			log.WithField("list", l.ID()).Debug("refresh for an item that is not tracked")
		}
	}

	committed, err := l.Flush(ctx)
	if err != nil {
		return Result{}, err
	}
	st := l.Status()
	res.Status = st.State
	res.Committed = committed
	res.Awaiting = st.Awaiting
	return res, nil
}
