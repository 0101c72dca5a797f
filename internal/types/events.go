package types

const (
	EventRange   = "range"
	EventAck     = "ack"
	EventRefresh = "refresh"
	EventBind    = "bind"
)

// ListEvent is one inbound client event, as carried by websocket frames and queue messages.
// Start and Length are used by range events, UpdateID by ack events. A refresh event with
// an Item re-sends that item's row; without one it rebuilds the window. A bind event ties
// the row under Key to an externally rendered ExternalID.
type ListEvent struct {
	ListID   string `json:"listId,omitempty"`
	Type     string `json:"type"`
	Start    int    `json:"start,omitempty"`
	Length   int    `json:"length,omitempty"`
	UpdateID int64  `json:"updateId,omitempty"`
	Item     Item   `json:"item,omitempty"`

	Key        string `json:"key,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
}

func (e ListEvent) Validate() error {
	switch e.Type {
	case EventRange:
		if e.Start < 0 || e.Length < 0 {
			return Err(ErrInvalidRange, nil, "start=%d length=%d", e.Start, e.Length)
		}
	case EventAck:
		if e.UpdateID <= 0 {
			return Err(ErrInvalidEvent, nil, "ack needs a positive updateId")
		}
	case EventRefresh:
	case EventBind:
		if e.Key == "" || e.ExternalID == "" {
			return Err(ErrInvalidEvent, nil, "bind needs key and externalId")
		}
	default:
		return Err(ErrInvalidEvent, nil, "unknown event type %q", e.Type)
	}
	return nil
}
