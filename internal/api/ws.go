package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"winsync/internal/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Frames sent to websocket clients. Batches carry the ops of one update; the client
// answers each with an ack event naming its updateId.
type wsFrame struct {
	Type     string       `json:"type"`
	Template string       `json:"template,omitempty"`
	Batch    *types.Batch `json:"batch,omitempty"`
	Error    string       `json:"error,omitempty"`
	UpdateID int64        `json:"updateId,omitempty"`
}

const (
	frameTemplate = "template"
	frameBatch    = "batch"
	frameError    = "error"
	frameStale    = "stale"
)

// wsConn serializes writes to one websocket connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) write(f wsFrame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// wsTransport delivers batches of a session list straight to its websocket peer.
type wsTransport struct {
	conn *wsConn
}

func (t *wsTransport) Send(_ context.Context, b types.Batch) error {
	if err := t.conn.write(wsFrame{Type: frameBatch, Batch: &b}); err != nil {
		return types.Err(types.ErrTransportFailure, err, "websocket write")
	}
	return nil
}

// handleWS opens a private list for the connection. The list lives as long as the socket.
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	if h.Open == nil {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")
	wc := &wsConn{}
	l, err := h.Open(r.Context(), id, &wsTransport{conn: wc})
	if err != nil {
		writeError(w, err)
		return
	}
	defer l.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).WithField("list", id).Warn("websocket upgrade failed")
		return
	}
	defer func() {
		_ = conn.Close()
	}()
	conn.SetReadLimit(wsReadLimit)
	wc.conn = conn

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if err := wc.write(wsFrame{Type: frameTemplate, Template: l.Template()}); err != nil {
		return
	}

	events := make(chan types.ListEvent)
	go func() {
		defer cancel()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).WithField("list", id).Debug("websocket read failed")
				}
				return
			}
			var ev types.ListEvent
			if err := json.Unmarshal(msg, &ev); err != nil {
				_ = wc.write(wsFrame{Type: frameError, Error: types.ErrInvalidEvent.Error()})
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	log.WithField("list", id).Debug("websocket session opened")
	for {
		select {
		case <-ctx.Done():
			log.WithField("list", id).Debug("websocket session closed")
			return
		case ev := <-events:
			ev.ListID = l.ID()
			res, err := Apply(ctx, l, ev)
			switch {
			case err != nil:
				_ = wc.write(wsFrame{Type: frameError, Error: err.Error()})
			case res.Stale:
				_ = wc.write(wsFrame{Type: frameStale, UpdateID: ev.UpdateID, Error: types.ErrStaleAcknowledgment.Error()})
			}
		case <-l.Changed():
			if _, err := l.Flush(ctx); err != nil {
				_ = wc.write(wsFrame{Type: frameError, Error: err.Error()})
			}
		}
	}
}

