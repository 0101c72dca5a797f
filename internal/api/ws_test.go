package api

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"winsync/internal/types"
)

func (s *UnitTestSuite) dial(id string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	return conn
}

func (s *UnitTestSuite) readFrame(conn *websocket.Conn) wsFrame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, msg, err := conn.ReadMessage()
	s.Require().NoError(err)
	var f wsFrame
	s.Require().NoError(json.Unmarshal(msg, &f))
	return f
}

func (s *UnitTestSuite) sendEvent(conn *websocket.Conn, ev types.ListEvent) {
	b, err := json.Marshal(ev)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, b))
}

func (s *UnitTestSuite) TestWebsocketSession() {
	conn := s.dial("people")
	defer func() {
		_ = conn.Close()
	}()

	f := s.readFrame(conn)
	s.Equal(frameTemplate, f.Type)
	s.Contains(f.Template, "[[item.name]]")

	s.sendEvent(conn, types.ListEvent{Type: types.EventRange, Start: 0, Length: 10})
	f = s.readFrame(conn)
	s.Require().Equal(frameBatch, f.Type)
	s.Equal(int64(1), f.Batch.UpdateID)
	s.Require().Len(f.Batch.Ops, 2)
	s.Equal(types.UpdateSize(100), f.Batch.Ops[0])

	// queued until the first batch is acknowledged
	s.sendEvent(conn, types.ListEvent{Type: types.EventRange, Start: 5, Length: 10})
	s.sendEvent(conn, types.ListEvent{Type: types.EventAck, UpdateID: 1})
	f = s.readFrame(conn)
	s.Require().Equal(frameBatch, f.Type)
	s.Equal(int64(2), f.Batch.UpdateID)
	s.Equal([]types.Operation{types.Clear(0, 5), f.Batch.Ops[1]}, f.Batch.Ops)

	s.sendEvent(conn, types.ListEvent{Type: types.EventAck, UpdateID: 1})
	f = s.readFrame(conn)
	s.Equal(frameStale, f.Type)
	s.Equal(int64(1), f.UpdateID)

	s.sendEvent(conn, types.ListEvent{Type: types.EventAck, UpdateID: 2})
	s.Require().True(s.provider.Update(map[string]any{"id": "p7", "name": "Renamed"}))
	f = s.readFrame(conn)
	s.Require().Equal(frameBatch, f.Type)
	s.Equal(int64(3), f.Batch.UpdateID)
	s.Require().Len(f.Batch.Ops, 1)
	s.Equal(7, f.Batch.Ops[0].Start)

	// the shared list never saw any of it
	s.Equal(0, s.rec.count())
}

func (s *UnitTestSuite) TestWebsocketErrors() {
	conn := s.dial("people")
	defer func() {
		_ = conn.Close()
	}()
	s.readFrame(conn)

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	f := s.readFrame(conn)
	s.Equal(frameError, f.Type)
	s.Equal(types.ErrInvalidEvent.Error(), f.Error)

	s.sendEvent(conn, types.ListEvent{Type: "zoom"})
	f = s.readFrame(conn)
	s.Equal(frameError, f.Type)
	s.Contains(f.Error, "unknown event type")
}

func (s *UnitTestSuite) TestWebsocketUnknownList() {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/ghost"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(404, resp.StatusCode)
}
