package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/probelens/probelens/pkg/engine"
	pkgerrors "github.com/probelens/probelens/pkg/errors"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	// The API is same-origin agnostic: snapshots carry no credentials and
	// sessions are capability-keyed by their uuid.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsOutbound is one frame sent to the client.
type wsOutbound struct {
	Type     string           `json:"type"` // "snapshot" or "error"
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
	Error    string           `json:"error,omitempty"`
	Code     string           `json:"code,omitempty"`
}

// handleWebSocket streams a session: inbound frames are arrival events,
// and after every applied event the full snapshot is pushed back. The
// snapshot-per-event model keeps the client trivially correct (no delta
// reconciliation) at the cost of bandwidth, which is acceptable at
// investigation scale.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "session", sess.ID, "error", err)
		return
	}
	defer conn.Close()
	s.log.Info("websocket connected", "session", sess.ID)

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Writes come from both the read loop and the ping ticker; serialize
	// them on one channel owned by a single writer goroutine.
	out := make(chan wsOutbound, 16)
	done := make(chan struct{})
	go s.wsWriter(conn, out, done)
	defer close(out)

	// Initial snapshot so a late-joining client catches up immediately.
	snap := sess.Engine.Snapshot()
	out <- wsOutbound{Type: "snapshot", Snapshot: &snap}

	for {
		var ev engine.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", "session", sess.ID, "error", err)
			} else {
				s.log.Info("websocket disconnected", "session", sess.ID)
			}
			return
		}

		if err := sess.Engine.Ingest(ev); err != nil {
			select {
			case out <- wsOutbound{Type: "error", Error: pkgerrors.UserMessage(err), Code: string(pkgerrors.GetCode(err))}:
			case <-done:
				return
			}
			continue
		}

		snap := sess.Engine.Snapshot()
		select {
		case out <- wsOutbound{Type: "snapshot", Snapshot: &snap}:
		case <-done:
			return
		}
	}
}

// wsWriter owns all writes on the connection: outbound frames and pings.
func (s *Server) wsWriter(conn *websocket.Conn, out <-chan wsOutbound, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-out:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				s.log.Error("websocket encode failed", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
