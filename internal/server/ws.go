package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ayusman/fingerspell/internal/server/api"
	"github.com/ayusman/fingerspell/internal/session"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Client message types accepted on a session socket.
const (
	msgFrame   = "frame"
	msgType    = "type"
	msgCapture = "capture"
	msgReset   = "reset"
)

// clientMessage is one message from the browser. Frames carry landmarks in
// the same shape as POST /api/sessions/{id}/frames.
type clientMessage struct {
	Type string `json:"type"`
	api.FrameRequest
	Symbol string `json:"symbol,omitempty"`
}

type snapshotMessage struct {
	Type  string        `json:"type"`
	State session.State `json:"state"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// SessionSocket streams session events over a WebSocket and accepts frames
// and typing commands from the client.
type SessionSocket struct {
	registry *session.Registry
}

// NewSessionSocket creates a SessionSocket over reg.
func NewSessionSocket(reg *session.Registry) *SessionSocket {
	return &SessionSocket{registry: reg}
}

// ServeHTTP handles WebSocket upgrade requests for /api/sessions/{id}/ws.
func (h *SessionSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		api.WriteError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	c := &socketConn{conn: conn}
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	if err := c.send(snapshotMessage{Type: "snapshot", State: sess.State()}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if err := c.send(ev); err != nil {
				return
			}
		}
		// Session closed; tell the client and drop the connection.
		c.close(websocket.CloseGoingAway, "session closed")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if err := handleMessage(sess, data); err != nil {
			if err := c.send(errorMessage{Type: "error", Error: err.Error()}); err != nil {
				break
			}
		}
	}

	unsubscribe()
	<-done
}

// handleMessage applies one client message to sess.
func handleMessage(sess *session.Session, data []byte) error {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	switch msg.Type {
	case msgFrame:
		hand, err := msg.Hand()
		if err != nil {
			return err
		}
		sess.Offer(hand)
		return nil
	case msgType:
		return sess.Type(msg.Symbol)
	case msgCapture:
		_, err := sess.Capture()
		return err
	case msgReset:
		sess.Reset()
		return nil
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// socketConn serializes writes from the event pump and the read loop.
type socketConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *socketConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *socketConn) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteTimeout))
	// Unblocks the read loop.
	c.conn.Close()
}
