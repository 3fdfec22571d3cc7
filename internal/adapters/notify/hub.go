package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

const writeWait = 5 * time.Second

// WSMessage is the frame pushed to websocket subscribers.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub keeps websocket subscribers per session and pushes notifications to
// them. The destination of a notification is ignored; the session id picks
// the audience.
type Hub struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]map[*websocket.Conn]bool
	log      *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[domain.SessionID]map[*websocket.Conn]bool),
		log:      observability.WithFields("component", "ws_hub"),
	}
}

func (h *Hub) AddConnection(sessionID domain.SessionID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.sessions[sessionID][conn] = true
	h.log.Info("client connected", "session_id", sessionID, "total", len(h.sessions[sessionID]))
}

func (h *Hub) RemoveConnection(sessionID domain.SessionID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.sessions[sessionID]; ok {
		if _, present := conns[conn]; !present {
			return
		}
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.sessions, sessionID)
		}
		h.log.Info("client disconnected", "session_id", sessionID)
	}
}

// Subscribers returns the number of open connections for a session.
func (h *Hub) Subscribers(sessionID domain.SessionID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// Broadcast writes message to every subscriber of the session. Connections
// that fail to write are dropped.
func (h *Hub) Broadcast(sessionID domain.SessionID, message WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("ws: marshal: %w", err)
	}

	// Writes happen under the lock: gorilla connections allow one writer.
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.sessions[sessionID]
	for conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn("write failed, dropping client", "session_id", sessionID, "error", err)
			conn.Close()
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.sessions, sessionID)
	}
	return nil
}

func (h *Hub) Notify(ctx context.Context, _ string, msg domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.Broadcast(msg.SessionID, WSMessage{Type: string(msg.Kind), Data: msg})
}
