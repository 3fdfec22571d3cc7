package httpadapter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket subscribes the caller to notifications of one session. The
// connection is read only to notice when the client goes away.
func (s *Server) handleWebSocket(c *gin.Context) {
	if s.hub == nil {
		writeError(c, fmt.Errorf("%w: websocket notifications are disabled", domain.ErrNotFound))
		return
	}

	id := domain.SessionID(c.Param("id"))
	if _, err := s.sessions.GetSessionSummary(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		observability.LoggerFromContext(c.Request.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}

	s.hub.AddConnection(id, conn)
	defer s.hub.RemoveConnection(id, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				observability.LoggerFromContext(c.Request.Context()).Debug("websocket read ended", "session_id", id, "error", err)
			}
			return
		}
	}
}
