package handler

import (
	"net/http"

	"gowa-gateway/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler joins a connection to the channel of /ws/:sessionId.
// The channel exists only while the session is set up.
func WebSocketHandler(hub *ws.Hub, log zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("sessionId")
		if !hub.HasChannel(sessionID) {
			return ErrorResponse(c, http.StatusNotFound, "Session channel not found", "SESSION_NOT_FOUND", sessionID)
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Websocket upgrade failed")
			return nil
		}

		client := hub.NewClient(sessionID, conn)
		if err := hub.Register(client); err != nil {
			_ = conn.Close()
			return nil
		}

		go client.WritePump()
		go client.ReadPump()
		return nil
	}
}
