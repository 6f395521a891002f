package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"calbook/internal/metrics"
	"calbook/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The token is the access control; origin checks add nothing for
	// non-browser clients and the frontend runs on its own host.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleCalendarWS upgrades the connection and joins it to the broadcast
// hub. Browsers cannot set headers on websocket dials, so the token may
// arrive as a query parameter.
// GET /ws/calendar?token=...
func (s *HTTPServer) handleCalendarWS(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ws_calendar")

	claims, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(s.hub, conn, claims.UserID)
	go client.Serve()
}
