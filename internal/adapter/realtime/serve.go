package realtime

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
)

// Endpoint upgrades authenticated HTTP requests into hub clients.
type Endpoint struct {
	hub      *Hub
	relay    LocationRelay
	upgrader websocket.Upgrader
}

func NewEndpoint(hub *Hub, relay LocationRelay) *Endpoint {
	return &Endpoint{
		hub:   hub,
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(hub.opts.AllowedOrigins),
		},
	}
}

// originChecker allows any origin for "*", gorilla's same-host check when
// the list is empty, and otherwise an exact match. Requests without an
// Origin header come from non-browser clients and are allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// Handle upgrades the connection for user. The caller has already
// authenticated the request.
func (e *Endpoint) Handle(w http.ResponseWriter, r *http.Request, user domain.User) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(e.hub, e.relay, conn, user)
	if !e.hub.attach(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}
	client.Start()
}
