package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"sos-gateway/internal/auth"
	"sos-gateway/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards are served from separate origins; the JWT on the upgrade
	// request is the access control.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeEvents upgrades the connection to a websocket and registers the session
// for alert fanout. The session receives broadcasts immediately; role-room
// membership follows a join-role-room control message validated against the
// caller's authenticated role.
func (h *Handlers) ServeEvents(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	client := ws.NewClient(conn, *identity, h.registry)
	h.registry.Register(client)

	slog.Info("Websocket session connected",
		"connection_id", client.ID(),
		"user", identity.ID,
		"role", identity.Role,
		"connections", h.registry.Count(),
	)

	go client.WritePump()
	go client.ReadPump()
}
