package router

import (
	"net/http"
	"time"

	"sos-gateway/internal/auth"
	"sos-gateway/internal/handlers"
)

// NewServer creates a new HTTP server with the router configured. Websocket
// sessions on /sos/events hijack the connection on upgrade and manage their
// own deadlines, so the server timeouts only govern plain HTTP requests.
func NewServer(addr string, h *handlers.Handlers, verifier *auth.Verifier) *http.Server {
	router := NewRouter(h, verifier)
	return &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
