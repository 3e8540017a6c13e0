// Package router provides HTTP routing configuration for the SOS gateway API.
// It sets up routes and applies middleware like CORS and JWT authentication.
package router

import (
	"net/http"

	"sos-gateway/internal/auth"
	"sos-gateway/internal/handlers"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux      *http.ServeMux
	handlers *handlers.Handlers
	verifier *auth.Verifier
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *handlers.Handlers, verifier *auth.Verifier) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: h,
		verifier: verifier,
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all HTTP routes for the API. Everything under /sos
// requires a valid JWT; /health does not.
func (r *Router) setupRoutes() {
	authed := r.verifier.Middleware

	r.mux.Handle("POST /sos/trigger", authed(http.HandlerFunc(r.handlers.Trigger)))
	r.mux.Handle("GET /sos/alerts", authed(http.HandlerFunc(r.handlers.List)))
	r.mux.Handle("PATCH /sos/alerts/{id}/acknowledge", authed(http.HandlerFunc(r.handlers.Acknowledge)))
	r.mux.Handle("PATCH /sos/alerts/{id}/resolve", authed(http.HandlerFunc(r.handlers.Resolve)))

	// Websocket clients pass the JWT as a query parameter; browsers cannot set
	// headers on upgrade requests.
	r.mux.Handle("GET /sos/events", authed(http.HandlerFunc(r.handlers.ServeEvents)))

	r.mux.HandleFunc("GET /health", r.handlers.Health)
}

// Handler returns the HTTP handler with CORS middleware applied.
func (r *Router) Handler() http.Handler {
	return corsMiddleware(r.mux)
}
