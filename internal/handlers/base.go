package handlers

import (
	"sos-gateway/internal/metrics"
	"sos-gateway/internal/registry"
)

// Handlers wraps dependencies for the HTTP and websocket handlers.
type Handlers struct {
	store      Store
	producer   AuditPublisher // nil when auditing is disabled
	dispatcher EventDispatcher
	registry   *registry.Registry
	metrics    metrics.Recorder

	// supervisorList lets supervisors call the alert listing endpoint.
	// Workers never can.
	supervisorList bool
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithAuditPublisher enables publishing lifecycle audit events to Kafka.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(h *Handlers) { h.producer = p }
}

// WithMetrics sets a custom metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(h *Handlers) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithSupervisorList grants supervisors access to the alert listing endpoint.
func WithSupervisorList(enabled bool) Option {
	return func(h *Handlers) { h.supervisorList = enabled }
}

// NewHandlers creates a handlers instance. The store, dispatcher and registry
// are required; auditing and metrics are optional and default to disabled and
// no-op respectively.
func NewHandlers(store Store, dispatcher EventDispatcher, reg *registry.Registry, opts ...Option) *Handlers {
	h := &Handlers{
		store:      store,
		dispatcher: dispatcher,
		registry:   reg,
		metrics:    metrics.NoOp{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
