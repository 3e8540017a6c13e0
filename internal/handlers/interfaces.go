// Package handlers provides the HTTP handlers for the SOS alert API.
package handlers

import (
	"context"

	"sos-gateway/internal/alert"
	"sos-gateway/internal/events"
)

// Store defines the alert persistence operations the handlers need.
// Satisfied by both database.DB and database.MemoryStore.
type Store interface {
	// CreateAlert inserts a new active alert with an assigned id.
	CreateAlert(ctx context.Context, kind alert.HazardKind, triggeredBy alert.Actor, location alert.Location) (*alert.Alert, error)

	// GetAlert retrieves an alert by id. Returns database.ErrNotFound if absent.
	GetAlert(ctx context.Context, id string) (*alert.Alert, error)

	// ListAlerts returns alerts newest-first. An empty filter matches every status.
	ListAlerts(ctx context.Context, statusFilter alert.Status) ([]*alert.Alert, error)

	// ApplyTransition atomically moves an alert from expectedStatus to change.To.
	// Returns database.ErrConflict when the stored status drifted from expectedStatus.
	ApplyTransition(ctx context.Context, id string, expectedStatus alert.Status, change alert.Change) (*alert.Alert, error)

	// Close releases the store's resources.
	Close() error
}

// AuditPublisher publishes alert lifecycle audit records to Kafka.
type AuditPublisher interface {
	Publish(ctx context.Context, audit *events.AlertAudit) error
	Close() error
}

// EventDispatcher pushes alert events to connected websocket sessions.
type EventDispatcher interface {
	// PublishTrigger fans a new alert out to the admin and supervisor rooms
	// plus a broadcast to every session.
	PublishTrigger(ctx context.Context, a *alert.Alert)

	// PublishStatusChange fans an acknowledged or resolved event out to every
	// session. kind is dispatch.KindAcknowledged or dispatch.KindResolved.
	PublishStatusChange(ctx context.Context, a *alert.Alert, kind string)
}
