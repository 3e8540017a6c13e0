// Package handlers provides test mocks for handler dependencies.
package handlers

import (
	"context"
	"sync"
	"time"

	"sos-gateway/internal/alert"
	"sos-gateway/internal/events"
)

// mockStore implements Store for testing.
type mockStore struct {
	CreateAlertFn     func(ctx context.Context, kind alert.HazardKind, triggeredBy alert.Actor, location alert.Location) (*alert.Alert, error)
	GetAlertFn        func(ctx context.Context, id string) (*alert.Alert, error)
	ListAlertsFn      func(ctx context.Context, statusFilter alert.Status) ([]*alert.Alert, error)
	ApplyTransitionFn func(ctx context.Context, id string, expectedStatus alert.Status, change alert.Change) (*alert.Alert, error)
}

func (m *mockStore) CreateAlert(ctx context.Context, kind alert.HazardKind, triggeredBy alert.Actor, location alert.Location) (*alert.Alert, error) {
	if m.CreateAlertFn != nil {
		return m.CreateAlertFn(ctx, kind, triggeredBy, location)
	}
	return &alert.Alert{
		ID:          "alert-1",
		HazardKind:  kind,
		HazardLabel: kind.Label(),
		TriggeredBy: triggeredBy,
		Location:    location,
		Status:      alert.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (m *mockStore) GetAlert(ctx context.Context, id string) (*alert.Alert, error) {
	if m.GetAlertFn != nil {
		return m.GetAlertFn(ctx, id)
	}
	return &alert.Alert{ID: id, Status: alert.StatusActive}, nil
}

func (m *mockStore) ListAlerts(ctx context.Context, statusFilter alert.Status) ([]*alert.Alert, error) {
	if m.ListAlertsFn != nil {
		return m.ListAlertsFn(ctx, statusFilter)
	}
	return []*alert.Alert{}, nil
}

func (m *mockStore) ApplyTransition(ctx context.Context, id string, expectedStatus alert.Status, change alert.Change) (*alert.Alert, error) {
	if m.ApplyTransitionFn != nil {
		return m.ApplyTransitionFn(ctx, id, expectedStatus, change)
	}
	return &alert.Alert{ID: id, Status: change.To}, nil
}

func (m *mockStore) Close() error { return nil }

// mockDispatcher implements EventDispatcher and records every publish.
type mockDispatcher struct {
	mu        sync.Mutex
	triggered []*alert.Alert
	changes   []statusChange
}

type statusChange struct {
	alert *alert.Alert
	kind  string
}

func (m *mockDispatcher) PublishTrigger(_ context.Context, a *alert.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered = append(m.triggered, a)
}

func (m *mockDispatcher) PublishStatusChange(_ context.Context, a *alert.Alert, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, statusChange{alert: a, kind: kind})
}

// mockPublisher implements AuditPublisher and records every audit event.
type mockPublisher struct {
	mu         sync.Mutex
	published  []*events.AlertAudit
	publishErr error
}

func (m *mockPublisher) Publish(_ context.Context, audit *events.AlertAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, audit)
	return nil
}

func (m *mockPublisher) Close() error { return nil }
