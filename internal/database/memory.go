package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sos-gateway/internal/alert"
)

// MemoryStore is an in-memory alert store with the same operations and error
// semantics as DB. It backs development mode and tests; the compare-and-set
// guard in ApplyTransition is a mutex-guarded check-then-write.
type MemoryStore struct {
	mu     sync.Mutex
	alerts map[string]*alert.Alert
	order  []string // insertion order, oldest first
}

// NewMemoryStore creates an empty in-memory alert store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alerts: make(map[string]*alert.Alert)}
}

// CreateAlert inserts a new alert with status active and an assigned id.
func (s *MemoryStore) CreateAlert(_ context.Context, kind alert.HazardKind, triggeredBy alert.Actor, location alert.Location) (*alert.Alert, error) {
	if _, err := alert.ParseHazardKind(string(kind)); err != nil {
		return nil, err
	}
	if location.Description == "" {
		location.Description = alert.DefaultLocationDescription
	}

	a := &alert.Alert{
		ID:          uuid.NewString(),
		HazardKind:  kind,
		HazardLabel: kind.Label(),
		TriggeredBy: triggeredBy,
		Location:    location,
		Status:      alert.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	s.order = append(s.order, a.ID)
	return copyAlert(a), nil
}

// GetAlert retrieves an alert by id. Returns ErrNotFound if absent.
func (s *MemoryStore) GetAlert(_ context.Context, id string) (*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyAlert(a), nil
}

// ListAlerts returns alerts newest-first, capped at the most recent 100.
func (s *MemoryStore) ListAlerts(_ context.Context, statusFilter alert.Status) ([]*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var alerts []*alert.Alert
	for i := len(s.order) - 1; i >= 0 && len(alerts) < listLimit; i-- {
		a := s.alerts[s.order[i]]
		if statusFilter != "" && a.Status != statusFilter {
			continue
		}
		alerts = append(alerts, copyAlert(a))
	}
	return alerts, nil
}

// ApplyTransition atomically moves an alert from expectedStatus to change.To.
// Returns ErrConflict when the stored status no longer matches expectedStatus.
func (s *MemoryStore) ApplyTransition(_ context.Context, id string, expectedStatus alert.Status, change alert.Change) (*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if a.Status != expectedStatus {
		return nil, fmt.Errorf("%w: expected status %q", ErrConflict, expectedStatus)
	}

	a.Status = change.To
	if change.AcknowledgedBy != nil {
		actor := *change.AcknowledgedBy
		a.AcknowledgedBy = &actor
	}
	if change.AcknowledgedAt != nil {
		t := *change.AcknowledgedAt
		a.AcknowledgedAt = &t
	}
	if change.ResolvedBy != nil {
		actor := *change.ResolvedBy
		a.ResolvedBy = &actor
	}
	if change.ResolvedAt != nil {
		t := *change.ResolvedAt
		a.ResolvedAt = &t
	}
	return copyAlert(a), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// copyAlert returns a deep copy so callers never share pointers with the store.
func copyAlert(a *alert.Alert) *alert.Alert {
	cp := *a
	if a.AcknowledgedBy != nil {
		actor := *a.AcknowledgedBy
		cp.AcknowledgedBy = &actor
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		cp.AcknowledgedAt = &t
	}
	if a.ResolvedBy != nil {
		actor := *a.ResolvedBy
		cp.ResolvedBy = &actor
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
