// Package database provides tests for the in-memory alert store, including the
// concurrency guarantees of its compare-and-set transition.
package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sos-gateway/internal/alert"
)

func triggerTestAlert(t *testing.T, s *MemoryStore) *alert.Alert {
	t.Helper()
	a, err := s.CreateAlert(context.Background(), alert.HazardGasLeakage,
		alert.Actor{ID: "worker-1", Name: "Worker One", Role: "worker"},
		alert.Location{Lat: 12.5, Lon: 77.2, Description: "Level 2"})
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	return a
}

// TestMemoryStore_CreateAndGet covers the basic create/get round trip and the
// not-found path.
func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := triggerTestAlert(t, s)
	got, err := s.GetAlert(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if got.Status != alert.StatusActive {
		t.Errorf("GetAlert() status = %v, want active", got.Status)
	}
	if got.HazardLabel != "Gas Leakage" {
		t.Errorf("GetAlert() hazardLabel = %q, want %q", got.HazardLabel, "Gas Leakage")
	}

	if _, err := s.GetAlert(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAlert(missing) error = %v, want ErrNotFound", err)
	}
}

// TestMemoryStore_CreateRejectsInvalidHazard verifies store-level validation.
func TestMemoryStore_CreateRejectsInvalidHazard(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.CreateAlert(context.Background(), alert.HazardKind("flooding"),
		alert.Actor{ID: "worker-1", Name: "Worker One"}, alert.Location{})
	if !errors.Is(err, alert.ErrInvalidHazard) {
		t.Fatalf("CreateAlert() error = %v, want ErrInvalidHazard", err)
	}
}

// TestMemoryStore_ListFiltering verifies newest-first ordering and status filtering.
func TestMemoryStore_ListFiltering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	admin := alert.Actor{ID: "admin-1", Name: "Admin One", Role: "admin"}

	first := triggerTestAlert(t, s)
	second := triggerTestAlert(t, s)
	third := triggerTestAlert(t, s)

	// first -> acknowledged, second -> resolved, third stays active.
	now := time.Now().UTC()
	if _, err := s.ApplyTransition(ctx, first.ID, alert.StatusActive, alert.Change{
		To: alert.StatusAcknowledged, AcknowledgedBy: &admin, AcknowledgedAt: &now,
	}); err != nil {
		t.Fatalf("ApplyTransition() error = %v", err)
	}
	if _, err := s.ApplyTransition(ctx, second.ID, alert.StatusActive, alert.Change{
		To: alert.StatusResolved, AcknowledgedBy: &admin, AcknowledgedAt: &now,
		ResolvedBy: &admin, ResolvedAt: &now,
	}); err != nil {
		t.Fatalf("ApplyTransition() error = %v", err)
	}

	all, err := s.ListAlerts(ctx, "")
	if err != nil {
		t.Fatalf("ListAlerts() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAlerts() len = %d, want 3", len(all))
	}
	if all[0].ID != third.ID {
		t.Errorf("ListAlerts() first = %s, want newest %s", all[0].ID, third.ID)
	}

	active, err := s.ListAlerts(ctx, alert.StatusActive)
	if err != nil {
		t.Fatalf("ListAlerts(active) error = %v", err)
	}
	if len(active) != 1 || active[0].ID != third.ID {
		t.Fatalf("ListAlerts(active) = %+v, want exactly the active alert", active)
	}
}

// TestMemoryStore_CopySemantics verifies callers cannot mutate stored state
// through returned pointers.
func TestMemoryStore_CopySemantics(t *testing.T) {
	s := NewMemoryStore()
	a := triggerTestAlert(t, s)

	a.Status = alert.StatusResolved
	got, err := s.GetAlert(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if got.Status != alert.StatusActive {
		t.Error("mutating a returned alert leaked into the store")
	}
}

// TestMemoryStore_ConcurrentResolves hammers one alert id with concurrent
// resolve transitions: exactly one must win, every loser must observe
// ErrConflict, and the persisted resolver must be the winner's identity.
func TestMemoryStore_ConcurrentResolves(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := triggerTestAlert(t, s)

	const contenders = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := make([]string, 0, 1)
	conflicts := 0

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := alert.Actor{ID: "admin-" + string(rune('a'+n%26)), Name: "Admin", Role: "admin"}
			now := time.Now().UTC()
			change := alert.Change{
				To: alert.StatusResolved,
				AcknowledgedBy: &actor, AcknowledgedAt: &now,
				ResolvedBy: &actor, ResolvedAt: &now,
			}
			_, err := s.ApplyTransition(ctx, a.ID, alert.StatusActive, change)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, actor.ID)
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("ApplyTransition() unexpected error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners = %d, want exactly 1", len(winners))
	}
	if conflicts != contenders-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, contenders-1)
	}

	final, err := s.GetAlert(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if final.Status != alert.StatusResolved {
		t.Errorf("final status = %v, want resolved", final.Status)
	}
	if final.ResolvedBy == nil || final.ResolvedBy.ID != winners[0] {
		t.Errorf("resolvedBy = %+v, want winner %s", final.ResolvedBy, winners[0])
	}
}

// TestMemoryStore_ResolvedIsTerminal verifies further transitions against a
// resolved alert fail with conflict and leave timestamps unchanged.
func TestMemoryStore_ResolvedIsTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	admin := alert.Actor{ID: "admin-1", Name: "Admin One", Role: "admin"}
	a := triggerTestAlert(t, s)

	now := time.Now().UTC()
	resolved, err := s.ApplyTransition(ctx, a.ID, alert.StatusActive, alert.Change{
		To: alert.StatusResolved, AcknowledgedBy: &admin, AcknowledgedAt: &now,
		ResolvedBy: &admin, ResolvedAt: &now,
	})
	if err != nil {
		t.Fatalf("ApplyTransition() error = %v", err)
	}

	later := now.Add(time.Minute)
	_, err = s.ApplyTransition(ctx, a.ID, alert.StatusActive, alert.Change{
		To: alert.StatusAcknowledged, AcknowledgedBy: &admin, AcknowledgedAt: &later,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("ApplyTransition() after resolve error = %v, want ErrConflict", err)
	}

	final, _ := s.GetAlert(ctx, a.ID)
	if !final.AcknowledgedAt.Equal(*resolved.AcknowledgedAt) || !final.ResolvedAt.Equal(*resolved.ResolvedAt) {
		t.Error("timestamps changed after a rejected transition")
	}
}
