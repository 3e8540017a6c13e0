// Package dispatch provides tests for event fanout behavior.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"sos-gateway/internal/alert"
	"sos-gateway/internal/auth"
	"sos-gateway/internal/events"
	"sos-gateway/internal/metrics"
	"sos-gateway/internal/registry"
)

// fakeSink records delivered messages and can simulate slow or broken
// connections.
type fakeSink struct {
	id      string
	mu      sync.Mutex
	msgs    [][]byte
	sendErr error
	delay   time.Duration
}

func (f *fakeSink) ID() string { return f.id }

func (f *fakeSink) Send(msg []byte) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSink) eventNames(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.msgs))
	for _, msg := range f.msgs {
		var env events.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		names = append(names, env.Event)
	}
	return names
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func countOf(names []string, want string) int {
	n := 0
	for _, name := range names {
		if name == want {
			n++
		}
	}
	return n
}

func testAlert() *alert.Alert {
	now := time.Now().UTC()
	return &alert.Alert{
		ID:          "alert-1",
		HazardKind:  alert.HazardGasLeakage,
		HazardLabel: alert.HazardGasLeakage.Label(),
		TriggeredBy: alert.Actor{ID: "worker-1", Name: "Worker One", Role: "worker"},
		Location:    alert.Location{Lat: 12.5, Lon: 77.2, Description: "Level 2"},
		Status:      alert.StatusActive,
		CreatedAt:   now,
	}
}

// TestDispatcher_RoomScopedFanout verifies a supervisor-only session receives
// the emergency alert event, a roomless session does not, and both receive the
// resolved event.
func TestDispatcher_RoomScopedFanout(t *testing.T) {
	reg := registry.New()
	d := New(reg, nil)
	ctx := context.Background()

	supervisor := &fakeSink{id: "conn-supervisor"}
	worker := &fakeSink{id: "conn-worker"}
	reg.Register(supervisor)
	reg.Register(worker)
	reg.Join(supervisor.id, auth.RoleSupervisor)
	// Worker joins no room.

	a := testAlert()
	d.PublishTrigger(ctx, a)

	supNames := supervisor.eventNames(t)
	workerNames := worker.eventNames(t)
	if !contains(supNames, events.EventEmergencyAlert) {
		t.Errorf("supervisor events = %v, want %s", supNames, events.EventEmergencyAlert)
	}
	if !contains(supNames, events.EventEmergencyBroadcast) {
		t.Errorf("supervisor events = %v, want %s", supNames, events.EventEmergencyBroadcast)
	}
	if contains(workerNames, events.EventEmergencyAlert) {
		t.Errorf("roomless session received room-scoped event: %v", workerNames)
	}
	if !contains(workerNames, events.EventEmergencyBroadcast) {
		t.Errorf("worker events = %v, want %s", workerNames, events.EventEmergencyBroadcast)
	}

	// Resolution goes to everyone.
	resolver := alert.Actor{ID: "admin-1", Name: "Admin One", Role: "admin"}
	now := time.Now().UTC()
	a.Status = alert.StatusResolved
	a.ResolvedBy = &resolver
	a.ResolvedAt = &now
	d.PublishStatusChange(ctx, a, KindResolved)

	if !contains(supervisor.eventNames(t), events.EventAlertResolved) {
		t.Error("supervisor did not receive resolved event")
	}
	if !contains(worker.eventNames(t), events.EventAlertResolved) {
		t.Error("roomless session did not receive resolved event")
	}
}

// TestDispatcher_DedupeAcrossRooms verifies a session in both rooms receives
// the room-scoped event exactly once.
func TestDispatcher_DedupeAcrossRooms(t *testing.T) {
	reg := registry.New()
	d := New(reg, nil)

	both := &fakeSink{id: "conn-both"}
	reg.Register(both)
	reg.Join(both.id, auth.RoleAdmin)
	reg.Join(both.id, auth.RoleSupervisor)

	d.PublishTrigger(context.Background(), testAlert())

	names := both.eventNames(t)
	if got := countOf(names, events.EventEmergencyAlert); got != 1 {
		t.Errorf("emergency alert delivered %d times, want exactly 1", got)
	}
	if got := countOf(names, events.EventEmergencyBroadcast); got != 1 {
		t.Errorf("broadcast delivered %d times, want exactly 1", got)
	}
}

// TestDispatcher_EmergencyAlertPayload verifies the push payload carries the
// documented fields.
func TestDispatcher_EmergencyAlertPayload(t *testing.T) {
	reg := registry.New()
	d := New(reg, nil)

	admin := &fakeSink{id: "conn-admin"}
	reg.Register(admin)
	reg.Join(admin.id, auth.RoleAdmin)

	d.PublishTrigger(context.Background(), testAlert())

	admin.mu.Lock()
	defer admin.mu.Unlock()
	if len(admin.msgs) == 0 {
		t.Fatal("no messages delivered")
	}
	var env struct {
		Event   string                `json:"event"`
		Payload events.EmergencyAlert `json:"payload"`
	}
	if err := json.Unmarshal(admin.msgs[0], &env); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	p := env.Payload
	if p.ID != "alert-1" || p.HazardKind != "gas_leakage" || p.HazardLabel != "Gas Leakage" {
		t.Errorf("payload = %+v, want alert-1/gas_leakage/Gas Leakage", p)
	}
	if p.TriggeredByName != "Worker One" || p.TriggeredByID != "worker-1" {
		t.Errorf("payload triggeredBy = %s/%s, want Worker One/worker-1", p.TriggeredByName, p.TriggeredByID)
	}
	if p.Status != "active" {
		t.Errorf("payload status = %q, want active", p.Status)
	}
}

// TestDispatcher_SlowSinkDoesNotBlockOthers verifies deliveries are parallel:
// a slow connection must not delay delivery to healthy ones.
func TestDispatcher_SlowSinkDoesNotBlockOthers(t *testing.T) {
	reg := registry.New()
	d := New(reg, nil)

	slow := &fakeSink{id: "conn-slow", delay: 300 * time.Millisecond}
	fastReceived := make(chan time.Time, 4)
	fast := &timedSink{id: "conn-fast", received: fastReceived}
	reg.Register(slow)
	reg.Register(fast)
	reg.Join(slow.id, auth.RoleAdmin)
	reg.Join(fast.id, auth.RoleAdmin)

	start := time.Now()
	d.PublishTrigger(context.Background(), testAlert())

	select {
	case at := <-fastReceived:
		if elapsed := at.Sub(start); elapsed > 200*time.Millisecond {
			t.Errorf("fast sink delayed %v by slow sibling, want immediate delivery", elapsed)
		}
	default:
		t.Fatal("fast sink received nothing")
	}
}

// timedSink records when each message arrived.
type timedSink struct {
	id       string
	received chan time.Time
}

func (s *timedSink) ID() string { return s.id }
func (s *timedSink) Send(_ []byte) error {
	s.received <- time.Now()
	return nil
}

// TestDispatcher_FailedSinkIsIsolated verifies one broken connection does not
// prevent delivery to others, and the failure is counted, not surfaced.
func TestDispatcher_FailedSinkIsIsolated(t *testing.T) {
	reg := registry.New()
	collector := metrics.NewCollector("sos-gateway-test", nil)
	d := New(reg, collector)

	broken := &fakeSink{id: "conn-broken", sendErr: errors.New("connection reset")}
	healthy := &fakeSink{id: "conn-healthy"}
	reg.Register(broken)
	reg.Register(healthy)
	reg.Join(broken.id, auth.RoleAdmin)
	reg.Join(healthy.id, auth.RoleAdmin)

	d.PublishTrigger(context.Background(), testAlert())

	if !contains(healthy.eventNames(t), events.EventEmergencyAlert) {
		t.Error("healthy sink did not receive the event")
	}
	snap := collector.Snapshot()
	if snap.CustomCounters["deliveries_failed"] == 0 {
		t.Error("failed delivery was not counted")
	}
	if snap.CustomCounters["deliveries_delivered"] == 0 {
		t.Error("successful delivery was not counted")
	}
}

// TestDispatcher_DeliveryTimeout verifies a hung connection is abandoned after
// the delivery timeout instead of stalling the fanout forever.
func TestDispatcher_DeliveryTimeout(t *testing.T) {
	reg := registry.New()
	collector := metrics.NewCollector("sos-gateway-test", nil)
	d := New(reg, collector)
	d.timeout = 50 * time.Millisecond

	hung := &fakeSink{id: "conn-hung", delay: time.Second}
	reg.Register(hung)
	reg.Join(hung.id, auth.RoleAdmin)

	start := time.Now()
	d.PublishTrigger(context.Background(), testAlert())
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("fanout took %v, want bounded by delivery timeout", elapsed)
	}
	if collector.Snapshot().CustomCounters["deliveries_failed"] == 0 {
		t.Error("timed-out delivery was not counted as failed")
	}
}

// TestDispatcher_AcknowledgedPayload verifies the status change payload shape.
func TestDispatcher_AcknowledgedPayload(t *testing.T) {
	reg := registry.New()
	d := New(reg, nil)

	viewer := &fakeSink{id: "conn-viewer"}
	reg.Register(viewer)

	a := testAlert()
	admin := alert.Actor{ID: "admin-1", Name: "Admin One", Role: "admin"}
	now := time.Now().UTC()
	a.Status = alert.StatusAcknowledged
	a.AcknowledgedBy = &admin
	a.AcknowledgedAt = &now
	d.PublishStatusChange(context.Background(), a, KindAcknowledged)

	viewer.mu.Lock()
	defer viewer.mu.Unlock()
	if len(viewer.msgs) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(viewer.msgs))
	}
	var env struct {
		Event   string              `json:"event"`
		Payload events.StatusChange `json:"payload"`
	}
	if err := json.Unmarshal(viewer.msgs[0], &env); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if env.Event != events.EventAlertAcknowledged {
		t.Errorf("event = %q, want %q", env.Event, events.EventAlertAcknowledged)
	}
	if env.Payload.AlertID != "alert-1" || env.Payload.AcknowledgedByName != "Admin One" {
		t.Errorf("payload = %+v, want alert-1 acknowledged by Admin One", env.Payload)
	}
	if !env.Payload.Timestamp.Equal(now) {
		t.Errorf("payload timestamp = %v, want %v", env.Payload.Timestamp, now)
	}
}
