// Package dispatch fans alert lifecycle events out to connected sessions.
// Delivery is at-most-once per live connection per call: a failed or timed-out
// send is logged and dropped, never retried, because disconnected clients
// reconcile by re-fetching the alert list on reconnect.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"sos-gateway/internal/alert"
	"sos-gateway/internal/auth"
	"sos-gateway/internal/events"
	"sos-gateway/internal/metrics"
	"sos-gateway/internal/registry"
)

// Status-change kinds accepted by PublishStatusChange.
const (
	KindAcknowledged = "acknowledged"
	KindResolved     = "resolved"
)

// defaultDeliveryTimeout bounds how long a single session delivery may take
// before it is abandoned.
const defaultDeliveryTimeout = 2 * time.Second

// Dispatcher delivers alert events to the right audience. It is constructed
// once at startup and injected into the API layer; there is no package-level
// instance.
type Dispatcher struct {
	registry *registry.Registry
	metrics  metrics.Recorder
	timeout  time.Duration
}

// New creates a dispatcher over the given registry. A nil recorder degrades to
// a no-op.
func New(reg *registry.Registry, rec metrics.Recorder) *Dispatcher {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &Dispatcher{
		registry: reg,
		metrics:  rec,
		timeout:  defaultDeliveryTimeout,
	}
}

// PublishTrigger delivers a freshly triggered alert to every session in the
// admin and supervisor rooms, exactly once per session even when a connection
// joined both rooms, plus an informational broadcast to every connected
// session.
func (d *Dispatcher) PublishTrigger(ctx context.Context, a *alert.Alert) {
	payload := events.NewEmergencyAlert(a)

	roomMsg, err := json.Marshal(events.Envelope{Event: events.EventEmergencyAlert, Payload: payload})
	if err != nil {
		slog.Error("Failed to marshal emergency alert event", "alert_id", a.ID, "error", err)
		return
	}
	broadcastPayload := *payload
	broadcastPayload.Broadcast = true
	broadcastMsg, err := json.Marshal(events.Envelope{Event: events.EventEmergencyBroadcast, Payload: &broadcastPayload})
	if err != nil {
		slog.Error("Failed to marshal emergency broadcast event", "alert_id", a.ID, "error", err)
		return
	}

	// Snapshot membership before any delivery I/O; a late joiner may miss this
	// event and catches up via List() on connect.
	targeted := dedupe(d.registry.MembersOf(auth.RoleAdmin), d.registry.MembersOf(auth.RoleSupervisor))
	everyone := d.registry.All()

	d.deliver(ctx, events.EventEmergencyAlert, a.ID, targeted, roomMsg)
	d.deliver(ctx, events.EventEmergencyBroadcast, a.ID, everyone, broadcastMsg)
}

// PublishStatusChange delivers an acknowledged/resolved event to every
// connected session, not room-scoped, since any viewer currently showing the
// alert must reflect its new status.
func (d *Dispatcher) PublishStatusChange(ctx context.Context, a *alert.Alert, kind string) {
	var envelope events.Envelope
	switch kind {
	case KindAcknowledged:
		envelope = events.Envelope{Event: events.EventAlertAcknowledged, Payload: events.NewAcknowledged(a)}
	case KindResolved:
		envelope = events.Envelope{Event: events.EventAlertResolved, Payload: events.NewResolved(a)}
	default:
		slog.Error("Unknown status change kind", "kind", kind, "alert_id", a.ID)
		return
	}

	msg, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("Failed to marshal status change event", "alert_id", a.ID, "kind", kind, "error", err)
		return
	}
	d.deliver(ctx, envelope.Event, a.ID, d.registry.All(), msg)
}

// deliver fans a message out to the given sessions, one goroutine per session,
// without holding any registry lock. Each attempt is bounded by the delivery
// timeout; failures are counted and logged, never surfaced to the caller.
func (d *Dispatcher) deliver(ctx context.Context, event, alertID string, sessions []registry.Session, msg []byte) {
	if len(sessions) == 0 {
		slog.Debug("No sessions for event", "event", event, "alert_id", alertID)
		return
	}

	done := make(chan struct{})
	var delivered, failed int
	results := make(chan bool, len(sessions))

	for _, s := range sessions {
		go func(s registry.Session) {
			sendErr := make(chan error, 1)
			go func() { sendErr <- s.Send(msg) }()

			timer := time.NewTimer(d.timeout)
			defer timer.Stop()
			select {
			case err := <-sendErr:
				if err != nil {
					slog.Warn("Event delivery failed",
						"event", event,
						"alert_id", alertID,
						"connection_id", s.ID(),
						"error", err,
					)
					results <- false
					return
				}
				results <- true
			case <-timer.C:
				slog.Warn("Event delivery timed out, abandoning",
					"event", event,
					"alert_id", alertID,
					"connection_id", s.ID(),
					"timeout", d.timeout,
				)
				results <- false
			case <-ctx.Done():
				results <- false
			}
		}(s)
	}

	go func() {
		for range sessions {
			if <-results {
				delivered++
			} else {
				failed++
			}
		}
		close(done)
	}()
	<-done

	for i := 0; i < delivered; i++ {
		d.metrics.IncrementCustom("deliveries_delivered")
	}
	for i := 0; i < failed; i++ {
		d.metrics.IncrementCustom("deliveries_failed")
		d.metrics.RecordError()
	}
	slog.Info("Event fanout complete",
		"event", event,
		"alert_id", alertID,
		"sessions", len(sessions),
		"delivered", delivered,
		"failed", failed,
	)
}

// dedupe merges session slices, keeping one entry per connection id.
func dedupe(groups ...[]registry.Session) []registry.Session {
	seen := make(map[string]struct{})
	var out []registry.Session
	for _, group := range groups {
		for _, s := range group {
			if _, ok := seen[s.ID()]; ok {
				continue
			}
			seen[s.ID()] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
