package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"sos-gateway/internal/alert"
	"sos-gateway/internal/auth"
	"sos-gateway/internal/dispatch"
	"sos-gateway/internal/events"
)

// TriggerRequest represents a request to raise an SOS alert.
type TriggerRequest struct {
	HazardKind string  `json:"hazardKind"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Location   string  `json:"location"`
}

// Trigger raises a new SOS alert and fans it out to connected dashboards.
// Every call creates a distinct alert; a miner mashing the button produces
// multiple auditable alerts rather than silently collapsing into one.
// Workers and supervisors may trigger; admins only coordinate.
func (h *Handlers) Trigger(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.metrics.RecordReceived()

	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if identity.Role != auth.RoleWorker && identity.Role != auth.RoleSupervisor {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	kind, err := alert.ParseHazardKind(req.HazardKind)
	if err != nil {
		http.Error(w, "Unknown hazard kind: "+req.HazardKind, http.StatusBadRequest)
		return
	}

	triggeredBy := alert.Actor{ID: identity.ID, Name: identity.Name, Role: identity.Role}
	location := alert.Location{Lat: req.Lat, Lon: req.Lon, Description: req.Location}

	ctx := r.Context()
	a, err := h.store.CreateAlert(ctx, kind, triggeredBy, location)
	if err != nil {
		slog.Error("Failed to create alert", "error", err, "hazard_kind", kind)
		h.metrics.RecordError()
		http.Error(w, "Failed to create alert", statusForError(err))
		return
	}

	slog.Info("SOS alert triggered",
		"alert_id", a.ID,
		"hazard_kind", a.HazardKind,
		"triggered_by", a.TriggeredBy.ID,
		"location", a.Location.Description,
	)

	h.dispatcher.PublishTrigger(ctx, a)
	h.publishAudit(ctx, a, events.ActionTriggered, triggeredBy)

	h.metrics.RecordProcessed(time.Since(start))
	h.metrics.IncrementCustom("alerts_triggered")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(a)
}

// List retrieves alerts newest-first, optionally filtered by status. Admins
// can always list; supervisors only when enabled at startup.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.canList(identity.Role) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var filter alert.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter = alert.Status(raw)
		if !filter.IsValid() {
			http.Error(w, "Unknown status: "+raw, http.StatusBadRequest)
			return
		}
	}

	alerts, err := h.store.ListAlerts(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list alerts", "error", err)
		h.metrics.RecordError()
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*alert.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(alerts)
}

func (h *Handlers) canList(role string) bool {
	if role == auth.RoleAdmin {
		return true
	}
	return role == auth.RoleSupervisor && h.supervisorList
}

// Acknowledge marks an active alert as acknowledged by the caller. Admin only.
// Re-acknowledging an already acknowledged alert is a no-op that returns the
// stored alert unchanged; acknowledging a resolved alert is a conflict.
func (h *Handlers) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, alert.EventAcknowledge)
}

// Resolve marks an alert as resolved by the caller. Resolving an alert that
// was never acknowledged records the resolver as the acknowledger too, at the
// same instant.
func (h *Handlers) Resolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, alert.EventResolve)
}

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, kind alert.EventKind) {
	start := time.Now()
	h.metrics.RecordReceived()

	identity, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if identity.Role != auth.RoleAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Alert id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	actor := alert.Actor{ID: identity.ID, Name: identity.Name, Role: identity.Role}

	current, err := h.store.GetAlert(ctx, id)
	if err != nil {
		slog.Error("Failed to get alert", "error", err, "alert_id", id)
		h.metrics.RecordError()
		http.Error(w, "Alert not found", statusForError(err))
		return
	}

	change, err := alert.Transition(current.Status, kind, actor, time.Now().UTC())
	if err != nil {
		slog.Warn("Rejected alert transition",
			"alert_id", id,
			"from", current.Status,
			"event", kind,
			"actor", actor.ID,
		)
		http.Error(w, "Alert is already "+string(current.Status), statusForError(err))
		return
	}

	if change.NoOp {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(current)
		return
	}

	updated, err := h.store.ApplyTransition(ctx, id, current.Status, change)
	if err != nil {
		slog.Warn("Failed to apply alert transition",
			"error", err,
			"alert_id", id,
			"from", current.Status,
			"to", change.To,
		)
		h.metrics.RecordError()
		http.Error(w, "Failed to update alert", statusForError(err))
		return
	}

	slog.Info("Alert status changed",
		"alert_id", updated.ID,
		"status", updated.Status,
		"actor", actor.ID,
	)

	switch kind {
	case alert.EventAcknowledge:
		h.dispatcher.PublishStatusChange(ctx, updated, dispatch.KindAcknowledged)
		h.publishAudit(ctx, updated, events.ActionAcknowledged, actor)
		h.metrics.IncrementCustom("alerts_acknowledged")
	case alert.EventResolve:
		h.dispatcher.PublishStatusChange(ctx, updated, dispatch.KindResolved)
		h.publishAudit(ctx, updated, events.ActionResolved, actor)
		h.metrics.IncrementCustom("alerts_resolved")
	}

	h.metrics.RecordProcessed(time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// publishAudit publishes a lifecycle audit record. Audit failures are logged,
// never surfaced to the caller; the alert itself is already persisted.
func (h *Handlers) publishAudit(ctx context.Context, a *alert.Alert, action string, actor alert.Actor) {
	if h.producer == nil {
		return
	}
	if err := h.producer.Publish(ctx, events.NewAlertAudit(a, action, actor)); err != nil {
		slog.Error("Failed to publish audit event",
			"error", err,
			"alert_id", a.ID,
			"action", action,
		)
		h.metrics.RecordError()
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": h.registry.Count(),
	})
}
