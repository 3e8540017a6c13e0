// Package events defines the wire contracts for SOS lifecycle events: the
// websocket push payloads consumed by connected dashboards and the audit
// records published to Kafka.
package events

import (
	"time"

	"sos-gateway/internal/alert"
)

// Websocket event names. These match the channel names the dashboard clients
// subscribe to.
const (
	EventEmergencyAlert     = "sos-emergency-alert"
	EventEmergencyBroadcast = "sos-emergency-broadcast"
	EventAlertAcknowledged  = "sos-alert-acknowledged"
	EventAlertResolved      = "sos-alert-resolved"

	// Control events on the client-to-server path.
	EventJoinRoleRoom = "join-role-room"
	EventRoomJoined   = "room-joined"
	EventJoinRejected = "join-rejected"
)

// Envelope wraps every websocket message with its event name.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// EmergencyAlert is the payload for sos-emergency-alert and
// sos-emergency-broadcast events.
type EmergencyAlert struct {
	ID              string         `json:"id"`
	HazardKind      string         `json:"hazardKind"`
	HazardLabel     string         `json:"hazardLabel"`
	TriggeredByName string         `json:"triggeredByName"`
	TriggeredByID   string         `json:"triggeredById"`
	Location        alert.Location `json:"location"`
	CreatedAt       time.Time      `json:"createdAt"`
	Status          string         `json:"status"`
	Broadcast       bool           `json:"broadcast,omitempty"`
}

// NewEmergencyAlert builds the push payload for a freshly triggered alert.
func NewEmergencyAlert(a *alert.Alert) *EmergencyAlert {
	return &EmergencyAlert{
		ID:              a.ID,
		HazardKind:      string(a.HazardKind),
		HazardLabel:     a.HazardKind.Label(),
		TriggeredByName: a.TriggeredBy.Name,
		TriggeredByID:   a.TriggeredBy.ID,
		Location:        a.Location,
		CreatedAt:       a.CreatedAt,
		Status:          string(a.Status),
	}
}

// StatusChange is the payload for sos-alert-acknowledged and sos-alert-resolved
// events. Exactly one of AcknowledgedByName/ResolvedByName is set, matching the
// event name it travels under.
type StatusChange struct {
	AlertID            string    `json:"alertId"`
	AcknowledgedByName string    `json:"acknowledgedByName,omitempty"`
	ResolvedByName     string    `json:"resolvedByName,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// NewAcknowledged builds the payload for a sos-alert-acknowledged event.
func NewAcknowledged(a *alert.Alert) *StatusChange {
	sc := &StatusChange{AlertID: a.ID, Timestamp: time.Now().UTC()}
	if a.AcknowledgedBy != nil {
		sc.AcknowledgedByName = a.AcknowledgedBy.Name
	}
	if a.AcknowledgedAt != nil {
		sc.Timestamp = *a.AcknowledgedAt
	}
	return sc
}

// NewResolved builds the payload for a sos-alert-resolved event.
func NewResolved(a *alert.Alert) *StatusChange {
	sc := &StatusChange{AlertID: a.ID, Timestamp: time.Now().UTC()}
	if a.ResolvedBy != nil {
		sc.ResolvedByName = a.ResolvedBy.Name
	}
	if a.ResolvedAt != nil {
		sc.Timestamp = *a.ResolvedAt
	}
	return sc
}

// JoinRoleRoom is the control message a client sends right after connecting to
// declare which role room it wants to join. The server cross-checks the declared
// room against the authenticated caller's role before honoring it.
type JoinRoleRoom struct {
	Event string `json:"event"`
	Room  string `json:"room"`
}

// Audit actions for AlertAudit events.
const (
	ActionTriggered    = "TRIGGERED"
	ActionAcknowledged = "ACKNOWLEDGED"
	ActionResolved     = "RESOLVED"
)

// SchemaVersion is the current AlertAudit schema version.
const SchemaVersion = 1

// AlertAudit is the record published to the sos.alerts Kafka topic for every
// lifecycle change. Downstream reporting keeps every trigger attempt visible;
// retried triggers are distinct, auditable events.
type AlertAudit struct {
	AlertID       string    `json:"alert_id"`
	Action        string    `json:"action"` // TRIGGERED, ACKNOWLEDGED, RESOLVED
	HazardKind    string    `json:"hazard_kind"`
	ActorID       string    `json:"actor_id"`
	ActorName     string    `json:"actor_name"`
	Timestamp     time.Time `json:"timestamp"`
	SchemaVersion int       `json:"schema_version"`
}

// NewAlertAudit builds an audit record for an alert lifecycle change performed
// by actor.
func NewAlertAudit(a *alert.Alert, action string, actor alert.Actor) *AlertAudit {
	return &AlertAudit{
		AlertID:       a.ID,
		Action:        action,
		HazardKind:    string(a.HazardKind),
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
	}
}
