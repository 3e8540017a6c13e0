// Package alert defines the SOS alert domain model and its lifecycle state machine.
package alert

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of an alert.
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// IsValid reports whether s is a known alert status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResolved:
		return true
	}
	return false
}

// HazardKind identifies the type of emergency that triggered an alert.
type HazardKind string

const (
	HazardUndergroundFire HazardKind = "underground_fire"
	HazardGasLeakage      HazardKind = "gas_leakage"
	HazardWaterLeak       HazardKind = "water_leak"
	HazardRockFall        HazardKind = "rock_fall"
	HazardBlastingError   HazardKind = "blasting_error"
)

// hazardLabels maps hazard kinds to their human-readable labels.
var hazardLabels = map[HazardKind]string{
	HazardUndergroundFire: "Underground Fire",
	HazardGasLeakage:      "Gas Leakage",
	HazardWaterLeak:       "Water Leak",
	HazardRockFall:        "Rock Fall",
	HazardBlastingError:   "Blasting Error",
}

// Label returns the human-readable label for the hazard kind.
// Unknown kinds return the raw string unchanged.
func (k HazardKind) Label() string {
	if label, ok := hazardLabels[k]; ok {
		return label
	}
	return string(k)
}

// ParseHazardKind validates a raw hazard kind string.
// Returns ErrInvalidHazard if the value is not in the fixed set.
func ParseHazardKind(raw string) (HazardKind, error) {
	kind := HazardKind(raw)
	if _, ok := hazardLabels[kind]; !ok {
		return "", fmt.Errorf("%w: %q (must be one of: underground_fire, gas_leakage, water_leak, rock_fall, blasting_error)", ErrInvalidHazard, raw)
	}
	return kind, nil
}

// Actor is an identity snapshot of the user performing an action on an alert.
// The role is denormalized at capture time so historical display stays stable
// even if the user's role later changes.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// DefaultLocationDescription is used when a trigger carries no location.
const DefaultLocationDescription = "Location not provided"

// Location is a geo point plus a free-text description, e.g.
// "Level 2, Section A, Panel 3".
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Description string  `json:"description"`
}

// Alert is one emergency SOS record with a lifecycle status.
type Alert struct {
	ID             string     `json:"id"`
	HazardKind     HazardKind `json:"hazardKind"`
	HazardLabel    string     `json:"hazardLabel"`
	TriggeredBy    Actor      `json:"triggeredBy"`
	Location       Location   `json:"location"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	AcknowledgedBy *Actor     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedBy     *Actor     `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}
