package alert

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the alert domain.
var (
	// ErrInvalidHazard indicates a hazard kind outside the fixed set.
	ErrInvalidHazard = errors.New("invalid hazard kind")
	// ErrInvalidTransition indicates a lifecycle transition not allowed by the
	// state machine, e.g. any event on a resolved alert.
	ErrInvalidTransition = errors.New("invalid transition")
)

// EventKind is a lifecycle event applied to an alert.
type EventKind string

const (
	EventAcknowledge EventKind = "acknowledge"
	EventResolve     EventKind = "resolve"
)

// Change is the outcome of a transition: the target status plus the actor/timestamp
// fields to set. Nil pointer fields are left untouched by the store.
type Change struct {
	To             Status
	AcknowledgedBy *Actor
	AcknowledgedAt *time.Time
	ResolvedBy     *Actor
	ResolvedAt     *time.Time

	// NoOp marks an idempotent re-application (acknowledge of an already
	// acknowledged alert). The store must not be touched.
	NoOp bool
}

// Transition computes the next state for an alert in state current when event kind
// is applied by actor at time at. It is a pure function and performs no I/O; the
// store applies the returned Change atomically, keyed on the current status.
//
// Transition table:
//
//	active       + acknowledge -> acknowledged (sets acknowledgedBy/At)
//	active       + resolve     -> resolved     (sets resolvedBy/At; ack fields are
//	                                            filled with the resolver's identity,
//	                                            an implicit acknowledgment)
//	acknowledged + resolve     -> resolved     (sets resolvedBy/At)
//	acknowledged + acknowledge -> no-op        (idempotent)
//	resolved     + anything    -> ErrInvalidTransition
func Transition(current Status, kind EventKind, actor Actor, at time.Time) (Change, error) {
	switch current {
	case StatusActive:
		switch kind {
		case EventAcknowledge:
			return Change{
				To:             StatusAcknowledged,
				AcknowledgedBy: &actor,
				AcknowledgedAt: &at,
			}, nil
		case EventResolve:
			// Resolving an unacknowledged alert implicitly acknowledges it
			// with the resolver's identity at the same instant.
			return Change{
				To:             StatusResolved,
				AcknowledgedBy: &actor,
				AcknowledgedAt: &at,
				ResolvedBy:     &actor,
				ResolvedAt:     &at,
			}, nil
		}
	case StatusAcknowledged:
		switch kind {
		case EventAcknowledge:
			return Change{To: StatusAcknowledged, NoOp: true}, nil
		case EventResolve:
			return Change{
				To:         StatusResolved,
				ResolvedBy: &actor,
				ResolvedAt: &at,
			}, nil
		}
	case StatusResolved:
		return Change{}, fmt.Errorf("%w: alert is already resolved", ErrInvalidTransition)
	}
	return Change{}, fmt.Errorf("%w: cannot apply %q to status %q", ErrInvalidTransition, kind, current)
}
