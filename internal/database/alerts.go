package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sos-gateway/internal/alert"
)

// alertColumns is the column list shared by every query that scans a full alert row.
const alertColumns = `id, hazard_kind, triggered_by_id, triggered_by_name, triggered_by_role,
		location_lat, location_lon, location_description, status, created_at,
		acknowledged_by_id, acknowledged_by_name, acknowledged_at,
		resolved_by_id, resolved_by_name, resolved_at`

// CreateAlert inserts a new alert row with status active and an assigned id.
// Returns alert.ErrInvalidHazard if the hazard kind is outside the fixed set.
// Every trigger creates a distinct row; retried triggers are independent,
// auditable alerts.
func (db *DB) CreateAlert(ctx context.Context, kind alert.HazardKind, triggeredBy alert.Actor, location alert.Location) (*alert.Alert, error) {
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

	query := `
		INSERT INTO alerts (
			id, hazard_kind, triggered_by_id, triggered_by_name, triggered_by_role,
			location_lat, location_lon, location_description, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := db.conn.ExecContext(ctx, query,
		a.ID, string(a.HazardKind),
		a.TriggeredBy.ID, a.TriggeredBy.Name, a.TriggeredBy.Role,
		a.Location.Lat, a.Location.Lon, a.Location.Description,
		string(a.Status), a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return a, nil
}

// GetAlert retrieves an alert by id. Returns ErrNotFound if absent.
func (db *DB) GetAlert(ctx context.Context, id string) (*alert.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlert(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts newest-first, capped at the most recent 100.
// An empty statusFilter returns alerts in every status.
func (db *DB) ListAlerts(ctx context.Context, statusFilter alert.Status) ([]*alert.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts`
	args := []any{}
	if statusFilter != "" {
		query += ` WHERE status = $1`
		args = append(args, string(statusFilter))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, listLimit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ApplyTransition atomically moves an alert from expectedStatus to change.To,
// setting only the actor/timestamp fields the change carries. The conditional
// UPDATE is the optimistic compare-and-set guard: if the stored status no longer
// matches expectedStatus the write is refused with ErrConflict, so two admins
// racing on the same alert resolve deterministically.
func (db *DB) ApplyTransition(ctx context.Context, id string, expectedStatus alert.Status, change alert.Change) (*alert.Alert, error) {
	query := `
		UPDATE alerts
		SET status = $3,
		    acknowledged_by_id = COALESCE($4, acknowledged_by_id),
		    acknowledged_by_name = COALESCE($5, acknowledged_by_name),
		    acknowledged_at = COALESCE($6, acknowledged_at),
		    resolved_by_id = COALESCE($7, resolved_by_id),
		    resolved_by_name = COALESCE($8, resolved_by_name),
		    resolved_at = COALESCE($9, resolved_at)
		WHERE id = $1 AND status = $2
		RETURNING ` + alertColumns

	var ackID, ackName, resID, resName sql.NullString
	var ackAt, resAt sql.NullTime
	if change.AcknowledgedBy != nil {
		ackID = sql.NullString{String: change.AcknowledgedBy.ID, Valid: true}
		ackName = sql.NullString{String: change.AcknowledgedBy.Name, Valid: true}
	}
	if change.AcknowledgedAt != nil {
		ackAt = sql.NullTime{Time: *change.AcknowledgedAt, Valid: true}
	}
	if change.ResolvedBy != nil {
		resID = sql.NullString{String: change.ResolvedBy.ID, Valid: true}
		resName = sql.NullString{String: change.ResolvedBy.Name, Valid: true}
	}
	if change.ResolvedAt != nil {
		resAt = sql.NullTime{Time: *change.ResolvedAt, Valid: true}
	}

	a, err := scanAlert(db.conn.QueryRowContext(ctx, query,
		id, string(expectedStatus), string(change.To),
		ackID, ackName, ackAt, resID, resName, resAt,
	))
	if err == sql.ErrNoRows {
		// Distinguish a lost race from a missing row.
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM alerts WHERE id = $1)`
		if err := db.conn.QueryRowContext(ctx, checkQuery, id).Scan(&exists); err == nil && exists {
			return nil, fmt.Errorf("%w: expected status %q", ErrConflict, expectedStatus)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply transition: %w", err)
	}
	return a, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*alert.Alert, error) {
	var a alert.Alert
	var kind, status string
	var ackID, ackName, resID, resName sql.NullString
	var ackAt, resAt sql.NullTime

	err := row.Scan(
		&a.ID, &kind,
		&a.TriggeredBy.ID, &a.TriggeredBy.Name, &a.TriggeredBy.Role,
		&a.Location.Lat, &a.Location.Lon, &a.Location.Description,
		&status, &a.CreatedAt,
		&ackID, &ackName, &ackAt,
		&resID, &resName, &resAt,
	)
	if err != nil {
		return nil, err
	}

	a.HazardKind = alert.HazardKind(kind)
	a.HazardLabel = a.HazardKind.Label()
	a.Status = alert.Status(status)
	if ackID.Valid {
		a.AcknowledgedBy = &alert.Actor{ID: ackID.String, Name: ackName.String}
	}
	if ackAt.Valid {
		t := ackAt.Time
		a.AcknowledgedAt = &t
	}
	if resID.Valid {
		a.ResolvedBy = &alert.Actor{ID: resID.String, Name: resName.String}
	}
	if resAt.Valid {
		t := resAt.Time
		a.ResolvedAt = &t
	}
	return &a, nil
}
