package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

const alertColumns = `id, subject_id, policy_id, status, severity,
	       triggering_metric, triggering_value,
	       opened_at, acknowledged_at, closed_at, updated_at`

// PostgresStore persists alerts in Postgres. The at-most-one-active
// invariant is enforced by a partial unique index on
// (subject_id, policy_id) over open and acknowledged rows, so Open is
// race-free across pods.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates Postgres-backed alert store
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Active returns the open or acknowledged alert for the key.
func (s *PostgresStore) Active(ctx context.Context, subjectID, policyID string) (*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE subject_id = $1 AND policy_id = $2
		  AND status IN ('open', 'acknowledged')
	`

	var alert models.Alert
	err := s.db.GetContext(ctx, &alert, query, subjectID, policyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active alert: %w", err)
	}

	return &alert, nil
}

// LastResolved returns the most recently closed alert for the key.
func (s *PostgresStore) LastResolved(ctx context.Context, subjectID, policyID string) (*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE subject_id = $1 AND policy_id = $2 AND status = 'resolved'
		ORDER BY closed_at DESC
		LIMIT 1
	`

	var alert models.Alert
	err := s.db.GetContext(ctx, &alert, query, subjectID, policyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last resolved alert: %w", err)
	}

	return &alert, nil
}

// Open inserts a new open alert unless the key already has an active
// one. The conflict target is the partial unique active index.
func (s *PostgresStore) Open(ctx context.Context, alert *models.Alert) (bool, error) {
	query := `
		INSERT INTO alerts (
			id, subject_id, policy_id, status, severity,
			triggering_metric, triggering_value,
			opened_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query,
		alert.ID,
		alert.SubjectID,
		alert.PolicyID,
		alert.Status,
		alert.Severity,
		alert.TriggeringMetric,
		alert.TriggeringValue,
		alert.OpenedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to open alert: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check alert insert: %w", err)
	}

	return affected == 1, nil
}

// Get returns an alert by id.
func (s *PostgresStore) Get(ctx context.Context, alertID string) (*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE id = $1
	`

	var alert models.Alert
	err := s.db.GetContext(ctx, &alert, query, alertID)
	if err == sql.ErrNoRows {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return &alert, nil
}

// Acknowledge moves an open alert to acknowledged.
func (s *PostgresStore) Acknowledge(ctx context.Context, alertID string, at time.Time) (*models.Alert, bool, error) {
	query := `
		UPDATE alerts
		SET status = 'acknowledged', acknowledged_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'open'
	`

	res, err := s.db.ExecContext(ctx, query, alertID, at)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check alert update: %w", err)
	}

	alert, err := s.Get(ctx, alertID)
	if err != nil {
		return nil, false, err
	}
	if affected == 1 {
		return alert, true, nil
	}
	if alert.Status == models.AlertAcknowledged {
		return alert, false, nil
	}
	return nil, false, ErrInvalidTransition
}

// Resolve closes an open or acknowledged alert.
func (s *PostgresStore) Resolve(ctx context.Context, alertID string, at time.Time) (*models.Alert, bool, error) {
	query := `
		UPDATE alerts
		SET status = 'resolved', closed_at = $2, updated_at = $2
		WHERE id = $1 AND status IN ('open', 'acknowledged')
	`

	res, err := s.db.ExecContext(ctx, query, alertID, at)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve alert: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check alert update: %w", err)
	}

	alert, err := s.Get(ctx, alertID)
	if err != nil {
		return nil, false, err
	}
	return alert, affected == 1, nil
}

// ListBySubject returns all alerts for a subject, oldest first.
func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID string) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE subject_id = $1
		ORDER BY opened_at, id
	`

	var alerts []models.Alert
	err := s.db.SelectContext(ctx, &alerts, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	return alerts, nil
}
