package observations

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// Repository reads and writes the observation, attendance and metric
// catalog stores. Observation rows are append-only; reads resolve the
// effective value per (metric, date) key by recording time, newest wins.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates observations repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Observations returns the effective observations for a subject inside
// the inclusive date range, ordered by date then metric key. An empty
// metricKeys slice means all metrics.
func (r *Repository) Observations(ctx context.Context, subjectID string, metricKeys []string, from, to time.Time) ([]models.Observation, error) {
	if metricKeys == nil {
		metricKeys = []string{}
	}

	query := `
		SELECT observed_on, subject_id, metric_key, unit, source, value
		FROM (
			SELECT DISTINCT ON (metric_key, observed_on)
				observed_on, subject_id, metric_key, unit, source, value
			FROM observations
			WHERE subject_id = $1
			  AND observed_on >= $2
			  AND observed_on <= $3
			  AND (cardinality($4::text[]) = 0 OR metric_key = ANY($4))
			ORDER BY metric_key, observed_on, recorded_at DESC, id DESC
		) effective
		ORDER BY observed_on, metric_key`

	var observations []models.Observation
	err := r.db.SelectContext(ctx, &observations, query, subjectID, from, to, pq.Array(metricKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	return observations, nil
}

// Attendance returns the subject's session records inside the inclusive
// date range, ordered by date. A day may carry several sessions.
func (r *Repository) Attendance(ctx context.Context, subjectID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	query := `
		SELECT session_on, subject_id, session_type, rpe_post, minutes
		FROM attendance
		WHERE subject_id = $1
		  AND session_on >= $2
		  AND session_on <= $3
		ORDER BY session_on, id`

	var records []models.AttendanceRecord
	err := r.db.SelectContext(ctx, &records, query, subjectID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	return records, nil
}

// Subjects returns every subject id with any observation or attendance
// data, sorted.
func (r *Repository) Subjects(ctx context.Context) ([]string, error) {
	query := `
		SELECT subject_id FROM observations
		UNION
		SELECT subject_id FROM attendance
		ORDER BY subject_id`

	var subjects []string
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("failed to load subjects: %w", err)
	}

	return subjects, nil
}

// SaveObservations appends observation rows. Re-submitting a (subject,
// metric, date) key records a new row that supersedes the old value on
// read.
func (r *Repository) SaveObservations(ctx context.Context, observations []models.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	query := `
		INSERT INTO observations (subject_id, metric_key, observed_on, value, unit, source)
		VALUES ($1, $2, $3, $4, $5, $6)`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	for _, obs := range observations {
		if _, err := tx.ExecContext(ctx, query,
			obs.SubjectID, obs.MetricKey, obs.Date, obs.Value, obs.Unit, obs.Source,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveAttendance appends session attendance rows.
func (r *Repository) SaveAttendance(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO attendance (subject_id, session_on, session_type, rpe_post, minutes)
		VALUES ($1, $2, $3, $4, $5)`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query,
			rec.SubjectID, rec.Date, rec.SessionType, rec.RPEPost, rec.Minutes,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert attendance record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// metricSpecRow maps a metric_catalog row
type metricSpecRow struct {
	Key       string  `db:"key"`
	Unit      string  `db:"unit"`
	MinValue  float64 `db:"min_value"`
	MaxValue  float64 `db:"max_value"`
	Direction string  `db:"direction"`
}

// MetricSpecs loads the metric catalog rows. An empty result means the
// deployment runs on the built-in default catalog.
func (r *Repository) MetricSpecs(ctx context.Context) ([]catalog.MetricSpec, error) {
	query := `
		SELECT key, unit, min_value, max_value, direction
		FROM metric_catalog
		ORDER BY key`

	var rows []metricSpecRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load metric catalog: %w", err)
	}

	specs := make([]catalog.MetricSpec, len(rows))
	for i, row := range rows {
		specs[i] = catalog.MetricSpec{
			Key:       row.Key,
			Unit:      row.Unit,
			Min:       row.MinValue,
			Max:       row.MaxValue,
			Direction: models.Direction(row.Direction),
		}
	}

	return specs, nil
}
