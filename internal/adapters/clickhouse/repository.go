package clickhouse

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/archive"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/logger"
)

// Repository handles ClickHouse data operations
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new ClickHouse repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the archive tables if they do not exist yet.
// Derived series use ReplacingMergeTree keyed on inserted_at: nightly
// re-evaluation rewrites rows and readers take the latest per key.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS workload_daily (
			date         Date,
			subject_id   String,
			srpe         Float64,
			has_activity Bool,
			acute_mean   Nullable(Float64),
			chronic_mean Nullable(Float64),
			acwr_ratio   Nullable(Float64),
			flag         LowCardinality(String),
			inserted_at  DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree(inserted_at)
		ORDER BY (subject_id, date)`,

		`CREATE TABLE IF NOT EXISTS readiness_daily (
			date         Date,
			subject_id   String,
			composite_z  Nullable(Float64),
			score        Nullable(Float64),
			metrics_used UInt8,
			inserted_at  DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree(inserted_at)
		ORDER BY (subject_id, date)`,

		`CREATE TABLE IF NOT EXISTS alert_events (
			timestamp        DateTime,
			alert_id         String,
			subject_id       String,
			policy_id        LowCardinality(String),
			transition       LowCardinality(String),
			status           LowCardinality(String),
			severity         LowCardinality(String),
			triggering_value Float64
		) ENGINE = MergeTree
		ORDER BY (subject_id, timestamp)`,
	}

	for _, stmt := range ddl {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create archive table: %w", err)
		}
	}

	logger.Info("clickhouse archive schema ensured")
	return nil
}

// SaveWorkloadRows saves daily workload rows to ClickHouse
func (r *Repository) SaveWorkloadRows(ctx context.Context, rows []*archive.WorkloadRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO workload_daily
		(date, subject_id, srpe, has_activity, acute_mean, chronic_mean, acwr_ratio, flag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.Date,
			row.SubjectID,
			row.SRPE,
			row.HasActivity,
			row.Acute,
			row.Chronic,
			row.Ratio,
			row.Flag,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert workload row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved workload rows to ClickHouse",
		zap.Int("count", len(rows)),
	)

	return nil
}

// SaveReadinessRows saves daily readiness rows to ClickHouse
func (r *Repository) SaveReadinessRows(ctx context.Context, rows []*archive.ReadinessRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO readiness_daily
		(date, subject_id, composite_z, score, metrics_used)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.Date,
			row.SubjectID,
			row.CompositeZ,
			row.Score,
			row.MetricsUsed,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert readiness row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved readiness rows to ClickHouse",
		zap.Int("count", len(rows)),
	)

	return nil
}

// SaveAlertEvents saves alert lifecycle transitions to ClickHouse
func (r *Repository) SaveAlertEvents(ctx context.Context, rows []*archive.AlertEventRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	stmt, err := tx.Preparex(`
		INSERT INTO alert_events
		(timestamp, alert_id, subject_id, policy_id, transition, status, severity, triggering_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx,
			row.Timestamp,
			row.AlertID,
			row.SubjectID,
			row.PolicyID,
			row.Transition,
			row.Status,
			row.Severity,
			row.TriggeringValue,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert alert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("saved alert events to ClickHouse",
		zap.Int("count", len(rows)),
	)

	return nil
}
