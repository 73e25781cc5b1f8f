package clickhouse

import (
	"context"
	"fmt"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/archive"
)

// Writer routes buffered archive records to their ClickHouse tables.
// It implements archive.Writer; the underlying connection is owned by
// the caller and is not closed here.
type Writer struct {
	repo *Repository
}

// NewWriter creates archive writer backed by ClickHouse
func NewWriter(repo *Repository) *Writer {
	return &Writer{repo: repo}
}

// Write writes a batch of records belonging to one table
func (w *Writer) Write(ctx context.Context, tableName string, records []archive.Record) error {
	switch tableName {
	case "workload_daily":
		rows := make([]*archive.WorkloadRow, 0, len(records))
		for _, record := range records {
			row, ok := record.(*archive.WorkloadRow)
			if !ok {
				return fmt.Errorf("unexpected record type %T for table %s", record, tableName)
			}
			rows = append(rows, row)
		}
		return w.repo.SaveWorkloadRows(ctx, rows)

	case "readiness_daily":
		rows := make([]*archive.ReadinessRow, 0, len(records))
		for _, record := range records {
			row, ok := record.(*archive.ReadinessRow)
			if !ok {
				return fmt.Errorf("unexpected record type %T for table %s", record, tableName)
			}
			rows = append(rows, row)
		}
		return w.repo.SaveReadinessRows(ctx, rows)

	case "alert_events":
		rows := make([]*archive.AlertEventRow, 0, len(records))
		for _, record := range records {
			row, ok := record.(*archive.AlertEventRow)
			if !ok {
				return fmt.Errorf("unexpected record type %T for table %s", record, tableName)
			}
			rows = append(rows, row)
		}
		return w.repo.SaveAlertEvents(ctx, rows)

	default:
		return fmt.Errorf("unknown archive table: %s", tableName)
	}
}

// Close implements archive.Writer. The ClickHouse connection lifetime
// belongs to main, so there is nothing to release here.
func (w *Writer) Close() error {
	return nil
}
