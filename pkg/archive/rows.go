package archive

import "time"

// Archived derived-series rows. The archive is append-only; nightly
// re-evaluation writes one row per subject per day, and consumers read
// the latest row per key.

// ReadinessRow archives one readiness evaluation
type ReadinessRow struct {
	Date        time.Time
	SubjectID   string
	CompositeZ  *float64
	Score       *float64
	MetricsUsed int
}

func (r *ReadinessRow) TableName() string {
	return "readiness_daily"
}

func (r *ReadinessRow) Values() []interface{} {
	return []interface{}{
		r.Date,
		r.SubjectID,
		r.CompositeZ,
		r.Score,
		r.MetricsUsed,
	}
}

// WorkloadRow archives one day of the load series with its ACWR values
type WorkloadRow struct {
	Date        time.Time
	SubjectID   string
	SRPE        float64
	HasActivity bool
	Acute       *float64
	Chronic     *float64
	Ratio       *float64
	Flag        string
}

func (r *WorkloadRow) TableName() string {
	return "workload_daily"
}

func (r *WorkloadRow) Values() []interface{} {
	return []interface{}{
		r.Date,
		r.SubjectID,
		r.SRPE,
		r.HasActivity,
		r.Acute,
		r.Chronic,
		r.Ratio,
		r.Flag,
	}
}

// AlertEventRow archives one alert lifecycle transition
type AlertEventRow struct {
	Timestamp       time.Time
	AlertID         string
	SubjectID       string
	PolicyID        string
	Transition      string
	Status          string
	Severity        string
	TriggeringValue float64
}

func (r *AlertEventRow) TableName() string {
	return "alert_events"
}

func (r *AlertEventRow) Values() []interface{} {
	return []interface{}{
		r.Timestamp,
		r.AlertID,
		r.SubjectID,
		r.PolicyID,
		r.Transition,
		r.Status,
		r.Severity,
		r.TriggeringValue,
	}
}
