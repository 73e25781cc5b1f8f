package models

import (
	"time"
)

// Granularity represents a bucketing time span
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return true
	}
	return false
}

// Direction represents how a metric relates to wellbeing
type Direction string

const (
	DirectionHigherIsBetter Direction = "higher_is_better"
	DirectionLowerIsBetter  Direction = "lower_is_better"
	DirectionNeutral        Direction = "neutral"
)

// SessionType represents the kind of attendance record
type SessionType string

const (
	SessionTraining SessionType = "training"
	SessionMatch    SessionType = "match"
)

// ACWRFlag classifies an acute:chronic ratio. Empty when the ratio is null.
type ACWRFlag string

const (
	ACWRFlagHigh   ACWRFlag = "high"
	ACWRFlagLow    ACWRFlag = "low"
	ACWRFlagNormal ACWRFlag = "normal"
)

// Observation represents a single dated metric reading for a subject.
// Observations are immutable; superseded values arrive as new rows with
// the same (subject, metric, date) key at the store boundary.
type Observation struct {
	Date      time.Time `json:"date" db:"observed_on"`
	SubjectID string    `json:"subject_id" db:"subject_id"`
	MetricKey string    `json:"metric_key" db:"metric_key"`
	Unit      string    `json:"unit" db:"unit"`
	Source    string    `json:"source,omitempty" db:"source"`
	Value     float64   `json:"value" db:"value"`
}

// AttendanceRecord represents one training or match participation entry.
type AttendanceRecord struct {
	Date        time.Time   `json:"date" db:"session_on"`
	SubjectID   string      `json:"subject_id" db:"subject_id"`
	SessionType SessionType `json:"session_type" db:"session_type"`
	RPEPost     float64     `json:"rpe_post" db:"rpe_post"`
	Minutes     float64     `json:"minutes" db:"minutes"`
}

// Load returns the session load (sRPE) for this record.
func (r AttendanceRecord) Load() float64 {
	return r.RPEPost * r.Minutes
}

// Bucket represents aggregated observations over one day/week/month span.
// Value fields are nil for an empty bucket; Count is always set.
type Bucket struct {
	BucketStart  time.Time   `json:"bucket_start"`
	SubjectID    string      `json:"subject_id"`
	MetricKey    string      `json:"metric_key"`
	Granularity  Granularity `json:"granularity"`
	Avg          *float64    `json:"avg"`
	Min          *float64    `json:"min"`
	Max          *float64    `json:"max"`
	DeltaPrevPct *float64    `json:"delta_prev_pct"`
	Count        int         `json:"count"`
}

// DailyLoad represents one day of the continuous training load series.
// Days without any session carry SRPE = 0 and HasActivity = false.
type DailyLoad struct {
	Date        time.Time `json:"date"`
	SubjectID   string    `json:"subject_id"`
	SRPE        float64   `json:"srpe"`
	HasActivity bool      `json:"has_activity"`
}

// RollingPoint represents mean/stddev over the trailing window ending at Date.
// Stddev is nil when fewer than 2 points were available.
type RollingPoint struct {
	Date          time.Time `json:"date"`
	SubjectID     string    `json:"subject_id"`
	MetricKey     string    `json:"metric_key"`
	Mean          *float64  `json:"mean"`
	Stddev        *float64  `json:"stddev"`
	WindowDays    int       `json:"window_days"`
	CountInWindow int       `json:"count_in_window"`
}

// ACWRPoint represents the acute:chronic workload ratio at Date.
// Ratio is nil when the chronic mean is zero or undefined; Flag is empty
// exactly when Ratio is nil.
type ACWRPoint struct {
	Date      time.Time `json:"date"`
	SubjectID string    `json:"subject_id"`
	Acute     *float64  `json:"acute"`
	Chronic   *float64  `json:"chronic"`
	Ratio     *float64  `json:"ratio"`
	Flag      ACWRFlag  `json:"flag,omitempty"`
}

// MonotonyStrainPoint represents weekly load monotony and strain.
// Monotony and Strain are nil for a perfectly uniform week (stddev = 0),
// reported via UniformLoad rather than as zero or infinity.
type MonotonyStrainPoint struct {
	WeekStart   time.Time `json:"week_start"`
	SubjectID   string    `json:"subject_id"`
	MeanLoad    *float64  `json:"mean_load"`
	StddevLoad  *float64  `json:"stddev_load"`
	Monotony    *float64  `json:"monotony"`
	Strain      *float64  `json:"strain"`
	TotalLoad   float64   `json:"total_load"`
	DaysInWeek  int       `json:"days_in_week"`
	PartialWeek bool      `json:"partial_week"`
	UniformLoad bool      `json:"uniform_load"`
}

// ReadinessPoint represents the composite readiness index at Date.
// Score is nil when no tracked metric was present for the date.
type ReadinessPoint struct {
	Date        time.Time `json:"date"`
	SubjectID   string    `json:"subject_id"`
	CompositeZ  *float64  `json:"composite_z"`
	Score       *float64  `json:"readiness_score"`
	MetricsUsed int       `json:"metrics_used"`
}

// TrendPoint represents trend percentages and the anomaly flag for one
// metric, anchored at the metric's most recent valid observation.
type TrendPoint struct {
	AsOf      time.Time `json:"as_of"`
	SubjectID string    `json:"subject_id"`
	MetricKey string    `json:"metric_key"`
	Trend7d   *float64  `json:"trend_7d"`
	Trend28d  *float64  `json:"trend_28d"`
	ZScore    *float64  `json:"zscore"`
	Anomaly   bool      `json:"anomaly"`
}

// WorkloadSeries bundles the daily load series with its ACWR points.
type WorkloadSeries struct {
	Loads []DailyLoad `json:"loads"`
	ACWR  []ACWRPoint `json:"acwr"`
}
