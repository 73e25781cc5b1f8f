package models

import (
	"fmt"
	"math"
	"time"
)

// AlertStatus represents the alert lifecycle state
type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Severity represents alert severity
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Comparator represents a threshold comparison
type Comparator string

const (
	CompareLT          Comparator = "lt"
	CompareLTE         Comparator = "lte"
	CompareGT          Comparator = "gt"
	CompareGTE         Comparator = "gte"
	CompareAbsGTE      Comparator = "abs_gte"
	CompareOutsideBand Comparator = "outside_band"
)

// IndicatorKey names the derived series an alert policy evaluates.
type IndicatorKey string

const (
	IndicatorACWRRatio IndicatorKey = "acwr_ratio"
	IndicatorReadiness IndicatorKey = "readiness_score"
	IndicatorZScore    IndicatorKey = "zscore"
)

// SeverityBand maps a value range onto a severity. Bands are checked in
// order; the first match wins over the policy's default severity.
type SeverityBand struct {
	Comparator Comparator `json:"comparator"`
	Threshold  float64    `json:"threshold"`
	Severity   Severity   `json:"severity"`
}

// AlertPolicy is static alerting configuration, never mutated at runtime.
// For the zscore indicator MetricKeys lists the metrics the policy scans;
// the other indicators are single-series and leave it empty. For
// outside_band the condition holds below Threshold or above UpperThreshold.
type AlertPolicy struct {
	ID              string         `json:"policy_id"`
	Name            string         `json:"name"`
	Indicator       IndicatorKey   `json:"indicator"`
	MetricKeys      []string       `json:"metric_keys,omitempty"`
	Comparator      Comparator     `json:"comparator"`
	Threshold       float64        `json:"threshold"`
	UpperThreshold  *float64       `json:"upper_threshold,omitempty"`
	ConsecutiveDays int            `json:"consecutive_days"`
	CooldownHours   int            `json:"cooldown_hours"`
	ResolveCycles   int            `json:"resolve_cycles"`
	Severity        Severity       `json:"severity"`
	SeverityBands   []SeverityBand `json:"severity_bands,omitempty"`
}

// Validate checks policy shape. Metric keys are validated against the
// catalog by the engine, which owns that lookup.
func (p *AlertPolicy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("alert policy missing id")
	}
	switch p.Indicator {
	case IndicatorACWRRatio, IndicatorReadiness:
	case IndicatorZScore:
		if len(p.MetricKeys) == 0 {
			return fmt.Errorf("policy %s: zscore indicator requires metric keys", p.ID)
		}
	default:
		return fmt.Errorf("policy %s: unknown indicator %q", p.ID, p.Indicator)
	}
	if !p.Comparator.valid() {
		return fmt.Errorf("policy %s: unknown comparator %q", p.ID, p.Comparator)
	}
	if p.Comparator == CompareOutsideBand {
		if p.UpperThreshold == nil {
			return fmt.Errorf("policy %s: outside_band requires an upper threshold", p.ID)
		}
		if *p.UpperThreshold <= p.Threshold {
			return fmt.Errorf("policy %s: band upper %v must exceed lower %v", p.ID, *p.UpperThreshold, p.Threshold)
		}
	}
	if p.ConsecutiveDays < 1 {
		return fmt.Errorf("policy %s: consecutive_days must be >= 1, got %d", p.ID, p.ConsecutiveDays)
	}
	if p.CooldownHours < 0 {
		return fmt.Errorf("policy %s: cooldown_hours must be >= 0, got %d", p.ID, p.CooldownHours)
	}
	if p.ResolveCycles < 1 {
		return fmt.Errorf("policy %s: resolve_cycles must be >= 1, got %d", p.ID, p.ResolveCycles)
	}
	return nil
}

func (c Comparator) valid() bool {
	switch c {
	case CompareLT, CompareLTE, CompareGT, CompareGTE, CompareAbsGTE, CompareOutsideBand:
		return true
	}
	return false
}

// Matches reports whether value satisfies the policy condition.
func (p *AlertPolicy) Matches(value float64) bool {
	return compare(p.Comparator, value, p.Threshold, p.UpperThreshold)
}

// SeverityFor returns the severity for a triggering value: the first
// matching band, or the policy default.
func (p *AlertPolicy) SeverityFor(value float64) Severity {
	for _, band := range p.SeverityBands {
		if compare(band.Comparator, value, band.Threshold, nil) {
			return band.Severity
		}
	}
	return p.Severity
}

// Cooldown returns the cooldown as a duration.
func (p *AlertPolicy) Cooldown() time.Duration {
	return time.Duration(p.CooldownHours) * time.Hour
}

func compare(c Comparator, value, threshold float64, upper *float64) bool {
	switch c {
	case CompareLT:
		return value < threshold
	case CompareLTE:
		return value <= threshold
	case CompareGT:
		return value > threshold
	case CompareGTE:
		return value >= threshold
	case CompareAbsGTE:
		return math.Abs(value) >= threshold
	case CompareOutsideBand:
		if upper == nil {
			return false
		}
		return value < threshold || value > *upper
	}
	return false
}

// Alert is the one stateful entity the engine manages. At most one open
// or acknowledged alert exists per (subject, policy) pair at any time.
type Alert struct {
	OpenedAt         time.Time   `json:"opened_at" db:"opened_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
	AcknowledgedAt   *time.Time  `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ClosedAt         *time.Time  `json:"closed_at,omitempty" db:"closed_at"`
	ID               string      `json:"alert_id" db:"id"`
	SubjectID        string      `json:"subject_id" db:"subject_id"`
	PolicyID         string      `json:"policy_id" db:"policy_id"`
	Status           AlertStatus `json:"status" db:"status"`
	Severity         Severity    `json:"severity" db:"severity"`
	TriggeringMetric string      `json:"triggering_metric,omitempty" db:"triggering_metric"`
	TriggeringValue  float64     `json:"triggering_value" db:"triggering_value"`
}

// Active reports whether the alert still blocks a new open for its key.
func (a *Alert) Active() bool {
	return a.Status == AlertOpen || a.Status == AlertAcknowledged
}
