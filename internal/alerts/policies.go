package alerts

import (
	"fmt"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/workload"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// Built-in policy IDs.
const (
	PolicyRiskLoad    = "risk_load"
	PolicyRiskFatigue = "risk_fatigue"
	PolicyRiskOutlier = "risk_outlier"
)

// Builtin returns the default policy set. The risk_load band reuses the
// workload ratio constants so the two surfaces cannot drift apart.
func Builtin() []models.AlertPolicy {
	return []models.AlertPolicy{
		{
			ID:              PolicyRiskLoad,
			Name:            "Workload ratio outside safe band",
			Indicator:       models.IndicatorACWRRatio,
			Comparator:      models.CompareOutsideBand,
			Threshold:       workload.RatioLow,
			UpperThreshold:  models.Float(workload.RatioHigh),
			ConsecutiveDays: 1,
			CooldownHours:   24,
			ResolveCycles:   1,
			Severity:        models.SeverityWarning,
			SeverityBands: []models.SeverityBand{
				{Comparator: models.CompareGT, Threshold: workload.RatioHigh, Severity: models.SeverityError},
				{Comparator: models.CompareLT, Threshold: workload.RatioLow, Severity: models.SeverityWarning},
			},
		},
		{
			ID:              PolicyRiskFatigue,
			Name:            "Sustained low readiness",
			Indicator:       models.IndicatorReadiness,
			Comparator:      models.CompareLT,
			Threshold:       40,
			ConsecutiveDays: 3,
			CooldownHours:   48,
			ResolveCycles:   1,
			Severity:        models.SeverityError,
		},
		{
			ID:        PolicyRiskOutlier,
			Name:      "Wellness marker outlier",
			Indicator: models.IndicatorZScore,
			MetricKeys: []string{
				catalog.MetricRestingHR,
				catalog.MetricHRV,
				catalog.MetricSoreness,
				catalog.MetricMood,
			},
			Comparator:      models.CompareAbsGTE,
			Threshold:       2.0,
			ConsecutiveDays: 1,
			CooldownHours:   24,
			ResolveCycles:   1,
			Severity:        models.SeverityWarning,
			SeverityBands: []models.SeverityBand{
				{Comparator: models.CompareAbsGTE, Threshold: 3.0, Severity: models.SeverityError},
			},
		},
	}
}

// Configured returns the built-in policies with the operator-tunable
// thresholds applied. Zero values keep the defaults.
func Configured(fatigueThreshold float64, fatigueDays int, outlierZ float64) []models.AlertPolicy {
	policies := Builtin()
	for i := range policies {
		switch policies[i].ID {
		case PolicyRiskFatigue:
			if fatigueThreshold > 0 {
				policies[i].Threshold = fatigueThreshold
			}
			if fatigueDays > 0 {
				policies[i].ConsecutiveDays = fatigueDays
			}
		case PolicyRiskOutlier:
			if outlierZ > 0 {
				policies[i].Threshold = outlierZ
			}
		}
	}
	return policies
}

// ValidatePolicies checks every policy's shape and resolves its metric
// keys against the catalog.
func ValidatePolicies(cat *catalog.Catalog, policies []models.AlertPolicy) error {
	seen := make(map[string]bool, len(policies))
	for i := range policies {
		p := &policies[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%v: %w", err, models.ErrInvalidConfig)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate policy id %q: %w", p.ID, models.ErrInvalidConfig)
		}
		seen[p.ID] = true
		for _, key := range p.MetricKeys {
			if !cat.Has(key) {
				return fmt.Errorf("policy %s references unknown metric %q: %w", p.ID, key, models.ErrInvalidConfig)
			}
		}
	}
	return nil
}
