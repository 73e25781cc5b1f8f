package catalog

import (
	"fmt"
	"sort"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// Built-in metric keys. The engine never branches on these names; they
// exist so configuration and tests share one spelling.
const (
	MetricHRV          = "hrv_ms"
	MetricRestingHR    = "resting_hr_bpm"
	MetricSleepQuality = "sleep_quality"
	MetricSleepHours   = "sleep_hours"
	MetricSoreness     = "soreness"
	MetricStress       = "stress"
	MetricMood         = "mood"
	MetricBodyWeight   = "body_weight_kg"
	MetricInjuryRisk   = "injury_risk"
)

// MetricSpec describes one metric: unit, valid value range, and how the
// value relates to wellbeing.
type MetricSpec struct {
	Key       string           `json:"key"`
	Unit      string           `json:"unit"`
	Min       float64          `json:"min"`
	Max       float64          `json:"max"`
	Direction models.Direction `json:"direction"`
}

// Catalog is the metric lookup table injected into every computation.
// It is immutable after construction.
type Catalog struct {
	specs map[string]MetricSpec
}

// New builds a catalog from the given specs.
func New(specs []MetricSpec) (*Catalog, error) {
	m := make(map[string]MetricSpec, len(specs))
	for _, spec := range specs {
		if spec.Key == "" {
			return nil, fmt.Errorf("metric spec with empty key")
		}
		if spec.Max < spec.Min {
			return nil, fmt.Errorf("metric %s: max %v below min %v", spec.Key, spec.Max, spec.Min)
		}
		if _, dup := m[spec.Key]; dup {
			return nil, fmt.Errorf("duplicate metric key %s", spec.Key)
		}
		m[spec.Key] = spec
	}
	return &Catalog{specs: m}, nil
}

// Default returns the catalog for the standard wellness questionnaire
// plus physiological markers and the externally supplied injury risk.
func Default() *Catalog {
	c, err := New([]MetricSpec{
		{Key: MetricHRV, Unit: "ms", Min: 0, Max: 300, Direction: models.DirectionHigherIsBetter},
		{Key: MetricRestingHR, Unit: "bpm", Min: 25, Max: 120, Direction: models.DirectionLowerIsBetter},
		{Key: MetricSleepQuality, Unit: "score", Min: 0, Max: 10, Direction: models.DirectionHigherIsBetter},
		{Key: MetricSleepHours, Unit: "h", Min: 0, Max: 16, Direction: models.DirectionNeutral},
		{Key: MetricSoreness, Unit: "score", Min: 0, Max: 10, Direction: models.DirectionLowerIsBetter},
		{Key: MetricStress, Unit: "score", Min: 0, Max: 10, Direction: models.DirectionLowerIsBetter},
		{Key: MetricMood, Unit: "score", Min: 0, Max: 10, Direction: models.DirectionHigherIsBetter},
		{Key: MetricBodyWeight, Unit: "kg", Min: 30, Max: 180, Direction: models.DirectionLowerIsBetter},
		{Key: MetricInjuryRisk, Unit: "probability", Min: 0, Max: 1, Direction: models.DirectionLowerIsBetter},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Spec returns the spec for a metric key.
func (c *Catalog) Spec(key string) (MetricSpec, bool) {
	spec, ok := c.specs[key]
	return spec, ok
}

// Has reports whether the catalog knows the metric key.
func (c *Catalog) Has(key string) bool {
	_, ok := c.specs[key]
	return ok
}

// InRange reports whether value lies inside the metric's valid range.
// Unknown metrics are never in range.
func (c *Catalog) InRange(key string, value float64) bool {
	spec, ok := c.specs[key]
	if !ok {
		return false
	}
	return value >= spec.Min && value <= spec.Max
}

// Valid reports whether an observation passes the catalog range check.
// Out-of-range observations are excluded from aggregation but kept in
// the store for audit.
func (c *Catalog) Valid(obs models.Observation) bool {
	return c.InRange(obs.MetricKey, obs.Value)
}

// FilterValid returns the observations that pass the range check,
// preserving order.
func (c *Catalog) FilterValid(observations []models.Observation) []models.Observation {
	valid := make([]models.Observation, 0, len(observations))
	for _, obs := range observations {
		if c.Valid(obs) {
			valid = append(valid, obs)
		}
	}
	return valid
}

// Keys returns all known metric keys, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.specs))
	for key := range c.specs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
