package readiness

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/rolling"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

const (
	// DefaultBaselineDays is the rolling baseline window per metric.
	// The baseline always ends the day before the scored date.
	DefaultBaselineDays = 90

	baseScore       = 50.0
	pointsPerStddev = 15.0

	weightSumTolerance = 1e-9
)

// DefaultWeights returns the standard metric weighting. The values sum
// to 1.0.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		catalog.MetricHRV:          0.20,
		catalog.MetricRestingHR:    0.15,
		catalog.MetricSleepQuality: 0.20,
		catalog.MetricSoreness:     0.15,
		catalog.MetricStress:       0.15,
		catalog.MetricMood:         0.10,
		catalog.MetricBodyWeight:   0.05,
	}
}

// Config configures the readiness scorer.
type Config struct {
	// Weights per metric key; nil means DefaultWeights. Must sum to 1.0.
	Weights map[string]float64
	// BaselineDays is the per-metric baseline window; 0 means the default.
	BaselineDays int
}

// Scorer combines direction-adjusted per-metric z-scores into the
// 0-100 readiness index.
type Scorer struct {
	catalog      *catalog.Catalog
	rolling      *rolling.Engine
	weights      map[string]float64
	baselineDays int
}

// NewScorer creates a readiness scorer, rejecting malformed weights.
func NewScorer(cat *catalog.Catalog, cfg Config) (*Scorer, error) {
	weights := cfg.Weights
	if weights == nil {
		weights = DefaultWeights()
	}
	baselineDays := cfg.BaselineDays
	if baselineDays == 0 {
		baselineDays = DefaultBaselineDays
	}
	if baselineDays < 2 {
		return nil, fmt.Errorf("baseline window %d is too small: %w", baselineDays, models.ErrInvalidConfig)
	}

	sum := 0.0
	for key, weight := range weights {
		spec, ok := cat.Spec(key)
		if !ok {
			return nil, fmt.Errorf("readiness weight for unknown metric %q: %w", key, models.ErrInvalidConfig)
		}
		if spec.Direction == models.DirectionNeutral {
			return nil, fmt.Errorf("metric %q has neutral direction and cannot be scored: %w", key, models.ErrInvalidConfig)
		}
		if weight <= 0 {
			return nil, fmt.Errorf("readiness weight for %q must be positive, got %v: %w", key, weight, models.ErrInvalidConfig)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, fmt.Errorf("readiness weights sum to %v, want 1.0: %w", sum, models.ErrInvalidConfig)
	}

	return &Scorer{
		catalog:      cat,
		rolling:      rolling.NewEngine(),
		weights:      weights,
		baselineDays: baselineDays,
	}, nil
}

// Score computes the readiness point for one date. A metric contributes
// only when it has a value on that date and a usable baseline; weights
// of the remaining metrics are redistributed proportionally. With no
// contributing metric the score is nil, never a default 50.
func (s *Scorer) Score(subjectID string, seriesByMetric map[string]rolling.Series, date time.Time) models.ReadinessPoint {
	date = models.Day(date)
	baselineEnd := date.AddDate(0, 0, -1)

	var weightSum, weighted float64
	var used int

	for key, weight := range s.weights {
		series, ok := seriesByMetric[key]
		if !ok {
			continue
		}
		sample, ok := series.At(date)
		if !ok {
			continue
		}

		baseline := s.rolling.WindowStat(s.baselineDays, series, baselineEnd)
		z := baseline.ZScore(sample.Value)
		if z == nil {
			continue
		}

		signed := *z
		if spec, _ := s.catalog.Spec(key); spec.Direction == models.DirectionLowerIsBetter {
			signed = -signed
		}

		weightSum += weight
		weighted += weight * signed
		used++
	}

	point := models.ReadinessPoint{
		Date:        date,
		SubjectID:   subjectID,
		MetricsUsed: used,
	}
	if used == 0 {
		return point
	}

	composite := weighted / weightSum
	point.CompositeZ = models.Float(composite)
	point.Score = models.Float(clamp(baseScore+composite*pointsPerStddev, 0, 100))
	return point
}

// ScoreRange computes readiness points for every day in [from, to].
func (s *Scorer) ScoreRange(subjectID string, seriesByMetric map[string]rolling.Series, from, to time.Time) []models.ReadinessPoint {
	days := models.Days(from, to)
	points := make([]models.ReadinessPoint, 0, len(days))
	for _, date := range days {
		points = append(points, s.Score(subjectID, seriesByMetric, date))
	}
	return points
}

// BaselineDays exposes the configured baseline window.
func (s *Scorer) BaselineDays() int {
	return s.baselineDays
}

// MetricKeys returns the weighted metric keys in sorted order.
func (s *Scorer) MetricKeys() []string {
	keys := make([]string, 0, len(s.weights))
	for key := range s.weights {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
