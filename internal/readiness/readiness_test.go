package readiness

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/rolling"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

var scoreDate = time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

// trailing builds a series with the given values on consecutive days
// ending the day before scoreDate, plus current on scoreDate itself.
func trailing(baseline []float64, current *float64) rolling.Series {
	samples := make([]rolling.Sample, 0, len(baseline)+1)
	for i, v := range baseline {
		offset := len(baseline) - i
		samples = append(samples, rolling.Sample{Date: scoreDate.AddDate(0, 0, -offset), Value: v})
	}
	if current != nil {
		samples = append(samples, rolling.Sample{Date: scoreDate, Value: *current})
	}
	return rolling.NewSeries(samples)
}

func defaultScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(catalog.Default(), Config{})
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	return s
}

func TestNewScorer_Validation(t *testing.T) {
	cat := catalog.Default()

	t.Run("defaults accepted", func(t *testing.T) {
		if _, err := NewScorer(cat, Config{}); err != nil {
			t.Errorf("Default config rejected: %v", err)
		}
	})

	t.Run("weights must sum to one", func(t *testing.T) {
		_, err := NewScorer(cat, Config{Weights: map[string]float64{
			catalog.MetricHRV:          0.5,
			catalog.MetricSleepQuality: 0.4,
		}})
		if err == nil {
			t.Fatal("Should reject weights summing to 0.9")
		}
		if !errors.Is(err, models.ErrInvalidConfig) {
			t.Errorf("Error should wrap ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := NewScorer(cat, Config{Weights: map[string]float64{"made_up": 1.0}})
		if err == nil {
			t.Error("Should reject unknown metric key")
		}
	})

	t.Run("neutral metric", func(t *testing.T) {
		_, err := NewScorer(cat, Config{Weights: map[string]float64{catalog.MetricSleepHours: 1.0}})
		if err == nil {
			t.Error("Should reject neutral-direction metric")
		}
	})

	t.Run("non-positive weight", func(t *testing.T) {
		_, err := NewScorer(cat, Config{Weights: map[string]float64{
			catalog.MetricHRV:          1.2,
			catalog.MetricSleepQuality: -0.2,
		}})
		if err == nil {
			t.Error("Should reject negative weight")
		}
	})
}

func TestScorer_SleepQualityScenario(t *testing.T) {
	s := defaultScorer(t)

	// Baseline mean 7, sample stddev 1; current value 5 is two
	// deviations below. Only sleep quality reports that day, so its
	// weight is the whole denominator.
	series := map[string]rolling.Series{
		catalog.MetricSleepQuality: trailing([]float64{6, 7, 8}, models.Float(5)),
	}

	point := s.Score("s1", series, scoreDate)
	if point.MetricsUsed != 1 {
		t.Fatalf("MetricsUsed = %d, want 1", point.MetricsUsed)
	}
	if point.CompositeZ == nil || math.Abs(*point.CompositeZ-(-2.0)) > 1e-9 {
		t.Errorf("CompositeZ = %v, want -2", point.CompositeZ)
	}
	if point.Score == nil || math.Abs(*point.Score-20.0) > 1e-9 {
		t.Errorf("Score = %v, want 20", point.Score)
	}
}

func TestScorer_AtBaselineScoresFifty(t *testing.T) {
	s := defaultScorer(t)

	// Every tracked metric sits exactly on its own baseline mean.
	series := map[string]rolling.Series{}
	baselines := map[string]float64{
		catalog.MetricHRV:          80,
		catalog.MetricRestingHR:    60,
		catalog.MetricSleepQuality: 7,
		catalog.MetricSoreness:     3,
		catalog.MetricStress:       4,
		catalog.MetricMood:         6,
		catalog.MetricBodyWeight:   74,
	}
	for key, mean := range baselines {
		series[key] = trailing([]float64{mean - 1, mean, mean + 1}, models.Float(mean))
	}

	point := s.Score("s1", series, scoreDate)
	if point.MetricsUsed != len(baselines) {
		t.Fatalf("MetricsUsed = %d, want %d", point.MetricsUsed, len(baselines))
	}
	if point.Score == nil || math.Abs(*point.Score-50.0) > 1e-9 {
		t.Errorf("Score = %v, want exactly 50 at baseline", point.Score)
	}
}

func TestScorer_NoMetricsPresent(t *testing.T) {
	s := defaultScorer(t)

	// History exists but nothing was reported on the scored date.
	series := map[string]rolling.Series{
		catalog.MetricHRV: trailing([]float64{78, 80, 82}, nil),
	}

	point := s.Score("s1", series, scoreDate)
	if point.Score != nil || point.CompositeZ != nil {
		t.Errorf("Score = %v, want nil when no metric is present", point.Score)
	}
	if point.MetricsUsed != 0 {
		t.Errorf("MetricsUsed = %d, want 0", point.MetricsUsed)
	}
}

func TestScorer_RedistributesWeights(t *testing.T) {
	s := defaultScorer(t)

	// HRV sits one deviation above baseline. Resting HR reports a value
	// but its baseline never varies, so it cannot contribute and HRV
	// carries the full weight.
	series := map[string]rolling.Series{
		catalog.MetricHRV:       trailing([]float64{79, 80, 81}, models.Float(81)),
		catalog.MetricRestingHR: trailing([]float64{60, 60, 60}, models.Float(55)),
	}

	point := s.Score("s1", series, scoreDate)
	if point.MetricsUsed != 1 {
		t.Fatalf("MetricsUsed = %d, want 1 (resting HR excluded)", point.MetricsUsed)
	}
	if point.CompositeZ == nil || math.Abs(*point.CompositeZ-1.0) > 1e-9 {
		t.Errorf("CompositeZ = %v, want 1.0", point.CompositeZ)
	}
	if point.Score == nil || math.Abs(*point.Score-65.0) > 1e-9 {
		t.Errorf("Score = %v, want 65", point.Score)
	}
}

func TestScorer_LowerIsBetterSign(t *testing.T) {
	s := defaultScorer(t)

	// Resting HR two deviations above baseline is bad news.
	series := map[string]rolling.Series{
		catalog.MetricRestingHR: trailing([]float64{59, 60, 61}, models.Float(62)),
	}

	point := s.Score("s1", series, scoreDate)
	if point.CompositeZ == nil || math.Abs(*point.CompositeZ-(-2.0)) > 1e-9 {
		t.Errorf("CompositeZ = %v, want -2 for elevated resting HR", point.CompositeZ)
	}
}

func TestScorer_ClampsToRange(t *testing.T) {
	s := defaultScorer(t)

	t.Run("floor", func(t *testing.T) {
		series := map[string]rolling.Series{
			catalog.MetricSleepQuality: trailing([]float64{6, 7, 8}, models.Float(0)),
		}
		point := s.Score("s1", series, scoreDate)
		if point.Score == nil || *point.Score != 0 {
			t.Errorf("Score = %v, want clamped to 0", point.Score)
		}
	})

	t.Run("ceiling", func(t *testing.T) {
		series := map[string]rolling.Series{
			catalog.MetricMood: trailing([]float64{5, 6, 7}, models.Float(10)),
		}
		point := s.Score("s1", series, scoreDate)
		if point.Score == nil || *point.Score != 100 {
			t.Errorf("Score = %v, want clamped to 100", point.Score)
		}
	})
}

func TestScorer_BaselineExcludesScoredDate(t *testing.T) {
	s := defaultScorer(t)

	// Only one historical point exists; the scored value itself must not
	// count toward its own baseline, leaving the stddev undefined.
	series := map[string]rolling.Series{
		catalog.MetricHRV: trailing([]float64{80}, models.Float(95)),
	}

	point := s.Score("s1", series, scoreDate)
	if point.Score != nil {
		t.Errorf("Score = %v, want nil: a one-point baseline has no stddev", point.Score)
	}
}

func TestScorer_ScoreRange(t *testing.T) {
	s := defaultScorer(t)

	series := map[string]rolling.Series{
		catalog.MetricSleepQuality: trailing([]float64{6, 7, 8}, models.Float(7)),
	}

	points := s.ScoreRange("s1", series, scoreDate.AddDate(0, 0, -2), scoreDate)
	if len(points) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(points))
	}
	// Only the last day has an observation to score.
	if points[0].Score != nil || points[1].Score == nil || points[2].Score == nil {
		t.Error("Score presence should follow observation presence per day")
	}
}
