package rolling

import (
	"math"
	"sort"
	"time"

	"github.com/cinar/indicator"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// Stat describes the trailing window ending at one series position.
// Mean is nil only when the window holds no values; Stddev additionally
// requires at least 2 values and uses the sample (N-1) denominator.
type Stat struct {
	Mean   *float64
	Stddev *float64
	Count  int
}

// ZScore returns (value - mean) / stddev against this window as the
// baseline. Nil when the baseline mean or stddev is missing, or the
// stddev is zero.
func (s Stat) ZScore(value float64) *float64 {
	if s.Mean == nil || s.Stddev == nil || *s.Stddev == 0 {
		return nil
	}
	return models.Float((value - *s.Mean) / *s.Stddev)
}

// Sample is one dated value of a sparse daily series.
type Sample struct {
	Date  time.Time
	Value float64
}

// Series is a date-ascending sparse daily series, at most one sample
// per day.
type Series []Sample

// NewSeries builds a series from samples in any order.
func NewSeries(samples []Sample) Series {
	s := make(Series, len(samples))
	copy(s, samples)
	sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	return s
}

// FromObservations builds a series from one metric's observations.
func FromObservations(observations []models.Observation) Series {
	samples := make([]Sample, 0, len(observations))
	for _, obs := range observations {
		samples = append(samples, Sample{Date: models.Day(obs.Date), Value: obs.Value})
	}
	return NewSeries(samples)
}

// At returns the sample recorded exactly on date.
func (s Series) At(date time.Time) (Sample, bool) {
	date = models.Day(date)
	for i := len(s) - 1; i >= 0; i-- {
		d := models.Day(s[i].Date)
		if d.Equal(date) {
			return s[i], true
		}
		if d.Before(date) {
			break
		}
	}
	return Sample{}, false
}

// Latest returns the most recent sample on or before cutoff.
func (s Series) Latest(cutoff time.Time) (Sample, bool) {
	cutoff = models.Day(cutoff)
	for i := len(s) - 1; i >= 0; i-- {
		if !models.Day(s[i].Date).After(cutoff) {
			return s[i], true
		}
	}
	return Sample{}, false
}

// Engine computes trailing-window statistics over daily series. Windows
// are never required to be full: a position with only k < window days of
// history yields statistics over those k values.
type Engine struct{}

// NewEngine creates new rolling statistics engine
func NewEngine() *Engine {
	return &Engine{}
}

// Mean returns the rolling mean at every position of a dense daily
// series, partial windows included.
func (e *Engine) Mean(window int, values []float64) []float64 {
	if window < 1 || len(values) == 0 {
		return nil
	}
	return indicator.Sma(window, values)
}

// Stats returns mean, sample stddev and in-window count at every
// position of a dense daily series. Stddev is nil where fewer than 2
// values are available.
func (e *Engine) Stats(window int, values []float64) []Stat {
	if window < 1 || len(values) == 0 {
		return nil
	}

	means := indicator.Sma(window, values)
	stats := make([]Stat, len(values))

	var sum, sumSq float64
	for i, v := range values {
		sum += v
		sumSq += v * v
		count := i + 1
		if i >= window {
			old := values[i-window]
			sum -= old
			sumSq -= old * old
			count = window
		}

		stats[i] = Stat{Mean: models.Float(means[i]), Count: count}
		if count >= 2 {
			variance := (sumSq - sum*sum/float64(count)) / float64(count-1)
			if variance < 0 {
				// float error can push the variance a hair below zero
				variance = 0
			}
			stats[i].Stddev = models.Float(math.Sqrt(variance))
		}
	}

	return stats
}

// WindowStat computes statistics over the samples of a sparse series
// falling inside [end-window+1, end]. Days without a sample simply do
// not contribute; they are gaps, not zeros.
func (e *Engine) WindowStat(window int, series Series, end time.Time) Stat {
	if window < 1 {
		return Stat{}
	}

	end = models.Day(end)
	start := end.AddDate(0, 0, -(window - 1))

	values := make([]float64, 0, window)
	for _, sample := range series {
		d := models.Day(sample.Date)
		if d.Before(start) {
			continue
		}
		if d.After(end) {
			break
		}
		values = append(values, sample.Value)
	}

	return StatOf(values)
}

// Points materializes rolling points for one metric over the given dates.
func (e *Engine) Points(subjectID, metricKey string, window int, series Series, dates []time.Time) []models.RollingPoint {
	points := make([]models.RollingPoint, 0, len(dates))
	for _, date := range dates {
		stat := e.WindowStat(window, series, date)
		points = append(points, models.RollingPoint{
			Date:          models.Day(date),
			SubjectID:     subjectID,
			MetricKey:     metricKey,
			Mean:          stat.Mean,
			Stddev:        stat.Stddev,
			WindowDays:    window,
			CountInWindow: stat.Count,
		})
	}
	return points
}

// StatOf computes the mean and sample stddev of a bare value set.
func StatOf(values []float64) Stat {
	n := len(values)
	if n == 0 {
		return Stat{}
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	stat := Stat{Mean: models.Float(mean), Count: n}
	if n >= 2 {
		var ss float64
		for _, v := range values {
			d := v - mean
			ss += d * d
		}
		stat.Stddev = models.Float(math.Sqrt(ss / float64(n-1)))
	}
	return stat
}
