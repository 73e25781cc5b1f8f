package workload

import (
	"fmt"
	"time"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/rolling"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// Window defaults and limits for the acute:chronic ratio.
const (
	DefaultAcuteDays   = 7
	DefaultChronicDays = 28

	MinAcuteDays   = 1
	MaxAcuteDays   = 14
	MinChronicDays = 7
	MaxChronicDays = 56

	// Ratio band ends shared with the risk_load alert policy.
	RatioLow  = 0.8
	RatioHigh = 1.5
)

// Builder derives the continuous daily load series and the indicators
// computed from it.
type Builder struct {
	rolling *rolling.Engine
}

// NewBuilder creates new workload series builder
func NewBuilder() *Builder {
	return &Builder{rolling: rolling.NewEngine()}
}

// DailySeries builds one DailyLoad per calendar day in [from, to].
// A day's load is the sum of rpe_post * minutes over its attendance
// records; days without any record carry zero load and HasActivity false.
func (b *Builder) DailySeries(subjectID string, records []models.AttendanceRecord, from, to time.Time) []models.DailyLoad {
	type daySum struct {
		load float64
		seen bool
	}
	byDay := make(map[time.Time]daySum)
	for _, rec := range records {
		date := models.Day(rec.Date)
		sum := byDay[date]
		sum.load += rec.Load()
		sum.seen = true
		byDay[date] = sum
	}

	days := models.Days(from, to)
	series := make([]models.DailyLoad, 0, len(days))
	for _, date := range days {
		sum := byDay[date]
		series = append(series, models.DailyLoad{
			Date:        date,
			SubjectID:   subjectID,
			SRPE:        sum.load,
			HasActivity: sum.seen,
		})
	}
	return series
}

// ValidateWindows checks the acute/chronic window configuration.
func ValidateWindows(acuteDays, chronicDays int) error {
	if acuteDays < MinAcuteDays || acuteDays > MaxAcuteDays {
		return fmt.Errorf("acute window %d outside [%d,%d]: %w", acuteDays, MinAcuteDays, MaxAcuteDays, models.ErrInvalidConfig)
	}
	if chronicDays < MinChronicDays || chronicDays > MaxChronicDays {
		return fmt.Errorf("chronic window %d outside [%d,%d]: %w", chronicDays, MinChronicDays, MaxChronicDays, models.ErrInvalidConfig)
	}
	if acuteDays > chronicDays {
		return fmt.Errorf("acute window %d exceeds chronic window %d: %w", acuteDays, chronicDays, models.ErrInvalidConfig)
	}
	return nil
}

// ACWR computes acute and chronic rolling means over the daily load
// series and their ratio. Partial windows count from day one; the ratio
// is nil whenever the chronic mean is zero.
func (b *Builder) ACWR(subjectID string, loads []models.DailyLoad, acuteDays, chronicDays int) ([]models.ACWRPoint, error) {
	if err := ValidateWindows(acuteDays, chronicDays); err != nil {
		return nil, err
	}
	if len(loads) == 0 {
		return nil, nil
	}

	values := make([]float64, len(loads))
	for i, load := range loads {
		values[i] = load.SRPE
	}

	acute := b.rolling.Mean(acuteDays, values)
	chronic := b.rolling.Mean(chronicDays, values)

	points := make([]models.ACWRPoint, len(loads))
	for i, load := range loads {
		point := models.ACWRPoint{
			Date:      load.Date,
			SubjectID: subjectID,
			Acute:     models.Float(acute[i]),
			Chronic:   models.Float(chronic[i]),
		}
		if chronic[i] > 0 {
			point.Ratio = models.Float(acute[i] / chronic[i])
		}
		point.Flag = FlagFor(point.Ratio)
		points[i] = point
	}
	return points, nil
}

// FlagFor classifies a ratio against the safe band. Nil ratios stay
// unflagged.
func FlagFor(ratio *float64) models.ACWRFlag {
	switch {
	case ratio == nil:
		return ""
	case *ratio > RatioHigh:
		return models.ACWRFlagHigh
	case *ratio < RatioLow:
		return models.ACWRFlagLow
	default:
		return models.ACWRFlagNormal
	}
}

// MonotonyStrain computes per-week monotony and strain over the daily
// load series. Weeks are Monday-aligned; weeks not fully covered by the
// series carry the PartialWeek flag. A week of identical loads has no
// defined monotony and reports UniformLoad instead.
func (b *Builder) MonotonyStrain(subjectID string, loads []models.DailyLoad) []models.MonotonyStrainPoint {
	if len(loads) == 0 {
		return nil
	}

	type week struct {
		start  time.Time
		values []float64
	}
	var weeks []*week
	byStart := make(map[time.Time]*week)
	for _, load := range loads {
		start := models.WeekStart(load.Date)
		w, ok := byStart[start]
		if !ok {
			w = &week{start: start}
			byStart[start] = w
			weeks = append(weeks, w)
		}
		w.values = append(w.values, load.SRPE)
	}

	points := make([]models.MonotonyStrainPoint, 0, len(weeks))
	for _, w := range weeks {
		stat := rolling.StatOf(w.values)

		total := 0.0
		for _, v := range w.values {
			total += v
		}

		point := models.MonotonyStrainPoint{
			WeekStart:   w.start,
			SubjectID:   subjectID,
			MeanLoad:    stat.Mean,
			StddevLoad:  stat.Stddev,
			TotalLoad:   total,
			DaysInWeek:  len(w.values),
			PartialWeek: len(w.values) < 7,
		}
		if stat.Stddev != nil {
			if *stat.Stddev == 0 {
				point.UniformLoad = true
			} else {
				monotony := *stat.Mean / *stat.Stddev
				point.Monotony = models.Float(monotony)
				point.Strain = models.Float(total * monotony)
			}
		}
		points = append(points, point)
	}
	return points
}
