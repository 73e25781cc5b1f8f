package trends

import (
	"fmt"
	"math"
	"time"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/rolling"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

const (
	// ShortWindowDays and LongWindowDays are the two trend horizons.
	ShortWindowDays = 7
	LongWindowDays  = 28

	// AnomalyZ is the |z| bound beyond which a value is anomalous.
	AnomalyZ = 2.0
)

// Detector computes per-metric trend percentages and anomaly flags.
type Detector struct {
	catalog *catalog.Catalog
	rolling *rolling.Engine
}

// NewDetector creates new trend detector
func NewDetector(cat *catalog.Catalog) *Detector {
	return &Detector{
		catalog: cat,
		rolling: rolling.NewEngine(),
	}
}

// Detect computes trend points for the requested metrics. Metrics with
// no observations produce no row. Unknown metric keys are rejected.
func (d *Detector) Detect(subjectID string, metricKeys []string, seriesByMetric map[string]rolling.Series, asOf time.Time) ([]models.TrendPoint, error) {
	points := make([]models.TrendPoint, 0, len(metricKeys))
	for _, key := range metricKeys {
		if !d.catalog.Has(key) {
			return nil, fmt.Errorf("unknown metric %q: %w", key, models.ErrInvalidConfig)
		}
		point, ok := d.ForMetric(subjectID, key, seriesByMetric[key], asOf)
		if !ok {
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// ForMetric computes the trend point for one metric, anchored at the
// metric's most recent observation on or before asOf. The second return
// is false when the series is empty up to asOf.
func (d *Detector) ForMetric(subjectID, metricKey string, series rolling.Series, asOf time.Time) (models.TrendPoint, bool) {
	anchor, ok := series.Latest(asOf)
	if !ok {
		return models.TrendPoint{}, false
	}
	t := models.Day(anchor.Date)

	point := models.TrendPoint{
		AsOf:      t,
		SubjectID: subjectID,
		MetricKey: metricKey,
		Trend7d:   d.trend(series, t, ShortWindowDays),
		Trend28d:  d.trend(series, t, LongWindowDays),
	}

	// The z-score baseline ends the day before the anchor so the value
	// never competes against itself.
	baseline := d.rolling.WindowStat(LongWindowDays, series, t.AddDate(0, 0, -1))
	point.ZScore = baseline.ZScore(anchor.Value)
	point.Anomaly = point.ZScore != nil && math.Abs(*point.ZScore) > AnomalyZ

	return point, true
}

// trend compares the window ending at t with the window immediately
// before it: (current - prior) / prior * 100. Nil when the prior window
// is empty or averages zero.
func (d *Detector) trend(series rolling.Series, t time.Time, window int) *float64 {
	current := d.rolling.WindowStat(window, series, t)
	prior := d.rolling.WindowStat(window, series, t.AddDate(0, 0, -window))
	if current.Mean == nil || prior.Mean == nil || *prior.Mean == 0 {
		return nil
	}
	return models.Float(models.RoundPct((*current.Mean - *prior.Mean) / *prior.Mean * 100))
}
