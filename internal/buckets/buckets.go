package buckets

import (
	"fmt"
	"time"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// Aggregator groups raw observations into day/week/month buckets.
type Aggregator struct {
	catalog *catalog.Catalog
}

// NewAggregator creates new bucket aggregator
func NewAggregator(cat *catalog.Catalog) *Aggregator {
	return &Aggregator{catalog: cat}
}

type accumulator struct {
	min   float64
	max   float64
	sum   float64
	count int
}

// Build returns the ordered bucket sequence covering [from, to] for one
// subject and metric, buckets without data included. Out-of-range
// observations are excluded from aggregation. The first week/month
// bucket may start before from; counts only cover days inside the
// requested range.
func (a *Aggregator) Build(subjectID, metricKey string, observations []models.Observation, from, to time.Time, granularity models.Granularity) ([]models.Bucket, error) {
	if !granularity.Valid() {
		return nil, fmt.Errorf("unknown granularity %q", granularity)
	}
	from, to = models.Day(from), models.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("date_from %s after date_to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	starts := bucketStarts(from, to, granularity)
	byStart := make(map[time.Time]*accumulator, len(starts))
	for _, start := range starts {
		byStart[start] = &accumulator{}
	}

	for _, obs := range observations {
		date := models.Day(obs.Date)
		if date.Before(from) || date.After(to) {
			continue
		}
		if !a.catalog.InRange(metricKey, obs.Value) {
			continue
		}
		acc, ok := byStart[bucketStartFor(date, granularity)]
		if !ok {
			continue
		}
		if acc.count == 0 || obs.Value < acc.min {
			acc.min = obs.Value
		}
		if acc.count == 0 || obs.Value > acc.max {
			acc.max = obs.Value
		}
		acc.sum += obs.Value
		acc.count++
	}

	result := make([]models.Bucket, 0, len(starts))
	for i, start := range starts {
		acc := byStart[start]
		bucket := models.Bucket{
			BucketStart: start,
			SubjectID:   subjectID,
			MetricKey:   metricKey,
			Granularity: granularity,
			Count:       acc.count,
		}
		if acc.count > 0 {
			avg := acc.sum / float64(acc.count)
			bucket.Avg = models.Float(avg)
			bucket.Min = models.Float(acc.min)
			bucket.Max = models.Float(acc.max)

			// Delta against the immediately preceding bucket, defined
			// only when that bucket has data and a non-zero average.
			if i > 0 {
				prev := byStart[starts[i-1]]
				if prev.count > 0 {
					prevAvg := prev.sum / float64(prev.count)
					if prevAvg != 0 {
						bucket.DeltaPrevPct = models.Float(models.RoundPct((avg - prevAvg) / prevAvg * 100))
					}
				}
			}
		}
		result = append(result, bucket)
	}

	return result, nil
}

// bucketStarts enumerates bucket start dates covering [from, to].
func bucketStarts(from, to time.Time, granularity models.Granularity) []time.Time {
	var starts []time.Time
	for start := bucketStartFor(from, granularity); !start.After(to); start = nextBucketStart(start, granularity) {
		starts = append(starts, start)
	}
	return starts
}

func bucketStartFor(date time.Time, granularity models.Granularity) time.Time {
	switch granularity {
	case models.GranularityWeek:
		return models.WeekStart(date)
	case models.GranularityMonth:
		return models.MonthStart(date)
	default:
		return models.Day(date)
	}
}

func nextBucketStart(start time.Time, granularity models.Granularity) time.Time {
	switch granularity {
	case models.GranularityWeek:
		return start.AddDate(0, 0, 7)
	case models.GranularityMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}
