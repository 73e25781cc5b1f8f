package alerts

import (
	"math"
	"time"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// Snapshot carries one subject's derived indicator values per day. The
// engine only reads it; days it does not cover count as condition-free.
// It must span at least the largest consecutive_days/resolve_cycles
// horizon of the evaluated policies, ending at the evaluation date.
type Snapshot struct {
	// ACWRRatio holds the ratio per day; nil entries are undefined ratios.
	ACWRRatio map[time.Time]*float64
	// Readiness holds the readiness score per day.
	Readiness map[time.Time]*float64
	// ZScores holds the per-metric z-score per day.
	ZScores map[string]map[time.Time]*float64
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		ACWRRatio: make(map[time.Time]*float64),
		Readiness: make(map[time.Time]*float64),
		ZScores:   make(map[string]map[time.Time]*float64),
	}
}

// SetACWR records the ratio for a day.
func (s *Snapshot) SetACWR(date time.Time, ratio *float64) {
	s.ACWRRatio[models.Day(date)] = ratio
}

// SetReadiness records the readiness score for a day.
func (s *Snapshot) SetReadiness(date time.Time, score *float64) {
	s.Readiness[models.Day(date)] = score
}

// SetZScore records one metric's z-score for a day.
func (s *Snapshot) SetZScore(metricKey string, date time.Time, z *float64) {
	byDay, ok := s.ZScores[metricKey]
	if !ok {
		byDay = make(map[time.Time]*float64)
		s.ZScores[metricKey] = byDay
	}
	byDay[models.Day(date)] = z
}

// trigger is a policy condition hit on one day.
type trigger struct {
	value  float64
	metric string
}

// match evaluates the policy condition on one day. holds is false when
// the indicator is undefined for that day; an undefined value never
// satisfies a condition.
func (s *Snapshot) match(policy *models.AlertPolicy, date time.Time) (trigger, bool) {
	date = models.Day(date)

	switch policy.Indicator {
	case models.IndicatorACWRRatio:
		if v := s.ACWRRatio[date]; v != nil && policy.Matches(*v) {
			return trigger{value: *v}, true
		}

	case models.IndicatorReadiness:
		if v := s.Readiness[date]; v != nil && policy.Matches(*v) {
			return trigger{value: *v}, true
		}

	case models.IndicatorZScore:
		// Any listed metric can fire the policy; the most extreme
		// matching value becomes the triggering one.
		best := trigger{}
		found := false
		for _, key := range policy.MetricKeys {
			z := s.ZScores[key][date]
			if z == nil || !policy.Matches(*z) {
				continue
			}
			if !found || math.Abs(*z) > math.Abs(best.value) {
				best = trigger{value: *z, metric: key}
				found = true
			}
		}
		if found {
			return best, true
		}
	}

	return trigger{}, false
}

// streak counts consecutive days ending at date on which the policy
// condition holds.
func (s *Snapshot) streak(policy *models.AlertPolicy, date time.Time) int {
	count := 0
	for d := models.Day(date); ; d = d.AddDate(0, 0, -1) {
		if _, holds := s.match(policy, d); !holds {
			break
		}
		count++
	}
	return count
}

// cleanStreak counts consecutive days ending at date on which the
// condition does not hold.
func (s *Snapshot) cleanStreak(policy *models.AlertPolicy, date time.Time, limit int) int {
	count := 0
	for d := models.Day(date); count < limit; d = d.AddDate(0, 0, -1) {
		if _, holds := s.match(policy, d); holds {
			break
		}
		count++
	}
	return count
}
