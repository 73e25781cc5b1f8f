package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/alerts"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/buckets"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/readiness"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/rolling"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/trends"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/workload"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/logger"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// Source provides raw observation and attendance data (Postgres in
// production).
type Source interface {
	// Observations returns readings for the metric keys within [from, to].
	Observations(ctx context.Context, subjectID string, metricKeys []string, from, to time.Time) ([]models.Observation, error)
	// Attendance returns session records within [from, to].
	Attendance(ctx context.Context, subjectID string, from, to time.Time) ([]models.AttendanceRecord, error)
	// Subjects returns all known subject ids.
	Subjects(ctx context.Context) ([]string, error)
}

// Service is the analytics facade: every derived series is recomputed
// on demand from the observation history, so reads are side-effect
// free. Alert evaluation is the one stateful operation.
type Service struct {
	source    Source
	catalog   *catalog.Catalog
	buckets   *buckets.Aggregator
	rolling   *rolling.Engine
	workload  *workload.Builder
	readiness *readiness.Scorer
	trends    *trends.Detector
	alerts    *alerts.Engine
	policies  []models.AlertPolicy

	acuteDays   int
	chronicDays int
}

// NewService creates the analytics service. acuteDays and chronicDays
// are the default ACWR windows; zero values select the standard 7/28.
func NewService(source Source, cat *catalog.Catalog, scorer *readiness.Scorer, engine *alerts.Engine, policies []models.AlertPolicy, acuteDays, chronicDays int) (*Service, error) {
	if acuteDays == 0 {
		acuteDays = workload.DefaultAcuteDays
	}
	if chronicDays == 0 {
		chronicDays = workload.DefaultChronicDays
	}
	if err := workload.ValidateWindows(acuteDays, chronicDays); err != nil {
		return nil, err
	}
	if err := alerts.ValidatePolicies(cat, policies); err != nil {
		return nil, err
	}

	return &Service{
		source:      source,
		catalog:     cat,
		buckets:     buckets.NewAggregator(cat),
		rolling:     rolling.NewEngine(),
		workload:    workload.NewBuilder(),
		readiness:   scorer,
		trends:      trends.NewDetector(cat),
		alerts:      engine,
		policies:    policies,
		acuteDays:   acuteDays,
		chronicDays: chronicDays,
	}, nil
}

// GetBuckets aggregates one metric into day/week/month buckets over
// [from, to], each bucket carrying its delta versus the previous one.
func (s *Service) GetBuckets(ctx context.Context, subjectID, metricKey string, from, to time.Time, granularity models.Granularity) ([]models.Bucket, error) {
	from, to = models.Day(from), models.Day(to)
	if !s.catalog.Has(metricKey) {
		return nil, fmt.Errorf("unknown metric %q: %w", metricKey, models.ErrInvalidConfig)
	}

	observations, err := s.source.Observations(ctx, subjectID, []string{metricKey}, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	return s.buckets.Build(subjectID, metricKey, observations, from, to, granularity)
}

// GetWorkloadSeries returns the zero-filled daily sRPE series over
// [from, to] together with its ACWR points. Zero window arguments
// select the service defaults. Windows reach into history before from
// when the subject has earlier sessions.
func (s *Service) GetWorkloadSeries(ctx context.Context, subjectID string, from, to time.Time, acuteDays, chronicDays int) (*models.WorkloadSeries, error) {
	from, to = models.Day(from), models.Day(to)
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if acuteDays == 0 {
		acuteDays = s.acuteDays
	}
	if chronicDays == 0 {
		chronicDays = s.chronicDays
	}
	if err := workload.ValidateWindows(acuteDays, chronicDays); err != nil {
		return nil, err
	}

	loads, points, err := s.loadHistory(ctx, subjectID, from, to, acuteDays, chronicDays)
	if err != nil {
		return nil, err
	}

	return &models.WorkloadSeries{Loads: loads, ACWR: points}, nil
}

// GetMonotonyStrain returns weekly monotony and strain for the weeks
// overlapping [from, to]. Weeks start on Monday; the week containing
// from is evaluated from its Monday even when that precedes from.
func (s *Service) GetMonotonyStrain(ctx context.Context, subjectID string, from, to time.Time) ([]models.MonotonyStrainPoint, error) {
	from, to = models.Day(from), models.Day(to)
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	weekFrom := models.WeekStart(from)
	records, err := s.source.Attendance(ctx, subjectID, weekFrom, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	loads := s.workload.DailySeries(subjectID, records, weekFrom, to)
	return s.workload.MonotonyStrain(subjectID, loads), nil
}

// GetReadiness returns one readiness point per day in [from, to].
func (s *Service) GetReadiness(ctx context.Context, subjectID string, from, to time.Time) ([]models.ReadinessPoint, error) {
	from, to = models.Day(from), models.Day(to)
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	series, err := s.readinessSeries(ctx, subjectID, from, to)
	if err != nil {
		return nil, err
	}
	return s.readiness.ScoreRange(subjectID, series, from, to), nil
}

// GetRolling returns trailing mean/stddev points for one metric over
// [from, to].
func (s *Service) GetRolling(ctx context.Context, subjectID, metricKey string, window int, from, to time.Time) ([]models.RollingPoint, error) {
	from, to = models.Day(from), models.Day(to)
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if !s.catalog.Has(metricKey) {
		return nil, fmt.Errorf("unknown metric %q: %w", metricKey, models.ErrInvalidConfig)
	}
	if window < 1 {
		return nil, fmt.Errorf("rolling window must be >= 1, got %d: %w", window, models.ErrInvalidConfig)
	}

	fetchFrom := from.AddDate(0, 0, -(window - 1))
	observations, err := s.source.Observations(ctx, subjectID, []string{metricKey}, fetchFrom, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	series := rolling.FromObservations(s.catalog.FilterValid(observations))
	return s.rolling.Points(subjectID, metricKey, window, series, models.Days(from, to)), nil
}

// GetTrends returns 7d/28d percent trends and the anomaly flag per
// metric, anchored at each metric's latest observation on or before
// asOf. Empty metricKeys selects the whole catalog; metrics without
// recent data produce no point.
func (s *Service) GetTrends(ctx context.Context, subjectID string, metricKeys []string, asOf time.Time) ([]models.TrendPoint, error) {
	asOf = models.Day(asOf)
	if len(metricKeys) == 0 {
		metricKeys = s.catalog.Keys()
	}

	// Covers both trend windows plus a stale anchor up to 28 days old.
	fetchFrom := asOf.AddDate(0, 0, -3*trends.LongWindowDays)
	observations, err := s.source.Observations(ctx, subjectID, metricKeys, fetchFrom, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}

	series := groupSeries(s.catalog.FilterValid(observations))
	return s.trends.Detect(subjectID, metricKeys, series, asOf)
}

// EvaluateAlerts recomputes the subject's indicator snapshot for asOf
// and runs every policy's lifecycle transitions. The returned set is
// the subject's full alert list, so re-evaluation over unchanged data
// returns an identical set.
func (s *Service) EvaluateAlerts(ctx context.Context, subjectID string, asOf time.Time) ([]models.Alert, error) {
	asOf = models.Day(asOf)

	snap, err := s.buildSnapshot(ctx, subjectID, asOf)
	if err != nil {
		return nil, err
	}

	result, err := s.alerts.Evaluate(ctx, subjectID, asOf, s.policies, snap)
	if err != nil {
		return nil, err
	}

	active := 0
	for i := range result {
		if result[i].Active() {
			active++
		}
	}
	logger.Info("alert evaluation completed",
		zap.String("subject_id", subjectID),
		zap.Time("as_of", asOf),
		zap.Int("alerts", len(result)),
		zap.Int("active", active),
	)
	return result, nil
}

// AcknowledgeAlert marks an alert as seen by a human.
func (s *Service) AcknowledgeAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	return s.alerts.Acknowledge(ctx, alertID)
}

// ResolveAlert closes an alert explicitly.
func (s *Service) ResolveAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	return s.alerts.Resolve(ctx, alertID)
}

// ListAlerts returns all alerts for a subject, oldest first.
func (s *Service) ListAlerts(ctx context.Context, subjectID string) ([]models.Alert, error) {
	return s.alerts.ListBySubject(ctx, subjectID)
}

// Subjects returns all known subject ids.
func (s *Service) Subjects(ctx context.Context) ([]string, error) {
	return s.source.Subjects(ctx)
}

// Policies returns the configured alert policy set.
func (s *Service) Policies() []models.AlertPolicy {
	return s.policies
}

// loadHistory builds the daily load series and its ACWR points over
// [from, to], extending the series back to the subject's earliest
// fetched session so the windows see real history instead of
// zero-filled padding.
func (s *Service) loadHistory(ctx context.Context, subjectID string, from, to time.Time, acuteDays, chronicDays int) ([]models.DailyLoad, []models.ACWRPoint, error) {
	fetchFrom := from.AddDate(0, 0, -(chronicDays - 1))
	records, err := s.source.Attendance(ctx, subjectID, fetchFrom, to)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	// Zero-fill starts at the earliest known session, never before: a
	// subject with no sessions prior to from keeps partial windows
	// rather than seeing fabricated rest days.
	domainStart := from
	for _, record := range records {
		if d := models.Day(record.Date); d.Before(domainStart) {
			domainStart = d
		}
	}

	loads := s.workload.DailySeries(subjectID, records, domainStart, to)
	points, err := s.workload.ACWR(subjectID, loads, acuteDays, chronicDays)
	if err != nil {
		return nil, nil, err
	}

	offset := models.DaysBetween(domainStart, from)
	return loads[offset:], points[offset:], nil
}

// readinessSeries fetches and groups the weighted metrics with enough
// history for baselines ending the day before from.
func (s *Service) readinessSeries(ctx context.Context, subjectID string, from, to time.Time) (map[string]rolling.Series, error) {
	fetchFrom := from.AddDate(0, 0, -s.readiness.BaselineDays())
	observations, err := s.source.Observations(ctx, subjectID, s.readiness.MetricKeys(), fetchFrom, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	return groupSeries(s.catalog.FilterValid(observations)), nil
}

// buildSnapshot populates the per-day indicator values the policy set
// needs, spanning the longest consecutive/resolve horizon ending at asOf.
func (s *Service) buildSnapshot(ctx context.Context, subjectID string, asOf time.Time) (*alerts.Snapshot, error) {
	horizon := policyHorizon(s.policies)
	first := asOf.AddDate(0, 0, -(horizon - 1))
	snap := alerts.NewSnapshot()

	if indicatorUsed(s.policies, models.IndicatorACWRRatio) {
		_, points, err := s.loadHistory(ctx, subjectID, first, asOf, s.acuteDays, s.chronicDays)
		if err != nil {
			return nil, err
		}
		for i := range points {
			snap.SetACWR(points[i].Date, points[i].Ratio)
		}
	}

	if indicatorUsed(s.policies, models.IndicatorReadiness) {
		series, err := s.readinessSeries(ctx, subjectID, first, asOf)
		if err != nil {
			return nil, err
		}
		for _, point := range s.readiness.ScoreRange(subjectID, series, first, asOf) {
			snap.SetReadiness(point.Date, point.Score)
		}
	}

	if keys := zscoreKeys(s.policies); len(keys) > 0 {
		fetchFrom := first.AddDate(0, 0, -trends.LongWindowDays)
		observations, err := s.source.Observations(ctx, subjectID, keys, fetchFrom, asOf)
		if err != nil {
			return nil, fmt.Errorf("failed to load observations: %w", err)
		}
		grouped := groupSeries(s.catalog.FilterValid(observations))

		for _, key := range keys {
			series, ok := grouped[key]
			if !ok {
				continue
			}
			for _, day := range models.Days(first, asOf) {
				sample, ok := series.At(day)
				if !ok {
					continue
				}
				baseline := s.rolling.WindowStat(trends.LongWindowDays, series, day.AddDate(0, 0, -1))
				if z := baseline.ZScore(sample.Value); z != nil {
					snap.SetZScore(key, day, z)
				}
			}
		}
	}

	return snap, nil
}

func validateRange(from, to time.Time) error {
	if from.After(to) {
		return fmt.Errorf("date_from %s after date_to %s: %w",
			from.Format("2006-01-02"), to.Format("2006-01-02"), models.ErrInvalidConfig)
	}
	return nil
}

// groupSeries splits observations by metric key into sorted series.
func groupSeries(observations []models.Observation) map[string]rolling.Series {
	byKey := make(map[string][]models.Observation)
	for _, o := range observations {
		byKey[o.MetricKey] = append(byKey[o.MetricKey], o)
	}
	out := make(map[string]rolling.Series, len(byKey))
	for key, group := range byKey {
		out[key] = rolling.FromObservations(group)
	}
	return out
}

// policyHorizon is the snapshot depth the policy set needs: the largest
// consecutive-day or resolve-cycle span, at least 1.
func policyHorizon(policies []models.AlertPolicy) int {
	horizon := 1
	for i := range policies {
		if policies[i].ConsecutiveDays > horizon {
			horizon = policies[i].ConsecutiveDays
		}
		if policies[i].ResolveCycles > horizon {
			horizon = policies[i].ResolveCycles
		}
	}
	return horizon
}

func indicatorUsed(policies []models.AlertPolicy, indicator models.IndicatorKey) bool {
	for i := range policies {
		if policies[i].Indicator == indicator {
			return true
		}
	}
	return false
}

// zscoreKeys is the union of metric keys across zscore policies.
func zscoreKeys(policies []models.AlertPolicy) []string {
	seen := make(map[string]bool)
	var keys []string
	for i := range policies {
		if policies[i].Indicator != models.IndicatorZScore {
			continue
		}
		for _, key := range policies[i].MetricKeys {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}
