package analytics

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	redisAdapter "github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/adapters/redis"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/alerts"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/readiness"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/logger"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

func day(d int) time.Time {
	return time.Date(2025, 5, d, 0, 0, 0, 0, time.UTC)
}

func TestService_WorkloadSeriesSevenDayScenario(t *testing.T) {
	source := &memorySource{subjects: []string{"s1"}}
	// Daily loads 450, 375, 0, 0, 420, 390, 410.
	source.addSession("s1", 1, 5, 90)
	source.addSession("s1", 2, 5, 75)
	source.addSession("s1", 5, 6, 70)
	source.addSession("s1", 6, 6, 65)
	source.addSession("s1", 7, 5, 82)

	svc := newTestService(t, source)

	series, err := svc.GetWorkloadSeries(context.Background(), "s1", day(1), day(7), 0, 0)
	if err != nil {
		t.Fatalf("GetWorkloadSeries: %v", err)
	}

	wantLoads := []float64{450, 375, 0, 0, 420, 390, 410}
	if len(series.Loads) != len(wantLoads) {
		t.Fatalf("Loads length = %d, want %d", len(series.Loads), len(wantLoads))
	}
	for i, want := range wantLoads {
		if series.Loads[i].SRPE != want {
			t.Errorf("Load[%d] = %v, want %v", i, series.Loads[i].SRPE, want)
		}
	}
	if series.Loads[2].HasActivity || series.Loads[3].HasActivity {
		t.Error("Rest days should carry HasActivity = false")
	}

	last := series.ACWR[len(series.ACWR)-1]
	wantMean := 2045.0 / 7.0
	if last.Acute == nil || !almostEqual(*last.Acute, wantMean) {
		t.Errorf("Acute(day7) = %v, want %v", last.Acute, wantMean)
	}
	// Only 7 days of history: the partial chronic window sees the same
	// values, so the ratio is exactly 1.
	if last.Ratio == nil || *last.Ratio != 1.0 {
		t.Errorf("Ratio(day7) = %v, want exactly 1.0", last.Ratio)
	}
	if last.Flag != models.ACWRFlagNormal {
		t.Errorf("Flag(day7) = %q, want normal", last.Flag)
	}
}

func TestService_WorkloadWindowsReachIntoHistory(t *testing.T) {
	source := &memorySource{subjects: []string{"s1"}}
	// Three sessions before the requested range.
	source.addSession("s1", 1, 5, 60)
	source.addSession("s1", 2, 5, 60)
	source.addSession("s1", 3, 5, 60)
	source.addSession("s1", 4, 10, 60)
	source.addSession("s1", 6, 5, 60)

	svc := newTestService(t, source)

	series, err := svc.GetWorkloadSeries(context.Background(), "s1", day(4), day(6), 3, 7)
	if err != nil {
		t.Fatalf("GetWorkloadSeries: %v", err)
	}

	if len(series.Loads) != 3 {
		t.Fatalf("Loads length = %d, want 3 (trimmed to the requested range)", len(series.Loads))
	}
	if series.Loads[0].SRPE != 600 {
		t.Errorf("First load = %v, want 600", series.Loads[0].SRPE)
	}

	first := series.ACWR[0]
	// Acute mean over days 2-4 = (300 + 300 + 600) / 3.
	if first.Acute == nil || !almostEqual(*first.Acute, 400) {
		t.Errorf("Acute(day4) = %v, want 400", first.Acute)
	}
	// Chronic window is partial over days 1-4.
	if first.Chronic == nil || !almostEqual(*first.Chronic, 375) {
		t.Errorf("Chronic(day4) = %v, want 375", first.Chronic)
	}
}

func TestService_ReadinessDropScoresTwenty(t *testing.T) {
	source := &memorySource{subjects: []string{"s1"}}
	source.addObservation("s1", catalog.MetricSleepQuality, 1, 6)
	source.addObservation("s1", catalog.MetricSleepQuality, 2, 7)
	source.addObservation("s1", catalog.MetricSleepQuality, 3, 8)
	source.addObservation("s1", catalog.MetricSleepQuality, 4, 5)

	svc := newTestService(t, source)

	points, err := svc.GetReadiness(context.Background(), "s1", day(4), day(4))
	if err != nil {
		t.Fatalf("GetReadiness: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("Points = %d, want 1", len(points))
	}

	p := points[0]
	if p.MetricsUsed != 1 {
		t.Errorf("MetricsUsed = %d, want 1", p.MetricsUsed)
	}
	// Baseline 6,7,8 has mean 7 and sample stddev 1; the value 5 sits
	// two deviations below, mapping to 50 - 2*15 = 20.
	if p.Score == nil || !almostEqual(*p.Score, 20) {
		t.Errorf("Score = %v, want 20", p.Score)
	}
}

func TestService_TrendsFilterInvalidAndAnchor(t *testing.T) {
	source := &memorySource{subjects: []string{"s1"}}
	for d := 1; d <= 7; d++ {
		source.addObservation("s1", catalog.MetricSleepQuality, d, 5)
	}
	for d := 8; d <= 14; d++ {
		source.addObservation("s1", catalog.MetricSleepQuality, d, 6)
	}
	// Out of the catalog's 0-10 range: must not become the anchor.
	source.addObservation("s1", catalog.MetricSleepQuality, 15, 11)

	svc := newTestService(t, source)

	points, err := svc.GetTrends(context.Background(), "s1", []string{catalog.MetricSleepQuality}, day(15))
	if err != nil {
		t.Fatalf("GetTrends: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("Points = %d, want 1", len(points))
	}

	p := points[0]
	if !p.AsOf.Equal(day(14)) {
		t.Errorf("Anchor = %v, want day 14 (latest valid observation)", p.AsOf)
	}
	if p.Trend7d == nil || *p.Trend7d != 20.0 {
		t.Errorf("Trend7d = %v, want 20.00", p.Trend7d)
	}
	if p.Trend28d != nil {
		t.Errorf("Trend28d = %v, want nil without enough history", p.Trend28d)
	}
	if p.Anomaly {
		t.Error("A one-point rise inside normal variation should not flag an anomaly")
	}
}

func TestService_GetRollingPartialWindows(t *testing.T) {
	source := &memorySource{subjects: []string{"s1"}}
	source.addObservation("s1", catalog.MetricHRV, 1, 60)
	source.addObservation("s1", catalog.MetricHRV, 2, 70)
	source.addObservation("s1", catalog.MetricHRV, 3, 80)

	svc := newTestService(t, source)

	points, err := svc.GetRolling(context.Background(), "s1", catalog.MetricHRV, 7, day(1), day(3))
	if err != nil {
		t.Fatalf("GetRolling: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("Points = %d, want 3", len(points))
	}

	if points[0].Mean == nil || *points[0].Mean != 60 {
		t.Errorf("Mean(day1) = %v, want 60", points[0].Mean)
	}
	if points[0].Stddev != nil {
		t.Errorf("Stddev(day1) = %v, want nil with a single point", points[0].Stddev)
	}
	if points[2].Mean == nil || !almostEqual(*points[2].Mean, 70) {
		t.Errorf("Mean(day3) = %v, want 70", points[2].Mean)
	}
	if points[2].CountInWindow != 3 {
		t.Errorf("CountInWindow(day3) = %d, want 3", points[2].CountInWindow)
	}
}

func TestService_EvaluateAlertsEndToEnd(t *testing.T) {
	source := &memorySource{subjects: []string{"s1"}}
	// Three steady weeks then a heavy week: ratio 600/375 = 1.6.
	for d := -20; d <= 0; d++ {
		source.addSession("s1", d, 5, 60)
	}
	for d := 1; d <= 7; d++ {
		source.addSession("s1", d, 10, 60)
	}

	svc := newTestService(t, source)
	ctx := context.Background()

	result, err := svc.EvaluateAlerts(ctx, "s1", day(7))
	if err != nil {
		t.Fatalf("EvaluateAlerts: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Alerts = %d, want 1", len(result))
	}
	a := result[0]
	if a.PolicyID != alerts.PolicyRiskLoad || a.Status != models.AlertOpen {
		t.Errorf("Alert = %+v, want open risk_load", a)
	}
	if a.Severity != models.SeverityError {
		t.Errorf("Severity = %s, want error above the band", a.Severity)
	}
	if !almostEqual(a.TriggeringValue, 1.6) {
		t.Errorf("TriggeringValue = %v, want 1.6", a.TriggeringValue)
	}

	// Unchanged history: the second run returns the identical set.
	again, err := svc.EvaluateAlerts(ctx, "s1", day(7))
	if err != nil {
		t.Fatalf("Second EvaluateAlerts: %v", err)
	}
	if len(again) != 1 || again[0].ID != a.ID || again[0].Status != a.Status {
		t.Errorf("Re-evaluation changed the alert set: %+v", again)
	}
}

func TestService_InputValidation(t *testing.T) {
	svc := newTestService(t, &memorySource{})
	ctx := context.Background()

	if _, err := svc.GetBuckets(ctx, "s1", "nope", day(1), day(2), models.GranularityDay); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("Unknown metric: %v, want ErrInvalidConfig", err)
	}
	if _, err := svc.GetWorkloadSeries(ctx, "s1", day(5), day(1), 0, 0); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("Inverted range: %v, want ErrInvalidConfig", err)
	}
	if _, err := svc.GetWorkloadSeries(ctx, "s1", day(1), day(5), 20, 28); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("Acute window out of bounds: %v, want ErrInvalidConfig", err)
	}
	if _, err := svc.GetRolling(ctx, "s1", catalog.MetricHRV, 0, day(1), day(2)); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("Zero window: %v, want ErrInvalidConfig", err)
	}
	if _, err := svc.GetTrends(ctx, "s1", []string{"nope"}, day(1)); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("Unknown trend metric: %v, want ErrInvalidConfig", err)
	}
}

func TestService_BucketsPassThrough(t *testing.T) {
	source := &memorySource{subjects: []string{"s1"}}
	source.addObservation("s1", catalog.MetricHRV, 1, 60)
	source.addObservation("s1", catalog.MetricHRV, 2, 72)

	svc := newTestService(t, source)

	got, err := svc.GetBuckets(context.Background(), "s1", catalog.MetricHRV, day(1), day(2), models.GranularityDay)
	if err != nil {
		t.Fatalf("GetBuckets: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Buckets = %d, want 2", len(got))
	}
	if got[1].DeltaPrevPct == nil || *got[1].DeltaPrevPct != 20.0 {
		t.Errorf("DeltaPrevPct = %v, want 20.00", got[1].DeltaPrevPct)
	}
}

func newTestService(t *testing.T, source *memorySource) *Service {
	t.Helper()

	cat := catalog.Default()
	scorer, err := readiness.NewScorer(cat, readiness.Config{})
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	engine := alerts.NewEngine(alerts.NewMemoryStore(), redisAdapter.NewLocalLockFactory(), nil, nil)

	svc, err := NewService(source, cat, scorer, engine, alerts.Builtin(), 0, 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

// memorySource is an in-memory Source seeded per test.
type memorySource struct {
	observations []models.Observation
	attendance   []models.AttendanceRecord
	subjects     []string
}

func (m *memorySource) addObservation(subjectID, metricKey string, d int, value float64) {
	m.observations = append(m.observations, models.Observation{
		Date:      day(d),
		SubjectID: subjectID,
		MetricKey: metricKey,
		Value:     value,
	})
}

func (m *memorySource) addSession(subjectID string, d int, rpe, minutes float64) {
	m.attendance = append(m.attendance, models.AttendanceRecord{
		Date:        day(d),
		SubjectID:   subjectID,
		SessionType: models.SessionTraining,
		RPEPost:     rpe,
		Minutes:     minutes,
	})
}

func (m *memorySource) Observations(ctx context.Context, subjectID string, metricKeys []string, from, to time.Time) ([]models.Observation, error) {
	keys := make(map[string]bool, len(metricKeys))
	for _, key := range metricKeys {
		keys[key] = true
	}
	var out []models.Observation
	for _, o := range m.observations {
		if o.SubjectID != subjectID || !keys[o.MetricKey] {
			continue
		}
		if inRange(o.Date, from, to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memorySource) Attendance(ctx context.Context, subjectID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, r := range m.attendance {
		if r.SubjectID == subjectID && inRange(r.Date, from, to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memorySource) Subjects(ctx context.Context) ([]string, error) {
	return m.subjects, nil
}

func inRange(date, from, to time.Time) bool {
	d := models.Day(date)
	return !d.Before(models.Day(from)) && !d.After(models.Day(to))
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
