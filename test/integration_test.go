package test

import (
	"context"
	"os"
	"testing"
	"time"

	redisAdapter "github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/adapters/redis"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/alerts"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/analytics"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/observations"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/readiness"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/logger"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/test/testdb"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

// TestAnalyticsFlow runs the full pipeline against a real database:
// ingest raw data, read every derived series, then drive an alert
// through its lifecycle.
func TestAnalyticsFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := testdb.Setup(t)
	ctx := context.Background()

	repo := observations.NewRepository(tdb.DB)
	store := alerts.NewPostgresStore(tdb.DB)
	engine := alerts.NewEngine(store, redisAdapter.NewLocalLockFactory(), nil, nil)

	cat := catalog.Default()
	scorer, err := readiness.NewScorer(cat, readiness.Config{})
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}

	service, err := analytics.NewService(repo, cat, scorer, engine, alerts.Builtin(), 0, 0)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	const subjectID = "athlete-9"
	// 2025-03-31 is a Monday, so the final seeded day starts its own week.
	evalDate := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return evalDate.AddDate(0, 0, offset) }

	t.Run("ingest raw data", func(t *testing.T) {
		// Three steady weeks at 300 sRPE per day, then a doubled final
		// week: acute 600, chronic 375, ratio 1.6 at the evaluation date.
		var sessions []models.AttendanceRecord
		for d := -27; d <= -7; d++ {
			sessions = append(sessions, models.AttendanceRecord{
				Date: day(d), SubjectID: subjectID,
				SessionType: models.SessionTraining, RPEPost: 5, Minutes: 60,
			})
		}
		for d := -6; d <= 0; d++ {
			sessions = append(sessions, models.AttendanceRecord{
				Date: day(d), SubjectID: subjectID,
				SessionType: models.SessionTraining, RPEPost: 10, Minutes: 60,
			})
		}
		if err := repo.SaveAttendance(ctx, sessions); err != nil {
			t.Fatalf("SaveAttendance: %v", err)
		}

		hrv := []float64{60, 70, 80, 70}
		var obs []models.Observation
		for i, v := range hrv {
			obs = append(obs, models.Observation{
				Date: day(i - 3), SubjectID: subjectID,
				MetricKey: catalog.MetricHRV, Unit: "ms", Source: "wearable", Value: v,
			})
		}
		if err := repo.SaveObservations(ctx, obs); err != nil {
			t.Fatalf("SaveObservations: %v", err)
		}

		if n := tdb.Count(t, "SELECT COUNT(*) FROM attendance"); n != 28 {
			t.Fatalf("attendance rows = %d, want 28", n)
		}
		if n := tdb.Count(t, "SELECT COUNT(*) FROM observations"); n != 4 {
			t.Fatalf("observation rows = %d, want 4", n)
		}
	})

	t.Run("bucket aggregation", func(t *testing.T) {
		buckets, err := service.GetBuckets(ctx, subjectID, catalog.MetricHRV, day(-3), day(0), models.GranularityDay)
		if err != nil {
			t.Fatalf("GetBuckets: %v", err)
		}
		if len(buckets) != 4 {
			t.Fatalf("buckets = %d, want 4", len(buckets))
		}
		if buckets[0].Avg == nil || *buckets[0].Avg != 60 {
			t.Errorf("first bucket avg = %v, want 60", buckets[0].Avg)
		}
		if buckets[0].DeltaPrevPct != nil {
			t.Errorf("first bucket delta must be nil, got %v", *buckets[0].DeltaPrevPct)
		}
		// (70 - 60) / 60 * 100 rounded to 2 decimals
		if buckets[1].DeltaPrevPct == nil || *buckets[1].DeltaPrevPct != 16.67 {
			t.Errorf("second bucket delta = %v, want 16.67", buckets[1].DeltaPrevPct)
		}
	})

	t.Run("workload series and ratio", func(t *testing.T) {
		series, err := service.GetWorkloadSeries(ctx, subjectID, day(-6), day(0), 0, 0)
		if err != nil {
			t.Fatalf("GetWorkloadSeries: %v", err)
		}
		if len(series.Loads) != 7 {
			t.Fatalf("loads = %d, want 7", len(series.Loads))
		}
		for _, load := range series.Loads {
			if load.SRPE != 600 || !load.HasActivity {
				t.Errorf("load on %s = %v (activity %v), want 600 with activity", load.Date.Format("2006-01-02"), load.SRPE, load.HasActivity)
			}
		}

		last := series.ACWR[len(series.ACWR)-1]
		if last.Ratio == nil || *last.Ratio != 1.6 {
			t.Fatalf("final ratio = %v, want 1.6", last.Ratio)
		}
		if last.Flag != models.ACWRFlagHigh {
			t.Errorf("final flag = %q, want high", last.Flag)
		}
	})

	t.Run("uniform week monotony", func(t *testing.T) {
		// The week of March 10 holds seven identical 300 sRPE days.
		weekStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		points, err := service.GetMonotonyStrain(ctx, subjectID, weekStart, weekStart.AddDate(0, 0, 6))
		if err != nil {
			t.Fatalf("GetMonotonyStrain: %v", err)
		}
		if len(points) != 1 {
			t.Fatalf("weeks = %d, want 1", len(points))
		}

		week := points[0]
		if week.PartialWeek {
			t.Error("complete week flagged as partial")
		}
		if !week.UniformLoad {
			t.Error("identical daily loads must set the uniform flag")
		}
		if week.Monotony != nil || week.Strain != nil {
			t.Errorf("uniform week monotony/strain = %v/%v, want nil/nil", week.Monotony, week.Strain)
		}
		if week.TotalLoad != 2100 {
			t.Errorf("weekly total = %v, want 2100", week.TotalLoad)
		}
	})

	t.Run("readiness score", func(t *testing.T) {
		points, err := service.GetReadiness(ctx, subjectID, day(0), day(0))
		if err != nil {
			t.Fatalf("GetReadiness: %v", err)
		}
		if len(points) != 1 {
			t.Fatalf("points = %d, want 1", len(points))
		}

		point := points[0]
		if point.MetricsUsed != 1 {
			t.Fatalf("metrics used = %d, want 1", point.MetricsUsed)
		}
		// Current HRV sits exactly on the baseline mean of 60/70/80.
		if point.Score == nil || *point.Score != 50 {
			t.Errorf("score = %v, want 50", point.Score)
		}
	})

	t.Run("trend anchored at latest observation", func(t *testing.T) {
		points, err := service.GetTrends(ctx, subjectID, []string{catalog.MetricHRV}, day(0))
		if err != nil {
			t.Fatalf("GetTrends: %v", err)
		}
		if len(points) != 1 {
			t.Fatalf("points = %d, want 1", len(points))
		}

		point := points[0]
		if !point.AsOf.Equal(day(0)) {
			t.Errorf("anchor = %s, want %s", point.AsOf.Format("2006-01-02"), day(0).Format("2006-01-02"))
		}
		if point.Trend7d != nil {
			t.Errorf("trend with empty prior window = %v, want nil", *point.Trend7d)
		}
		if point.ZScore == nil || *point.ZScore != 0 {
			t.Errorf("zscore = %v, want 0", point.ZScore)
		}
		if point.Anomaly {
			t.Error("baseline-mean value flagged as anomaly")
		}
	})

	t.Run("alert lifecycle", func(t *testing.T) {
		result, err := service.EvaluateAlerts(ctx, subjectID, day(0))
		if err != nil {
			t.Fatalf("EvaluateAlerts: %v", err)
		}
		if len(result) != 1 {
			t.Fatalf("alerts = %d, want 1", len(result))
		}

		opened := result[0]
		if opened.PolicyID != alerts.PolicyRiskLoad || opened.Status != models.AlertOpen {
			t.Fatalf("unexpected alert: %+v", opened)
		}
		if opened.Severity != models.SeverityError {
			t.Errorf("severity = %q, want error for ratio 1.6", opened.Severity)
		}

		// Re-evaluating the same date produces no second alert.
		again, err := service.EvaluateAlerts(ctx, subjectID, day(0))
		if err != nil {
			t.Fatalf("EvaluateAlerts repeat: %v", err)
		}
		if len(again) != 1 || again[0].ID != opened.ID {
			t.Fatalf("re-evaluation changed the alert set: %+v", again)
		}

		acked, err := service.AcknowledgeAlert(ctx, opened.ID)
		if err != nil {
			t.Fatalf("AcknowledgeAlert: %v", err)
		}
		if acked.Status != models.AlertAcknowledged {
			t.Fatalf("status after ack = %q", acked.Status)
		}

		// One rest day brings the ratio back inside the band, so the next
		// evaluation auto-resolves the acknowledged alert.
		final, err := service.EvaluateAlerts(ctx, subjectID, day(1))
		if err != nil {
			t.Fatalf("EvaluateAlerts next day: %v", err)
		}
		if len(final) != 1 {
			t.Fatalf("alerts = %d, want 1", len(final))
		}
		if final[0].Status != models.AlertResolved {
			t.Fatalf("status after clean day = %q, want resolved", final[0].Status)
		}
		if final[0].ClosedAt == nil || !final[0].ClosedAt.Equal(day(1)) {
			t.Errorf("closed_at = %v, want %s", final[0].ClosedAt, day(1).Format("2006-01-02"))
		}
	})
}
