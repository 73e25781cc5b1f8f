package buckets

import (
	"testing"
	"time"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/catalog"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func obs(date time.Time, value float64) models.Observation {
	return models.Observation{
		SubjectID: "s1",
		MetricKey: catalog.MetricHRV,
		Date:      date,
		Value:     value,
		Unit:      "ms",
	}
}

func dailyObservations(from time.Time, values []float64) []models.Observation {
	out := make([]models.Observation, 0, len(values))
	for i, v := range values {
		out = append(out, obs(from.AddDate(0, 0, i), v))
	}
	return out
}

func TestAggregator_WeekBoundaries(t *testing.T) {
	a := NewAggregator(catalog.Default())

	// 14 days starting Wednesday 2025-03-05, one observation per day.
	from := day(2025, 3, 5)
	to := day(2025, 3, 18)
	values := make([]float64, 14)
	for i := range values {
		values[i] = 60 + float64(i)
	}

	result, err := a.Build("s1", catalog.MetricHRV, dailyObservations(from, values), from, to, models.GranularityWeek)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("Expected 3 week buckets (partial, full, partial), got %d", len(result))
	}

	wantCounts := []int{5, 7, 2}
	wantStarts := []time.Time{day(2025, 3, 3), day(2025, 3, 10), day(2025, 3, 17)}
	for i, bucket := range result {
		if bucket.Count != wantCounts[i] {
			t.Errorf("bucket[%d].Count = %d, want %d", i, bucket.Count, wantCounts[i])
		}
		if !bucket.BucketStart.Equal(wantStarts[i]) {
			t.Errorf("bucket[%d].BucketStart = %v, want %v", i, bucket.BucketStart, wantStarts[i])
		}
	}
}

func TestAggregator_SingleDayIdentity(t *testing.T) {
	a := NewAggregator(catalog.Default())

	d := day(2025, 4, 10)
	result, err := a.Build("s1", catalog.MetricHRV, []models.Observation{obs(d, 72)}, d, d, models.GranularityDay)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("Expected 1 bucket, got %d", len(result))
	}
	b := result[0]
	if b.Count != 1 || b.Avg == nil || *b.Avg != 72 || *b.Min != 72 || *b.Max != 72 {
		t.Errorf("Single-day bucket should be the identity transform, got %+v", b)
	}
	if b.DeltaPrevPct != nil {
		t.Error("First bucket must have nil delta")
	}
}

func TestAggregator_EmptyBuckets(t *testing.T) {
	a := NewAggregator(catalog.Default())

	from, to := day(2025, 4, 1), day(2025, 4, 3)
	observations := []models.Observation{obs(day(2025, 4, 2), 65)}

	result, err := a.Build("s1", catalog.MetricHRV, observations, from, to, models.GranularityDay)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("Expected 3 day buckets, got %d", len(result))
	}
	empty := result[0]
	if empty.Count != 0 {
		t.Errorf("Empty bucket count = %d, want 0", empty.Count)
	}
	if empty.Avg != nil || empty.Min != nil || empty.Max != nil || empty.DeltaPrevPct != nil {
		t.Error("Empty bucket must carry nil aggregates")
	}
}

func TestAggregator_DeltaPrevPct(t *testing.T) {
	a := NewAggregator(catalog.Default())

	from := day(2025, 4, 1)
	observations := dailyObservations(from, []float64{10, 12, 0, 5})

	result, err := a.Build("s1", catalog.MetricHRV, observations, from, day(2025, 4, 4), models.GranularityDay)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if result[0].DeltaPrevPct != nil {
		t.Error("First bucket delta should be nil")
	}
	if result[1].DeltaPrevPct == nil || *result[1].DeltaPrevPct != 20.0 {
		t.Errorf("Delta day2 = %v, want 20.00", result[1].DeltaPrevPct)
	}
	if result[2].DeltaPrevPct == nil || *result[2].DeltaPrevPct != -100.0 {
		t.Errorf("Delta day3 = %v, want -100.00", result[2].DeltaPrevPct)
	}
	// Previous average is zero, so the ratio is undefined.
	if result[3].DeltaPrevPct != nil {
		t.Errorf("Delta day4 = %v, want nil against zero baseline", *result[3].DeltaPrevPct)
	}
}

func TestAggregator_DeltaRounding(t *testing.T) {
	a := NewAggregator(catalog.Default())

	from := day(2025, 4, 1)
	observations := dailyObservations(from, []float64{3, 4})

	result, err := a.Build("s1", catalog.MetricHRV, observations, from, day(2025, 4, 2), models.GranularityDay)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// (4-3)/3*100 = 33.333... rounds to 33.33.
	if result[1].DeltaPrevPct == nil || *result[1].DeltaPrevPct != 33.33 {
		t.Errorf("Delta = %v, want 33.33", result[1].DeltaPrevPct)
	}
}

func TestAggregator_ExcludesOutOfRange(t *testing.T) {
	a := NewAggregator(catalog.Default())

	d := day(2025, 4, 1)
	observations := []models.Observation{
		obs(d, 65),
		obs(d, 2000), // outside the hrv_ms valid range
	}

	result, err := a.Build("s1", catalog.MetricHRV, observations, d, d, models.GranularityDay)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if result[0].Count != 1 {
		t.Errorf("Count = %d, want 1 after excluding the invalid value", result[0].Count)
	}
	if *result[0].Avg != 65 {
		t.Errorf("Avg = %v, want 65", *result[0].Avg)
	}
}

func TestAggregator_MonthGranularity(t *testing.T) {
	a := NewAggregator(catalog.Default())

	from, to := day(2025, 1, 15), day(2025, 3, 10)
	observations := []models.Observation{
		obs(day(2025, 1, 20), 60),
		obs(day(2025, 2, 5), 64),
		obs(day(2025, 2, 25), 66),
	}

	result, err := a.Build("s1", catalog.MetricHRV, observations, from, to, models.GranularityMonth)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("Expected 3 month buckets, got %d", len(result))
	}
	if !result[0].BucketStart.Equal(day(2025, 1, 1)) {
		t.Errorf("First bucket start = %v, want Jan 1", result[0].BucketStart)
	}
	if result[1].Count != 2 || *result[1].Avg != 65 {
		t.Errorf("February bucket = %+v, want count 2 avg 65", result[1])
	}
	if result[2].Count != 0 {
		t.Errorf("March bucket count = %d, want 0", result[2].Count)
	}
}

func TestAggregator_Rejects(t *testing.T) {
	a := NewAggregator(catalog.Default())
	d := day(2025, 4, 1)

	t.Run("unknown granularity", func(t *testing.T) {
		_, err := a.Build("s1", catalog.MetricHRV, nil, d, d, models.Granularity("hour"))
		if err == nil {
			t.Error("Should reject unknown granularity")
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := a.Build("s1", catalog.MetricHRV, nil, d, d.AddDate(0, 0, -1), models.GranularityDay)
		if err == nil {
			t.Error("Should reject date_from after date_to")
		}
	})
}
