package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/alerts"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/analytics"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/archive"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/logger"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// archiveTrailingDays is re-archived on every run so late-arriving
// records still reach the archive; the replace-keyed tables absorb the
// duplicates.
const archiveTrailingDays = 7

// readinessCacheTTL keeps the latest score through one missed run.
const readinessCacheTTL = 48 * time.Hour

// Cache stores each subject's latest readiness score for dashboards
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// EvaluationWorker re-evaluates every subject once per day: alert
// policies first, then derived-series archival and the readiness cache.
// Subjects are independent and fan out over a bounded pool.
type EvaluationWorker struct {
	service     *analytics.Service
	events      archive.Buffer // optional
	cache       Cache          // optional
	concurrency int
}

// NewEvaluationWorker creates nightly evaluation worker. events and
// cache may be nil, which disables archival and score caching.
func NewEvaluationWorker(service *analytics.Service, events archive.Buffer, cache Cache, concurrency int) *EvaluationWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &EvaluationWorker{
		service:     service,
		events:      events,
		cache:       cache,
		concurrency: concurrency,
	}
}

// Name returns worker name
func (ew *EvaluationWorker) Name() string {
	return "nightly_evaluation"
}

// Run evaluates yesterday, the most recent day with complete data.
// Called once per day by pkg/worker.DailyWorker.
func (ew *EvaluationWorker) Run(ctx context.Context) error {
	evalDate := models.Day(time.Now()).AddDate(0, 0, -1)
	return ew.RunFor(ctx, evalDate)
}

// RunFor evaluates all subjects for one evaluation date.
func (ew *EvaluationWorker) RunFor(ctx context.Context, evalDate time.Time) error {
	evalDate = models.Day(evalDate)

	subjects, err := ew.service.Subjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subjects: %w", err)
	}

	logger.Info("nightly evaluation starting",
		zap.Time("eval_date", evalDate),
		zap.Int("subjects", len(subjects)),
		zap.Int("concurrency", ew.concurrency),
	)

	var (
		mu        sync.Mutex
		evaluated int
		skipped   int
		failed    int
	)

	sem := make(chan struct{}, ew.concurrency)
	var wg sync.WaitGroup

	for _, subjectID := range subjects {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := ew.evaluateSubject(ctx, id, evalDate)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				evaluated++
			case errors.Is(err, alerts.ErrSubjectLocked):
				// Another pod is already on this subject.
				logger.Debug("subject evaluation skipped",
					zap.String("subject_id", id),
				)
				skipped++
			default:
				logger.Warn("subject evaluation failed",
					zap.String("subject_id", id),
					zap.Error(err),
				)
				failed++
			}
		}(subjectID)
	}

	wg.Wait()

	logger.Info("nightly evaluation finished",
		zap.Time("eval_date", evalDate),
		zap.Int("evaluated", evaluated),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	if failed > 0 {
		return fmt.Errorf("evaluation failed for %d of %d subjects", failed, len(subjects))
	}
	return nil
}

// evaluateSubject runs one subject's daily cycle.
func (ew *EvaluationWorker) evaluateSubject(ctx context.Context, subjectID string, evalDate time.Time) error {
	if _, err := ew.service.EvaluateAlerts(ctx, subjectID, evalDate); err != nil {
		return err
	}

	// Archive and cache failures do not undo a completed evaluation.
	if err := ew.archiveDerived(ctx, subjectID, evalDate); err != nil {
		logger.Warn("failed to archive derived series",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}

	return nil
}

// archiveDerived records the trailing workload and readiness series and
// refreshes the subject's cached readiness score.
func (ew *EvaluationWorker) archiveDerived(ctx context.Context, subjectID string, evalDate time.Time) error {
	from := evalDate.AddDate(0, 0, -(archiveTrailingDays - 1))

	series, err := ew.service.GetWorkloadSeries(ctx, subjectID, from, evalDate, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to build workload series: %w", err)
	}

	points, err := ew.service.GetReadiness(ctx, subjectID, from, evalDate)
	if err != nil {
		return fmt.Errorf("failed to build readiness series: %w", err)
	}

	if ew.events != nil {
		for i := range series.Loads {
			load := series.Loads[i]
			row := &archive.WorkloadRow{
				Date:        load.Date,
				SubjectID:   load.SubjectID,
				SRPE:        load.SRPE,
				HasActivity: load.HasActivity,
			}
			if i < len(series.ACWR) {
				row.Acute = series.ACWR[i].Acute
				row.Chronic = series.ACWR[i].Chronic
				row.Ratio = series.ACWR[i].Ratio
				row.Flag = string(series.ACWR[i].Flag)
			}
			if err := ew.events.Add(row); err != nil {
				return fmt.Errorf("failed to buffer workload row: %w", err)
			}
		}

		for _, point := range points {
			row := &archive.ReadinessRow{
				Date:        point.Date,
				SubjectID:   point.SubjectID,
				CompositeZ:  point.CompositeZ,
				Score:       point.Score,
				MetricsUsed: point.MetricsUsed,
			}
			if err := ew.events.Add(row); err != nil {
				return fmt.Errorf("failed to buffer readiness row: %w", err)
			}
		}
	}

	ew.cacheLatestReadiness(ctx, subjectID, points)
	return nil
}

// cacheLatestReadiness publishes the newest available score. Dates
// without a score leave the previous cache entry in place.
func (ew *EvaluationWorker) cacheLatestReadiness(ctx context.Context, subjectID string, points []models.ReadinessPoint) {
	if ew.cache == nil {
		return
	}

	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Score == nil {
			continue
		}
		key := fmt.Sprintf("readiness:latest:%s", subjectID)
		value := fmt.Sprintf("%.1f", *points[i].Score)
		if err := ew.cache.Set(ctx, key, value, readinessCacheTTL).Err(); err != nil {
			logger.Warn("failed to cache readiness score",
				zap.String("subject_id", subjectID),
				zap.Error(err),
			)
		}
		return
	}
}
