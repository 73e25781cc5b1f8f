package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisAdapter "github.com/cacciapuotif-cpu/football-club-platform-sub001/internal/adapters/redis"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/archive"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/logger"
	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

// ErrSubjectLocked reports that another evaluator currently holds the
// subject's lock.
var ErrSubjectLocked = errors.New("subject evaluation already in progress")

// Lifecycle transitions recorded to the archive.
const (
	TransitionOpened       = "opened"
	TransitionAcknowledged = "acknowledged"
	TransitionResolved     = "resolved"
)

// Notifier receives alert lifecycle notifications (Telegram in
// production)
type Notifier interface {
	AlertOpened(ctx context.Context, alert *models.Alert) error
	AlertResolved(ctx context.Context, alert *models.Alert) error
}

// Engine drives the alert lifecycle from daily indicator snapshots.
// Evaluation is deterministic over its inputs: re-running the same
// snapshot produces no new transitions.
type Engine struct {
	store    Store
	locks    redisAdapter.LockFactory
	events   archive.Buffer // optional
	notifier Notifier       // optional
}

// NewEngine creates alert engine. events and notifier may be nil, which
// disables archiving and notifications respectively.
func NewEngine(store Store, locks redisAdapter.LockFactory, events archive.Buffer, notifier Notifier) *Engine {
	return &Engine{
		store:    store,
		locks:    locks,
		events:   events,
		notifier: notifier,
	}
}

// Evaluate runs every policy against the subject's snapshot for one
// evaluation date and returns the subject's full alert set afterwards.
// Concurrent evaluations of the same subject are serialized through the
// lock factory; losing the race reports ErrSubjectLocked.
func (e *Engine) Evaluate(ctx context.Context, subjectID string, date time.Time, policies []models.AlertPolicy, snap *Snapshot) ([]models.Alert, error) {
	if snap == nil {
		return nil, fmt.Errorf("evaluation snapshot is required: %w", models.ErrInvalidConfig)
	}
	day := models.Day(date)

	lock := e.locks.CreateSubjectLock(subjectID)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire subject lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("subject %s: %w", subjectID, ErrSubjectLocked)
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("failed to release subject lock",
				zap.String("subject_id", subjectID),
				zap.Error(err),
			)
		}
	}()

	for i := range policies {
		if err := e.evaluatePolicy(ctx, subjectID, day, &policies[i], snap); err != nil {
			return nil, fmt.Errorf("policy %s: %w", policies[i].ID, err)
		}
	}

	return e.store.ListBySubject(ctx, subjectID)
}

// evaluatePolicy applies one policy's transition rules for one day.
func (e *Engine) evaluatePolicy(ctx context.Context, subjectID string, day time.Time, policy *models.AlertPolicy, snap *Snapshot) error {
	active, err := e.store.Active(ctx, subjectID, policy.ID)
	if err != nil {
		return fmt.Errorf("failed to load active alert: %w", err)
	}

	trig, holds := snap.match(policy, day)

	if active != nil {
		if holds {
			// Condition persists while an alert is active: no second
			// open and no severity escalation.
			logger.Debug("alert condition persists, deduplicated",
				zap.String("subject_id", subjectID),
				zap.String("policy_id", policy.ID),
				zap.String("alert_id", active.ID),
			)
			return nil
		}
		if snap.cleanStreak(policy, day, policy.ResolveCycles) >= policy.ResolveCycles {
			resolved, changed, err := e.store.Resolve(ctx, active.ID, day)
			if err != nil {
				return fmt.Errorf("failed to resolve alert: %w", err)
			}
			if !changed {
				// Another evaluator closed it first.
				return nil
			}
			logger.Info("alert auto-resolved",
				zap.String("subject_id", subjectID),
				zap.String("policy_id", policy.ID),
				zap.String("alert_id", resolved.ID),
			)
			e.recordEvent(resolved, TransitionResolved, day)
			e.notifyResolved(ctx, resolved)
		}
		return nil
	}

	if !holds || snap.streak(policy, day) < policy.ConsecutiveDays {
		return nil
	}

	if policy.CooldownHours > 0 {
		last, err := e.store.LastResolved(ctx, subjectID, policy.ID)
		if err != nil {
			return fmt.Errorf("failed to load resolution history: %w", err)
		}
		if last != nil && last.ClosedAt != nil && day.Sub(*last.ClosedAt) < policy.Cooldown() {
			logger.Debug("alert suppressed by cooldown",
				zap.String("subject_id", subjectID),
				zap.String("policy_id", policy.ID),
				zap.Time("last_closed_at", *last.ClosedAt),
			)
			return nil
		}
	}

	metric := trig.metric
	if metric == "" {
		metric = string(policy.Indicator)
	}
	alert := &models.Alert{
		ID:               uuid.NewString(),
		SubjectID:        subjectID,
		PolicyID:         policy.ID,
		Status:           models.AlertOpen,
		Severity:         policy.SeverityFor(trig.value),
		TriggeringMetric: metric,
		TriggeringValue:  trig.value,
		OpenedAt:         day,
		UpdatedAt:        day,
	}

	inserted, err := e.store.Open(ctx, alert)
	if err != nil {
		return fmt.Errorf("failed to open alert: %w", err)
	}
	if !inserted {
		// Lost the insert race to another evaluator; its alert stands.
		return nil
	}

	logger.Info("alert opened",
		zap.String("subject_id", subjectID),
		zap.String("policy_id", policy.ID),
		zap.String("alert_id", alert.ID),
		zap.String("severity", string(alert.Severity)),
		zap.String("metric", alert.TriggeringMetric),
		zap.Float64("value", alert.TriggeringValue),
	)
	e.recordEvent(alert, TransitionOpened, day)
	e.notifyOpened(ctx, alert)
	return nil
}

// Acknowledge marks an open alert as seen by a human. Acknowledging an
// already acknowledged alert is a no-op; a resolved one is an invalid
// transition.
func (e *Engine) Acknowledge(ctx context.Context, alertID string) (*models.Alert, error) {
	alert, changed, err := e.store.Acknowledge(ctx, alertID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if changed {
		logger.Info("alert acknowledged",
			zap.String("alert_id", alert.ID),
			zap.String("subject_id", alert.SubjectID),
			zap.String("policy_id", alert.PolicyID),
		)
		e.recordEvent(alert, TransitionAcknowledged, *alert.AcknowledgedAt)
	}
	return alert, nil
}

// Resolve closes an alert explicitly. Resolving an already resolved
// alert is a no-op.
func (e *Engine) Resolve(ctx context.Context, alertID string) (*models.Alert, error) {
	alert, changed, err := e.store.Resolve(ctx, alertID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if changed {
		logger.Info("alert resolved",
			zap.String("alert_id", alert.ID),
			zap.String("subject_id", alert.SubjectID),
			zap.String("policy_id", alert.PolicyID),
		)
		e.recordEvent(alert, TransitionResolved, *alert.ClosedAt)
		e.notifyResolved(ctx, alert)
	}
	return alert, nil
}

// ListBySubject returns all alerts for a subject, oldest first.
func (e *Engine) ListBySubject(ctx context.Context, subjectID string) ([]models.Alert, error) {
	return e.store.ListBySubject(ctx, subjectID)
}

// Get returns an alert by id.
func (e *Engine) Get(ctx context.Context, alertID string) (*models.Alert, error) {
	return e.store.Get(ctx, alertID)
}

func (e *Engine) recordEvent(alert *models.Alert, transition string, at time.Time) {
	if e.events == nil {
		return
	}
	row := &archive.AlertEventRow{
		Timestamp:       at,
		AlertID:         alert.ID,
		SubjectID:       alert.SubjectID,
		PolicyID:        alert.PolicyID,
		Transition:      transition,
		Status:          string(alert.Status),
		Severity:        string(alert.Severity),
		TriggeringValue: alert.TriggeringValue,
	}
	if err := e.events.Add(row); err != nil {
		logger.Warn("failed to archive alert event",
			zap.String("alert_id", alert.ID),
			zap.String("transition", transition),
			zap.Error(err),
		)
	}
}

func (e *Engine) notifyOpened(ctx context.Context, alert *models.Alert) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.AlertOpened(ctx, alert); err != nil {
		logger.Warn("failed to send alert notification",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	}
}

func (e *Engine) notifyResolved(ctx context.Context, alert *models.Alert) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.AlertResolved(ctx, alert); err != nil {
		logger.Warn("failed to send alert notification",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	}
}
