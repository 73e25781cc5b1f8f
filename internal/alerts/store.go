package alerts

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/models"
)

var (
	// ErrAlertNotFound reports an unknown alert id.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrInvalidTransition reports a lifecycle move the state machine
	// does not allow, such as acknowledging a resolved alert.
	ErrInvalidTransition = errors.New("invalid alert transition")
)

// Store persists alert state. Open must be atomic against the
// at-most-one-active invariant per (subject, policy): a second open for
// an already active key reports false with no error.
type Store interface {
	// Active returns the open or acknowledged alert for the key, nil
	// when none exists.
	Active(ctx context.Context, subjectID, policyID string) (*models.Alert, error)
	// LastResolved returns the most recently closed alert for the key,
	// nil when none exists.
	LastResolved(ctx context.Context, subjectID, policyID string) (*models.Alert, error)
	// Open inserts a new open alert unless the key already has an
	// active one. Reports whether the insert happened.
	Open(ctx context.Context, alert *models.Alert) (bool, error)
	// Get returns an alert by id.
	Get(ctx context.Context, alertID string) (*models.Alert, error)
	// Acknowledge moves an open alert to acknowledged and reports
	// whether the state changed. Acknowledging an acknowledged alert is
	// a no-op; a resolved one is an invalid transition.
	Acknowledge(ctx context.Context, alertID string, at time.Time) (*models.Alert, bool, error)
	// Resolve closes an open or acknowledged alert and reports whether
	// the state changed. Resolving a resolved alert is a no-op.
	Resolve(ctx context.Context, alertID string, at time.Time) (*models.Alert, bool, error)
	// ListBySubject returns all alerts for a subject, oldest first.
	ListBySubject(ctx context.Context, subjectID string) ([]models.Alert, error)
}

// MemoryStore is the in-process Store used by tests and single-node
// deployments without Postgres.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*models.Alert
	byKey map[string][]*models.Alert
}

// NewMemoryStore creates new in-memory alert store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*models.Alert),
		byKey: make(map[string][]*models.Alert),
	}
}

func storeKey(subjectID, policyID string) string {
	return subjectID + "/" + policyID
}

// Active returns the open or acknowledged alert for the key.
func (s *MemoryStore) Active(ctx context.Context, subjectID, policyID string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, alert := range s.byKey[storeKey(subjectID, policyID)] {
		if alert.Active() {
			return copyAlert(alert), nil
		}
	}
	return nil, nil
}

// LastResolved returns the most recently closed alert for the key.
func (s *MemoryStore) LastResolved(ctx context.Context, subjectID, policyID string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.Alert
	for _, alert := range s.byKey[storeKey(subjectID, policyID)] {
		if alert.Status != models.AlertResolved || alert.ClosedAt == nil {
			continue
		}
		if last == nil || alert.ClosedAt.After(*last.ClosedAt) {
			last = alert
		}
	}
	if last == nil {
		return nil, nil
	}
	return copyAlert(last), nil
}

// Open inserts a new open alert unless the key already has an active one.
func (s *MemoryStore) Open(ctx context.Context, alert *models.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(alert.SubjectID, alert.PolicyID)
	for _, existing := range s.byKey[key] {
		if existing.Active() {
			return false, nil
		}
	}

	stored := copyAlert(alert)
	s.byID[stored.ID] = stored
	s.byKey[key] = append(s.byKey[key], stored)
	return true, nil
}

// Get returns an alert by id.
func (s *MemoryStore) Get(ctx context.Context, alertID string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.byID[alertID]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return copyAlert(alert), nil
}

// Acknowledge moves an open alert to acknowledged.
func (s *MemoryStore) Acknowledge(ctx context.Context, alertID string, at time.Time) (*models.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.byID[alertID]
	if !ok {
		return nil, false, ErrAlertNotFound
	}

	switch alert.Status {
	case models.AlertOpen:
		alert.Status = models.AlertAcknowledged
		alert.AcknowledgedAt = &at
		alert.UpdatedAt = at
		return copyAlert(alert), true, nil
	case models.AlertAcknowledged:
		// already acknowledged, keep as-is
		return copyAlert(alert), false, nil
	default:
		return nil, false, ErrInvalidTransition
	}
}

// Resolve closes an open or acknowledged alert.
func (s *MemoryStore) Resolve(ctx context.Context, alertID string, at time.Time) (*models.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.byID[alertID]
	if !ok {
		return nil, false, ErrAlertNotFound
	}

	if !alert.Active() {
		return copyAlert(alert), false, nil
	}

	alert.Status = models.AlertResolved
	alert.ClosedAt = &at
	alert.UpdatedAt = at
	return copyAlert(alert), true, nil
}

// ListBySubject returns all alerts for a subject, oldest first.
func (s *MemoryStore) ListBySubject(ctx context.Context, subjectID string) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var alerts []models.Alert
	for _, alert := range s.byID {
		if alert.SubjectID == subjectID {
			alerts = append(alerts, *copyAlert(alert))
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].OpenedAt.Equal(alerts[j].OpenedAt) {
			return alerts[i].ID < alerts[j].ID
		}
		return alerts[i].OpenedAt.Before(alerts[j].OpenedAt)
	})
	return alerts, nil
}

func copyAlert(alert *models.Alert) *models.Alert {
	c := *alert
	if alert.AcknowledgedAt != nil {
		at := *alert.AcknowledgedAt
		c.AcknowledgedAt = &at
	}
	if alert.ClosedAt != nil {
		at := *alert.ClosedAt
		c.ClosedAt = &at
	}
	return &c
}
