package redis

import "context"

// SubjectLock defines interface for distributed per-subject locking
// This allows swapping implementations (Redis, PostgreSQL, etcd, etc.)
type SubjectLock interface {
	// TryAcquire attempts to acquire exclusive lock for subject
	// Returns true if lock was acquired, false if already locked
	TryAcquire(ctx context.Context) (bool, error)

	// Release releases the lock
	Release(ctx context.Context) error

	// CheckLockHeld verifies if we still hold the lock
	CheckLockHeld(ctx context.Context) (bool, error)

	// GetSubjectID returns the subject ID this lock is for
	GetSubjectID() string
}
