package redis

import (
	"context"
	"sync"

	"github.com/amyangfei/redlock-go/v3/redlock"
)

// LockFactory creates distributed locks for subjects
type LockFactory interface {
	CreateSubjectLock(subjectID string) SubjectLock
}

// RedisLockFactory creates Redis-based distributed locks
type RedisLockFactory struct {
	lockManager *redlock.RedLock
}

// NewRedisLockFactory creates new Redis lock factory
func NewRedisLockFactory(lockManager *redlock.RedLock) *RedisLockFactory {
	return &RedisLockFactory{
		lockManager: lockManager,
	}
}

// CreateSubjectLock creates a distributed lock for specific subject
func (f *RedisLockFactory) CreateSubjectLock(subjectID string) SubjectLock {
	return NewDistributedLock(f.lockManager, subjectID)
}

// LocalLockFactory serializes subjects within a single process. Used
// when Redis is not configured and in tests.
type LocalLockFactory struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLockFactory creates in-process lock factory
func NewLocalLockFactory() *LocalLockFactory {
	return &LocalLockFactory{
		locks: make(map[string]*sync.Mutex),
	}
}

// CreateSubjectLock creates an in-process lock for specific subject
func (f *LocalLockFactory) CreateSubjectLock(subjectID string) SubjectLock {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.locks[subjectID]
	if !ok {
		m = &sync.Mutex{}
		f.locks[subjectID] = m
	}
	return &LocalLock{subjectID: subjectID, mu: m}
}

// LocalLock guards one subject within the process
type LocalLock struct {
	subjectID string
	mu        *sync.Mutex
	held      bool
}

func (l *LocalLock) TryAcquire(ctx context.Context) (bool, error) {
	if l.mu.TryLock() {
		l.held = true
		return true, nil
	}
	return false, nil
}

func (l *LocalLock) Release(ctx context.Context) error {
	if l.held {
		l.held = false
		l.mu.Unlock()
	}
	return nil
}

func (l *LocalLock) CheckLockHeld(ctx context.Context) (bool, error) {
	return l.held, nil
}

func (l *LocalLock) GetSubjectID() string {
	return l.subjectID
}
