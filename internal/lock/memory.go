package lock

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
)

// MemoryLocker is an in-process Locker. It only serializes requests served by
// the same process.
type MemoryLocker struct {
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker creates a MemoryLocker that gives up after timeout.
func NewMemoryLocker(timeout time.Duration) *MemoryLocker {
	return &MemoryLocker{timeout: timeout, slots: make(map[string]*slot)}
}

func (l *MemoryLocker) Lock(ctx context.Context, projectID string) (Unlock, error) {
	s := l.acquire(projectID)

	var deadline <-chan time.Time
	if l.timeout > 0 {
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.release(projectID, s)
			})
		}, nil
	case <-deadline:
		l.release(projectID, s)
		return nil, domain.NewConcurrencyError(projectID, domain.ErrLockTimeout)
	case <-ctx.Done():
		l.release(projectID, s)
		return nil, ctxError(projectID, ctx.Err())
	}
}

func (l *MemoryLocker) acquire(projectID string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[projectID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[projectID] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) release(projectID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, projectID)
	}
}
