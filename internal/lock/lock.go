// Package lock serializes writers of the same project. Different projects
// never contend.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
)

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

// Locker grants exclusive access to one project at a time.
type Locker interface {
	Lock(ctx context.Context, projectID string) (Unlock, error)
}

const pollInterval = 25 * time.Millisecond

// ctxError reports a wait that ended because ctx did.
func ctxError(projectID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewConcurrencyError(projectID, domain.ErrLockTimeout)
	}
	return domain.NewConcurrencyError(projectID, err)
}

// poll calls try until it reports success, ctx ends or timeout elapses. A
// non-positive timeout waits for ctx only.
func poll(ctx context.Context, projectID string, timeout time.Duration, try func(context.Context) (bool, error)) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := try(ctx)
		if err != nil {
			return domain.NewConcurrencyError(projectID, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return domain.NewConcurrencyError(projectID, domain.ErrLockTimeout)
		case <-ctx.Done():
			return ctxError(projectID, ctx.Err())
		}
	}
}
