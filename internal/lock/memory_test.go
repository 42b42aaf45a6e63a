package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloo-solutions/truststack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireConcurrencyError(t *testing.T, err error, cause error) {
	t.Helper()
	require.Error(t, err)
	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.ErrCodeConcurrency, de.Code)
	assert.ErrorIs(t, err, cause)
}

func TestMemoryLocker_SerializesSameProject(t *testing.T) {
	l := NewMemoryLocker(5 * time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "p1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots, "slots are dropped once nobody waits")
}

func TestMemoryLocker_DifferentProjectsDoNotContend(t *testing.T) {
	l := NewMemoryLocker(50 * time.Millisecond)
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestMemoryLocker_Timeout(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "p")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "p")
	requireConcurrencyError(t, err, domain.ErrLockTimeout)

	unlock()
	unlock() // second call is a no-op

	again, err := l.Lock(ctx, "p")
	require.NoError(t, err)
	again()
}

func TestMemoryLocker_ContextCanceled(t *testing.T) {
	l := NewMemoryLocker(0)
	unlock, err := l.Lock(context.Background(), "p")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "p")
	requireConcurrencyError(t, err, context.Canceled)
}

func TestPoll(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := poll(ctx, "p", time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	err = poll(ctx, "p", 30*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	requireConcurrencyError(t, err, domain.ErrLockTimeout)

	boom := errors.New("boom")
	err = poll(ctx, "p", time.Second, func(context.Context) (bool, error) {
		return false, boom
	})
	requireConcurrencyError(t, err, boom)
}
