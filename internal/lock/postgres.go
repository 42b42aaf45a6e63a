package lock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// advisoryNamespace keeps our advisory keys apart from other users of the
// same database.
const advisoryNamespace = "truststack:project:"

// PostgresLocker uses session-level advisory locks so several server
// processes sharing a workspace serialize on the same project.
type PostgresLocker struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresLocker creates a PostgresLocker.
func NewPostgresLocker(pool *pgxpool.Pool, timeout time.Duration) *PostgresLocker {
	return &PostgresLocker{pool: pool, timeout: timeout}
}

func (l *PostgresLocker) Lock(ctx context.Context, projectID string) (Unlock, error) {
	// Advisory locks belong to the session, so hold one connection until unlock.
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, ctxError(projectID, fmt.Errorf("acquire connection: %w", err))
	}
	key := advisoryNamespace + projectID

	err = poll(ctx, projectID, l.timeout, func(ctx context.Context) (bool, error) {
		var ok bool
		err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtextextended($1, 0))", key).Scan(&ok)
		return ok, err
	})
	if err != nil {
		conn.Release()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.Exec(releaseCtx, "SELECT pg_advisory_unlock(hashtextextended($1, 0))", key); err != nil {
				// Closing the session drops the lock.
				log.Printf("lock: advisory unlock for %s failed, closing connection: %v", projectID, err)
				conn.Conn().Close(releaseCtx)
			}
			conn.Release()
		})
	}, nil
}
