package lock

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var _ Locker = (*Advisory)(nil)

// Advisory takes a PostgreSQL session-level advisory lock, so replicas
// sharing a database serialize on the same key. The lock holds a pooled
// connection until released.
type Advisory struct {
	pool *pgxpool.Pool
}

// NewAdvisory returns an Advisory locker over pool.
func NewAdvisory(pool *pgxpool.Pool) *Advisory {
	return &Advisory{pool: pool}
}

// Lock implements Locker.
func (a *Advisory) Lock(ctx context.Context, key int64) (func(), error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire connection")
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		conn.Release()
		return nil, errors.Wrapf(err, "advisory lock %d", key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be canceled; unlock must still run.
			if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", key); err != nil {
				zctx.From(ctx).Warn("Advisory unlock failed, dropping connection",
					zap.Int64("key", key),
					zap.Error(err),
				)
				// Closing the session releases every lock it holds.
				_ = conn.Conn().Close(context.Background())
			}
			conn.Release()
		})
	}, nil
}
