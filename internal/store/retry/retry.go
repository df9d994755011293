// Package retry decorates a store.Store with bounded exponential backoff for
// transient failures. Delays follow Config exactly, without jitter.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/spinzone-api/internal/store"
)

// Config controls the backoff schedule.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig returns three attempts starting at 50ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
	}
}

var _ store.Store = (*Store)(nil)

// Store retries Find, Update and Delete on errors marked store.ErrTransient.
// Insert is attempted once: a request that timed out may still have
// committed, and repeating it could duplicate rows.
type Store struct {
	next store.Store
	cfg  Config
	// onRetry observes every scheduled delay.
	onRetry func(d time.Duration)
}

// Wrap returns next with retries applied.
func Wrap(next store.Store, cfg Config) *Store {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = backoff.DefaultMaxInterval
	}
	return &Store{next: next, cfg: cfg}
}

// Unwrap returns the decorated store.
func (s *Store) Unwrap() store.Store { return s.next }

func (s *Store) schedule() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval: s.cfg.InitialDelay,
		Multiplier:      s.cfg.Multiplier,
		MaxInterval:     s.cfg.MaxDelay,
	}
}

func (s *Store) do(ctx context.Context, op, relation string, fn func() error) error {
	lg := zctx.From(ctx)

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn()
		if err != nil && !store.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(s.schedule()),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			lg.Warn("Store operation failed, retrying",
				zap.String("op", op),
				zap.String("relation", relation),
				zap.Int("attempt", attempt),
				zap.Duration("delay", d),
				zap.Error(err),
			)
			if s.onRetry != nil {
				s.onRetry(d)
			}
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	if err == nil && attempt > 1 {
		lg.Info("Store operation succeeded after retry",
			zap.String("op", op),
			zap.String("relation", relation),
			zap.Int("attempt", attempt),
		)
	}
	return err
}

// Find implements store.Store.
func (s *Store) Find(ctx context.Context, relation string, filters ...store.Filter) (rows []store.Row, err error) {
	err = s.do(ctx, "find", relation, func() error {
		rows, err = s.next.Find(ctx, relation, filters...)
		return err
	})
	return rows, err
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, relation string, rows []store.Row) ([]store.Row, error) {
	return s.next.Insert(ctx, relation, rows)
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, relation string, filters []store.Filter, patch store.Row) (rows []store.Row, err error) {
	err = s.do(ctx, "update", relation, func() error {
		rows, err = s.next.Update(ctx, relation, filters, patch)
		return err
	})
	return rows, err
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, relation string, filters ...store.Filter) error {
	return s.do(ctx, "delete", relation, func() error {
		return s.next.Delete(ctx, relation, filters...)
	})
}
