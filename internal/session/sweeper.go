// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/anerua/Credity/pkg/errutil"
)

// DefaultSweepInterval is how often expired refresh tokens are purged.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically deletes expired refresh-token records.
type Sweeper struct {
	store    RefreshTokenStore
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	counter  SweepCounter
}

// SweepCounter counts deleted records.
type SweepCounter interface {
	AddSwept(n int64)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepCounter reports every successful sweep to c.
func WithSweepCounter(c SweepCounter) SweeperOption {
	return func(s *Sweeper) { s.counter = c }
}

// NewSweeper creates a Sweeper. A non-positive interval uses DefaultSweepInterval.
func NewSweeper(store RefreshTokenStore, interval time.Duration, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{store: store, interval: interval, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on every tick until ctx is cancelled. Sweep failures are logged
// and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				errutil.LogErrorContext(ctx, s.logger, "refresh token sweep failed", err)
			}
		}
	}
}

// SweepOnce deletes every record that has expired by now.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	if s.counter != nil {
		s.counter.AddSwept(n)
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "expired refresh tokens deleted", "count", n)
	}
	return n, nil
}
