package worker

import (
	"context"
	"time"

	"booking-service/internal/clock"
	"booking-service/internal/models"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

// sweepBatchSize caps how many expired locks one cycle processes.
const sweepBatchSize = 500

// ExpiredLockSource lists active locks past their expiry.
type ExpiredLockSource interface {
	ListExpiredLocks(ctx context.Context, now time.Time, limit int) ([]models.Lock, error)
}

// LockReleaser releases one expired lock atomically; losing the race
// against an explicit release is a no-op, not an error.
type LockReleaser interface {
	ReleaseExpired(ctx context.Context, lock models.Lock) error
}

// SweepLease serializes sweeping across service replicas. Optional.
type SweepLease interface {
	AcquireSweepLease(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseSweepLease(ctx context.Context) error
}

// Sweeper is the recurring background process that reclaims expired
// locks. One cycle at a time: an overrunning cycle delays the next
// trigger instead of running concurrently with it. A failed cycle
// backs off to a longer interval before resuming the normal cadence.
type Sweeper struct {
	source   ExpiredLockSource
	releaser LockReleaser
	lease    SweepLease
	clock    clock.Clock
	logger   *zap.Logger

	interval time.Duration
	backoff  time.Duration
}

// NewSweeper creates a new expiration sweeper. lease may be nil when
// the service runs as a single instance.
func NewSweeper(source ExpiredLockSource, releaser LockReleaser, lease SweepLease, clk clock.Clock, interval, backoff time.Duration) *Sweeper {
	return &Sweeper{
		source:   source,
		releaser: releaser,
		lease:    lease,
		clock:    clk,
		logger:   util.GetLogger(),
		interval: interval,
		backoff:  backoff,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Starting expiration sweeper",
		zap.Duration("interval", s.interval),
		zap.Duration("backoff", s.backoff))

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiration sweeper stopping")
			return ctx.Err()
		case <-timer.C:
			next := s.interval
			if err := s.RunCycle(ctx); err != nil {
				util.SweepCycleFailuresTotal.Inc()
				s.logger.Error("Sweep cycle failed, backing off", zap.Error(err))
				next = s.backoff
			}
			timer.Reset(next)
		}
	}
}

// RunCycle performs one sweep: select expired locks, release each,
// continue past per-lock failures. A failure to even list the locks
// fails the cycle.
func (s *Sweeper) RunCycle(ctx context.Context) error {
	if s.lease != nil {
		held, err := s.lease.AcquireSweepLease(ctx, s.interval)
		if err != nil {
			return err
		}
		if !held {
			s.logger.Debug("Sweep lease held elsewhere, skipping cycle")
			return nil
		}
		defer func() {
			if err := s.lease.ReleaseSweepLease(ctx); err != nil {
				s.logger.Warn("Failed to release sweep lease", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	defer func() {
		util.SweepCycleDuration.Observe(time.Since(start).Seconds())
	}()

	now := s.clock.Now()
	expired, err := s.source.ListExpiredLocks(ctx, now, sweepBatchSize)
	if err != nil {
		return err
	}

	if len(expired) == 0 {
		util.SweepCyclesTotal.Inc()
		return nil
	}

	s.logger.Info("Found expired locks", zap.Int("count", len(expired)))

	released := 0
	for _, lock := range expired {
		if err := s.releaser.ReleaseExpired(ctx, lock); err != nil {
			util.SweepLockFailuresTotal.Inc()
			s.logger.Error("Failed to release expired lock",
				zap.Int64("lock_id", lock.ID),
				zap.Int64("unit_id", lock.UnitID),
				zap.Error(err))
			continue
		}
		released++
	}

	util.SweepCyclesTotal.Inc()
	s.logger.Info("Sweep cycle completed",
		zap.Int("expired", len(expired)),
		zap.Int("released", released))
	return nil
}
