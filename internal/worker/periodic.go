package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Locker grants a time-bounded lease on key. persistence.Redis satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

// Job is a unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
	// LockKey, when set together with a Locker, limits each tick to the one
	// replica that wins the lease.
	LockKey string
	LockTTL time.Duration
	// OnSkip is called when another replica holds the lease.
	OnSkip func()
}

// Periodic runs a Job on a ticker until its context is cancelled.
type Periodic struct {
	job    Job
	locker Locker
	owner  string
	logger *zap.Logger
}

// NewPeriodic builds a runner. A nil locker runs every tick locally.
func NewPeriodic(job Job, locker Locker, owner string, logger *zap.Logger) *Periodic {
	if logger == nil {
		logger = zap.NewNop()
	}
	if job.LockTTL <= 0 {
		job.LockTTL = job.Interval
	}
	return &Periodic{
		job:    job,
		locker: locker,
		owner:  owner,
		logger: logger.Named(job.Name),
	}
}

// Start runs the job immediately and then once per interval. It blocks until
// ctx is done.
func (p *Periodic) Start(ctx context.Context) {
	if p.job.Interval <= 0 {
		p.logger.Warn("worker disabled; non-positive interval")
		return
	}
	p.logger.Info("worker started", zap.Duration("interval", p.job.Interval))
	ticker := time.NewTicker(p.job.Interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one iteration, taking the lease first when configured. It
// reports whether the job ran.
func (p *Periodic) Tick(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if p.locker != nil && p.job.LockKey != "" {
		acquired, err := p.locker.TryLock(ctx, p.job.LockKey, p.owner, p.job.LockTTL)
		if err != nil {
			// Without a working lease store every replica runs; the writes
			// are idempotent.
			p.logger.Warn("lease unavailable; running anyway", zap.Error(err))
		} else if !acquired {
			p.logger.Debug("lease held by another instance", zap.String("key", p.job.LockKey))
			if p.job.OnSkip != nil {
				p.job.OnSkip()
			}
			return false
		}
	}

	if err := p.job.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("worker run failed", zap.Error(err))
	}
	return true
}
