// Package expiry runs the scheduled subscription sweeps.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/streambox/internal/app/service/subscription"
	"github.com/fatflowers/streambox/pkg/config"
	"github.com/fatflowers/streambox/pkg/logctx"
	"github.com/fatflowers/streambox/pkg/tool"
)

// Sweeper is the part of the lifecycle manager the scheduler drives.
type Sweeper interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	SnapshotDaily(ctx context.Context, day time.Time) (int, error)
}

const jobTimeout = 5 * time.Minute

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     *zap.SugaredLogger
	now     func() time.Time
}

func New(sweeper Sweeper, log *zap.SugaredLogger) *Scheduler {
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl), cron.WithLocation(time.UTC)),
		sweeper: sweeper,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register adds the expiry sweep and the daily snapshot jobs.
func (s *Scheduler) Register(expirySchedule, snapshotSchedule string) error {
	if _, err := s.cron.AddFunc(expirySchedule, s.runExpiry); err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", expirySchedule, err)
	}
	if snapshotSchedule != "" {
		if _, err := s.cron.AddFunc(snapshotSchedule, s.runSnapshot); err != nil {
			return fmt.Errorf("invalid snapshot schedule %q: %w", snapshotSchedule, err)
		}
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce sweeps synchronously. Used by the admin endpoint.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.sweeper.ExpireDue(ctx, s.now())
}

func (s *Scheduler) jobContext(job string) (context.Context, context.CancelFunc) {
	traceID := job + "-" + tool.GenerateUUIDV7()
	//nolint:staticcheck // string keys are shared with gin.Context
	ctx := context.WithValue(context.Background(), logctx.TraceIDKey, traceID)
	ctx = logctx.WithLogger(ctx, s.log.With("job", job, "trace_id", traceID))
	return context.WithTimeout(ctx, jobTimeout)
}

func (s *Scheduler) runExpiry() {
	ctx, cancel := s.jobContext("expire_subscriptions")
	defer cancel()
	n, err := s.sweeper.ExpireDue(ctx, s.now())
	if err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("expiry sweep finished with errors", "expired", n, "error", err)
	}
}

func (s *Scheduler) runSnapshot() {
	ctx, cancel := s.jobContext("subscription_snapshot")
	defer cancel()
	n, err := s.sweeper.SnapshotDaily(ctx, s.now())
	log := logctx.FromCtx(ctx, s.log)
	if err != nil {
		log.Errorw("daily snapshot failed", "error", err)
		return
	}
	log.Infow("daily_snapshot_done", "rows", n)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

func newScheduler(lc fx.Lifecycle, cfg *config.Config, sub *subscription.Service, log *zap.SugaredLogger) (*Scheduler, error) {
	s := New(sub, log)
	if !cfg.Expiry.Enabled {
		log.Infow("expiry scheduler disabled")
		return s, nil
	}
	if err := s.Register(cfg.Expiry.Schedule, cfg.Expiry.SnapshotSchedule); err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			log.Infow("expiry scheduler started", "schedule", cfg.Expiry.Schedule, "snapshot_schedule", cfg.Expiry.SnapshotSchedule)
			return nil
		},
		OnStop: s.Stop,
	})
	return s, nil
}

var Module = fx.Options(
	fx.Provide(newScheduler),
	// Invoked so the jobs are registered even when nothing else depends on it.
	fx.Invoke(func(*Scheduler) {}),
)
