package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/cuotas/internal/clock"
	cuotadomain "github.com/smallbiznis/cuotas/internal/cuota/domain"
	obsmetrics "github.com/smallbiznis/cuotas/internal/observability/metrics"
	"github.com/smallbiznis/cuotas/internal/period"
	"github.com/smallbiznis/cuotas/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobGenerateCurrentPeriod = "generate_current_period"

	schedulerActor = "scheduler"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Cuotas  cuotadomain.Service
	Limiter *ratelimit.Limiter          `optional:"true"`
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
	Config  Config                       `optional:"true"`
}

// Scheduler generates the current period once the configured day of the
// month is reached. Generation skips members already billed, so a rerun
// after a partial failure only fills the gaps.
type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	cuotas  cuotadomain.Service
	limiter *ratelimit.Limiter
	metrics *obsmetrics.SchedulerMetrics

	completed *period.Period
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Cuotas == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		clock:   p.Clock,
		cuotas:  p.Cuotas,
		limiter: p.Limiter,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	s.metrics.IncJobRun(name)
	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(name)
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, JobGenerateCurrentPeriod, s.cfg.JobTimeout, s.GenerateCurrentPeriodJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) GenerateCurrentPeriodJob(ctx context.Context) error {
	now := s.clock.Now()
	if now.Day() < s.cfg.GenerationDay {
		return nil
	}
	p := period.Of(now)
	if s.completed != nil && *s.completed == p {
		return nil
	}

	lease, err := s.limiter.AcquirePeriod(ctx, p)
	if errors.Is(err, ratelimit.ErrLeaseHeld) {
		s.log.Info("period held by another run", zap.String("period", p.String()))
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("period lock release failed", zap.String("period", p.String()), zap.Error(err))
		}
	}()

	result, err := s.cuotas.Generate(ctx, cuotadomain.GenerateRequest{Period: p, Actor: schedulerActor})
	if err != nil {
		return err
	}

	s.log.Info("period generated",
		zap.String("period", result.Period),
		zap.String("run_id", result.RunID),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d cuotas failed for %s", len(result.Failed), p)
	}

	s.completed = &p
	return nil
}
