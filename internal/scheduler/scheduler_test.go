package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/cuotas/internal/clock"
	"github.com/smallbiznis/cuotas/internal/config"
	cuotadomain "github.com/smallbiznis/cuotas/internal/cuota/domain"
	obsmetrics "github.com/smallbiznis/cuotas/internal/observability/metrics"
	"github.com/smallbiznis/cuotas/internal/period"
	"github.com/smallbiznis/cuotas/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCuotas struct {
	cuotadomain.Service

	calls  []cuotadomain.GenerateRequest
	failed []cuotadomain.BatchError
	err    error
}

func (f *fakeCuotas) Generate(_ context.Context, req cuotadomain.GenerateRequest) (*cuotadomain.GenerationResult, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &cuotadomain.GenerationResult{
		RunID:     "run",
		Period:    req.Period.String(),
		Generated: 2,
		Failed:    f.failed,
	}, nil
}

func newScheduler(t *testing.T, now time.Time, cuotas *fakeCuotas, day int) (*Scheduler, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(now)
	s, err := New(Params{
		Log:    zap.NewNop(),
		Clock:  clk,
		Cuotas: cuotas,
		Config: Config{GenerationDay: day},
	})
	require.NoError(t, err)
	return s, clk
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{GenerationDay: 31}.withDefaults()
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, 10*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 1, cfg.GenerationDay)
}

func TestGenerateCurrentPeriodJob_WaitsForGenerationDay(t *testing.T) {
	cuotas := &fakeCuotas{}
	s, clk := newScheduler(t, time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC), cuotas, 5)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, cuotas.calls)

	clk.Set(time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.RunOnce(context.Background()))
	require.Len(t, cuotas.calls, 1)
	assert.Equal(t, period.Period{Year: 2025, Month: time.March}, cuotas.calls[0].Period)
	assert.Equal(t, schedulerActor, cuotas.calls[0].Actor)
}

func TestGenerateCurrentPeriodJob_RunsOncePerPeriod(t *testing.T) {
	cuotas := &fakeCuotas{}
	s, clk := newScheduler(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), cuotas, 1)

	require.NoError(t, s.RunOnce(context.Background()))
	clk.Advance(time.Hour)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Len(t, cuotas.calls, 1)

	clk.AddMonths(1)
	require.NoError(t, s.RunOnce(context.Background()))
	require.Len(t, cuotas.calls, 2)
	assert.Equal(t, time.April, cuotas.calls[1].Period.Month)
}

func TestGenerateCurrentPeriodJob_RetriesAfterFailures(t *testing.T) {
	cuotas := &fakeCuotas{failed: []cuotadomain.BatchError{{Stage: "pricing", Message: "boom"}}}
	s, _ := newScheduler(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), cuotas, 1)

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobGenerateCurrentPeriod)

	cuotas.failed = nil
	require.NoError(t, s.RunOnce(context.Background()))
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Len(t, cuotas.calls, 2)
}

func newLockedScheduler(t *testing.T, now time.Time, cuotas *fakeCuotas, addr string) *Scheduler {
	t.Helper()
	limiter, err := ratelimit.NewLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:              true,
		RedisAddr:            addr,
		BatchRate:            1,
		BatchBurst:           1,
		PeriodLockTTLSeconds: 60,
	}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })

	s, err := New(Params{
		Log:     zap.NewNop(),
		Clock:   clock.NewFakeClock(now),
		Cuotas:  cuotas,
		Limiter: limiter,
		Config:  Config{GenerationDay: 1},
	})
	require.NoError(t, err)
	return s
}

func TestGenerateCurrentPeriodJob_SkipsHeldPeriod(t *testing.T) {
	mr := miniredis.RunT(t)
	cuotas := &fakeCuotas{}
	s := newLockedScheduler(t, time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC), cuotas, mr.Addr())
	require.NoError(t, mr.Set("cuotas:period:lock:2025-03", "api-run"))

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, cuotas.calls)

	mr.Del("cuotas:period:lock:2025-03")
	require.NoError(t, s.RunOnce(context.Background()))
	require.Len(t, cuotas.calls, 1)
	assert.False(t, mr.Exists("cuotas:period:lock:2025-03"))
}

func TestGenerateCurrentPeriodJob_FailsWhenLockUnavailable(t *testing.T) {
	cuotas := &fakeCuotas{}
	s := newLockedScheduler(t, time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC), cuotas, "127.0.0.1:1")

	require.Error(t, s.RunOnce(context.Background()))
	assert.Empty(t, cuotas.calls)
}

func TestRunJob_TimeoutIsSoftAndCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := obsmetrics.NewSchedulerMetricsWithRegisterer(reg)
	s := &Scheduler{log: zap.NewNop(), metrics: metrics}

	err := s.runJob(context.Background(), "slow", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	err = s.runJob(context.Background(), "broken", time.Second, func(context.Context) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(reg, "cuotas_scheduler_job_timeouts_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "cuotas_scheduler_job_errors_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "cuotas_scheduler_job_runs_total"))
}
