package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/cuotas/internal/config"
	"github.com/smallbiznis/cuotas/internal/period"
)

const (
	keyBatchActor = "cuotas:batch:actor:%s"
	keyPeriodLock = "cuotas:period:lock:%s"
)

// Limiter throttles batch operations per actor and serializes batch runs
// on the same period across replicas. A nil Limiter allows everything.
type Limiter struct {
	client *redis.Client
	bucket *TokenBucket

	batchRate  float64
	batchBurst int
	lockTTL    time.Duration
}

// NewLimiter returns nil when rate limiting is disabled.
func NewLimiter(cfg config.Config) (*Limiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.BatchRate <= 0 || limitCfg.BatchBurst <= 0 {
		return nil, errors.New("batch rate limit must be positive")
	}
	if limitCfg.PeriodLockTTLSeconds <= 0 {
		return nil, errors.New("period lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &Limiter{
		client:     client,
		bucket:     NewTokenBucket(client),
		batchRate:  limitCfg.BatchRate,
		batchBurst: limitCfg.BatchBurst,
		lockTTL:    time.Duration(limitCfg.PeriodLockTTLSeconds) * time.Second,
	}, nil
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil
}

func (l *Limiter) AllowBatch(ctx context.Context, actor string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "anonymous"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyBatchActor, actor), l.batchRate, l.batchBurst)
}

// AcquirePeriod leases the period for one batch run. It returns
// ErrLeaseHeld when another run owns it, and a nil lease when disabled.
func (l *Limiter) AcquirePeriod(ctx context.Context, p period.Period) (*Lease, error) {
	if !l.Enabled() {
		return nil, nil
	}
	return acquireLease(ctx, l.client, fmt.Sprintf(keyPeriodLock, p), l.lockTTL)
}

func (l *Limiter) Close() error {
	if !l.Enabled() {
		return nil
	}
	return l.client.Close()
}
