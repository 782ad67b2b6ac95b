package scheduler

import (
	"time"

	"github.com/smallbiznis/cuotas/internal/config"
)

// Config controls scheduler intervals and the monthly generation day.
type Config struct {
	Enabled       bool
	RunInterval   time.Duration
	JobTimeout    time.Duration
	GenerationDay int
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Hour,
		JobTimeout:    10 * time.Minute,
		GenerationDay: 1,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.GenerationDay < 1 || c.GenerationDay > 28 {
		c.GenerationDay = defaults.GenerationDay
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:       cfg.Scheduler.Enabled,
		RunInterval:   time.Duration(cfg.Scheduler.RunIntervalSeconds) * time.Second,
		GenerationDay: cfg.Scheduler.GenerationDay,
	}.withDefaults()
}
