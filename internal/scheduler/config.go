package scheduler

import (
	"time"

	"github.com/smallbiznis/accounts/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval  time.Duration
	BatchSize    int
	JobTimeout   time.Duration
	OTPRetention time.Duration
	EnabledJobs  []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  time.Minute,
		BatchSize:    50,
		JobTimeout:   30 * time.Second,
		OTPRetention: 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.OTPRetention < 0 {
		c.OTPRetention = defaults.OTPRetention
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:  time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second,
		BatchSize:    cfg.Scheduler.BatchSize,
		OTPRetention: time.Duration(cfg.Scheduler.OTPRetentionHours) * time.Hour,
		EnabledJobs:  cfg.Scheduler.Jobs,
	}
}
