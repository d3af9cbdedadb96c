package config

import (
	"fmt"
	"time"
)

// Overlap policies for ticks that fire while a run is still in flight.
const (
	OverlapPolicySkip  = "skip"
	OverlapPolicyQueue = "queue"
)

// ScheduleConfig drives the scheduler's cadence and overlap behavior.
// Exactly one cadence mode must be configured: a fixed interval, an
// explicit list of daily times, or a cron expression.
type ScheduleConfig struct {
	IntervalMinutes int      `mapstructure:"interval_minutes"`
	ExplicitTimes   []string `mapstructure:"explicit_times"` // "15:04" entries
	Cron            string   `mapstructure:"cron"`

	Timezone      string `mapstructure:"timezone"`
	AllowOverlap  bool   `mapstructure:"allow_overlap"`
	OverlapPolicy string `mapstructure:"overlap_policy"`

	JitterSeconds          int `mapstructure:"jitter_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
	MaxRetries             int `mapstructure:"max_retries"`
	RetryDelaySeconds      int `mapstructure:"retry_delay_seconds"`
}

// Validate checks the schedule configuration at startup. A validation
// error is fatal: the scheduler refuses to start on a bad schedule.
func (c *ScheduleConfig) Validate() error {
	modes := 0
	if len(c.ExplicitTimes) > 0 {
		modes++
	}
	if c.Cron != "" {
		modes++
	}
	if c.IntervalMinutes > 0 && modes == 0 {
		modes++
	}
	if modes == 0 {
		return fmt.Errorf("invalid schedule: one of interval_minutes, explicit_times or cron is required")
	}
	if len(c.ExplicitTimes) > 0 && c.Cron != "" {
		return fmt.Errorf("invalid schedule: explicit_times and cron are mutually exclusive")
	}

	for _, tstr := range c.ExplicitTimes {
		if _, err := time.Parse("15:04", tstr); err != nil {
			return fmt.Errorf("invalid schedule: bad explicit time %q: %w", tstr, err)
		}
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid schedule: unknown timezone %q: %w", c.Timezone, err)
	}

	switch c.OverlapPolicy {
	case OverlapPolicySkip, OverlapPolicyQueue:
	default:
		return fmt.Errorf("invalid schedule: overlap_policy must be %q or %q, got %q",
			OverlapPolicySkip, OverlapPolicyQueue, c.OverlapPolicy)
	}

	if c.JitterSeconds < 0 {
		return fmt.Errorf("invalid schedule: jitter_seconds must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid schedule: max_retries must not be negative")
	}
	if c.RetryDelaySeconds < 0 {
		return fmt.Errorf("invalid schedule: retry_delay_seconds must not be negative")
	}

	return nil
}

// Location resolves the configured timezone; empty means UTC.
func (c *ScheduleConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ShutdownTimeout returns the grace period for in-flight work during shutdown.
func (c *ScheduleConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// RetryDelay returns the pause between download attempts.
func (c *ScheduleConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}
