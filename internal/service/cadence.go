package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/timmy/dropsync/internal/config"
)

// cronParser accepts standard five-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextFire computes the next fire time strictly after now from the
// configured cadence. It is a pure function of its inputs so interval
// math, explicit-time math and cron schedules are unit-testable without
// wall-clock waits. Jitter is applied separately by the caller.
func NextFire(now time.Time, cfg *config.ScheduleConfig) (time.Time, error) {
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone: %w", err)
	}
	local := now.In(loc)

	switch {
	case cfg.Cron != "":
		sched, err := cronParser.Parse(cfg.Cron)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", cfg.Cron, err)
		}
		return sched.Next(local), nil

	case len(cfg.ExplicitTimes) > 0:
		return nextExplicit(local, cfg.ExplicitTimes, loc)

	case cfg.IntervalMinutes > 0:
		return local.Add(time.Duration(cfg.IntervalMinutes) * time.Minute), nil

	default:
		return time.Time{}, fmt.Errorf("no cadence configured")
	}
}

// nextExplicit picks the earliest configured time-of-day after now,
// rolling to the next day when today's times have all passed.
func nextExplicit(now time.Time, times []string, loc *time.Location) (time.Time, error) {
	candidates := make([]time.Time, 0, len(times)*2)
	for _, tstr := range times {
		tod, err := time.Parse("15:04", tstr)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid explicit time %q: %w", tstr, err)
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour(), tod.Minute(), 0, 0, loc)
		candidates = append(candidates, today, today.AddDate(0, 0, 1))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })

	for _, c := range candidates {
		if c.After(now) {
			return c, nil
		}
	}
	// Unreachable: tomorrow's candidates are always after now
	return time.Time{}, fmt.Errorf("no explicit time after %s", now)
}

// Jitter returns a random delay in [0, maxSeconds] using the provided
// source. The source is injected so jitter bounds are testable.
func Jitter(maxSeconds int, intn func(int) int) time.Duration {
	if maxSeconds <= 0 || intn == nil {
		return 0
	}
	return time.Duration(intn(maxSeconds+1)) * time.Second
}
