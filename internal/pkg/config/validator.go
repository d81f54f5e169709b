package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule checks that schedule can drive the cycle scheduler.
// It uses the same robfig/cron/v3 parser options as the worker, so anything
// accepted here is accepted at startup.
//
// Accepted forms:
//   - five fields "minute hour day month weekday", e.g. "*/20 * * * *"
//   - descriptors such as "@hourly" or "@daily"
//   - fixed intervals such as "@every 20m"
//
// Parameters:
//   - schedule: cron expression or descriptor to check
//
// Returns:
//   - error: nil when the schedule parses, otherwise an error naming the
//     rejected expression and wrapping the parser error
//
// Example:
//
//	if err := ValidateCronSchedule(os.Getenv("CYCLE_SCHEDULE")); err != nil {
//	    logger.Warn("bad schedule, using default", slog.Any("error", err))
//	}
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateTimezone checks that timezone names a location time.LoadLocation
// can load, such as "UTC" or "Europe/London".
//
// The result depends on the zone database available at run time. A binary
// built without tzdata on a host without /usr/share/zoneinfo rejects every
// name except "UTC" and "Local".
//
// Parameters:
//   - timezone: IANA zone name to check
//
// Returns:
//   - error: nil when the zone loads, otherwise an error naming the zone
//
// Example:
//
//	if err := ValidateTimezone("Europe/London"); err != nil {
//	    return err
//	}
func ValidateTimezone(timezone string) error {
	if timezone == "" {
		return fmt.Errorf("invalid timezone: cannot be empty")
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", timezone, err)
	}
	return nil
}

// ValidateDuration checks that duration lies in the closed range [min, max].
//
// Parameters:
//   - duration: value to check
//   - min: smallest accepted value
//   - max: largest accepted value
//
// Returns:
//   - error: nil when min <= duration <= max. An inverted range is reported
//     as its own error rather than as an out-of-range value.
//
// Example:
//
//	err := ValidateDuration(cfg.Post.PostDelay, 10*time.Second, 10*time.Minute)
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}
	if duration < min {
		return fmt.Errorf("duration %v is below minimum %v", duration, min)
	}
	if duration > max {
		return fmt.Errorf("duration %v exceeds maximum %v", duration, max)
	}
	return nil
}

// DurationBetween returns a validator for ValidateDuration.
func DurationBetween(min, max time.Duration) func(time.Duration) error {
	return func(d time.Duration) error { return ValidateDuration(d, min, max) }
}

// ValidateIntRange checks that value lies in the closed range [min, max].
//
// Parameters:
//   - value: number to check
//   - min: smallest accepted value
//   - max: largest accepted value
//
// Returns:
//   - error: nil when min <= value <= max, otherwise an error quoting the
//     offending bound
//
// Example:
//
//	err := ValidateIntRange(cfg.Post.MaxAttempts, 1, 10)
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) cannot be greater than max (%d)", min, max)
	}
	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}
	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}
	return nil
}

// IntBetween returns a validator for ValidateIntRange.
func IntBetween(min, max int) func(int) error {
	return func(n int) error { return ValidateIntRange(n, min, max) }
}

// ValidatePositiveDuration rejects zero and negative durations. Use it for
// timeouts and intervals where zero would mean "never wait".
//
// Parameters:
//   - duration: value to check
//
// Returns:
//   - error: nil when duration > 0
//
// Example:
//
//	if err := ValidatePositiveDuration(cfg.HTTP.FetchTimeout); err != nil {
//	    return fmt.Errorf("FETCH_TIMEOUT: %w", err)
//	}
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}
