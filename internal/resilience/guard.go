package resilience

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker"

	"natrail-bot/internal/resilience/circuitbreaker"
	"natrail-bot/internal/resilience/retry"
)

// Call runs fn through cb, retrying per cfg. An open breaker is logged and
// returned without retrying.
func Call[T any](ctx context.Context, cb *circuitbreaker.CircuitBreaker, cfg retry.Config, fn func() (T, error)) (T, error) {
	var out T

	err := retry.WithBackoff(ctx, cfg, func() error {
		res, err := cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				slog.Warn("circuit breaker open, request rejected",
					slog.String("service", cb.Name()),
					slog.String("state", cb.State().String()))
			}
			return err
		}
		if res != nil {
			out = res.(T)
		}
		return nil
	})
	return out, err
}
