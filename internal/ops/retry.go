// Package ops holds the operational shell: storage retry policy and the
// metrics/health HTTP listener.
package ops

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/clipwave/revcore/internal/domain"
	"github.com/clipwave/revcore/internal/metrics"
)

// Retrier retries transient storage failures with exponential backoff behind
// a circuit breaker. Non-transient errors pass through untouched on the
// first attempt.
type Retrier struct {
	maxRetries int
	baseDelay  time.Duration
	breaker    *gobreaker.CircuitBreaker
}

// NewRetrier builds a retrier. The breaker opens after five consecutive
// failed operations and probes again after 30 seconds.
func NewRetrier(maxRetries int, baseDelay time.Duration) *Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return &Retrier{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "storage",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		}),
	}
}

// Do runs op, retrying on transient storage errors until maxRetries is
// exhausted. Backoff doubles each attempt starting at baseDelay.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error
	delay := r.baseDelay
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.StorageRetry(name)
			log.Warn().
				Str("op", name).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Err(lastErr).
				Msg("retrying after transient storage error")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, op(ctx)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return lastErr
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return errors.Is(err, domain.ErrTransientStorage)
}
