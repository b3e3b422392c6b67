// Package breaker wraps sony/gobreaker around the one retryable operation
// in the system: a venue's monitor-connection initialization.
package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/shl888/feedcore/internal/config"
)

// MonitorBreaker tracks consecutive monitor-connect failures per venue so a
// venue whose monitor keeps failing backs off instead of hammering the
// socket on every 3s tick.
type MonitorBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

// NewMonitorBreaker opens the circuit after 3 consecutive failures and
// probes again after 30s, matching the pool's own retry ceiling.
func NewMonitorBreaker(name string) *MonitorBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("monitor breaker state change")
		},
	}
	return &MonitorBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// RetryConnect attempts connect up to timing.MonitorRetryAttempts times with
// 2^attempt second back-off between tries, tripping the breaker if all
// attempts within one call are exhausted so the next caller backs off.
func (b *MonitorBreaker) RetryConnect(ctx context.Context, timing config.Timing, connect func(context.Context) bool) error {
	var lastErr error
	for attempt := 0; attempt < timing.MonitorRetryAttempts; attempt++ {
		_, err := b.breaker.Execute(func() (interface{}, error) {
			if connect(ctx) {
				return nil, nil
			}
			return nil, fmt.Errorf("monitor connect attempt %d failed", attempt)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < timing.MonitorRetryAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(timing.MonitorRetryBackoff(attempt)):
			}
		}
	}
	return fmt.Errorf("monitor connect exhausted %d attempts: %w", timing.MonitorRetryAttempts, lastErr)
}
