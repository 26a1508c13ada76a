package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// BreakerConverter stops calling a failing engine for a cooldown period.
// While the circuit is open Convert fails fast with ErrEngineOpen.
type BreakerConverter struct {
	next Converter
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerConverter wraps next with a circuit breaker configured from cfg.
func NewBreakerConverter(next Converter, cfg Config, log *slog.Logger) *BreakerConverter {
	if log == nil {
		log = logger.Discard()
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	halfOpen := cfg.BreakerHalfOpen
	if halfOpen == 0 {
		halfOpen = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pdf-engine",
		MaxRequests: halfOpen,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Cancellation by the caller says nothing about engine health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.Component("document"),
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &BreakerConverter{next: next, cb: cb}
}

func (b *BreakerConverter) Convert(ctx context.Context, html []byte, opts PageOptions) ([]byte, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Convert(ctx, html, opts)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrEngineOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// State returns the breaker state name.
func (b *BreakerConverter) State() string {
	return b.cb.State().String()
}
