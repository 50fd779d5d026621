package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ShayCichocki/posse/internal/runner"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the model-call circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure
	// counts. If 0, failures never reset until the circuit opens.
	Interval time.Duration
}

// Breaker wraps a model client with circuit breaker protection. When the
// provider fails repeatedly, the circuit opens and subsequent calls fail
// fast without reaching it, so a provider outage cannot turn every queued
// run into a slow retry storm.
type Breaker struct {
	inner   runner.ModelClient
	breaker *gobreaker.CircuitBreaker[*runner.ModelResponse]
}

var _ runner.ModelClient = (*Breaker)(nil)

// NewBreaker wraps inner with a circuit breaker. Zero-valued config fields
// fall back to defaults.
func NewBreaker(inner runner.ModelClient, cfg BreakerConfig) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[*runner.ModelResponse](gobreaker.Settings{
		Name:        "model",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[api] circuit breaker %s: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Run-level cancellation is not a provider fault.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	return &Breaker{inner: inner, breaker: cb}
}

// Chat routes a blocking call through the breaker.
func (b *Breaker) Chat(ctx context.Context, req runner.ModelRequest) (*runner.ModelResponse, error) {
	resp, err := b.breaker.Execute(func() (*runner.ModelResponse, error) {
		return b.inner.Chat(ctx, req)
	})
	return resp, wrapBreakerErr(err)
}

// Stream routes a streaming call through the breaker. Chunk delivery happens
// inside the protected call, so a stream that dies mid-response counts as a
// failure like any other.
func (b *Breaker) Stream(ctx context.Context, req runner.ModelRequest, onChunk func(chunk string)) (*runner.ModelResponse, error) {
	resp, err := b.breaker.Execute(func() (*runner.ModelResponse, error) {
		return b.inner.Stream(ctx, req, onChunk)
	})
	return resp, wrapBreakerErr(err)
}

// State reports the breaker's current state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

func wrapBreakerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("model circuit open: %w", err)
	}
	return err
}
