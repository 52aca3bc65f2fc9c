// Package resilience wraps upstream calls in a bounded exponential backoff
// that only retries rate limit signals.
package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/logging"
	"sparkline-service/internal/infrastructure/metrics"
)

const DefaultMaxDelay = 30 * time.Second

// Policy is a retry policy. A call is attempted at most MaxRetries+1 times and
// the n-th retry waits InitialDelay * 2^(n-1) (no jitter).
type Policy struct {
	service      string
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	timer        clock.Clock
	logger       logging.ExternalAPILogger
}

type Option func(*Policy)

// WithClock makes the backoff wait on clk instead of the wall clock
func WithClock(clk clock.Clock) Option {
	return func(p *Policy) { p.timer = clk }
}

func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) { p.maxDelay = d }
}

func WithLogger(l logging.ExternalAPILogger) Option {
	return func(p *Policy) { p.logger = l }
}

func NewPolicy(service string, cfg config.RetryConfig, opts ...Option) *Policy {
	p := &Policy{
		service:      service,
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialDelay,
		maxDelay:     DefaultMaxDelay,
		timer:        clock.NewReal(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	if p.logger == nil {
		p.logger = logging.ExternalAPI()
	}
	return p
}

// MaxAttempts is the hard upper bound of calls made by Execute
func (p *Policy) MaxAttempts() int {
	return p.maxRetries + 1
}

// Backoff returns the wait before retry number n (1-based)
func (p *Policy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.initialDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.maxDelay {
			return p.maxDelay
		}
	}
	if d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// Execute runs fn under the policy. Only rate limit errors are retried; any other
// error is returned after the first attempt. The last error is returned unwrapped.
func Execute[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var attempts atomic.Int32

	return retry.DoWithData(
		func() (T, error) {
			attempts.Add(1)
			return fn(ctx)
		},
		retry.Attempts(uint(p.MaxAttempts())),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			return p.Backoff(int(attempts.Load()))
		}),
		retry.RetryIf(IsRateLimited),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.WithTimer(p.timer),
		retry.OnRetry(func(_ uint, err error) {
			if !IsRateLimited(err) {
				return
			}
			n := int(attempts.Load())
			if n >= p.MaxAttempts() {
				return
			}
			delay := p.Backoff(n)
			metrics.RecordExternalAPIRetry(p.service, uint(n), delay.Seconds())
			p.logger.RetryScheduled(ctx, p.service, uint(n), delay, err)
		}),
	)
}
