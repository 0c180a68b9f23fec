package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-portal/internal/config"
	"github.com/spec-kit/helpdesk-portal/internal/observability"
)

// Policy wraps a remote mutation in bounded exponential backoff: the delay
// doubles after every failed attempt, optionally capped at MaxDelay. There is
// no jitter. On exhaustion the operation's own error is returned unchanged.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	logger  *zap.Logger
	metrics *observability.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// New builds a policy from configuration.
func New(cfg config.RetryConfig, logger *zap.Logger) Policy {
	return Policy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay(),
		MaxDelay:     cfg.MaxDelay(),
		logger:       logger,
		sleep:        sleepContext,
	}
}

// WithSleep substitutes the delay function; tests use it to record delays
// without waiting.
func (p Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

// WithMetrics enables per-operation retry counters.
func (p Policy) WithMetrics(metrics *observability.Metrics) Policy {
	p.metrics = metrics
	return p
}

// Do invokes op, retrying on failure until MaxRetries is exhausted. Waits
// honor ctx: a cancelled context aborts the chain with ctx's error.
func (p Policy) Do(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	delay := p.InitialDelay
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries {
			return err
		}
		if p.metrics != nil {
			p.metrics.RecordRetry(operation)
		}
		if p.logger != nil {
			p.logger.Warn("remote call failed, retrying",
				zap.String("operation", operation),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
