// Package retry runs flaky remote calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/logger"
)

// Policy bounds the retries of a single call. The zero value runs the call once.
type Policy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// None runs every call exactly once.
var None = Policy{}

// Do calls fn until it succeeds, fails permanently, or retries run out.
// Errors classified by domain.IsPermanent are returned immediately.
// The returned error is fn's last error, unwrapped from the retry marker.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p.MaxRetries == 0 {
		return fn(ctx)
	}

	b := retry.WithMaxRetries(p.MaxRetries, p.Backoff())

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || domain.IsPermanent(err) {
			return err
		}
		logger.FromContext(ctx).Warn("Retrying failed call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return retry.RetryableError(err)
	})
}

// Backoff returns the policy's exponential delays without a retry bound.
// Loops that never give up, such as a consumer's fetch loop, pace themselves with it.
func (p Policy) Backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return b
}
