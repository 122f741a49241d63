package llmprovider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	baseDelay  = 1 * time.Second
	factor     = 2.0
	maxRetries = 5
)

// WithRetry wraps a Provider so transient failures (per the closed Error
// taxonomy) are retried with exponential backoff: base 1s, factor 2, at
// most 5 attempts.
func WithRetry(p Provider) Provider {
	return &retryingProvider{inner: p}
}

type retryingProvider struct {
	inner Provider
}

func (r *retryingProvider) Generate(ctx context.Context, req Request) (Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseDelay
	policy.Multiplier = factor
	policy.MaxElapsedTime = 0 // bounded by attempt count instead, below

	var resp Response
	attempt := 0
	op := func() error {
		attempt++
		var err error
		resp, err = r.inner.Generate(ctx, req)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	return resp, err
}
