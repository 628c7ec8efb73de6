package executor

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"

	"github.com/vk/converge/internal/ctxlog"
	"github.com/vk/converge/internal/provider"
)

// callWithRetry runs one remote call, retrying transient provider errors
// with exponential backoff up to the configured bound. Permanent errors and
// anything untyped surface immediately.
func (e *Executor) callWithRetry(ctx context.Context, call func() error) error {
	logger := ctxlog.FromContext(ctx)
	attempt := 0

	operation := func() error {
		attempt++
		err := call()
		if err == nil {
			return nil
		}
		var transient *provider.TransientError
		if errors.As(err, &transient) {
			logger.Warn("Transient remote API error, will retry.", "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.retryInterval
	policy := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), e.maxRetries)
	return backoff.Retry(operation, policy)
}
