package store

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	filevault "github.com/fjmerc/filevault/sdk/go"
)

const maxRetryInterval = 30 * time.Second

// withRetry runs op, retrying up to retries times with exponential backoff
// while the error is retryable.
func withRetry[T any](ctx context.Context, retries int, initial time.Duration, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxRetryInterval
	b.MaxElapsedTime = 0

	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	return backoff.RetryWithData(func() (T, error) {
		v, err := op(ctx)
		if err != nil && !retryable(ctx, err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy)
}

// retryable reports whether a failed request may succeed if repeated.
// Missing files and other client errors are final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, filevault.ErrValidation) {
		return false
	}
	if errors.Is(err, filevault.ErrTransport) {
		return true
	}

	switch code := filevault.StatusCode(err); {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
