package llm

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

type retryClient struct {
	inner    ChatClient
	attempts uint
	delay    time.Duration
}

// WithRetry retries failed completions up to attempts times in total.
// Cancellation and deadline errors are returned immediately.
func WithRetry(c ChatClient, attempts uint, delay time.Duration) ChatClient {
	if attempts <= 1 {
		return c
	}
	return &retryClient{inner: c, attempts: attempts, delay: delay}
}

func (r *retryClient) Complete(ctx context.Context, req Request) (string, error) {
	var out string
	err := retry.Do(
		func() error {
			s, err := r.inner.Complete(ctx, req)
			if err != nil {
				return err
			}
			out = s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
	return out, err
}
