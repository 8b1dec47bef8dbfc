package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	sdk "github.com/openai/openai-go"
	goopenai "github.com/sashabaranov/go-openai"
)

// RetryingClient retries transient failures of the wrapped client with exponential backoff.
// Permanent provider errors (bad key, bad request) are returned after the first attempt.
type RetryingClient struct {
	Next        Client
	MaxAttempts int
	BaseDelay   time.Duration
}

func WithRetry(next Client, maxRetries int) Client {
	if maxRetries <= 0 {
		return next
	}
	return &RetryingClient{Next: next, MaxAttempts: maxRetries + 1, BaseDelay: 200 * time.Millisecond}
}

func (r *RetryingClient) CompleteJSON(ctx context.Context, req CompletionRequest) (string, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.BaseDelay
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxAttempts-1)), ctx)

	var (
		out      string
		attempts int
	)
	err := backoff.Retry(func() error {
		attempts++
		var err error
		out, err = r.Next.CompleteJSON(ctx, req)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err == nil {
		return out, nil
	}
	if IsRetryable(err) && attempts == maxAttempts {
		return "", fmt.Errorf("llm retry exhausted after %d attempts: %w", attempts, err)
	}
	return "", err
}

// IsRetryable reports whether a provider failure is worth another attempt: connection
// errors, 408, 409, 429 and 5xx. Cancellation of the caller's context is never retried.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if status, ok := statusCode(err); ok {
		switch {
		case status == http.StatusRequestTimeout,
			status == http.StatusConflict,
			status == http.StatusTooManyRequests,
			status >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}
	return true
}

func statusCode(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	var sdkErr *sdk.Error
	if errors.As(err, &sdkErr) && sdkErr.StatusCode != 0 {
		return sdkErr.StatusCode, true
	}
	return 0, false
}
