package storage

import (
	"context"

	"github.com/felixgeelhaar/fortify/retry"
	"k8s.io/klog/v2"

	"github.com/georgepadayatti/contractpdf/config"
)

// retryStore retries transient backend failures with exponential backoff.
type retryStore struct {
	Store
	get retry.Retry[[]byte]
	put retry.Retry[Reference]
}

// WithRetry wraps store so Get and Put are retried. Missing blobs, invalid
// keys and cancelled contexts are not retried.
func WithRetry(store Store, cfg config.RetryConfig) Store {
	if cfg.Attempts <= 1 {
		return store
	}
	nonRetryable := []error{ErrNotFound, ErrInvalidKey, context.Canceled, context.DeadlineExceeded}
	return &retryStore{
		Store: store,
		get: retry.New[[]byte](retry.Config{
			MaxAttempts:        cfg.Attempts,
			InitialDelay:       cfg.InitialDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         cfg.Multiplier,
			NonRetryableErrors: nonRetryable,
		}),
		put: retry.New[Reference](retry.Config{
			MaxAttempts:        cfg.Attempts,
			InitialDelay:       cfg.InitialDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         cfg.Multiplier,
			NonRetryableErrors: nonRetryable,
		}),
	}
}

func (s *retryStore) Get(ctx context.Context, key string) ([]byte, error) {
	attempt := 0
	return s.get.Do(ctx, func(ctx context.Context) ([]byte, error) {
		attempt++
		if attempt > 1 {
			klog.V(2).InfoS("Retrying blob read", "key", key, "attempt", attempt)
		}
		return s.Store.Get(ctx, key)
	})
}

func (s *retryStore) Put(ctx context.Context, key string, data []byte, contentType string) (Reference, error) {
	attempt := 0
	return s.put.Do(ctx, func(ctx context.Context) (Reference, error) {
		attempt++
		if attempt > 1 {
			klog.V(2).InfoS("Retrying blob write", "key", key, "attempt", attempt)
		}
		return s.Store.Put(ctx, key, data, contentType)
	})
}
