// Package retry classifies vendor API failures and runs calls under a
// bounded failsafe retry policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Kind says whether a failure is worth retrying
type Kind int

const (
	KindTransient Kind = iota
	KindRateLimited
	KindPermanent
	KindQuota
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindPermanent:
		return "permanent"
	case KindQuota:
		return "quota"
	default:
		return "unknown"
	}
}

// Error wraps a failure with its Kind and the HTTP status, if any
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient marks err as retryable
func Transient(err error) error { return &Error{Kind: KindTransient, Err: err} }

// Permanent marks err as not retryable
func Permanent(err error) error { return &Error{Kind: KindPermanent, Err: err} }

// Quota marks err as a quota exhaustion that should pause the caller
func Quota(err error) error { return &Error{Kind: KindQuota, Err: err} }

// FromStatus classifies err using an HTTP status code
func FromStatus(status int, err error) error {
	return &Error{Kind: KindForStatus(status), Status: status, Err: err}
}

// KindForStatus maps HTTP status codes to a Kind
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout, status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// KindOf reports the Kind of err. Unclassified errors and timeouts count as
// transient; context cancellation is permanent.
func KindOf(err error) Kind {
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// Retryable reports whether err should be attempted again
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindTransient, KindRateLimited:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether err must not be retried automatically
func IsPermanent(err error) bool {
	k := KindOf(err)
	return k == KindPermanent || k == KindQuota
}

// IsQuota reports whether err is a quota exhaustion
func IsQuota(err error) bool {
	return err != nil && KindOf(err) == KindQuota
}

// Config bounds a retry policy
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func normalize(cfg Config) Config {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

// NewPolicy builds an exponential backoff policy that only retries
// transient and rate-limited failures.
func NewPolicy[T any](cfg Config) retrypolicy.RetryPolicy[T] {
	cfg = normalize(cfg)
	return retrypolicy.NewBuilder[T]().
		HandleIf(func(_ T, err error) bool {
			return Retryable(err)
		}).
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxAttempts - 1).
		WithJitterFactor(0.1).
		Build()
}

// Do runs fn under policy and returns the last error fn produced rather than
// the policy's wrapper, so callers can classify it.
func Do[T any](ctx context.Context, policy retrypolicy.RetryPolicy[T], fn func(ctx context.Context) (T, error)) (T, error) {
	var lastErr error
	result, err := failsafe.With(policy).WithContext(ctx).Get(func() (T, error) {
		r, err := fn(ctx)
		lastErr = err
		return r, err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		if lastErr != nil {
			return result, lastErr
		}
		return result, err
	}
	return result, nil
}
