package retry

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindRateLimited, KindForStatus(http.StatusTooManyRequests))
	assert.Equal(t, KindTransient, KindForStatus(http.StatusBadGateway))
	assert.Equal(t, KindTransient, KindForStatus(http.StatusRequestTimeout))
	assert.Equal(t, KindPermanent, KindForStatus(http.StatusUnauthorized))
	assert.Equal(t, KindPermanent, KindForStatus(http.StatusForbidden))
	assert.Equal(t, KindPermanent, KindForStatus(http.StatusBadRequest))
}

func TestClassification(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, Retryable(base), "unclassified errors are transient")
	assert.True(t, Retryable(FromStatus(429, base)))
	assert.False(t, Retryable(FromStatus(403, base)))
	assert.False(t, Retryable(Quota(base)))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(nil))

	assert.True(t, IsPermanent(Permanent(base)))
	assert.True(t, IsPermanent(Quota(base)))
	assert.True(t, IsQuota(Quota(base)))
	assert.ErrorIs(t, FromStatus(500, base), base)
}

func TestDoRetriesTransientUpToLimit(t *testing.T) {
	policy := NewPolicy[string](fastConfig(3))

	var attempts int32
	_, err := Do(context.Background(), policy, func(context.Context) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "", FromStatus(503, errors.New("unavailable"))
	})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	var e *Error
	require.True(t, errors.As(err, &e), "last underlying error is returned")
	assert.Equal(t, 503, e.Status)
}

func TestDoEventualSuccess(t *testing.T) {
	policy := NewPolicy[string](fastConfig(3))

	var attempts int32
	got, err := Do(context.Background(), policy, func(context.Context) (string, error) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return "", FromStatus(429, errors.New("slow down"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestDoStopsOnPermanent(t *testing.T) {
	policy := NewPolicy[string](fastConfig(5))

	var attempts int32
	_, err := Do(context.Background(), policy, func(context.Context) (string, error) {
		atomic.AddInt32(&attempts, 1)
		return "", FromStatus(401, errors.New("bad token"))
	})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestNormalizeBoundsAttempts(t *testing.T) {
	policy := NewPolicy[int](Config{MaxAttempts: -2})

	var attempts int32
	_, err := Do(context.Background(), policy, func(context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, errors.New("network partition")
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}
