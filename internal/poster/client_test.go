package poster

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/logging"
	"github.com/ibeckermayer/trendpersona/internal/retry"
)

func newTestClient(url string) *Client {
	cfg := config.Default().X
	cfg.BaseURL = url
	cfg.APIKey = "consumer-key"
	cfg.APISecret = "consumer-secret"
	cfg.AccessToken = "access-token"
	cfg.AccessTokenSecret = "access-secret"
	return New(cfg, logging.Discard()).withRetry(retry.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	})
}

func TestPostSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth "))
		assert.Contains(t, r.Header.Get("Authorization"), `oauth_consumer_key="consumer-key"`)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "merhaba dünya", body["text"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1790000000000000001","text":"merhaba dünya"}}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Post(context.Background(), "merhaba dünya")
	require.NoError(t, err)
	assert.Equal(t, "1790000000000000001", id)
}

func TestPostRetriesRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"title":"Too Many Requests","detail":"Too Many Requests","status":429}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"42"}}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Post(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPostGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Post(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, retry.KindTransient, retry.KindOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestPostForbiddenIsPermanent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"title":"Forbidden","detail":"You are not permitted to perform this action.","type":"about:blank","status":403}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Post(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 403, apiErr.Status)
	assert.Equal(t, "Forbidden", apiErr.Title)
	assert.False(t, errors.Is(err, ErrDuplicate))
}

func TestPostDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"You are not allowed to create a Tweet with duplicate content.","status":403}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Post(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.True(t, retry.IsPermanent(err))
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/me", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"7","name":"Kilim","username":"kilim"}}`))
	}))
	defer srv.Close()

	user, err := newTestClient(srv.URL).Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kilim", user.Username)
}

func TestParseAPIErrorPlainBody(t *testing.T) {
	e := parseAPIError(502, []byte("upstream down"))
	assert.Equal(t, "X API 502: upstream down", e.Error())

	e = parseAPIError(500, nil)
	assert.Equal(t, "Internal Server Error", e.Detail)
}
