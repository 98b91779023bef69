// Package poster publishes posts through the X API v2.
package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/retry"
)

// ErrDuplicate is returned when X rejects a post as duplicate content
var ErrDuplicate = errors.New("duplicate content")

// APIError is a non-2xx response from the X API
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" && len(e.Errors) > 0 {
		msg = e.Errors[0].Message
	}
	if e.Title != "" {
		return fmt.Sprintf("X API %d %s: %s", e.Status, e.Title, msg)
	}
	return fmt.Sprintf("X API %d: %s", e.Status, msg)
}

// Duplicate reports whether the API rejected the text as already posted
func (e *APIError) Duplicate() bool {
	text := strings.ToLower(e.Detail)
	for _, er := range e.Errors {
		text += " " + strings.ToLower(er.Message)
	}
	return strings.Contains(text, "duplicate")
}

// Is lets errors.Is(err, ErrDuplicate) match duplicate rejections
func (e *APIError) Is(target error) bool {
	return target == ErrDuplicate && e.Duplicate()
}

// User is the authenticated account
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Client signs requests with OAuth 1.0a user context
type Client struct {
	http    *http.Client
	baseURL string
	policy  retrypolicy.RetryPolicy[string]
	log     *logrus.Entry
}

// New creates a client from the X config section
func New(cfg config.XConfig, logger *logrus.Logger) *Client {
	oauthConfig := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)

	httpClient := oauthConfig.Client(context.Background(), token)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		policy: retry.NewPolicy[string](retry.Config{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   time.Duration(cfg.RetryBaseSeconds) * time.Second,
			MaxDelay:    time.Duration(cfg.RetryMaxSeconds) * time.Second,
		}),
		log: logger.WithField("component", "poster"),
	}
}

// withRetry replaces the retry bounds
func (c *Client) withRetry(cfg retry.Config) *Client {
	c.policy = retry.NewPolicy[string](cfg)
	return c
}

// Post publishes text and returns the new post id. Transient failures are
// retried with exponential backoff.
func (c *Client) Post(ctx context.Context, text string) (string, error) {
	attempt := 0
	id, err := retry.Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		attempt++
		id, err := c.createPost(ctx, text)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"kind":    retry.KindOf(err).String(),
			}).Warn("Post attempt failed")
		}
		return id, err
	})
	if err != nil {
		return "", err
	}

	c.log.WithFields(logrus.Fields{"id": id, "attempts": attempt}).Info("Posted")
	return id, nil
}

func (c *Client) createPost(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to encode post: %w", err))
	}

	var out struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/2/tweets", bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", retry.Permanent(fmt.Errorf("X API returned no post id"))
	}
	return out.Data.ID, nil
}

// Verify checks the credentials against GET /2/users/me
func (c *Client) Verify(ctx context.Context) (*User, error) {
	var out struct {
		Data User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/2/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return retry.Transient(fmt.Errorf("failed to call X API: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.Transient(fmt.Errorf("failed to read X API response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusTooManyRequests {
			c.log.WithField("reset", resp.Header.Get("x-rate-limit-reset")).Warn("X API rate limit hit")
		}
		if apiErr.Duplicate() {
			return retry.Permanent(apiErr)
		}
		return retry.FromStatus(resp.StatusCode, apiErr)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode X API response: %w", err))
	}
	return nil
}

func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(data, apiErr); err != nil || (apiErr.Detail == "" && len(apiErr.Errors) == 0) {
		apiErr.Detail = strings.TrimSpace(string(data))
		if apiErr.Detail == "" {
			apiErr.Detail = http.StatusText(status)
		}
	}
	apiErr.Status = status
	return apiErr
}
