package config

import (
	"fmt"
	"net/url"
	"regexp"
	"time"
	"unicode/utf8"
)

var (
	credentialPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	numericPattern    = regexp.MustCompile(`^[0-9]+$`)
	modelPattern      = regexp.MustCompile(`^[a-z0-9.\-]+$`)
)

// FieldError reports the first configuration value that failed validation
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func fieldErr(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every range and format rule. Credentials are only checked
// when set, so a fresh install can start with the dashboard alone.
func (c *Config) Validate() error {
	a := c.Agent
	if a.CycleMinutes < 1 || a.CycleMinutes > 1440 {
		return fieldErr("cycle_duration", "must be between 1 and 1440 minutes")
	}
	if a.CycleTimeoutMinutes < 1 {
		return fieldErr("cycle_timeout_minutes", "must be positive")
	}
	if len(a.SleepHours) > 24 {
		return fieldErr("sleep_hours", "at most 24 entries")
	}
	for _, h := range a.SleepHours {
		if h < 0 || h > 23 {
			return fieldErr("sleep_hours", "hour %d outside 0-23", h)
		}
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fieldErr("timezone", "%v", err)
	}

	t := c.Trends
	if t.Limit < 1 || t.Limit > 50 {
		return fieldErr("trends_limit", "must be between 1 and 50")
	}
	if t.ScanRows < 1 || t.ScanRows > 100 {
		return fieldErr("scan_rows", "must be between 1 and 100")
	}
	if t.TimeoutSeconds < 1 {
		return fieldErr("timeout_seconds", "must be positive")
	}
	if t.URL != "" {
		u, err := url.Parse(t.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fieldErr("trends_url", "must be an absolute http(s) URL")
		}
	} else if _, ok := CountryURL(t.Country); !ok {
		return fieldErr("trend_country", "must be one of %v", Countries())
	}

	l := c.LLM
	if l.Provider != ProviderGemini && l.Provider != ProviderAnthropic {
		return fieldErr("ai_provider", "must be %q or %q", ProviderGemini, ProviderAnthropic)
	}
	if !modelPattern.MatchString(l.Model) {
		return fieldErr("ai_model", "must match %s", modelPattern)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fieldErr("ai_temperature", "must be between 0 and 2")
	}
	if l.TopP < 0 || l.TopP > 1 {
		return fieldErr("top_p", "must be between 0 and 1")
	}
	if l.TopK < 1 || l.TopK > 100 {
		return fieldErr("top_k", "must be between 1 and 100")
	}
	if l.MaxRetries < 0 || l.MaxRetries > 10 {
		return fieldErr("max_retries", "must be between 0 and 10")
	}
	if l.CacheTTLHours < 1 {
		return fieldErr("cache_ttl_hours", "must be positive")
	}
	switch l.CacheBackend {
	case CacheSQLite:
	case CacheRedis:
		if l.RedisURL == "" {
			return fieldErr("redis_url", "required for the redis cache backend")
		}
	default:
		return fieldErr("cache_backend", "must be %q or %q", CacheSQLite, CacheRedis)
	}
	if err := checkCredential("ai_api_key", l.APIKey); err != nil {
		return err
	}

	x := c.X
	if x.MaxLength < 1 || x.MaxLength > 280 {
		return fieldErr("max_length", "must be between 1 and 280")
	}
	if x.MaxAttempts < 1 || x.MaxAttempts > 10 {
		return fieldErr("max_attempts", "must be between 1 and 10")
	}
	if x.RetryBaseSeconds < 1 || x.RetryMaxSeconds < x.RetryBaseSeconds {
		return fieldErr("retry_base_seconds", "must be positive and not above retry_max_seconds")
	}
	for _, cred := range [][2]string{
		{"api_key", x.APIKey},
		{"api_secret", x.APISecret},
		{"access_token", x.AccessToken},
		{"access_token_secret", x.AccessTokenSecret},
	} {
		if err := checkCredential(cred[0], cred[1]); err != nil {
			return err
		}
	}
	if utf8.RuneCountInString(x.BearerToken) > 500 {
		return fieldErr("bearer_token", "at most 500 characters")
	}
	if x.UserID != "" && !numericPattern.MatchString(x.UserID) {
		return fieldErr("user_id", "must be numeric")
	}

	if c.Dashboard.Enabled && (c.Dashboard.Port < 1 || c.Dashboard.Port > 65535) {
		return fieldErr("port", "must be between 1 and 65535")
	}
	return nil
}

func checkCredential(field, value string) error {
	if value == "" {
		return nil
	}
	if n := len(value); n < 10 || n > 200 {
		return fieldErr(field, "length must be between 10 and 200")
	}
	if !credentialPattern.MatchString(value) {
		return fieldErr(field, "only letters, digits, '_' and '-' are allowed")
	}
	return nil
}

// XReady reports whether every OAuth credential needed to post is present
func (c *Config) XReady() bool {
	x := c.X
	return x.APIKey != "" && x.APISecret != "" && x.AccessToken != "" && x.AccessTokenSecret != ""
}
