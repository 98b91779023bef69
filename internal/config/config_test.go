package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Agent.SleepHours = []int{2, 4}
	cfg.Trends.Country = "usa"
	require.NoError(t, cfg.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, loaded.Agent.SleepHours)
	assert.Equal(t, "usa", loaded.Trends.Country)
	assert.Equal(t, 280, loaded.X.MaxLength)
}

func TestLoadOrCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, created, err := LoadOrCreateFile(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, Default().Agent.CycleMinutes, cfg.Agent.CycleMinutes)

	cfg.Agent.CycleMinutes = 15
	require.NoError(t, cfg.SaveFile(path))

	cfg, created, err = LoadOrCreateFile(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 15, cfg.Agent.CycleMinutes)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"cycle too long", func(c *Config) { c.Agent.CycleMinutes = 1441 }, "cycle_duration"},
		{"sleep hour", func(c *Config) { c.Agent.SleepHours = []int{24} }, "sleep_hours"},
		{"trends limit", func(c *Config) { c.Trends.Limit = 51 }, "trends_limit"},
		{"country", func(c *Config) { c.Trends.Country = "atlantis" }, "trend_country"},
		{"temperature", func(c *Config) { c.LLM.Temperature = 2.5 }, "ai_temperature"},
		{"model", func(c *Config) { c.LLM.Model = "Gemini Pro" }, "ai_model"},
		{"short key", func(c *Config) { c.X.APIKey = "abc" }, "api_key"},
		{"bad key chars", func(c *Config) { c.X.APISecret = "abcdefghij$klm" }, "api_secret"},
		{"user id", func(c *Config) { c.X.UserID = "12ab" }, "user_id"},
		{"redis without url", func(c *Config) { c.LLM.CacheBackend = CacheRedis }, "redis_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			err := cfg.Validate()
			var fe *FieldError
			require.True(t, errors.As(err, &fe), "expected FieldError, got %v", err)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestApplySettings(t *testing.T) {
	cfg := Default()

	next, err := cfg.ApplySettings(Settings{
		TrendsLimit:  ptr(5),
		SleepHours:   ptr([]int{3, 1, 3}),
		TrendCountry: ptr("UK"),
		APIKey:       ptr("abcdefghijklmnop"),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, next.Trends.Limit)
	assert.Equal(t, []int{1, 3}, next.Agent.SleepHours)
	assert.Equal(t, "uk", next.Trends.Country)
	assert.Equal(t, "abcdefghijklmnop", next.X.APIKey)

	// original untouched
	assert.Equal(t, 3, cfg.Trends.Limit)
	assert.Empty(t, cfg.X.APIKey)
}

func TestApplySettingsInvalidLeavesConfig(t *testing.T) {
	cfg := Default()
	_, err := cfg.ApplySettings(Settings{CycleMinutes: ptr(0)})
	require.Error(t, err)
	assert.Equal(t, 60, cfg.Agent.CycleMinutes)
}

func TestApplySettingsIgnoresMaskedSecrets(t *testing.T) {
	cfg := Default()
	cfg.X.APIKey = "abcdefghijklmnop"

	view := cfg.Redacted()
	masked := view.Credentials["api_key"]
	assert.Equal(t, "****mnop", masked)

	next, err := cfg.ApplySettings(Settings{APIKey: &masked})
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnop", next.X.APIKey)
}

func TestSourceURL(t *testing.T) {
	url, err := TrendsConfig{Country: "korea"}.SourceURL()
	require.NoError(t, err)
	assert.Equal(t, "https://xtrends.iamrohit.in/south-korea", url)

	url, err = TrendsConfig{Country: "korea", URL: "http://localhost/x"}.SourceURL()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/x", url)

	_, err = TrendsConfig{Country: "mars"}.SourceURL()
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("X_API_KEY", "envkey1234567")
	t.Setenv("SLEEP_HOURS", "0, 5,6")
	t.Setenv("TRENDS_LIMIT", "7")
	t.Setenv("ADMIN_USERS", "alice, bob")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "envkey1234567", cfg.X.APIKey)
	assert.Equal(t, []int{0, 5, 6}, cfg.Agent.SleepHours)
	assert.Equal(t, 7, cfg.Trends.Limit)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Dashboard.AdminUsers)
	assert.Equal(t, CacheRedis, cfg.LLM.CacheBackend)
}

func TestApplyEnvEmail(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("SMTP_USER", "bot")
	t.Setenv("SMTP_PASS", "hunter2")
	t.Setenv("SMTP_FROM", "bot@example.com")
	t.Setenv("SMTP_TO", "ops@example.com")

	cfg := Default()
	assert.False(t, cfg.Email.Enabled())
	cfg.ApplyEnv()

	assert.Equal(t, "smtp.example.com", cfg.Email.SMTPHost)
	assert.Equal(t, 465, cfg.Email.SMTPPort)
	assert.Equal(t, "bot", cfg.Email.SMTPUser)
	assert.Equal(t, "hunter2", cfg.Email.SMTPPass)
	assert.Equal(t, "bot@example.com", cfg.Email.FromAddr)
	assert.Equal(t, "ops@example.com", cfg.Email.ToAddr)
	assert.True(t, cfg.Email.Enabled())
}

func TestGetEnvIntsRejectsGarbage(t *testing.T) {
	t.Setenv("SLEEP_HOURS", "1,x")
	assert.Equal(t, []int{9}, GetEnvInts("SLEEP_HOURS", []int{9}))
}
