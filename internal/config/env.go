package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultEnvFiles are loaded in order, later files overriding earlier ones.
var DefaultEnvFiles = []string{"token.env", ".env"}

// LoadEnv loads environment variables from local env files
func LoadEnv(logger *logrus.Logger, files ...string) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger == nil {
		return
	}
	if len(loaded) == 0 {
		logger.Debug("No local env files loaded; relying on process environment")
	} else {
		logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
	}
}

// ApplyEnv overlays secrets and deployment values from the environment onto c.
func (c *Config) ApplyEnv() {
	c.X.APIKey = GetEnv("X_API_KEY", c.X.APIKey)
	c.X.APISecret = GetEnv("X_API_SECRET", c.X.APISecret)
	c.X.AccessToken = GetEnv("X_ACCESS_TOKEN", c.X.AccessToken)
	c.X.AccessTokenSecret = GetEnv("X_ACCESS_TOKEN_SECRET", c.X.AccessTokenSecret)
	c.X.BearerToken = GetEnv("X_BEARER_TOKEN", c.X.BearerToken)
	c.X.UserID = GetEnv("X_USER_ID", c.X.UserID)

	c.LLM.Provider = GetEnv("LLM_PROVIDER", c.LLM.Provider)
	switch c.LLM.Provider {
	case ProviderAnthropic:
		c.LLM.APIKey = GetEnv("ANTHROPIC_API_KEY", c.LLM.APIKey)
	default:
		c.LLM.APIKey = GetEnv("GEMINI_API_KEY", c.LLM.APIKey)
		c.LLM.Model = GetEnv("GEMINI_MODEL", c.LLM.Model)
	}
	c.LLM.Model = GetEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.Temperature = GetEnvFloat("AI_TEMPERATURE", c.LLM.Temperature)
	if url := os.Getenv("REDIS_URL"); url != "" {
		c.LLM.RedisURL = url
		c.LLM.CacheBackend = CacheRedis
	}

	c.Trends.URL = GetEnv("TRENDS_URL", c.Trends.URL)
	c.Trends.Country = GetEnv("TREND_COUNTRY", c.Trends.Country)
	c.Trends.Limit = GetEnvInt("TRENDS_LIMIT", c.Trends.Limit)

	c.Agent.CycleMinutes = GetEnvInt("CYCLE_DURATION_MINUTES", c.Agent.CycleMinutes)
	c.Agent.SleepHours = GetEnvInts("SLEEP_HOURS", c.Agent.SleepHours)
	c.Agent.Timezone = GetEnv("TIMEZONE", c.Agent.Timezone)

	c.Dashboard.Host = GetEnv("WEB_HOST", c.Dashboard.Host)
	c.Dashboard.Port = GetEnvInt("WEB_PORT", c.Dashboard.Port)
	c.Dashboard.AdminUsers = GetEnvList("ADMIN_USERS", c.Dashboard.AdminUsers)
	c.Dashboard.PasswordHash = GetEnv("ADMIN_PASSWORD_HASH", c.Dashboard.PasswordHash)
	c.Dashboard.JWTSecret = GetEnv("JWT_SECRET", c.Dashboard.JWTSecret)

	c.Email.SMTPHost = GetEnv("SMTP_HOST", c.Email.SMTPHost)
	c.Email.SMTPPort = GetEnvInt("SMTP_PORT", c.Email.SMTPPort)
	c.Email.SMTPUser = GetEnv("SMTP_USER", c.Email.SMTPUser)
	c.Email.SMTPPass = GetEnv("SMTP_PASS", c.Email.SMTPPass)
	c.Email.FromAddr = GetEnv("SMTP_FROM", c.Email.FromAddr)
	c.Email.ToAddr = GetEnv("SMTP_TO", c.Email.ToAddr)

	c.Storage.DBPath = GetEnv("DB_PATH", c.Storage.DBPath)
	c.Debug.SaveArtifacts = GetEnvBool("SAVE_ARTIFACTS", c.Debug.SaveArtifacts)
}

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvFloat gets a float environment variable with a default value
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvList splits a comma separated variable, dropping blanks
func GetEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// GetEnvInts parses a comma separated list of integers. Any bad element
// discards the whole value.
func GetEnvInts(key string, defaultValue []int) []int {
	parts := GetEnvList(key, nil)
	if parts == nil {
		return defaultValue
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

// GetLogLevel gets the log level from environment
func GetLogLevel() logrus.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
