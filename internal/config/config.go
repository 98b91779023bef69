package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
)

const appName = "trendpersona"

// LLM providers
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Classification cache backends
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Version   int             `toml:"version"`
	Agent     AgentConfig     `toml:"agent"`
	Trends    TrendsConfig    `toml:"trends"`
	LLM       LLMConfig       `toml:"llm"`
	X         XConfig         `toml:"x"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Storage   StorageConfig   `toml:"storage"`
	Email     EmailConfig     `toml:"email"`
	Debug     DebugConfig     `toml:"debug"`
}

type AgentConfig struct {
	CycleMinutes        int    `toml:"cycle_minutes"`
	CycleTimeoutMinutes int    `toml:"cycle_timeout_minutes"`
	SleepHours          []int  `toml:"sleep_hours"`
	Timezone            string `toml:"timezone"`
	AutoStart           bool   `toml:"auto_start"`
	FallbackTopic       string `toml:"fallback_topic"`
}

type TrendsConfig struct {
	Country        string `toml:"country"`
	URL            string `toml:"url"` // overrides Country when set
	Limit          int    `toml:"limit"`
	ScanRows       int    `toml:"scan_rows"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Render         bool   `toml:"render"` // load the page in headless Chrome
}

type LLMConfig struct {
	Provider        string  `toml:"provider"`
	APIKey          string  `toml:"api_key"`
	Model           string  `toml:"model"`
	Temperature     float64 `toml:"temperature"`
	TopP            float64 `toml:"top_p"`
	TopK            int     `toml:"top_k"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
	MaxRetries      int     `toml:"max_retries"`
	CacheTTLHours   int     `toml:"cache_ttl_hours"`
	CacheBackend    string  `toml:"cache_backend"`
	RedisURL        string  `toml:"redis_url"`
}

type XConfig struct {
	APIKey            string `toml:"api_key"`
	APISecret         string `toml:"api_secret"`
	AccessToken       string `toml:"access_token"`
	AccessTokenSecret string `toml:"access_token_secret"`
	BearerToken       string `toml:"bearer_token"`
	UserID            string `toml:"user_id"`
	BaseURL           string `toml:"base_url"`
	MaxLength         int    `toml:"max_length"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryBaseSeconds  int    `toml:"retry_base_seconds"`
	RetryMaxSeconds   int    `toml:"retry_max_seconds"`
}

type DashboardConfig struct {
	Enabled                bool     `toml:"enabled"`
	Host                   string   `toml:"host"`
	Port                   int      `toml:"port"`
	AdminUsers             []string `toml:"admin_users"`
	PasswordHash           string   `toml:"password_hash"`
	JWTSecret              string   `toml:"jwt_secret"`
	TokenTTLMinutes        int      `toml:"token_ttl_minutes"`
	AllowedOrigins         string   `toml:"allowed_origins"`
	RequestsPerMinute      int      `toml:"requests_per_minute"`
	LoginAttemptsPerMinute int      `toml:"login_attempts_per_minute"`
	BulkRetryGapSeconds    int      `toml:"bulk_retry_gap_seconds"`
}

type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

type EmailConfig struct {
	Provider string `toml:"provider"`
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	SMTPUser string `toml:"smtp_user"`
	SMTPPass string `toml:"smtp_pass"`
	FromAddr string `toml:"from_address"`
	ToAddr   string `toml:"to_address"`
}

// Enabled reports whether failure alerts can be delivered
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.ToAddr != ""
}

type DebugConfig struct {
	SaveArtifacts bool `toml:"save_artifacts"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Agent: AgentConfig{
			CycleMinutes:        60,
			CycleTimeoutMinutes: 30,
			SleepHours:          []int{1, 3, 9, 10},
			Timezone:            "Europe/Istanbul",
			AutoStart:           true,
			FallbackTopic:       "the most engaging topic of the day",
		},
		Trends: TrendsConfig{
			Country:        "turkey",
			Limit:          3,
			ScanRows:       15,
			TimeoutSeconds: 10,
		},
		LLM: LLMConfig{
			Provider:        ProviderGemini,
			Model:           "gemini-2.5-flash",
			Temperature:     0.85,
			TopP:            0.9,
			TopK:            40,
			MaxOutputTokens: 512,
			MaxRetries:      2,
			CacheTTLHours:   7 * 24,
			CacheBackend:    CacheSQLite,
		},
		X: XConfig{
			BaseURL:          "https://api.twitter.com",
			MaxLength:        280,
			MaxAttempts:      3,
			RetryBaseSeconds: 120,
			RetryMaxSeconds:  480,
		},
		Dashboard: DashboardConfig{
			Enabled:                true,
			Host:                   "127.0.0.1",
			Port:                   5000,
			AdminUsers:             []string{"admin"},
			TokenTTLMinutes:        12 * 60,
			AllowedOrigins:         "http://localhost:3000",
			RequestsPerMinute:      120,
			LoginAttemptsPerMinute: 5,
			BulkRetryGapSeconds:    2,
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
	}
}

// Clone returns a deep copy of c
func (c *Config) Clone() *Config {
	cp := *c
	cp.Agent.SleepHours = slices.Clone(c.Agent.SleepHours)
	cp.Dashboard.AdminUsers = slices.Clone(c.Dashboard.AdminUsers)
	return &cp
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, appName), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DatabasePath returns the sqlite file location
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName+".db"), nil
}

// Load reads config from disk
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path. Keys missing from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrCreateFile reads config from path, writing the defaults there on
// first run. An empty path means ConfigPath.
func LoadOrCreateFile(path string) (cfg *Config, created bool, err error) {
	if path == "" {
		if path, err = ConfigPath(); err != nil {
			return nil, false, err
		}
	}
	cfg, err = LoadFile(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	cfg = Default()
	if err := cfg.SaveFile(path); err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes config to path
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
