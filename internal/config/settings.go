package config

import (
	"slices"
	"strings"
)

// Settings is a partial update from the dashboard. Nil fields are left alone.
type Settings struct {
	TrendsLimit  *int     `json:"trends_limit,omitempty"`
	CycleMinutes *int     `json:"cycle_duration,omitempty"`
	SleepHours   *[]int   `json:"sleep_hours,omitempty"`
	TrendCountry *string  `json:"trend_country,omitempty"`
	Timezone     *string  `json:"timezone,omitempty"`
	Model        *string  `json:"ai_model,omitempty"`
	Temperature  *float64 `json:"ai_temperature,omitempty"`
	LLMAPIKey    *string  `json:"ai_api_key,omitempty"`

	APIKey            *string `json:"api_key,omitempty"`
	APISecret         *string `json:"api_secret,omitempty"`
	AccessToken       *string `json:"access_token,omitempty"`
	AccessTokenSecret *string `json:"access_token_secret,omitempty"`
	BearerToken       *string `json:"bearer_token,omitempty"`
	UserID            *string `json:"user_id,omitempty"`
}

// ApplySettings returns a validated copy of c with s applied. c is not modified.
func (c *Config) ApplySettings(s Settings) (*Config, error) {
	next := c.Clone()

	if s.TrendsLimit != nil {
		next.Trends.Limit = *s.TrendsLimit
	}
	if s.CycleMinutes != nil {
		next.Agent.CycleMinutes = *s.CycleMinutes
	}
	if s.SleepHours != nil {
		hours := slices.Clone(*s.SleepHours)
		slices.Sort(hours)
		next.Agent.SleepHours = slices.Compact(hours)
	}
	if s.TrendCountry != nil {
		next.Trends.Country = strings.ToLower(strings.TrimSpace(*s.TrendCountry))
		next.Trends.URL = ""
	}
	if s.Timezone != nil {
		next.Agent.Timezone = strings.TrimSpace(*s.Timezone)
	}
	if s.Model != nil {
		next.LLM.Model = strings.TrimSpace(*s.Model)
	}
	if s.Temperature != nil {
		next.LLM.Temperature = *s.Temperature
	}

	setSecret(&next.LLM.APIKey, s.LLMAPIKey)
	setSecret(&next.X.APIKey, s.APIKey)
	setSecret(&next.X.APISecret, s.APISecret)
	setSecret(&next.X.AccessToken, s.AccessToken)
	setSecret(&next.X.AccessTokenSecret, s.AccessTokenSecret)
	setSecret(&next.X.BearerToken, s.BearerToken)
	setSecret(&next.X.UserID, s.UserID)

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

// setSecret ignores masked values echoed back from View.
func setSecret(dst *string, v *string) {
	if v == nil {
		return
	}
	value := strings.TrimSpace(*v)
	if strings.HasPrefix(value, maskPrefix) {
		return
	}
	*dst = value
}

const maskPrefix = "****"

// Mask hides all but the last four characters of a secret
func Mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return maskPrefix
	default:
		return maskPrefix + secret[len(secret)-4:]
	}
}

// View is the dashboard representation of the config with secrets masked
type View struct {
	TrendsLimit  int               `json:"trends_limit"`
	CycleMinutes int               `json:"cycle_duration"`
	SleepHours   []int             `json:"sleep_hours"`
	TrendCountry string            `json:"trend_country"`
	TrendsURL    string            `json:"trends_url"`
	Countries    []string          `json:"countries"`
	Timezone     string            `json:"timezone"`
	Provider     string            `json:"ai_provider"`
	Model        string            `json:"ai_model"`
	Temperature  float64           `json:"ai_temperature"`
	MaxLength    int               `json:"max_length"`
	Credentials  map[string]string `json:"credentials"`
}

// Redacted builds the View for c
func (c *Config) Redacted() View {
	trendsURL, _ := c.Trends.SourceURL()
	return View{
		TrendsLimit:  c.Trends.Limit,
		CycleMinutes: c.Agent.CycleMinutes,
		SleepHours:   slices.Clone(c.Agent.SleepHours),
		TrendCountry: c.Trends.Country,
		TrendsURL:    trendsURL,
		Countries:    Countries(),
		Timezone:     c.Agent.Timezone,
		Provider:     c.LLM.Provider,
		Model:        c.LLM.Model,
		Temperature:  c.LLM.Temperature,
		MaxLength:    c.X.MaxLength,
		Credentials: map[string]string{
			"ai_api_key":          Mask(c.LLM.APIKey),
			"api_key":             Mask(c.X.APIKey),
			"api_secret":          Mask(c.X.APISecret),
			"access_token":        Mask(c.X.AccessToken),
			"access_token_secret": Mask(c.X.AccessTokenSecret),
			"bearer_token":        Mask(c.X.BearerToken),
			"user_id":             c.X.UserID,
		},
	}
}
