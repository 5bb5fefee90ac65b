// Package config loads the planner configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"
)

// Config is the full set of runtime knobs. All values come from the
// environment; unset values fall back to single-user dev defaults.
type Config struct {
	Listen string `env:"LISTEN" envDefault:"127.0.0.1:8000"`
	DBFile string `env:"DB_FILE" envDefault:"coursecal.db"`

	// FrontendOrigin is allowed by CORS and is the post-OAuth redirect
	// target.
	FrontendOrigin   string `env:"FRONTEND_ORIGIN" envDefault:"http://localhost:5173"`
	OAuthRedirectURL string `env:"OAUTH_REDIRECT_URL" envDefault:"http://localhost:8000/api/auth/google/callback"`

	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envDefault:"credentials.json"`
	CalendarID            string `env:"CALENDAR_ID" envDefault:"primary"`

	Timezone  string `env:"CAL_TIMEZONE" envDefault:"America/Toronto"`
	WeekStart string `env:"WEEK_START" envDefault:"sunday"`

	OpenAIKey    string `env:"OPENAI_API_KEY"`
	ExtractModel string `env:"EXTRACT_MODEL" envDefault:"gpt-4.1"`
	ChatModel    string `env:"CHAT_MODEL" envDefault:"gpt-4.1-mini"`

	// SyncCron, when set (e.g. "0 * * * *"), re-syncs every stored
	// course to Google on that schedule while serving.
	SyncCron string `env:"SYNC_CRON"`
}

// Load parses the environment and validates derived fields.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.WeekStart {
	case "sunday", "monday":
	case "":
		c.WeekStart = "sunday"
	default:
		return fmt.Errorf("unsupported WEEK_START %q (want sunday or monday)", c.WeekStart)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid CAL_TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone. Load validated it, so a
// failure here falls back to time.Local rather than erroring twice.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// WeekStartDay maps the configured week start onto time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}
