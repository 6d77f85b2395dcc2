package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the application configuration, loaded once at startup from a JSON
// document. Secrets may be supplied or overridden through the environment.
type Config struct {
	LogLevel    string        `json:"log_level"`
	TidyHQ      TidyHQConfig  `json:"tidyhq"`
	Slack       SlackConfig   `json:"slack"`
	Storage     StorageConfig `json:"storage"`
	RewardsFile string        `json:"rewards_file"`
}

type TidyHQConfig struct {
	Token        string   `json:"token"`
	BaseURL      string   `json:"base_url"`
	CacheExpiry  int      `json:"cache_expiry" validate:"gt=0"` // seconds
	CacheFile    string   `json:"cache_file"`
	SlackFieldID string   `json:"slack_field_id" validate:"required"`
	BadgeFieldID string   `json:"badge_field_id"`
	AdminGroups  []string `json:"admin_groups" validate:"min=1"`
}

// ExpiryDuration returns the cache expiry interval as a time.Duration.
func (c TidyHQConfig) ExpiryDuration() time.Duration {
	return time.Duration(c.CacheExpiry) * time.Second
}

type SlackConfig struct {
	Mode          string `json:"mode" validate:"oneof=socket events"`
	BotToken      string `json:"bot_token" validate:"required"`
	AppToken      string `json:"app_token"`
	SigningSecret string `json:"signing_secret"`
	ListenAddr    string `json:"listen_addr"`
	AdminChannel  string `json:"admin_channel"`
}

type StorageConfig struct {
	HoursFile  string `json:"hours_file"`
	ClaimsFile string `json:"claims_file"`
}

var validate = validator.New()

// Load reads and validates the configuration document at path. A .env file in
// the working directory is honoured before environment overrides are applied.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s not found, create it using config.example.json as a template", path)
		}
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	cfg := defaults()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		TidyHQ: TidyHQConfig{
			BaseURL:     "https://api.tidyhq.com/v1",
			CacheExpiry: 3600,
			CacheFile:   "cache.json",
		},
		Slack: SlackConfig{
			Mode:       "socket",
			ListenAddr: ":3000",
		},
		Storage: StorageConfig{
			HoursFile: "hours.json",
		},
		RewardsFile: "rewards.json",
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIDYHQ_TOKEN"); v != "" {
		cfg.TidyHQ.Token = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_APP_TOKEN"); v != "" {
		cfg.Slack.AppToken = v
	}
	if v := os.Getenv("SLACK_SIGNING_SECRET"); v != "" {
		cfg.Slack.SigningSecret = v
	}
}

func (c *Config) Validate() error {
	if c.TidyHQ.Token == "" {
		return errors.New("tidyhq.token is required (or set TIDYHQ_TOKEN)")
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Slack.Mode == "socket" && c.Slack.AppToken == "" {
		return errors.New("slack.app_token is required when slack.mode=socket")
	}
	if c.Slack.Mode == "events" && c.Slack.SigningSecret == "" {
		return errors.New("slack.signing_secret is required when slack.mode=events")
	}
	if c.Storage.HoursFile == "" {
		return errors.New("storage.hours_file must be set")
	}
	return nil
}
