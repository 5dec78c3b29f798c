package config

import (
	"fmt"
	"os"
	"time"

	"Mansoor88-6/time-targets-agent/internal/models"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config is the agent configuration loaded from YAML with environment overrides
type Config struct {
	Env         string         `yaml:"env" env:"TT_ENV" env-default:"local"`
	StoragePath string         `yaml:"storage_path" env:"TT_STORAGE_PATH" env-default:"./time-targets.db"`
	Log         LogConfig      `yaml:"log"`
	API         APIConfig      `yaml:"api"`
	Calendar    CalendarConfig `yaml:"calendar"`
	Refresh     RefreshConfig  `yaml:"refresh"`
	Progress    ProgressConfig `yaml:"progress"`
	Server      ServerConfig   `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"TT_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"TT_LOG_FORMAT" env-default:"console"`
}

// APIConfig holds the remote time-tracking API settings and credentials
type APIConfig struct {
	BaseURL        string `yaml:"base_url" env:"TT_API_BASE_URL" env-default:"https://api.track.toggl.com"`
	ReportsBaseURL string `yaml:"reports_base_url" env:"TT_API_REPORTS_BASE_URL" env-default:"https://api.track.toggl.com"`
	Timeout        int    `yaml:"timeout" env:"TT_API_TIMEOUT" env-default:"30"` // seconds
	UserAgent      string `yaml:"user_agent" env:"TT_API_USER_AGENT" env-default:"time-targets-agent"`
	Token          string `yaml:"token" env:"TT_API_TOKEN"`
	Email          string `yaml:"email" env:"TT_API_EMAIL"`
	Password       string `yaml:"password" env:"TT_API_PASSWORD"`
}

type CalendarConfig struct {
	Timezone string `yaml:"timezone" env:"TT_TIMEZONE" env-default:"Local"`
}

type RefreshConfig struct {
	RunningEntryInterval int `yaml:"running_entry_interval" env-default:"60"` // seconds
}

type ProgressConfig struct {
	FeasibilityThresholdHours float64 `yaml:"feasibility_threshold_hours" env-default:"16"`
}

type ServerConfig struct {
	Enabled bool `yaml:"enabled" env:"TT_SERVER_ENABLED" env-default:"false"`
	Port    int  `yaml:"port" env:"TT_SERVER_PORT" env-default:"8787"`
}

// LoadConfig reads the YAML file at path and applies environment overrides
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration back to path
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %d", c.API.Timeout)
	}
	if c.Refresh.RunningEntryInterval <= 0 {
		return fmt.Errorf("refresh.running_entry_interval must be positive, got %d", c.Refresh.RunningEntryInterval)
	}
	if c.Progress.FeasibilityThresholdHours <= 0 || c.Progress.FeasibilityThresholdHours >= 24 {
		return fmt.Errorf("progress.feasibility_threshold_hours must be within (0, 24), got %v", c.Progress.FeasibilityThresholdHours)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Credential returns the configured credential. An API token wins over email and password.
func (c *Config) Credential() *models.Credential {
	switch {
	case c.API.Token != "":
		cred := models.NewTokenCredential(c.API.Token)
		return &cred
	case c.API.Email != "" && c.API.Password != "":
		cred := models.NewEmailPasswordCredential(c.API.Email, c.API.Password)
		return &cred
	default:
		return nil
	}
}

// Location resolves the configured calendar time zone
func (c *Config) Location() (*time.Location, error) {
	if c.Calendar.Timezone == "" || c.Calendar.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

func (c *Config) RunningEntryInterval() time.Duration {
	return time.Duration(c.Refresh.RunningEntryInterval) * time.Second
}

func (c *Config) FeasibilityThreshold() time.Duration {
	return time.Duration(c.Progress.FeasibilityThresholdHours * float64(time.Hour))
}
