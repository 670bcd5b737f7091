// Package config provides YAML-based configuration loading for Alignflow.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Alignflow configuration, loaded from alignflow.yaml.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	WhatsApp   WhatsAppConfig   `yaml:"whatsapp"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	Sheets     SheetsConfig     `yaml:"sheets"`
	Media      MediaConfig      `yaml:"media"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Server     ServerConfig     `yaml:"server"`
}

// DatabaseConfig selects the storage backend. Driver "mysql" uses
// host/port/name; driver "sqlite" uses path.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
}

// WhatsAppConfig holds Twilio WhatsApp credentials and numbers.
type WhatsAppConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"` // e.g. "whatsapp:+14155238886"
	OpsNumber  string `yaml:"ops_number"`  // internal forwarding target
}

// ClassifierConfig configures the label-classification model.
type ClassifierConfig struct {
	Project        string `yaml:"project"`
	Location       string `yaml:"location"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the classifier call timeout as a duration.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CalendarConfig holds Google Calendar scheduling settings.
type CalendarConfig struct {
	CalendarID      string `yaml:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	Timezone        string `yaml:"timezone"`
	SlotMinutes     int    `yaml:"slot_minutes"`
}

// SheetsConfig holds Google Sheets reporting settings.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	SyncCron      string `yaml:"sync_cron"` // 5-field cron expression
}

// MediaConfig controls where uploaded case images are stored.
// Backend "local" serves from Dir at PublicBaseURL; backend "s3" uploads
// to Bucket and returns presigned links.
type MediaConfig struct {
	Backend       string `yaml:"backend"`
	Dir           string `yaml:"dir"`
	PublicBaseURL string `yaml:"public_base_url"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
}

// AlertsConfig selects the internal ops-alert channel.
type AlertsConfig struct {
	Platform string `yaml:"platform"` // "slack", "discord", or "" (disabled)
	Token    string `yaml:"token"`
	Channel  string `yaml:"channel"`
}

// ServerConfig holds webhook server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "alignflow"
	}
	if c.Database.Path == "" {
		c.Database.Path = "alignflow.db"
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "gemini-2.5-flash"
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = 15
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "Asia/Kolkata"
	}
	if c.Calendar.SlotMinutes == 0 {
		c.Calendar.SlotMinutes = 30
	}
	if c.Calendar.TokenFile == "" {
		c.Calendar.TokenFile = "token.json"
	}
	if c.Sheets.SyncCron == "" {
		c.Sheets.SyncCron = "0 * * * *"
	}
	if c.Media.Backend == "" {
		c.Media.Backend = "local"
	}
	if c.Media.Dir == "" {
		c.Media.Dir = os.TempDir() + "/alignflow-media"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (mysql, sqlite)", c.Database.Driver))
	}
	switch c.Media.Backend {
	case "local":
		if c.Media.PublicBaseURL == "" {
			errs = append(errs, "media.public_base_url is required for the local backend")
		}
	case "s3":
		if c.Media.Bucket == "" {
			errs = append(errs, "media.bucket is required for the s3 backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("media.backend %q is not supported (local, s3)", c.Media.Backend))
	}
	switch c.Alerts.Platform {
	case "", "slack", "discord":
	default:
		errs = append(errs, fmt.Sprintf("alerts.platform %q is not supported (slack, discord)", c.Alerts.Platform))
	}
	if c.Alerts.Platform != "" {
		if c.Alerts.Token == "" {
			errs = append(errs, "alerts.token is required when alerts.platform is set")
		}
		if c.Alerts.Channel == "" {
			errs = append(errs, "alerts.channel is required when alerts.platform is set")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
