// Package config loads service configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"waterbill/internal/alerting"
	"waterbill/internal/logging"
)

type Config struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`

	Database struct {
		Driver string `yaml:"driver"` // memory, sqlite, postgres
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`

	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`

	Email struct {
		Provider    string `yaml:"provider"` // smtp or sendgrid; empty disables email
		SendgridKey string `yaml:"sendgrid_key"`
		SMTPHost    string `yaml:"smtp_host"`
		SMTPPort    int    `yaml:"smtp_port"`
		SMTPUser    string `yaml:"smtp_user"`
		SMTPPass    string `yaml:"smtp_pass"`
		From        string `yaml:"from"`
		FromName    string `yaml:"from_name"`
	} `yaml:"email"`

	Billing struct {
		// DueDateOffsetDays of 0 means the last day of the month following
		// the billing month.
		DueDateOffsetDays int    `yaml:"due_date_offset_days"`
		Currency          string `yaml:"currency"`
	} `yaml:"billing"`

	Worker struct {
		// Interval is either integer seconds or a cron expression.
		Interval string `yaml:"interval"`
	} `yaml:"worker"`

	Alert alerting.Config `yaml:"alert"`

	Log logging.Config `yaml:"log"`
}

// Load reads the YAML file at path (skipped when path is empty or missing)
// and then applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = "8000"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "waterbill.db"
	cfg.Redis.TTLSeconds = 300
	cfg.Billing.Currency = "PHP"
	cfg.Worker.Interval = "3600"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

func applyEnv(cfg *Config) {
	setStr(&cfg.HTTP.Port, "WATERBILL_PORT")
	setStr(&cfg.Database.Driver, "WATERBILL_DB_DRIVER")
	setStr(&cfg.Database.DSN, "WATERBILL_DB_DSN")
	setStr(&cfg.Redis.Addr, "WATERBILL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WATERBILL_REDIS_PASSWORD")
	setInt(&cfg.Redis.TTLSeconds, "WATERBILL_REDIS_TTL_SECONDS")
	setStr(&cfg.Email.Provider, "WATERBILL_EMAIL_PROVIDER")
	setStr(&cfg.Email.SendgridKey, "SENDGRID_API_KEY")
	setStr(&cfg.Email.From, "WATERBILL_EMAIL_FROM")
	setInt(&cfg.Billing.DueDateOffsetDays, "WATERBILL_DUE_DATE_OFFSET_DAYS")
	setStr(&cfg.Billing.Currency, "WATERBILL_CURRENCY")
	setStr(&cfg.Worker.Interval, "WATERBILL_WORKER_INTERVAL")
	setStr(&cfg.Alert.WebhookURL, "WATERBILL_ALERT_WEBHOOK_URL")
	setStr(&cfg.Alert.WebhookType, "WATERBILL_ALERT_WEBHOOK_TYPE")
	setInt(&cfg.Alert.MinFailures, "WATERBILL_ALERT_MIN_FAILURES")
	setStr(&cfg.Log.Level, "WATERBILL_LOG_LEVEL")
	setStr(&cfg.Log.Format, "WATERBILL_LOG_FORMAT")
}

func setStr(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// HTTPAddress returns a :port style listen address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
