package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/freshmate/internal/notify"
)

const envPrefix = "FRESHMATE_"

// Config is the process configuration. Values come from defaults, then an
// optional YAML file, then FRESHMATE_* environment variables.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	// TrustProxyHeaders keys the login rate limit on CF-Connecting-IP or
	// X-Forwarded-For. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format"`

	DataBackend string `yaml:"data_backend"`
	DataPath    string `yaml:"data_path"`

	ReminderWindowDays int    `yaml:"reminder_window_days"`
	ReminderPolicy     string `yaml:"reminder_policy"`
	NotifyOnLogin      bool   `yaml:"notify_on_login"`

	PostmarkToken string        `yaml:"postmark_token"`
	FromEmail     string        `yaml:"from_email"`
	EmailTimeout  time.Duration `yaml:"email_timeout"`

	S3Endpoint       string `yaml:"s3_endpoint"`
	S3Bucket         string `yaml:"s3_bucket"`
	S3Region         string `yaml:"s3_region"`
	S3AccessKey      string `yaml:"s3_access_key"`
	S3SecretKey      string `yaml:"s3_secret_key"`
	S3Prefix         string `yaml:"s3_prefix"`
	BackupPassphrase string `yaml:"backup_passphrase"`
}

const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

func Default() Config {
	return Config{
		Port:               "8080",
		LogLevel:           "info",
		LogFormat:          "text",
		DataBackend:        BackendCSV,
		DataPath:           "inventory.csv",
		ReminderWindowDays: notify.DefaultWindow,
		ReminderPolicy:     string(notify.PolicyRange),
		NotifyOnLogin:      true,
		FromEmail:          "freshmate@localhost",
		EmailTimeout:       10 * time.Second,
		S3Region:           "us-east-1",
		S3Prefix:           "freshmate",
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"PORT":              &cfg.Port,
		"LOG_LEVEL":         &cfg.LogLevel,
		"LOG_FORMAT":        &cfg.LogFormat,
		"DATA_BACKEND":      &cfg.DataBackend,
		"DATA_PATH":         &cfg.DataPath,
		"REMINDER_POLICY":   &cfg.ReminderPolicy,
		"POSTMARK_TOKEN":    &cfg.PostmarkToken,
		"FROM_EMAIL":        &cfg.FromEmail,
		"S3_ENDPOINT":       &cfg.S3Endpoint,
		"S3_BUCKET":         &cfg.S3Bucket,
		"S3_REGION":         &cfg.S3Region,
		"S3_ACCESS_KEY":     &cfg.S3AccessKey,
		"S3_SECRET_KEY":     &cfg.S3SecretKey,
		"S3_PREFIX":         &cfg.S3Prefix,
		"BACKUP_PASSPHRASE": &cfg.BackupPassphrase,
	}
	for key, dst := range strs {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(envPrefix + "REMINDER_WINDOW_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %sREMINDER_WINDOW_DAYS: %w", envPrefix, err)
		}
		cfg.ReminderWindowDays = n
	}
	if v := os.Getenv(envPrefix + "NOTIFY_ON_LOGIN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sNOTIFY_ON_LOGIN: %w", envPrefix, err)
		}
		cfg.NotifyOnLogin = b
	}
	if v := os.Getenv(envPrefix + "TRUST_PROXY_HEADERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %sTRUST_PROXY_HEADERS: %w", envPrefix, err)
		}
		cfg.TrustProxyHeaders = b
	}
	if v := os.Getenv(envPrefix + "EMAIL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sEMAIL_TIMEOUT: %w", envPrefix, err)
		}
		cfg.EmailTimeout = d
	}
	return nil
}

// Validate rejects values the rest of the program cannot use.
func (c Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	} else if n, err := strconv.Atoi(c.Port); err != nil || n < 1 || n > 65535 {
		errs = append(errs, fmt.Errorf("port %q is not a valid TCP port", c.Port))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be text or json", c.LogFormat))
	}
	switch c.DataBackend {
	case BackendCSV, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("data_backend %q must be %s or %s", c.DataBackend, BackendCSV, BackendSQLite))
	}
	if c.DataPath == "" {
		errs = append(errs, errors.New("data_path is required"))
	}
	if c.ReminderWindowDays < 1 {
		errs = append(errs, fmt.Errorf("reminder_window_days must be at least 1, got %d", c.ReminderWindowDays))
	}
	if _, err := notify.ParsePolicy(c.ReminderPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.EmailTimeout <= 0 {
		errs = append(errs, fmt.Errorf("email_timeout must be positive, got %s", c.EmailTimeout))
	}
	if c.PostmarkToken != "" && c.FromEmail == "" {
		errs = append(errs, errors.New("from_email is required when postmark_token is set"))
	}

	return errors.Join(errs...)
}

// BackupConfigured reports whether S3 credentials are present.
func (c Config) BackupConfigured() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Policy returns the parsed reminder policy. Call after Validate.
func (c Config) Policy() notify.Policy {
	p, _ := notify.ParsePolicy(c.ReminderPolicy)
	return p
}
