package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                 string   `yaml:"port"`
	DatabaseURL          string   `yaml:"databaseURL"`
	RedisAddr            string   `yaml:"redisAddr"`
	RedisPassword        string   `yaml:"redisPassword"`
	LogLevel             string   `yaml:"logLevel"`
	JWTSecret            string   `yaml:"jwtSecret"`
	SessionTTL           string   `yaml:"sessionTTL"`
	FeedbackRateWindow   string   `yaml:"feedbackRateWindow"`
	DisableRateLimit     bool     `yaml:"disableRateLimit"`
	AuditStream          string   `yaml:"auditStream"`
	TrustedProxies       []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		cfg.SessionTTL = v
	}
	if v := os.Getenv("FEEDBACK_RATE_WINDOW"); v != "" {
		cfg.FeedbackRateWindow = v
	}
	if v := os.Getenv("DISABLE_RATE_LIMIT"); v == "true" {
		cfg.DisableRateLimit = true
	}
	if v := os.Getenv("AUDIT_STREAM"); v != "" {
		cfg.AuditStream = v
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or JWT_SECRET)")
	}
	return nil
}

// ParseSessionTTL parses the session TTL, defaulting to 15 minutes.
func ParseSessionTTL(raw string) (time.Duration, error) {
	return parseDuration(raw, 15*time.Minute, "sessionTTL")
}

// ParseFeedbackRateWindow parses the rate-limit window, defaulting to 60s.
func ParseFeedbackRateWindow(raw string) (time.Duration, error) {
	return parseDuration(raw, 60*time.Second, "feedbackRateWindow")
}

func parseDuration(raw string, fallback time.Duration, field string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %q", field, raw)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
