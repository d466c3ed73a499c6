package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	LogDir       string
	LogLevel     string
	Security     SecurityConfig
}

// SecurityConfig holds the knobs of the request security gate. Escalation
// thresholds and durations are policy owned by the alerting side, so they are
// configuration rather than constants.
type SecurityConfig struct {
	Enabled            bool
	TrustedIPs         []string
	MaxBodyBytes       int64
	MinUserAgentLength int
	RatePolicyFile     string
	DefaultRateLimit   int
	DefaultRateWindow  time.Duration

	BlockThreshold int
	BlockWindow    time.Duration
	BlockDuration  time.Duration
	EventRetention time.Duration
	EventQueueSize int

	NotifyURLs     []string
	AdminJWTSecret string
}

// DefaultSecurityConfig returns the gate defaults used when no env override is set.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		Enabled:            true,
		MaxBodyBytes:       1 << 20,
		MinUserAgentLength: 10,
		DefaultRateLimit:   100,
		DefaultRateWindow:  15 * time.Minute,
		BlockThreshold:     3,
		BlockWindow:        time.Hour,
		BlockDuration:      time.Hour,
		EventRetention:     30 * 24 * time.Hour,
		EventQueueSize:     1024,
	}
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:  getEnv("ARGUS_ENV", "development"),
		HTTPPort:     getEnv("ARGUS_HTTP_PORT", "8080"),
		DatabasePath: getEnv("ARGUS_DB_PATH", filepath.Join("data", "argus.db")),
		LogDir:       getEnv("ARGUS_LOG_DIR", filepath.Join("data", "logs")),
		LogLevel:     getEnv("ARGUS_LOG_LEVEL", ""),
	}

	sec, err := loadSecurity()
	if err != nil {
		return Config{}, err
	}
	cfg.Security = sec

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func loadSecurity() (SecurityConfig, error) {
	sec := DefaultSecurityConfig()
	var err error

	if sec.Enabled, err = getBool("ARGUS_SECURITY_ENABLED", sec.Enabled); err != nil {
		return sec, err
	}
	if sec.MaxBodyBytes, err = getInt64("ARGUS_MAX_BODY_BYTES", sec.MaxBodyBytes); err != nil {
		return sec, err
	}
	if sec.MinUserAgentLength, err = getInt("ARGUS_MIN_USER_AGENT", sec.MinUserAgentLength); err != nil {
		return sec, err
	}
	if sec.DefaultRateLimit, err = getInt("ARGUS_RATE_LIMIT", sec.DefaultRateLimit); err != nil {
		return sec, err
	}
	if sec.DefaultRateWindow, err = getDuration("ARGUS_RATE_WINDOW", sec.DefaultRateWindow); err != nil {
		return sec, err
	}
	if sec.BlockThreshold, err = getInt("ARGUS_BLOCK_THRESHOLD", sec.BlockThreshold); err != nil {
		return sec, err
	}
	if sec.BlockWindow, err = getDuration("ARGUS_BLOCK_WINDOW", sec.BlockWindow); err != nil {
		return sec, err
	}
	if sec.BlockDuration, err = getDuration("ARGUS_BLOCK_DURATION", sec.BlockDuration); err != nil {
		return sec, err
	}
	if sec.EventRetention, err = getDuration("ARGUS_EVENT_RETENTION", sec.EventRetention); err != nil {
		return sec, err
	}
	if sec.EventQueueSize, err = getInt("ARGUS_EVENT_QUEUE", sec.EventQueueSize); err != nil {
		return sec, err
	}

	sec.RatePolicyFile = getEnv("ARGUS_RATE_POLICY_FILE", "")
	sec.TrustedIPs = getList("ARGUS_TRUSTED_IPS")
	sec.NotifyURLs = getList("ARGUS_NOTIFY_URLS")
	sec.AdminJWTSecret = getEnv("ARGUS_ADMIN_JWT_SECRET", "")

	if sec.BlockThreshold <= 0 {
		return sec, fmt.Errorf("ARGUS_BLOCK_THRESHOLD must be positive, got %d", sec.BlockThreshold)
	}
	if sec.DefaultRateLimit <= 0 || sec.DefaultRateWindow <= 0 {
		return sec, fmt.Errorf("default rate limit must be positive")
	}
	return sec, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
