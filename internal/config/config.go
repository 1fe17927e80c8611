// Package config loads the process configuration from environment
// variables (SPEC_FULL.md §6). The recognised variables are exhaustive
// for the core; unknown variables are ignored.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aegisdns/aegisdns/internal/helpers"
)

// Config holds every environment-driven setting the process reads at
// startup.
type Config struct {
	DNSBindAddr string
	APIBindAddr string
	MetricsPort int
	InstanceID  string
	LogFormat   string
	LogLevel    string

	RecordsFile string
	AuditDBPath string // empty disables the audit log

	RateLimitQPS   float64
	RateLimitBurst int

	ShutdownGrace time.Duration
}

// Load reads and validates configuration from the environment, applying
// the defaults from SPEC_FULL.md §6.
func Load() (Config, error) {
	cfg := Config{
		DNSBindAddr: getEnv("DNS_BIND_ADDR", "127.0.0.1:12312"),
		APIBindAddr: getEnv("API_BIND_ADDR", "127.0.0.1:8080"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		RecordsFile: getEnv("RECORDS_FILE", "records.db"),
		AuditDBPath: getEnv("AUDIT_DB_PATH", "audit.db"),
	}

	// An AUDIT_DB_PATH that is set but empty disables the audit log, so it
	// is not treated as unset the way getEnv treats empty values.
	if v, ok := os.LookupEnv("AUDIT_DB_PATH"); ok {
		cfg.AuditDBPath = v
	}

	cfg.InstanceID = firstNonEmpty(os.Getenv("SERVER_ID"), os.Getenv("INSTANCE_ID"), "aegisdns-0")

	metricsPort, err := getEnvInt("METRICS_PORT", 9090)
	if err != nil {
		return Config{}, err
	}
	if clamped := helpers.ClampIntToUint16(metricsPort); int(clamped) != metricsPort {
		return Config{}, fmt.Errorf("config: METRICS_PORT %d out of range [0, 65535]", metricsPort)
	}
	cfg.MetricsPort = metricsPort

	qps, err := getEnvFloat("RATE_LIMIT_QPS", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitQPS = qps

	burst, err := getEnvInt("RATE_LIMIT_BURST", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitBurst = burst

	grace, err := getEnvDuration("SHUTDOWN_GRACE", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownGrace = grace

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
