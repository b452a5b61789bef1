// Package config loads the Kestrel configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment overrides. The returned config is validated;
// invalid values are fatal here, not deep in the pipeline.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Expand ${VAR} references so secrets can live in the environment.
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays the KESTREL_* environment variables.
func applyEnv(cfg *domain.Config) {
	setString(&cfg.Source.LiveURL, "KESTREL_LIVE_URL")
	setString(&cfg.Source.HistoricalDriver, "KESTREL_HISTORICAL_DRIVER")
	setString(&cfg.Source.SnapshotPath, "KESTREL_SNAPSHOT_PATH")
	setInt(&cfg.Source.RequestTimeout, "KESTREL_SOURCE_TIMEOUT")

	setInt(&cfg.Scoring.FraudThreshold, "KESTREL_FRAUD_THRESHOLD")
	setInt(&cfg.Scoring.SuspiciousThreshold, "KESTREL_SUSPICIOUS_THRESHOLD")
	setFloat(&cfg.Scoring.MinDwellMinutes, "KESTREL_MIN_DWELL_MINUTES")
	setFloat(&cfg.Scoring.HourDeviationThreshold, "KESTREL_HOUR_DEVIATION")

	setDuration(&cfg.Monitor.PollInterval, "KESTREL_POLL_INTERVAL")
	setDuration(&cfg.Monitor.ErrorBackoff, "KESTREL_ERROR_BACKOFF")

	setString(&cfg.Repository.Driver, "KESTREL_DB_DRIVER")
	setString(&cfg.Repository.SQLitePath, "KESTREL_SQLITE_PATH")
	setString(&cfg.Repository.PostgresHost, "KESTREL_POSTGRES_HOST")
	setInt(&cfg.Repository.PostgresPort, "KESTREL_POSTGRES_PORT")
	setString(&cfg.Repository.PostgresUser, "KESTREL_POSTGRES_USER")
	setString(&cfg.Repository.PostgresPassword, "KESTREL_POSTGRES_PASSWORD")
	setString(&cfg.Repository.PostgresDB, "KESTREL_POSTGRES_DB")

	setString(&cfg.Cache.Type, "KESTREL_CACHE_TYPE")
	setString(&cfg.Cache.RedisAddr, "KESTREL_REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "KESTREL_REDIS_PASSWORD")

	setString(&cfg.EventBus.Type, "KESTREL_BUS_TYPE")
	setString(&cfg.EventBus.NATSUrl, "KESTREL_NATS_URL")
	setString(&cfg.EventBus.NATSToken, "KESTREL_NATS_TOKEN")

	setString(&cfg.Alert.TelegramToken, "KESTREL_TELEGRAM_TOKEN")
	setString(&cfg.Alert.TelegramChatID, "KESTREL_TELEGRAM_CHAT_ID")

	setBool(&cfg.Auth.Enabled, "KESTREL_AUTH_ENABLED")
	setString(&cfg.Auth.PrincipalID, "KESTREL_PRINCIPAL_ID")

	setString(&cfg.Server.Host, "KESTREL_HOST")
	setInt(&cfg.Server.Port, "KESTREL_PORT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
