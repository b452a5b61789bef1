package domain

import (
	"fmt"
	"time"
)

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Scoring policy for the rule engine
	Scoring ScoringConfig `yaml:"scoring" json:"scoring"`

	// Live monitor loop settings
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// Event source settings
	Source SourceConfig `yaml:"source" json:"source"`

	// Alert delivery settings
	Alert AlertConfig `yaml:"alert" json:"alert"`

	// Component configurations
	Repository RepositoryConfig `yaml:"repository" json:"repository"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	EventBus   EventBusConfig   `yaml:"eventBus" json:"eventBus"`

	// Observability
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// Auth holds the single allow-listed principal.
	Auth AuthConfig `yaml:"auth" json:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	ReadTimeout  int    `yaml:"readTimeout" json:"readTimeout"`   // seconds
	WriteTimeout int    `yaml:"writeTimeout" json:"writeTimeout"` // seconds
}

// ScoringConfig holds the rule engine policy constants. These are tunables,
// not structural: the rules themselves are fixed, the weights and thresholds
// are not.
type ScoringConfig struct {
	// FraudThreshold is the score at or above which an event is FRAUDULENT.
	FraudThreshold int `yaml:"fraudThreshold" json:"fraudThreshold"`

	// SuspiciousThreshold is the score at or above which an event is
	// SUSPICIOUS (when below FraudThreshold).
	SuspiciousThreshold int `yaml:"suspiciousThreshold" json:"suspiciousThreshold"`

	// MinDwellMinutes is the minimum plausible entry-to-exit dwell time.
	MinDwellMinutes float64 `yaml:"minDwellMinutes" json:"minDwellMinutes"`

	// HourDeviationThreshold is the entry-hour deviation, in hours, at or
	// above which an entry is atypical for the credential's profile.
	HourDeviationThreshold float64 `yaml:"hourDeviationThreshold" json:"hourDeviationThreshold"`
}

// MonitorConfig holds the live monitor loop settings.
type MonitorConfig struct {
	// PollInterval is the sleep between successful iterations.
	PollInterval time.Duration `yaml:"pollInterval" json:"pollInterval"`

	// ErrorBackoff is the longer sleep applied after a fetch error.
	ErrorBackoff time.Duration `yaml:"errorBackoff" json:"errorBackoff"`
}

// SourceConfig holds event source settings.
type SourceConfig struct {
	// LiveURL is the base URL of the remote event feed.
	LiveURL string `yaml:"liveUrl" json:"liveUrl"`

	// RequestTimeout bounds each remote call. Seconds.
	RequestTimeout int `yaml:"requestTimeout" json:"requestTimeout"`

	// HistoricalDriver selects the bulk origin: "sql" or "file".
	HistoricalDriver string `yaml:"historicalDriver" json:"historicalDriver"`

	// SnapshotPath is the local JSON snapshot used by the "file" driver.
	SnapshotPath string `yaml:"snapshotPath" json:"snapshotPath"`
}

// AlertConfig holds alert sink settings.
type AlertConfig struct {
	// TelegramToken and TelegramChatID configure the Telegram sink.
	// Empty token disables it.
	TelegramToken  string `yaml:"telegramToken" json:"-"`
	TelegramChatID string `yaml:"telegramChatId" json:"telegramChatId"`
}

// AuthConfig holds the allow-listed principal.
type AuthConfig struct {
	// Enabled turns the principal check on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// PrincipalID is the only principal admitted to the API.
	PrincipalID string `yaml:"principalId" json:"-"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string `yaml:"driver" json:"driver"`

	// SQLite settings
	SQLitePath string `yaml:"sqlitePath" json:"sqlitePath"`

	// Postgres settings
	PostgresHost     string `yaml:"postgresHost" json:"postgresHost"`
	PostgresPort     int    `yaml:"postgresPort" json:"postgresPort"`
	PostgresUser     string `yaml:"postgresUser" json:"postgresUser"`
	PostgresPassword string `yaml:"postgresPassword" json:"-"`
	PostgresDB       string `yaml:"postgresDb" json:"postgresDb"`
	PostgresSSLMode  string `yaml:"postgresSslMode" json:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `yaml:"maxOpenConns" json:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns" json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" json:"connMaxLifetime"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	ServiceName string `yaml:"serviceName" json:"serviceName"`
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
}

// DefaultConfig returns the default configuration: SQLite history, in-memory
// cache, channel bus, scoring thresholds matching the deployed readers.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Scoring: ScoringConfig{
			FraudThreshold:         4,
			SuspiciousThreshold:    2,
			MinDwellMinutes:        1,
			HourDeviationThreshold: 3,
		},
		Monitor: MonitorConfig{
			PollInterval: 3 * time.Second,
			ErrorBackoff: 15 * time.Second,
		},
		Source: SourceConfig{
			RequestTimeout:   10,
			HistoricalDriver: "sql",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// Validate rejects configurations the pipeline cannot run under. Invalid
// thresholds are fatal at startup, never silently defaulted.
func (c *Config) Validate() error {
	if c.Scoring.FraudThreshold < 0 {
		return fmt.Errorf("scoring: fraudThreshold must be >= 0, got %d", c.Scoring.FraudThreshold)
	}
	if c.Scoring.SuspiciousThreshold < 0 {
		return fmt.Errorf("scoring: suspiciousThreshold must be >= 0, got %d", c.Scoring.SuspiciousThreshold)
	}
	if c.Scoring.SuspiciousThreshold > c.Scoring.FraudThreshold {
		return fmt.Errorf("scoring: suspiciousThreshold (%d) must not exceed fraudThreshold (%d)",
			c.Scoring.SuspiciousThreshold, c.Scoring.FraudThreshold)
	}
	if c.Scoring.MinDwellMinutes < 0 {
		return fmt.Errorf("scoring: minDwellMinutes must be >= 0, got %v", c.Scoring.MinDwellMinutes)
	}
	if c.Scoring.HourDeviationThreshold <= 0 {
		return fmt.Errorf("scoring: hourDeviationThreshold must be > 0, got %v", c.Scoring.HourDeviationThreshold)
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor: pollInterval must be > 0, got %v", c.Monitor.PollInterval)
	}
	if c.Monitor.ErrorBackoff < c.Monitor.PollInterval {
		return fmt.Errorf("monitor: errorBackoff (%v) must be >= pollInterval (%v)",
			c.Monitor.ErrorBackoff, c.Monitor.PollInterval)
	}
	if c.Source.RequestTimeout <= 0 {
		return fmt.Errorf("source: requestTimeout must be > 0, got %d", c.Source.RequestTimeout)
	}
	switch c.Source.HistoricalDriver {
	case "sql", "file":
	default:
		return fmt.Errorf("source: unsupported historical driver %q", c.Source.HistoricalDriver)
	}
	if c.Source.HistoricalDriver == "file" && c.Source.SnapshotPath == "" {
		return fmt.Errorf("source: snapshotPath is required with the file driver")
	}
	if c.Auth.Enabled && c.Auth.PrincipalID == "" {
		return fmt.Errorf("auth: principalId is required when auth is enabled")
	}
	return nil
}
