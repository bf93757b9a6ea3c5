// Package config defines all configuration structures for the
// StoryLink-Intelligence platform.  No I/O or parsing logic lives here,
// only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the entity
// registry.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis connection parameters for the shared snapshot cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer parameters for analysis events.
type KafkaConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Brokers         []string      `mapstructure:"brokers"`
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchSize       int           `mapstructure:"batch_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// AIConfig holds the optional AI suggestion adapter parameters.  When
// disabled the engine runs purely heuristic suggestion generation.
type AIConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// DetectionConfig holds the entity-detection engine tunables.  Zero values
// mean "use the engine default"; ApplyDefaults fills them before Validate.
type DetectionConfig struct {
	EnableRealTimeDetection  bool `mapstructure:"enable_real_time_detection"`
	EnableContextualAnalysis bool `mapstructure:"enable_contextual_analysis"`
	EnableAIEnhancement      bool `mapstructure:"enable_ai_enhancement"`

	// MinimumConfidence drops mentions and relationship suggestions that
	// score below it, in [0, 1].
	MinimumConfidence float64 `mapstructure:"minimum_confidence"`

	// EnabledEntityTypes restricts matching to the listed types.  Empty
	// means every type.
	EnabledEntityTypes []string `mapstructure:"enabled_entity_types"`

	CaseSensitive bool `mapstructure:"case_sensitive"`

	// FuzzyMatchThreshold is the minimum similarity for a fuzzy mention,
	// in [0, 1].  Zero disables fuzzy matching entirely.
	FuzzyMatchThreshold float64 `mapstructure:"fuzzy_match_threshold"`

	// ContextWindowSize is the excerpt width in characters captured on
	// each side of a mention.
	ContextWindowSize int `mapstructure:"context_window_size"`

	AutoCreateThreshold float64 `mapstructure:"auto_create_threshold"`
	EnableAutoCreation  bool    `mapstructure:"enable_auto_creation"`
	RequireConfirmation bool    `mapstructure:"require_confirmation"`

	MaxSuggestionsPerDocument int `mapstructure:"max_suggestions_per_document"`

	// ProximityThreshold is the maximum character distance from a group's
	// seed mention for another mention to join the group.
	ProximityThreshold int `mapstructure:"proximity_threshold"`

	// MaxTextSize caps the size of a single analyzed document in bytes.
	MaxTextSize int `mapstructure:"max_text_size"`

	// SnapshotTTL bounds how long a loaded registry snapshot is reused
	// before it must be refreshed.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`

	// DebounceInterval is the quiet period after the last edit before a
	// scheduled scan runs.
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`

	// CursorWindowRadius is the number of characters on each side of the
	// cursor scanned on real-time (typing) triggers.
	CursorWindowRadius int `mapstructure:"cursor_window_radius"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire platform.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	AI        AIConfig        `mapstructure:"ai"`
	Detection DetectionConfig `mapstructure:"detection"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis is enabled")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	}

	// Kafka
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address when kafka is enabled")
	}

	// AI
	if c.AI.Enabled && c.AI.BaseURL == "" {
		return fmt.Errorf("config: ai.base_url is required when the AI adapter is enabled")
	}

	// Detection
	if c.Detection.MinimumConfidence < 0 || c.Detection.MinimumConfidence > 1 {
		return fmt.Errorf("config: detection.minimum_confidence %g is out of range [0, 1]", c.Detection.MinimumConfidence)
	}
	if c.Detection.FuzzyMatchThreshold < 0 || c.Detection.FuzzyMatchThreshold > 1 {
		return fmt.Errorf("config: detection.fuzzy_match_threshold %g is out of range [0, 1]", c.Detection.FuzzyMatchThreshold)
	}
	if c.Detection.AutoCreateThreshold < 0 || c.Detection.AutoCreateThreshold > 1 {
		return fmt.Errorf("config: detection.auto_create_threshold %g is out of range [0, 1]", c.Detection.AutoCreateThreshold)
	}
	if c.Detection.ProximityThreshold < 0 {
		return fmt.Errorf("config: detection.proximity_threshold must be >= 0, got %d", c.Detection.ProximityThreshold)
	}
	if c.Detection.MaxSuggestionsPerDocument < 0 {
		return fmt.Errorf("config: detection.max_suggestions_per_document must be >= 0, got %d", c.Detection.MaxSuggestionsPerDocument)
	}
	if c.Detection.MaxTextSize < 1 {
		return fmt.Errorf("config: detection.max_text_size must be >= 1, got %d", c.Detection.MaxTextSize)
	}
	if c.Detection.DebounceInterval <= 0 {
		return fmt.Errorf("config: detection.debounce_interval must be positive, got %s", c.Detection.DebounceInterval)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}

// DSN renders the database config as a PostgreSQL connection string suitable
// for pgxpool.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}
