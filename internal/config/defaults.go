package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "storylink"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "storylink:"

	DefaultKafkaBroker = "localhost:9092"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "storylink"

	DefaultFuzzyMatchThreshold = 0.7
	DefaultMinimumConfidence   = 0.5
	DefaultContextWindowSize   = 100
	DefaultAutoCreateThreshold = 0.85
	DefaultProximityThreshold  = 150
	DefaultMaxSuggestions      = 20
	DefaultMaxTextSize         = 1 << 20 // 1 MiB
	DefaultSnapshotTTL         = 5 * time.Minute
	DefaultDebounceInterval    = 2 * time.Second
	DefaultCursorWindowRadius  = 500
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling raw config data and before Validate().
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 4 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultSnapshotTTL
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}

	// ── AI ────────────────────────────────────────────────────────────────────
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30 * time.Second
	}
	if cfg.AI.MaxRetries == 0 {
		cfg.AI.MaxRetries = 2
	}

	// ── Detection ─────────────────────────────────────────────────────────────
	// FuzzyMatchThreshold is left alone: zero is a meaningful value that
	// disables fuzzy matching.  Operators opt in via the config file.
	if cfg.Detection.MinimumConfidence == 0 {
		cfg.Detection.MinimumConfidence = DefaultMinimumConfidence
	}
	if cfg.Detection.ContextWindowSize == 0 {
		cfg.Detection.ContextWindowSize = DefaultContextWindowSize
	}
	if cfg.Detection.AutoCreateThreshold == 0 {
		cfg.Detection.AutoCreateThreshold = DefaultAutoCreateThreshold
	}
	if cfg.Detection.ProximityThreshold == 0 {
		cfg.Detection.ProximityThreshold = DefaultProximityThreshold
	}
	if cfg.Detection.MaxSuggestionsPerDocument == 0 {
		cfg.Detection.MaxSuggestionsPerDocument = DefaultMaxSuggestions
	}
	if cfg.Detection.MaxTextSize == 0 {
		cfg.Detection.MaxTextSize = DefaultMaxTextSize
	}
	if cfg.Detection.SnapshotTTL == 0 {
		cfg.Detection.SnapshotTTL = DefaultSnapshotTTL
	}
	if cfg.Detection.DebounceInterval == 0 {
		cfg.Detection.DebounceInterval = DefaultDebounceInterval
	}
	if cfg.Detection.CursorWindowRadius == 0 {
		cfg.Detection.CursorWindowRadius = DefaultCursorWindowRadius
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
