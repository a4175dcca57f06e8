package config

import "time"

// Config is the root configuration for a statesync instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Server     ServerConfig     `yaml:"server"`
	Channels   []string         `yaml:"channels"`
	Cache      CacheConfig      `yaml:"cache"`
	Connection ConnectionConfig `yaml:"connection"`
	Fallback   FallbackConfig   `yaml:"fallback"`
	Journal    JournalConfig    `yaml:"journal"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the upstream endpoints and credential source.
type ServerConfig struct {
	StreamURL string        `yaml:"stream_url"` // WebSocket endpoint
	RestURL   string        `yaml:"rest_url"`   // one-shot resync endpoint base
	TokenPath string        `yaml:"token_path"` // bearer token file; env STATESYNC_TOKEN wins
	Timeout   time.Duration `yaml:"timeout"`
}

// Recognized cache backends.
const (
	CacheBackendBadger   = "badger"
	CacheBackendPostgres = "postgres"
	CacheBackendMemory   = "memory"
)

// CacheConfig holds the hydration cache settings.
type CacheConfig struct {
	Backend string        `yaml:"backend"` // "badger", "postgres", or "memory"
	Dir     string        `yaml:"dir"`     // badger directory
	TTL     time.Duration `yaml:"ttl"`     // freshness window
	DB      DBConfig      `yaml:"db"`      // postgres backend only
}

// DBConfig holds a single PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ConnectionConfig holds transport and reconnection settings.
type ConnectionConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxAttempts        int           `yaml:"max_attempts"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// FallbackConfig holds synthetic generator settings.
type FallbackConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
}

// JournalConfig holds the optional snapshot history writer settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	DB            DBConfig      `yaml:"db"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
