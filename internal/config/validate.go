package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.StreamURL == "" {
		return errors.New("server.stream_url is required")
	}
	if c.Server.RestURL == "" {
		return errors.New("server.rest_url is required")
	}

	for i, ch := range c.Channels {
		if ch == "" {
			return fmt.Errorf("channels[%d] must not be empty", i)
		}
	}

	switch c.Cache.Backend {
	case CacheBackendBadger:
		if c.Cache.Dir == "" {
			return errors.New("cache.dir is required for the badger backend")
		}
	case CacheBackendPostgres:
		if err := c.Cache.DB.validate("cache.db"); err != nil {
			return err
		}
	case CacheBackendMemory:
	default:
		return fmt.Errorf("cache.backend must be badger, postgres, or memory, got %q", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}

	if c.Connection.MaxAttempts < 1 {
		return errors.New("connection.max_attempts must be >= 1")
	}
	if c.Connection.ReconnectBaseDelay > c.Connection.ReconnectMaxDelay {
		return fmt.Errorf("connection.reconnect_base_delay (%v) cannot exceed reconnect_max_delay (%v)",
			c.Connection.ReconnectBaseDelay, c.Connection.ReconnectMaxDelay)
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if c.Fallback.MinInterval > c.Fallback.MaxInterval {
		return fmt.Errorf("fallback.min_interval (%v) cannot exceed max_interval (%v)",
			c.Fallback.MinInterval, c.Fallback.MaxInterval)
	}

	if c.Journal.Enabled {
		if err := c.Journal.DB.validate("journal.db"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
