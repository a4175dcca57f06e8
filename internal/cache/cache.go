package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/statesync/internal/model"
)

// SchemaVersion is bumped whenever the persisted record shape changes in a
// way old readers cannot handle. Mismatched records are treated as misses.
const SchemaVersion = 1

// keyPrefix namespaces our keys so the store can be shared with unrelated data.
const keyPrefix = "statesync/channel/"

// Record is the persisted form of an accepted snapshot.
type Record struct {
	Snapshot      model.StateSnapshot `json:"snapshot"`
	StoredAt      time.Time           `json:"stored_at"`
	SchemaVersion int                 `json:"schema_version"`
}

// Cache persists the latest accepted snapshot for one logical channel.
type Cache struct {
	store  Store
	key    string
	ttl    time.Duration
	logger *slog.Logger

	now func() time.Time // test hook
}

// New creates a cache over store for the named channel.
func New(store Store, channel string, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:  store,
		key:    keyPrefix + channel,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Load returns the persisted record, or ok=false on a miss. A record is a
// miss when the key is absent, the bytes fail to parse, the schema version
// mismatches, or the snapshot is structurally empty; every failure mode
// also clears the persisted bytes so the next load starts clean.
func (c *Cache) Load(ctx context.Context) (Record, bool) {
	data, err := c.store.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache read failed, treating as miss", "key", c.key, "error", err)
			c.clearQuietly(ctx)
		}
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("cache record corrupt, clearing", "key", c.key, "error", err)
		c.clearQuietly(ctx)
		return Record{}, false
	}

	if rec.SchemaVersion != SchemaVersion {
		c.logger.Info("cache schema mismatch, clearing",
			"key", c.key,
			"stored", rec.SchemaVersion,
			"current", SchemaVersion,
		)
		c.clearQuietly(ctx)
		return Record{}, false
	}

	if rec.Snapshot.IsEmpty() {
		c.clearQuietly(ctx)
		return Record{}, false
	}

	return rec, true
}

// Save overwrites the record with the given snapshot. Saving an empty
// snapshot is a no-op: a placeholder must never displace real state.
// Persistence failures are logged and swallowed.
func (c *Cache) Save(ctx context.Context, snap model.StateSnapshot) error {
	if snap.IsEmpty() {
		return nil
	}

	rec := Record{
		Snapshot:      snap,
		StoredAt:      c.now(),
		SchemaVersion: SchemaVersion,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}

	if err := c.store.Set(ctx, c.key, data); err != nil {
		c.logger.Warn("cache write failed", "key", c.key, "error", err)
		return nil
	}

	return nil
}

// Clear removes the persisted bytes unconditionally. Called on
// authentication failure so one session's data cannot leak into another's.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.key); err != nil {
		c.logger.Warn("cache clear failed", "key", c.key, "error", err)
		return err
	}
	return nil
}

// IsStale reports whether the record's age exceeds the freshness window.
// Staleness never self-upgrades: only a new Save makes a record fresh again.
func (c *Cache) IsStale(rec Record) bool {
	return c.now().Sub(rec.StoredAt) > c.ttl
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) clearQuietly(ctx context.Context) {
	if err := c.store.Delete(ctx, c.key); err != nil {
		c.logger.Debug("cache self-heal delete failed", "key", c.key, "error", err)
	}
}
