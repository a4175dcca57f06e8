// Package binding is the consumer-facing surface of the sync core.
//
// A Binding holds the view a render layer reads: the latest snapshot,
// whether a first load is still pending, the last error, and whether the
// data is stale or synthetic. Construction hydrates synchronously from the
// cache so a returning consumer paints instantly; Mount attaches to the
// live channel and schedules exactly one out-of-band refresh.
package binding

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/statesync/internal/api"
	"github.com/rickgao/statesync/internal/cache"
	"github.com/rickgao/statesync/internal/connection"
	"github.com/rickgao/statesync/internal/metrics"
	"github.com/rickgao/statesync/internal/model"
)

// refreshGroup dedups concurrent refreshes per channel across every
// binding in the process. Ten consumers mounting at once cost one fetch.
var refreshGroup singleflight.Group

// View is what a render pass reads: one consistent sample of the binding.
type View struct {
	State       model.StateSnapshot
	Loading     bool
	Err         error
	IsStale     bool
	IsSynthetic bool
	Connection  connection.State
}

// Binding connects one consumer to a channel.
type Binding struct {
	channel string
	manager *connection.Manager
	cache   *cache.Cache
	client  *api.Client
	logger  *slog.Logger

	mu          sync.Mutex
	state       model.StateSnapshot
	loading     bool
	err         error
	storedAt    time.Time
	synthetic   bool
	connState   connection.State
	mounted     bool
	unsubscribe func()
	onChange    func(View)
}

// New creates a binding and hydrates it from the cache. A non-empty cached
// record means the consumer has data before any network activity; staleness
// comes from the record's age against the cache TTL.
func New(channel string, manager *connection.Manager, c *cache.Cache, client *api.Client, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Binding{
		channel: channel,
		manager: manager,
		cache:   c,
		client:  client,
		logger:  logger.With("channel", channel),
		loading: true,
	}

	if c != nil {
		if rec, ok := c.Load(context.Background()); ok {
			b.state = rec.Snapshot
			b.storedAt = rec.StoredAt
			b.loading = false
			metrics.CacheOpsTotal.WithLabelValues(channel, "hit").Inc()
		} else {
			metrics.CacheOpsTotal.WithLabelValues(channel, "miss").Inc()
		}
	}

	return b
}

// OnChange sets the hook invoked after every view change. Must be set
// before Mount; called from the manager's broadcast goroutine.
func (b *Binding) OnChange(fn func(View)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// View returns one consistent sample of the binding.
func (b *Binding) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

func (b *Binding) viewLocked() View {
	return View{
		State:       b.state,
		Loading:     b.loading,
		Err:         b.err,
		IsStale:     b.isStaleLocked(),
		IsSynthetic: b.synthetic,
		Connection:  b.connState,
	}
}

// isStaleLocked: data is stale when it came from a cache record older than
// the TTL and nothing fresher has arrived since. Live and synthetic
// deliveries reset it.
func (b *Binding) isStaleLocked() bool {
	if b.storedAt.IsZero() || b.cache == nil {
		return false
	}
	return b.cache.IsStale(cache.Record{StoredAt: b.storedAt})
}

// State returns the current snapshot.
func (b *Binding) State() model.StateSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Loading reports whether the first snapshot is still pending.
func (b *Binding) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Err returns the last refresh error, cleared by any successful delivery.
func (b *Binding) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// IsStale reports whether the current data exceeded the freshness window.
func (b *Binding) IsStale() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isStaleLocked()
}

// Mount subscribes to the live channel and schedules exactly one
// out-of-band refresh, cache hit or not: cached data paints the first
// frame, the refresh makes sure it is not the last word.
func (b *Binding) Mount() error {
	b.mu.Lock()
	if b.mounted {
		b.mu.Unlock()
		return nil
	}
	b.mounted = true
	b.mu.Unlock()

	unsub, err := b.manager.Subscribe(connection.Listener{
		OnUpdate: b.onUpdate,
		OnState:  b.onConnState,
	})
	if err != nil {
		b.mu.Lock()
		b.mounted = false
		b.mu.Unlock()
		return err
	}

	b.mu.Lock()
	b.unsubscribe = unsub
	b.mu.Unlock()

	if b.client != nil {
		go b.refreshOnce()
	}

	return nil
}

// Unmount detaches from the channel. No callback runs after it returns.
func (b *Binding) Unmount() {
	b.mu.Lock()
	unsub := b.unsubscribe
	b.unsubscribe = nil
	b.mounted = false
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Refresh fetches the current snapshot from the resync endpoint now.
// Concurrent refreshes for the same channel collapse into one request.
func (b *Binding) Refresh(ctx context.Context) error {
	if b.client == nil {
		return nil
	}

	v, err, _ := refreshGroup.Do(b.channel, func() (any, error) {
		return b.client.Snapshot(ctx, b.channel)
	})
	if err != nil {
		b.mu.Lock()
		b.err = err
		b.loading = false
		notify := b.onChange
		view := b.viewLocked()
		b.mu.Unlock()

		if notify != nil {
			notify(view)
		}
		return err
	}

	snap := v.(model.StateSnapshot)

	// A refreshed snapshot is as authoritative as a pushed one: same
	// write-through, same delivery shape.
	if b.cache != nil {
		b.cache.Save(ctx, snap)
	}
	b.apply(snap, false, time.Now())

	return nil
}

// refreshOnce is the one scheduled post-mount refresh. Errors are recorded
// on the binding, not returned: mounting never fails because the resync
// endpoint is down.
func (b *Binding) refreshOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.Refresh(ctx); err != nil {
		b.logger.Warn("post-mount refresh failed", "error", err)
	}
}

func (b *Binding) onUpdate(u connection.Update) {
	b.apply(u.Snapshot, u.Synthetic, u.ReceivedAt)
}

func (b *Binding) apply(snap model.StateSnapshot, synthetic bool, at time.Time) {
	b.mu.Lock()
	b.state = snap
	b.synthetic = synthetic
	b.loading = false
	b.err = nil
	b.storedAt = at
	notify := b.onChange
	view := b.viewLocked()
	b.mu.Unlock()

	if notify != nil {
		notify(view)
	}
}

func (b *Binding) onConnState(s connection.State) {
	b.mu.Lock()
	b.connState = s
	notify := b.onChange
	view := b.viewLocked()
	b.mu.Unlock()

	if notify != nil {
		notify(view)
	}
}
