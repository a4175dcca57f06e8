package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/statesync/internal/cache"
	"github.com/rickgao/statesync/internal/classify"
	"github.com/rickgao/statesync/internal/fallback"
	"github.com/rickgao/statesync/internal/metrics"
	"github.com/rickgao/statesync/internal/model"
	"github.com/rickgao/statesync/internal/token"
)

// subscriber is one mounted consumer. The active flag is flipped off at
// unsubscribe time so a broadcast already in flight skips it.
type subscriber struct {
	id       string
	listener Listener
	active   atomic.Bool
}

// Manager owns the single transport for one logical channel and fans
// accepted snapshots out to subscribers. All subscribers share the one
// connection; the first subscriber triggers the dial and later ones attach
// to whatever state the channel is already in.
type Manager struct {
	cfg    ManagerConfig
	cache  *cache.Cache
	tokens token.Provider
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	ch        Channel
	attempts  int
	dialing   bool
	suspended bool
	closed    bool
	subs      map[string]*subscriber
	gen       *fallback.Generator
	timer     *time.Timer

	shutdown chan struct{}
	wg       sync.WaitGroup

	framesReceived    atomic.Int64
	snapshotsAccepted atomic.Int64
	decodeErrors      atomic.Int64
}

// NewManager creates a manager for one channel. cache may be nil to run
// without persistence; tokens may be nil to run unauthenticated.
func NewManager(cfg ManagerConfig, c *cache.Cache, tokens token.Provider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:      cfg,
		cache:    c,
		tokens:   tokens,
		logger:   logger.With("channel", cfg.Channel),
		state:    StateIdle,
		subs:     make(map[string]*subscriber),
		shutdown: make(chan struct{}),
	}

	m.gen = fallback.New(cfg.Fallback, m.emitSynthetic, m.logger)

	return m
}

// Subscribe registers a listener and returns its unsubscribe function.
// The first subscriber on an idle channel triggers the connection attempt;
// every later subscriber attaches to the existing transport.
//
// Unsubscribing does not tear the transport down, even for the last
// subscriber: churny consumers would otherwise pay a reconnect round trip
// each time, and an open idle socket is cheap.
func (m *Manager) Subscribe(l Listener) (func(), error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return nil, ErrAlreadyClosed
	}

	sub := &subscriber{
		id:       uuid.New().String(),
		listener: l,
	}
	sub.active.Store(true)
	m.subs[sub.id] = sub
	metrics.Subscribers.WithLabelValues(m.cfg.Channel).Set(float64(len(m.subs)))

	current := m.state
	trigger := m.state == StateIdle && !m.suspended
	if trigger {
		m.toStateLocked(StateConnecting)
	}
	m.mu.Unlock()

	if l.OnState != nil {
		if trigger {
			l.OnState(StateConnecting)
		} else {
			l.OnState(current)
		}
	}

	if trigger {
		m.spawn(m.connect)
	}

	return func() { m.unsubscribe(sub) }, nil
}

// spawn runs fn on a tracked goroutine. The add happens under the lock
// guarding closed, so Shutdown's wait cannot race a late add.
func (m *Manager) spawn(fn func()) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		fn()
	}()
}

func (m *Manager) unsubscribe(sub *subscriber) {
	// Flip the flag first: a broadcast iterating a set snapshot taken
	// before removal checks it per delivery.
	sub.active.Store(false)

	m.mu.Lock()
	delete(m.subs, sub.id)
	metrics.Subscribers.WithLabelValues(m.cfg.Channel).Set(float64(len(m.subs)))
	m.mu.Unlock()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a point-in-time view for diagnostics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		State:             m.state,
		Subscribers:       len(m.subs),
		Attempts:          m.attempts,
		FramesReceived:    m.framesReceived.Load(),
		SnapshotsAccepted: m.snapshotsAccepted.Load(),
		DecodeErrors:      m.decodeErrors.Load(),
	}
}

// Reconnect resets the attempt counter and dials again. This is the manual
// escape hatch out of the exhausted state.
func (m *Manager) Reconnect() error {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.suspended {
		m.mu.Unlock()
		return ErrAuthRejected
	}
	if m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return nil
	}

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.attempts = 0
	m.toStateLocked(StateConnecting)
	m.mu.Unlock()

	m.gen.Stop()
	m.notifyState(StateConnecting)
	m.spawn(m.connect)

	return nil
}

// HandleUnauthorized reacts to a credential invalidation: the cache is
// cleared so one session's data cannot leak into the next, the transport
// is dropped, and reconnection is suspended until Resume. The configured
// OnUnauthorized callback fires last, after the cleanup is observable.
func (m *Manager) HandleUnauthorized() {
	if m.cache != nil {
		m.cache.Clear(context.Background())
		metrics.CacheOpsTotal.WithLabelValues(m.cfg.Channel, "clear").Inc()
	}

	m.mu.Lock()
	m.suspended = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	ch := m.ch
	m.ch = nil
	m.toStateLocked(StateClosed)
	m.mu.Unlock()

	m.gen.Stop()
	if ch != nil {
		ch.Close()
	}
	m.notifyState(StateClosed)

	m.logger.Warn("credential invalidated, reconnection suspended")

	if m.cfg.OnUnauthorized != nil {
		m.cfg.OnUnauthorized()
	}
}

// Resume lifts an unauthorized suspension, typically on token refresh, and
// dials again if anyone is still subscribed.
func (m *Manager) Resume() {
	m.mu.Lock()

	if m.closed || !m.suspended {
		m.mu.Unlock()
		return
	}
	m.suspended = false
	m.attempts = 0

	if len(m.subs) == 0 {
		m.toStateLocked(StateIdle)
		m.mu.Unlock()
		m.notifyState(StateIdle)
		return
	}

	m.toStateLocked(StateConnecting)
	m.mu.Unlock()
	m.notifyState(StateConnecting)
	m.spawn(m.connect)
}

// Shutdown tears the manager down: pending reconnects are cancelled, the
// generator and transport are stopped, and in-flight goroutines are waited
// for up to the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	ch := m.ch
	m.ch = nil
	m.mu.Unlock()

	close(m.shutdown)
	m.gen.Stop()
	if ch != nil {
		ch.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("connection manager shutdown timed out")
		return ctx.Err()
	}
}

// connect performs one dial attempt. Runs on its own goroutine. The dialing
// flag keeps two attempts from running concurrently: a retry timer firing
// and a manual Reconnect can both spawn connects before either takes the
// lock, and the loser must stand down.
func (m *Manager) connect() {
	m.mu.Lock()
	if m.closed || m.suspended || m.dialing {
		m.mu.Unlock()
		return
	}
	m.dialing = true
	m.toStateLocked(StateConnecting)
	m.mu.Unlock()
	m.notifyState(StateConnecting)

	ch := m.dial()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err := ch.Connect(ctx)
	cancel()

	if err != nil {
		m.logger.Warn("connect failed", "error", err)
		m.handleDisconnect(ch, err)
		return
	}

	if tok := m.token(); tok != "" {
		frame, _ := encodeAuthFrame(tok)
		if err := ch.Send(frame); err != nil {
			m.logger.Warn("auth frame send failed", "error", err)
			ch.Close()
			m.handleDisconnect(ch, err)
			return
		}
	}

	m.mu.Lock()
	if m.closed || m.suspended {
		m.dialing = false
		m.mu.Unlock()
		ch.Close()
		return
	}
	m.ch = ch
	m.attempts = 0
	m.dialing = false
	m.toStateLocked(StateOpen)
	m.mu.Unlock()

	m.gen.Stop()
	m.notifyState(StateOpen)
	m.logger.Info("channel open", "url", m.cfg.StreamURL)

	m.spawn(func() { m.readLoop(ch) })
}

func (m *Manager) dial() Channel {
	if m.cfg.Dial != nil {
		return m.cfg.Dial()
	}
	return NewWSChannel(ChannelConfig{
		URL:          m.cfg.StreamURL,
		PingTimeout:  m.cfg.PingTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}, m.logger)
}

func (m *Manager) token() string {
	if m.tokens == nil {
		return ""
	}
	return m.tokens.Get()
}

// readLoop consumes one channel's frames until it errors or the manager
// shuts down. Frames are processed strictly in arrival order on this
// goroutine, so subscribers observe snapshots in the order the server
// sent them.
func (m *Manager) readLoop(ch Channel) {
	for {
		select {
		case <-m.shutdown:
			return
		case msg := <-ch.Messages():
			if !m.handleFrame(ch, msg) {
				return
			}
		case err := <-ch.Errors():
			m.logger.Warn("channel error", "error", err)
			m.handleDisconnect(ch, err)
			return
		}
	}
}

// handleFrame processes one frame. The false return tells the read loop
// its channel is gone and it should exit.
func (m *Manager) handleFrame(ch Channel, msg TimestampedMessage) bool {
	m.framesReceived.Add(1)

	res, err := classify.Classify(msg.Data)
	if err != nil {
		// One bad frame never costs the connection.
		m.decodeErrors.Add(1)
		metrics.DecodeErrorsTotal.WithLabelValues(m.cfg.Channel).Inc()
		m.logger.Warn("dropping malformed frame", "error", err)
		return true
	}

	metrics.FramesTotal.WithLabelValues(m.cfg.Channel, res.Class.String()).Inc()

	switch res.Class {
	case classify.ClassSnapshot:
		m.snapshotsAccepted.Add(1)

		// Write-through before fan-out: a consumer mounting mid-broadcast
		// hydrates to the same snapshot its peers just received.
		if m.cache != nil {
			m.cache.Save(context.Background(), res.Snapshot)
			metrics.CacheOpsTotal.WithLabelValues(m.cfg.Channel, "write").Inc()
		}

		m.broadcast(Update{
			Snapshot:   res.Snapshot,
			ReceivedAt: msg.ReceivedAt,
		})

	case classify.ClassAdvisory:
		m.broadcastAdvisory(res)

	case classify.ClassIgnore:
		if res.Kind == classify.KindAuthRejected {
			// Server-side rejection of the auth frame: treated as any
			// other connection failure so the normal retry path applies.
			m.logger.Warn("auth frame rejected by server")
			ch.Close()
			m.handleDisconnect(ch, ErrAuthRejected)
			return false
		}
	}

	return true
}

// handleDisconnect drives the Closed -> Connecting / Exhausted transition.
// The ch identity check discards late errors from transports the manager
// has already moved past.
func (m *Manager) handleDisconnect(ch Channel, cause error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.ch != nil && m.ch != ch {
		m.mu.Unlock()
		return
	}
	m.ch = nil
	m.dialing = false
	m.toStateLocked(StateClosed)

	if m.suspended {
		m.mu.Unlock()
		ch.Close()
		m.notifyState(StateClosed)
		return
	}

	if m.cfg.Policy.Exhausted(m.attempts) {
		m.toStateLocked(StateExhausted)
		m.mu.Unlock()
		ch.Close()
		m.notifyState(StateExhausted)

		m.logger.Error("reconnection attempts exhausted, engaging fallback",
			"attempts", m.attempts,
			"cause", cause,
		)
		m.gen.Start()
		return
	}

	delay := m.cfg.Policy.NextDelay(m.attempts)
	m.attempts++
	metrics.ReconnectAttemptsTotal.WithLabelValues(m.cfg.Channel).Inc()

	m.timer = time.AfterFunc(delay, func() {
		m.spawn(m.connect)
	})
	attempt := m.attempts
	m.mu.Unlock()

	ch.Close()
	m.notifyState(StateClosed)

	m.logger.Info("reconnecting",
		"attempt", attempt,
		"delay", delay,
		"cause", cause,
	)
}

// broadcast delivers an update to every active subscriber. The set is
// snapshotted under the lock, then deliveries happen outside it; each
// subscriber's active flag is re-checked per delivery so an unsubscribe
// racing the fan-out suppresses its own delivery.
func (m *Manager) broadcast(u Update) {
	m.mu.Lock()
	targets := make([]*subscriber, 0, len(m.subs))
	for _, sub := range m.subs {
		targets = append(targets, sub)
	}
	m.mu.Unlock()

	origin := "live"
	if u.Synthetic {
		origin = "synthetic"
	}
	metrics.BroadcastsTotal.WithLabelValues(m.cfg.Channel, origin).Inc()

	for _, sub := range targets {
		if !sub.active.Load() {
			continue
		}
		if sub.listener.OnUpdate != nil {
			sub.listener.OnUpdate(u)
		}
	}
}

// broadcastAdvisory delivers an advisory only to subscribers that opted in.
// Advisories never touch the cache.
func (m *Manager) broadcastAdvisory(res classify.Result) {
	m.mu.Lock()
	targets := make([]*subscriber, 0, len(m.subs))
	for _, sub := range m.subs {
		if sub.listener.OnAdvisory != nil {
			targets = append(targets, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range targets {
		if !sub.active.Load() {
			continue
		}
		sub.listener.OnAdvisory(res.Advisory)
	}
}

// emitSynthetic is the fallback generator's sink. Synthetic snapshots take
// the normal broadcast path but bypass the cache: fabricated state must
// never masquerade as persisted truth.
func (m *Manager) emitSynthetic(snap model.StateSnapshot) {
	metrics.FallbackEmissionsTotal.WithLabelValues(m.cfg.Channel).Inc()
	m.broadcast(Update{
		Snapshot:   snap,
		Synthetic:  true,
		ReceivedAt: time.Now(),
	})
}

// toStateLocked records a transition. Caller holds m.mu; subscriber
// notification happens separately via notifyState, outside the lock.
func (m *Manager) toStateLocked(s State) {
	m.state = s
	metrics.ConnectionState.WithLabelValues(m.cfg.Channel).Set(float64(s))
}

// notifyState fans a state change out to subscribers with OnState hooks.
func (m *Manager) notifyState(s State) {
	m.mu.Lock()
	targets := make([]*subscriber, 0, len(m.subs))
	for _, sub := range m.subs {
		if sub.listener.OnState != nil {
			targets = append(targets, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range targets {
		if !sub.active.Load() {
			continue
		}
		sub.listener.OnState(s)
	}
}
