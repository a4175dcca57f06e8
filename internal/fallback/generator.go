// Package fallback fabricates plausible state once reconnection is
// exhausted, so a disconnected screen conveys liveness instead of freezing.
//
// Synthetic snapshots flow through the same broadcast path as real ones but
// are flagged synthetic and must never reach the persistent cache.
package fallback

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/rickgao/statesync/internal/model"
)

// Config holds generator settings.
type Config struct {
	MinInterval time.Duration // lower bound between emissions
	MaxInterval time.Duration // upper bound between emissions
	Fixtures    []model.StateSnapshot
}

// DefaultConfig returns the standard emission window and fixture space.
func DefaultConfig() Config {
	return Config{
		MinInterval: 1 * time.Second,
		MaxInterval: 4 * time.Second,
		Fixtures:    DefaultFixtures(),
	}
}

// DefaultFixtures is a small representative fixture space: a few plausible
// graph shapes the generator cycles through at random.
func DefaultFixtures() []model.StateSnapshot {
	return []model.StateSnapshot{
		{
			Nodes: []model.Node{
				{ID: "gateway", Kind: "service", Status: "up"},
				{ID: "worker-1", Kind: "worker", Status: "up"},
				{ID: "worker-2", Kind: "worker", Status: "degraded"},
			},
			Edges: []model.Edge{
				{Source: "gateway", Target: "worker-1"},
				{Source: "gateway", Target: "worker-2"},
			},
			Mode: "synthetic",
		},
		{
			Nodes: []model.Node{
				{ID: "gateway", Kind: "service", Status: "up"},
				{ID: "worker-1", Kind: "worker", Status: "up"},
			},
			Edges: []model.Edge{
				{Source: "gateway", Target: "worker-1"},
			},
			Mode: "synthetic",
		},
		{
			Nodes: []model.Node{
				{ID: "gateway", Kind: "service", Status: "degraded"},
			},
			Mode: "synthetic",
		},
	}
}

// Generator emits synthetic snapshots on a jittered interval.
type Generator struct {
	cfg    Config
	emit   func(model.StateSnapshot)
	logger *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// New creates a generator. emit is called from the generator's goroutine
// for every synthetic snapshot.
func New(cfg Config, emit func(model.StateSnapshot), logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Fixtures) == 0 {
		cfg.Fixtures = DefaultFixtures()
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 1 * time.Second
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}

	return &Generator{
		cfg:    cfg,
		emit:   emit,
		logger: logger,
	}
}

// Start begins emitting. Calling Start on a running generator is a no-op.
func (g *Generator) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return
	}
	g.running = true
	g.stop = make(chan struct{})

	g.wg.Add(1)
	go g.run(g.stop)

	g.logger.Info("fallback generator started",
		"min_interval", g.cfg.MinInterval,
		"max_interval", g.cfg.MaxInterval,
		"fixtures", len(g.cfg.Fixtures),
	)
}

// Stop cancels emission immediately and waits for the goroutine to exit,
// so no synthetic snapshot is delivered after Stop returns. Idempotent.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.stop)
	g.mu.Unlock()

	g.wg.Wait()
	g.logger.Info("fallback generator stopped")
}

// Running reports whether the generator is currently emitting.
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *Generator) run(stop <-chan struct{}) {
	defer g.wg.Done()

	timer := time.NewTimer(g.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			g.emit(g.nextSnapshot())
			timer.Reset(g.nextInterval())
		}
	}
}

// nextInterval draws uniformly from [MinInterval, MaxInterval].
func (g *Generator) nextInterval() time.Duration {
	span := g.cfg.MaxInterval - g.cfg.MinInterval
	if span <= 0 {
		return g.cfg.MinInterval
	}
	return g.cfg.MinInterval + time.Duration(rand.Int63n(int64(span)))
}

// nextSnapshot picks a fixture and perturbs its counters so consecutive
// emissions visibly differ.
func (g *Generator) nextSnapshot() model.StateSnapshot {
	snap := g.cfg.Fixtures[rand.Intn(len(g.cfg.Fixtures))].Clone()

	if snap.Counters == nil {
		snap.Counters = make(map[string]int64, 1)
	}
	snap.Counters["events"] += rand.Int63n(10)

	return snap
}
