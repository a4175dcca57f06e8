package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/statesync/internal/backoff"
	"github.com/rickgao/statesync/internal/cache"
	"github.com/rickgao/statesync/internal/config"
	"github.com/rickgao/statesync/internal/connection"
	"github.com/rickgao/statesync/internal/database"
	"github.com/rickgao/statesync/internal/fallback"
	"github.com/rickgao/statesync/internal/journal"
	"github.com/rickgao/statesync/internal/metrics"
	"github.com/rickgao/statesync/internal/token"
	"github.com/rickgao/statesync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/syncd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting syncd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"stream_url", cfg.Server.StreamURL,
		"channels", cfg.Channels,
		"cache_backend", cfg.Cache.Backend,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Credential store
	tokens, err := token.Load(cfg.Server.TokenPath)
	if err != nil {
		logger.Error("failed to load token", "error", err)
		os.Exit(1)
	}
	if tokens.Get() == "" {
		logger.Warn("no credential available, running unauthenticated")
	}

	// Hydration cache store
	store, journalPool, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open cache store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Optional snapshot journal
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		pool := journalPool
		if pool == nil {
			pool, err = database.Connect(ctx, cfg.Journal.DB)
			if err != nil {
				logger.Error("failed to connect journal database", "error", err)
				os.Exit(1)
			}
			defer pool.Close()
		}

		jrnl = journal.New(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, pool, logger)

		if err := jrnl.Start(ctx); err != nil {
			logger.Error("failed to start journal", "error", err)
			os.Exit(1)
		}
		logger.Info("journal started")
	}

	// Registry: one manager per configured channel, all sharing the store
	// and the credential.
	registry := connection.NewRegistry(func(channel string) *connection.Manager {
		mcfg := connection.ManagerConfig{
			Channel:   channel,
			StreamURL: cfg.Server.StreamURL,
			Policy: backoff.Policy{
				Base:        cfg.Connection.ReconnectBaseDelay,
				Ceiling:     cfg.Connection.ReconnectMaxDelay,
				MaxAttempts: cfg.Connection.MaxAttempts,
			},
			Fallback: fallback.Config{
				MinInterval: cfg.Fallback.MinInterval,
				MaxInterval: cfg.Fallback.MaxInterval,
				Fixtures:    fallback.DefaultFixtures(),
			},
			PingTimeout:  cfg.Connection.PingTimeout,
			WriteTimeout: cfg.Connection.WriteTimeout,
			BufferSize:   cfg.Connection.BufferSize,
		}

		m := connection.NewManager(mcfg, cache.New(store, channel, cfg.Cache.TTL, logger), tokens, logger)
		connection.BindTokenStore(tokens, m)
		return m
	})

	// Attach a daemon-side subscriber per channel: it pins the transport
	// open and feeds the journal.
	for _, channel := range cfg.Channels {
		ch := channel
		m := registry.Get(ch)

		_, err := m.Subscribe(connection.Listener{
			OnUpdate: func(u connection.Update) {
				if jrnl != nil && !u.Synthetic {
					jrnl.Record(journal.Entry{
						Channel:    ch,
						Snapshot:   u.Snapshot,
						ReceivedAt: u.ReceivedAt,
					})
				}
			},
			OnState: func(s connection.State) {
				logger.Info("channel state", "channel", ch, "state", s)
			},
		})
		if err != nil {
			logger.Error("failed to subscribe", "channel", ch, "error", err)
			os.Exit(1)
		}
	}

	// Metrics + health server
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())
	mux.Handle("/health", healthHandler(registry, cfg.Channels))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("syncd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	httpServer.Shutdown(shutdownCtx)
	registry.Shutdown(shutdownCtx)
	if jrnl != nil {
		jrnl.Stop(shutdownCtx)
	}

	logger.Info("syncd stopped")
}

// openStore builds the configured cache store. When the cache and journal
// share a postgres instance the pool is reused.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Store, *pgxpool.Pool, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendBadger:
		store, err := cache.OpenBadger(cache.BadgerConfig{
			Dir:    cfg.Cache.Dir,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.CacheBackendPostgres:
		pool, err := database.Connect(ctx, cfg.Cache.DB)
		if err != nil {
			return nil, nil, err
		}
		store := cache.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}

		var journalPool *pgxpool.Pool
		if cfg.Journal.Enabled && cfg.Journal.DB == cfg.Cache.DB {
			journalPool = pool
		}
		return store, journalPool, nil

	default:
		return cache.NewMemoryStore(), nil, nil
	}
}

// healthHandler reports per-channel manager state.
func healthHandler(registry *connection.Registry, channels []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status   string                      `json:"status"`
			Channels map[string]connection.Stats `json:"channels"`
		}{
			Status:   "healthy",
			Channels: make(map[string]connection.Stats),
		}

		for _, ch := range channels {
			stats := registry.Get(ch).Stats()
			health.Channels[ch] = stats
			switch stats.State {
			case connection.StateExhausted:
				health.Status = "degraded"
			case connection.StateClosed:
				if health.Status == "healthy" {
					health.Status = "degraded"
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}
