// syncprobe connects to the streaming endpoint and prints classified
// frames to the console.
// Usage: go run ./cmd/syncprobe --config configs/syncd.local.yaml
//
// Optional environment variables:
//
//	STATESYNC_TOKEN - bearer token; overrides server.token_path
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/statesync/internal/backoff"
	"github.com/rickgao/statesync/internal/config"
	"github.com/rickgao/statesync/internal/connection"
	"github.com/rickgao/statesync/internal/fallback"
	"github.com/rickgao/statesync/internal/token"
)

func main() {
	configPath := flag.String("config", "configs/syncd.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full snapshot JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	// Credential
	tokens, err := token.Load(cfg.Server.TokenPath)
	if err != nil {
		logger.Error("failed to load token", "error", err)
		os.Exit(1)
	}

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

		// No cache: the probe observes, it does not persist.
		m := connection.NewManager(mcfg, nil, tokens, logger)
		connection.BindTokenStore(tokens, m)
		return m
	})

	for _, channel := range cfg.Channels {
		ch := channel
		m := registry.Get(ch)

		_, err := m.Subscribe(connection.Listener{
			OnUpdate: func(u connection.Update) {
				printUpdate(ch, u, *verbose)
			},
			OnAdvisory: func(raw json.RawMessage) {
				fmt.Printf("[ADVISORY] channel=%s %s\n", ch, raw)
			},
			OnState: func(s connection.State) {
				fmt.Printf("[STATE] channel=%s state=%s\n", ch, s)
			},
		})
		if err != nil {
			logger.Error("failed to subscribe", "channel", ch, "error", err)
			os.Exit(1)
		}
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, ch := range cfg.Channels {
					stats := registry.Get(ch).Stats()
					fmt.Printf("[STATS] channel=%s state=%s frames=%d snapshots=%d decode_errors=%d attempts=%d\n",
						ch, stats.State, stats.FramesReceived, stats.SnapshotsAccepted,
						stats.DecodeErrors, stats.Attempts)
				}
			}
		}
	}()

	fmt.Println("probing - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	registry.Shutdown(shutdownCtx)
}

func printUpdate(channel string, u connection.Update, verbose bool) {
	origin := "live"
	if u.Synthetic {
		origin = "synthetic"
	}

	if verbose {
		data, _ := json.MarshalIndent(u.Snapshot, "", "  ")
		fmt.Printf("[SNAPSHOT] channel=%s origin=%s\n%s\n", channel, origin, data)
		return
	}

	fmt.Printf("[SNAPSHOT] channel=%s origin=%s nodes=%d edges=%d mode=%s received=%s\n",
		channel, origin, len(u.Snapshot.Nodes), len(u.Snapshot.Edges),
		u.Snapshot.Mode, u.ReceivedAt.Format(time.RFC3339Nano))
}
