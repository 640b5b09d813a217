package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/tokenmind/agent/internal/agent"
	"github.com/tokenmind/agent/internal/clock"
	"github.com/tokenmind/agent/internal/config"
	"github.com/tokenmind/agent/internal/ingest"
	"github.com/tokenmind/agent/internal/store"
)

// eventBufferSize is the ingest channel capacity between ticks.
const eventBufferSize = 2048

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("agent_starting",
		"tracked_tokens", len(cfg.TrackedTokens),
		"tick_interval", cfg.TickInterval,
		"initial_capital", cfg.InitialCapital,
		"api_key", cfg.MaskedEventAPIKey(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	source := ingest.NewSource(eventBufferSize)
	loop := agent.New(cfg, clock.System{}, source, db)

	if err := loop.Restore(); err != nil {
		slog.Warn("restore_failed", "error", err)
	}

	if cfg.EventWSURL != "" {
		listener := ingest.NewListener(cfg.EventWSURL, cfg.EventAPIKey, source.Chan())
		listener.SetTokens(cfg.TrackedTokens)
		listener.Start(ctx)
		defer listener.Stop()
		loop.SetIngestStatus("websocket")
	}

	if cfg.EventRESTURL != "" {
		poller := ingest.NewPoller(cfg.EventRESTURL, cfg.EventAPIKey, cfg.EventPollInterval, source.Chan())
		go poller.Start(ctx)
		if cfg.EventWSURL == "" {
			loop.SetIngestStatus("rest_poll")
		}
	}

	if cfg.EventWSURL == "" && cfg.EventRESTURL == "" {
		slog.Warn("no_event_source_configured")
	}

	loop.Run(ctx)

	slog.Info("agent_stopped", "total_value", loop.TotalValue())
	return nil
}

// openStore opens the state database, creating its directory first. An
// empty path disables persistence.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}

// setupLogger configures the global slog logger.
func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05"))
			}
			return a
		},
	})
	slog.SetDefault(slog.New(handler))
}
