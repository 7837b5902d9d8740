// Command voxpal is the main entry point for the voxpal speech server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/voxpal/internal/app"
	"github.com/MrWong99/voxpal/internal/config"
	"github.com/MrWong99/voxpal/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Duration("watch", config.DefaultWatchInterval, "config reload polling interval (0 disables reloading)")
	flag.Parse()

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	// ── Load configuration ────────────────────────────────────────────────────
	var application *app.App
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		application.Reload(old, new)
	}, config.WithInterval(*watch))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxpal: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxpal: %v\n", err)
		}
		return 1
	}
	cfg := watcher.Current()
	level.Set(app.SlogLevel(cfg.Server.LogLevel))

	slog.Info("voxpal starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Environment:    os.Getenv("VOXPAL_ENV"),
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	printStartupSummary(cfg)

	opts := []app.Option{app.WithLogLevel(&level)}
	if *watch > 0 {
		opts = append(opts, app.WithWatcher(watcher))
	}
	application, err = app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         voxpal, startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Standard TTS", "google")
	premium := "(not configured)"
	if cfg.Providers.ElevenLabs.APIKey != "" {
		premium = "elevenlabs"
	}
	printRow("Premium TTS", premium)
	cache := string(cfg.Edge.Cache.Backend)
	if cache == "" {
		cache = string(config.CacheMemory)
	}
	printRow("Audio cache", cache)
	store := "memory"
	if cfg.Database.PostgresDSN != "" {
		store = "postgres"
	}
	printRow("Characters", fmt.Sprintf("%s (%d seeded)", store, len(cfg.Characters)))
	auth := "(disabled)"
	if cfg.Auth.Enabled() {
		auth = "jwt"
	}
	printRow("Auth", auth)
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, clip(value, 19))
}

// clip shortens value to at most width runes, marking the cut with an
// ellipsis.
func clip(value string, width int) string {
	if utf8.RuneCountInString(value) <= width {
		return value
	}
	r := []rune(value)
	return string(r[:width-1]) + "…"
}
