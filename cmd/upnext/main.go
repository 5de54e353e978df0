package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/upnext/api"
	"github.com/use-agent/upnext/cache"
	"github.com/use-agent/upnext/config"
	"github.com/use-agent/upnext/engine"
	"github.com/use-agent/upnext/recs"
	"github.com/use-agent/upnext/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("upnext starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Engine.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── 3. Page source (browser launches lazily) ────────────────────
	eng, sc, err := buildEngine(cfg)
	if err != nil {
		slog.Error("failed to initialise engine", "error", err)
		os.Exit(1)
	}
	if sc != nil {
		defer sc.Close()
	}

	// ── 4. Result cache ─────────────────────────────────────────────
	mem := cache.NewMemory(cfg.Cache.TTL, cache.WithMaxEntries(cfg.Cache.MaxEntries))
	if cfg.Cache.SweepInterval > 0 {
		go mem.RunSweeper(rootCtx, cfg.Cache.SweepInterval)
	}
	var store cache.Store = mem
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(rootCtx, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			// The shared cache is optional; serve from memory alone.
			slog.Warn("redis cache unavailable, using memory only", "error", err)
		} else {
			defer rc.Close()
			store = cache.NewTiered(mem, rc)
			slog.Info("redis cache enabled")
		}
	}

	// ── 5. Orchestrator + router ────────────────────────────────────
	svc := recs.NewService(eng, store, cfg.Extract.MaxItems)
	deps := api.Deps{
		Resolver:   svc,
		EngineName: svc.EngineName(),
		StartTime:  time.Now(),
	}
	if sc != nil {
		deps.Sessions = sc
	}
	router := api.NewRouter(deps, cfg)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// sc.Close() runs via defer and kills the browser if one was launched.
	slog.Info("upnext stopped")
}

// buildEngine selects the page source for cfg.Engine.Mode. The returned
// scraper is nil when no browser backs the engine.
func buildEngine(cfg *config.Config) (engine.Engine, *scraper.Scraper, error) {
	httpEngine := func() engine.Engine {
		return engine.NewHTTPEngine(engine.HTTPEngineConfig{
			Timeout:   cfg.Engine.HTTPTimeout,
			UserAgent: cfg.Browser.UserAgent,
			Locale:    cfg.Browser.Locale,
			Region:    cfg.Browser.Region,
		})
	}

	switch cfg.Engine.Mode {
	case "http":
		return httpEngine(), nil, nil

	case "browser":
		sc := scraper.NewScraper(cfg.Browser, cfg.Scraper)
		return engine.NewRodEngine(sc.Snapshot), sc, nil

	case "auto":
		// The rod callback keeps engine/ free of any scraper import.
		sc := scraper.NewScraper(cfg.Browser, cfg.Scraper)
		engines := []engine.Engine{httpEngine(), engine.NewRodEngine(sc.Snapshot)}
		pref := engine.NewPreference(cfg.Engine.PreferenceTTL)
		slog.Info("multi-engine dispatcher enabled",
			"engines", len(engines),
			"delays", cfg.Engine.EscalationDelays,
		)
		return engine.NewDispatcher(engines, cfg.Engine.EscalationDelays, pref), sc, nil

	default:
		return nil, nil, fmt.Errorf("unknown engine mode %q (want browser, http or auto)", cfg.Engine.Mode)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
