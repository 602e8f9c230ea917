package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/use-agent/gnresolver/api"
	"github.com/use-agent/gnresolver/browser"
	"github.com/use-agent/gnresolver/config"
	"github.com/use-agent/gnresolver/gate"
	"github.com/use-agent/gnresolver/logging"
	"github.com/use-agent/gnresolver/metrics"
	"github.com/use-agent/gnresolver/resolver"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("gnresolver starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"gate_capacity", cfg.Gate.Capacity,
		"max_attempts", cfg.Resolver.MaxAttempts,
	)

	// ── 3. Build the resolution pipeline ────────────────────────────
	// No browser is started here; every attempt launches its own.
	m := metrics.New()
	loader := browser.NewRodLoader(cfg.Browser, cfg.Resolver)
	g := gate.New(cfg.Gate.Capacity)
	rs := resolver.New(loader, g, resolver.PolicyFromConfig(cfg.Resolver),
		resolver.WithMetrics(m),
	)

	// ── 4. Setup router ─────────────────────────────────────────────
	lifetime, abort := context.WithCancel(context.Background())
	defer abort()
	router := api.NewRouter(lifetime, rs, m, cfg)

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		// Abort what is still running; each attempt tears down its own
		// browser on the way out.
		abort()
		slog.Error("HTTP server forced shutdown", "error", err, "in_flight", g.Active())
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("gnresolver stopped")
}

// initLogger configures slog based on the LogConfig. Records logged with a
// request context carry its request id.
func initLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: logging.ParseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(logging.NewContextHandler(handler)))
}
