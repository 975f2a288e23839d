// Ecwid storefront proxy - exposes the Ecwid cart widget as an HTTP API by
// driving it in a headless browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecwid-proxy/internal/config"
	"ecwid-proxy/internal/ecwid"
	"ecwid-proxy/internal/handler"
	"ecwid-proxy/internal/middleware"
	"ecwid-proxy/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg)

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("log_level", cfg.Level().String()),
		slog.String("storefront_url", cfg.Storefront.URL),
		slog.String("browser_mode", cfg.Browser.Mode),
		slog.Bool("browser_reuse", cfg.Browser.Reuse),
	)

	bridge, err := newBridge(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating storefront bridge: %w", err)
	}
	defer func() {
		if err := bridge.Close(); err != nil {
			logger.Warn("closing browser failed", slog.String("error", err.Error()))
		}
	}()

	// Warm the shared browser. A failure is logged only: the first request
	// retries the launch.
	if err := bridge.Start(ctx); err != nil {
		logger.Warn("browser not started, will retry on first request", slog.String("error", err.Error()))
	}

	probe := transport.NewProber(cfg.Storefront.URL, nil, 10*time.Second)
	h := handler.New(bridge, probe, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request ID → logging → CORS → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// newBridge wires the storefront bridge to a go-rod launcher.
func newBridge(cfg *config.Config, logger *slog.Logger) (*ecwid.Bridge, error) {
	launch := ecwid.NewRodLauncher(ecwid.LaunchConfig{
		Mode:       ecwid.LaunchMode(cfg.Browser.Mode),
		Bin:        cfg.Browser.Bin,
		ControlURL: cfg.Browser.ControlURL,
		Headless:   cfg.Browser.Headless,
		Flags:      cfg.Browser.Flags,
	}, logger)

	return ecwid.New(ecwid.Config{
		StorefrontURL:      cfg.Storefront.URL,
		WidgetTimeout:      cfg.Storefront.WidgetTimeout,
		ActionTimeout:      cfg.Storefront.ActionTimeout,
		ReuseBrowser:       cfg.Browser.Reuse,
		MinBrowserVersion:  cfg.Browser.MinVersion,
		MaxConcurrentPages: cfg.Browser.MaxConcurrentPages,
	}, launch, logger)
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg.Environment, cfg.Level())
}

func newLogger(w io.Writer, environment string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
