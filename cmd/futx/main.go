package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmarinho/futx/internal/config"
	"github.com/fmarinho/futx/internal/domain"
	"github.com/fmarinho/futx/internal/engine"
	"github.com/fmarinho/futx/internal/handler"
	"github.com/fmarinho/futx/internal/service"
	"github.com/fmarinho/futx/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Stores.
	orderStore := store.NewOrderStore()
	ledger := store.NewTradeLedger()
	webhookStore := store.NewWebhookStore()

	// Contract universe is fixed at startup; metadata beyond the symbol
	// list lives with the reference-data service.
	contracts := domain.NewContractRegistry(cfg.Symbols)

	// Engine.
	books := engine.NewBookManager()
	matcher := engine.NewMatcher(books, orderStore, ledger, contracts)

	// Services.
	webhookSvc := service.NewWebhookService(webhookStore, cfg.WebhookTimeout)
	expiryMgr := engine.NewExpiryManager(cfg.ExpirationInterval, books, webhookSvc)
	orderSvc := service.NewOrderService(matcher, expiryMgr, orderStore, ledger, webhookSvc, contracts)
	marketSvc := service.NewMarketService(ledger, books, matcher, cfg.VWAPWindow, contracts)

	// Router.
	router := handler.NewRouter(orderSvc, marketSvc, webhookSvc, logger)

	// Start expiration goroutine with cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	expiryMgr.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.Int("contracts", len(cfg.Symbols)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops expiry goroutine).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
