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

	"github.com/efreitasn/lobster/internal/config"
	"github.com/efreitasn/lobster/internal/engine"
	"github.com/efreitasn/lobster/internal/handler"
	"github.com/efreitasn/lobster/internal/service"
	"github.com/efreitasn/lobster/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// -healthcheck: GET localhost:PORT/healthz, exit 0/1.
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

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

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

	// Engine.
	ids, err := engine.NewTradeIDGenerator(cfg.TradeIDScheme)
	if err != nil {
		logger.Error("failed to create trade id generator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	registry := engine.NewRegistry(engine.WithTradeIDGenerator(ids))

	// Services. The webhook service checks symbols against the market, and
	// the market publishes events through the webhook service.
	market := service.NewMarketService(registry,
		service.WithLogger(logger),
		service.WithDepthLimits(cfg.DefaultDepth, cfg.MaxDepth),
	)
	webhookSvc := service.NewWebhookService(store.NewWebhookStore(), market, cfg.WebhookTimeout, logger)
	market.SetEventDispatcher(webhookSvc)

	for _, symbol := range cfg.Symbols {
		if err := market.RegisterSymbol(symbol); err != nil {
			logger.Error("failed to register symbol",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	router := handler.NewRouter(market, webhookSvc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batch := engine.NewBatchRunner(cfg.MatchInterval, market, logger)
	batch.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.Int("symbols", len(cfg.Symbols)),
			slog.Duration("match_interval", cfg.MatchInterval),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	// Let in-flight webhook deliveries finish; each is bounded by the
	// client timeout.
	webhookSvc.Wait()

	logger.Info("server stopped",
		slog.Int64("batch_passes", batch.Passes()),
		slog.Int64("batch_trades", batch.TradeCount()),
	)
}
