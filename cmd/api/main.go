package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"sparkline-service/internal/application/dto"
	"sparkline-service/internal/application/services"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/exchange/hyperliquid"
	"sparkline-service/internal/infrastructure/logging"
	"sparkline-service/internal/infrastructure/metrics"
	"sparkline-service/internal/infrastructure/ratelimit"
	"sparkline-service/internal/infrastructure/repositories/cache"
	"sparkline-service/internal/infrastructure/repositories/store"
	"sparkline-service/internal/infrastructure/resilience"
	"sparkline-service/internal/infrastructure/web"
	"sparkline-service/internal/infrastructure/web/handlers"
	"sparkline-service/internal/infrastructure/web/middleware"
	"sparkline-service/internal/infrastructure/web/server"
)

const (
	serviceVersion = "1.0.0"
	startupTimeout = 15 * time.Second
)

func main() {
	ctx := context.Background()
	environment := config.GetEnvironment()

	cfg, err := config.NewLoader().LoadForEnvironment(environment)
	if err != nil {
		logging.ErrorWithError(ctx, "Failed to load configuration", err, nil)
		os.Exit(1)
	}

	loggerConfig := logging.NewConfig("sparkline-service", serviceVersion, environment, logging.Settings{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err := logging.InitializeGlobalLoggers(loggerConfig); err != nil {
		logging.ErrorWithError(ctx, "Failed to initialize logger", err, nil)
		os.Exit(1)
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		logging.ErrorWithError(ctx, "Invalid configuration", err, nil)
		os.Exit(1)
	}

	logging.Info(ctx, "Starting sparkline service", logging.Fields{
		"environment":   environment,
		"port":          cfg.Server.Port,
		"store_backend": cfg.Store.Backend,
		"live_feed":     cfg.LiveFeed.Enabled,
	})
	metrics.SetApplicationInfo(serviceVersion, runtime.Version())

	clk := clock.NewReal()

	// Persistent tier: un fallo de Init deja el tier deshabilitado, no aborta
	initCtx, cancelInit := context.WithTimeout(ctx, startupTimeout)
	backend, err := store.New(initCtx, cfg.Store)
	if err != nil {
		logging.WarnWithError(ctx, "Persistent store unavailable, running memory only", err, logging.Fields{
			"backend": cfg.Store.Backend,
		})
		backend = nil
	}
	persistent := cache.NewPersistentCache(backend, cfg.Store.Table, cfg.Sparkline.PersistentTTL, cfg.Sparkline.MaxPersistentEntries, clk)
	if err := persistent.Init(initCtx); err != nil {
		logging.WarnWithError(ctx, "Persistent cache init failed, running memory only", err, nil)
	}
	cancelInit()

	memory := cache.NewMemoryCache(cfg.Sparkline.MaxMemoryEntries, cfg.Sparkline.MemoryTTL, clk, persistent)

	// Upstream
	policy := resilience.NewPolicy(hyperliquid.ServiceName, cfg.Retry, resilience.WithClock(clk))
	restClient := hyperliquid.NewRestClient(cfg.Exchange.Hyperliquid, policy)

	var (
		live     interfaces.LivePriceSource
		feed     handlers.FeedStatus
		wsClient *hyperliquid.WebSocketClient
	)
	if cfg.LiveFeed.Enabled {
		book := hyperliquid.NewPriceBook(clk)
		seedCtx, cancelSeed := context.WithTimeout(ctx, startupTimeout)
		if n, err := book.Seed(seedCtx, restClient); err != nil {
			logging.WarnWithError(ctx, "Failed to seed live prices", err, nil)
		} else {
			logging.Info(ctx, "Live prices seeded", logging.Fields{"coins": n})
		}
		cancelSeed()

		wsClient = hyperliquid.NewWebSocketClient(cfg.Exchange.Hyperliquid.WebSocketURL, cfg.LiveFeed, book)
		if err := wsClient.Connect(); err != nil {
			// el cliente reintenta solo; el merge usa los precios sembrados mientras tanto
			logging.WarnWithError(ctx, "Live feed connection failed, will retry", err, nil)
		}
		live = book
		feed = wsClient
	}

	sparklineService := services.NewSparklineService(cfg.Sparkline, restClient, live, memory, persistent, clk)
	sparklineService.Start(ctx)

	if len(cfg.Sparkline.WarmupSymbols) > 0 {
		market, err := dto.ParseMarketType(cfg.Sparkline.WarmupMarketType)
		if err != nil {
			logging.WarnWithError(ctx, "Invalid warmup market type, skipping warmup", err, nil)
		} else {
			hydrateCtx, cancelHydrate := context.WithTimeout(ctx, startupTimeout)
			if err := sparklineService.HydrateFromCache(hydrateCtx, cfg.Sparkline.WarmupSymbols, market); err != nil {
				logging.WarnWithError(ctx, "Warmup hydrate aborted", err, nil)
			}
			cancelHydrate()
			sparklineService.PrefetchSparklines(ctx, cfg.Sparkline.WarmupSymbols, market)
		}
	}

	// HTTP
	rateLimiter := ratelimit.NewRateLimitMiddlewareWithConfig(cfg.RateLimit)
	router := web.NewRouter(web.RouterDeps{
		Sparklines: handlers.NewSparklineHandler(sparklineService, dto.NewSparklineMapper(cfg.Sparkline.MemoryTTL), clk),
		Lifecycle:  handlers.NewLifecycleHandler(sparklineService, feed, rateLimiter, clk),
		Health:     handlers.NewHealthHandler(sparklineService, feed),
		Auth:       middleware.NewAuthMiddleware(cfg.Auth),
		RateLimit:  rateLimiter.Handler,
	})
	httpServer := server.NewServer(router, cfg.Server.Port)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Info(ctx, "Shutdown signal received", logging.Fields{"signal": sig.String()})
	case err := <-serverErr:
		if err != nil {
			logging.ErrorWithError(ctx, "HTTP server failed", err, nil)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logging.ErrorWithError(ctx, "HTTP server forced to shutdown", err, nil)
	}

	sparklineService.Dispose()

	if wsClient != nil {
		if err := wsClient.Close(); err != nil {
			logging.WarnWithError(ctx, "Error closing live feed", err, nil)
		}
	}
	if backend != nil {
		if err := backend.Close(); err != nil {
			logging.WarnWithError(ctx, "Error closing persistent store", err, nil)
		}
	}

	logging.Info(ctx, "Server shutdown completed", nil)
}
