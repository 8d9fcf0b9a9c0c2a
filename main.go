package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-svc/cache"
	"shop-svc/config"
	"shop-svc/database"
	"shop-svc/database/memory"
	"shop-svc/events"
	"shop-svc/handlers"
	"shop-svc/middleware"
	"shop-svc/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "shop-svc"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := middleware.InitTracing(serviceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Initialize store
	var (
		store  *database.Store
		pinger database.Pinger
	)
	switch cfg.StoreDriver {
	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		client, err := database.InitDB(ctx, cfg.Mongo, logger)
		cancel()
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(ctx); err != nil {
				logger.Error("Failed to close database", zap.Error(err))
			}
		}()
		store = client.Store()
		pinger = client
	case config.StoreMemory:
		logger.Warn("Using in-memory store; data is lost on exit")
		store = memory.NewStore()
	}

	// Product cache is optional
	var productCache *cache.ProductCache
	if cfg.Redis.Addr != "" {
		rdb, err := cache.InitRedis(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Product cache disabled", zap.Error(err))
		} else {
			productCache = cache.NewProductCache(rdb, cfg.Redis.TTL)
			defer productCache.Close()
		}
	}

	publisher, err := events.NewPublisher(cfg.Events, logger)
	if err != nil {
		logger.Fatal("Failed to initialize event publisher", zap.Error(err))
	}
	defer publisher.Close()

	if cfg.Events.Notify {
		stopNotifier, err := events.StartNotifier(context.Background(), cfg.Events, publisher, events.NewNotifier(logger).Handle, logger)
		if err != nil {
			logger.Fatal("Failed to start notifier", zap.Error(err))
		}
		defer stopNotifier()
	}

	authService := service.NewAuthService(store.Users, cfg.JWT, logger)
	if cfg.Admin.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := authService.EnsureAdmin(ctx, cfg.Admin)
		cancel()
		if err != nil {
			logger.Fatal("Failed to seed admin account", zap.Error(err))
		}
	}

	orderOpts := []service.OrderOption{
		service.WithPublisher(publisher),
		service.WithRestockOnCancel(cfg.RestockOnCancel),
	}
	if productCache != nil {
		orderOpts = append(orderOpts, service.WithProductCache(productCache))
	}
	orderService := service.NewOrderService(store, logger, orderOpts...)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterConfig{
		Logger:      logger,
		Env:         cfg.Env,
		Port:        cfg.Port,
		Development: cfg.IsDevelopment(),
		Auth:        authService,
		Orders:      orderService,
		Products:    store.Products,
		Cache:       productCache,
		Pinger:      pinger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Env),
		zap.String("store", cfg.StoreDriver),
		zap.String("events", cfg.Events.Backend),
		zap.Bool("restock_on_cancel", cfg.RestockOnCancel),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Fatal("Failed to start server", zap.Error(err))
	case sig := <-quit:
		logger.Info("Shutting down server...", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
