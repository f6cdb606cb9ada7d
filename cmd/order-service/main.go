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

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/api"
	"github.com/example/surprisebag/internal/api/middleware"
	"github.com/example/surprisebag/internal/auth"
	"github.com/example/surprisebag/internal/catalog"
	"github.com/example/surprisebag/internal/config"
	"github.com/example/surprisebag/internal/domain/order"
	"github.com/example/surprisebag/internal/infrastructure/cache"
	"github.com/example/surprisebag/internal/infrastructure/httpclient"
	"github.com/example/surprisebag/internal/infrastructure/store"
	"github.com/example/surprisebag/internal/logger"
)

const merchantCacheTTL = 10 * time.Minute

func main() {
	cfg, err := config.LoadOrderService()
	if err != nil {
		log.Fatalf("[Order] Invalid configuration: %v", err)
	}
	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("[Order] Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zlog.Info("Starting order service",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("catalog", cfg.CatalogBaseURL),
		zap.String("merchants", cfg.MerchantBaseURL),
		zap.String("users", cfg.UserBaseURL),
	)

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	if err := store.Migrate(ctx, db, store.OrderSchema); err != nil {
		zlog.Fatal("Failed to migrate order schema", zap.Error(err))
	}
	zlog.Info("Connected to PostgreSQL")

	var cacheStore cache.Store = cache.NewMemoryStore()
	var sessions middleware.SessionChecker
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		cacheStore = cache.NewRedisStore(client)
		sessions = cache.NewSessions(cacheStore)
		zlog.Info("Connected to Redis")
	} else {
		zlog.Warn("REDIS_URL not set, using in-process cache without session checks")
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.ServiceSecret, 15*time.Minute, time.Minute)
	tokens := auth.NewServiceTokenSource(jwtService, "order-service")

	bags := catalog.NewBagClient(httpclient.New(cfg.CatalogBaseURL, cfg.HTTPClientTimeout, tokens))
	merchants := catalog.NewCachedMerchants(
		catalog.NewMerchantClient(httpclient.New(cfg.MerchantBaseURL, cfg.HTTPClientTimeout, tokens)),
		cacheStore, merchantCacheTTL, zlog.Named("merchant-cache"),
	)
	users := catalog.NewUserClient(httpclient.New(cfg.UserBaseURL, cfg.HTTPClientTimeout, tokens))

	orderSvc := order.NewService(store.NewPostgresOrderStore(db), bags, merchants, users, zlog.Named("order"))

	router := api.NewOrderRouter(
		api.NewOrderHandlers(orderSvc, zlog.Named("http")),
		api.Auth{JWT: jwtService, Sessions: sessions, Log: zlog.Named("auth")},
		api.NewVerifyLimiter(),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zlog.Info("Server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zlog.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("Graceful shutdown failed", zap.Error(err))
	}
}
