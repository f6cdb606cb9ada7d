package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/api"
	"github.com/example/surprisebag/internal/api/middleware"
	"github.com/example/surprisebag/internal/auth"
	"github.com/example/surprisebag/internal/config"
	"github.com/example/surprisebag/internal/domain/payment"
	"github.com/example/surprisebag/internal/infrastructure/cache"
	"github.com/example/surprisebag/internal/infrastructure/httpclient"
	"github.com/example/surprisebag/internal/infrastructure/store"
	"github.com/example/surprisebag/internal/infrastructure/stripe"
	"github.com/example/surprisebag/internal/logger"
)

func main() {
	cfg, err := config.LoadPaymentService()
	if err != nil {
		log.Fatalf("[Payment] Invalid configuration: %v", err)
	}
	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("[Payment] Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zlog.Info("Starting payment service",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("orders", cfg.OrderBaseURL),
		zap.String("currency", cfg.Currency),
		zap.Duration("reconcile_interval", cfg.ReconcileInterval),
	)

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	if err := store.Migrate(ctx, db, store.ReconciliationSchema); err != nil {
		zlog.Fatal("Failed to migrate reconciliation schema", zap.Error(err))
	}
	zlog.Info("Connected to PostgreSQL")

	var sessions middleware.SessionChecker
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		sessions = cache.NewSessions(cache.NewRedisStore(client))
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.ServiceSecret, 15*time.Minute, time.Minute)
	tokens := auth.NewServiceTokenSource(jwtService, "payment-service")

	orders := payment.NewOrderClient(httpclient.New(cfg.OrderBaseURL, cfg.HTTPClientTimeout, tokens))
	gateway := stripe.NewGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
	reconciliations := store.NewPostgresReconciliationStore(db)

	paymentSvc := payment.NewService(orders, gateway, reconciliations, payment.CheckoutConfig{
		Currency:   cfg.Currency,
		SuccessURL: cfg.SuccessURL,
		CancelURL:  cfg.CancelURL,
	}, zlog.Named("payment"))
	reconciler := payment.NewReconciler(reconciliations, orders, cfg.MaxReconcileAttempt, zlog.Named("reconciler"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		zlog.Info("Starting reconciliation worker")
		reconciler.Run(ctx, cfg.ReconcileInterval)
	}()

	router := api.NewPaymentRouter(
		api.NewPaymentHandlers(paymentSvc, gateway, zlog.Named("http")),
		api.Auth{JWT: jwtService, Sessions: sessions, Log: zlog.Named("auth")},
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("Graceful shutdown failed", zap.Error(err))
	}

	cancel() // stop the reconciler after in-flight requests drain
	wg.Wait()
}
