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
	"github.com/example/surprisebag/internal/domain/admintask"
	"github.com/example/surprisebag/internal/event"
	"github.com/example/surprisebag/internal/eventbus"
	"github.com/example/surprisebag/internal/infrastructure/cache"
	"github.com/example/surprisebag/internal/infrastructure/kafka"
	"github.com/example/surprisebag/internal/infrastructure/store"
	"github.com/example/surprisebag/internal/logger"
)

func main() {
	cfg, err := config.LoadAdminService()
	if err != nil {
		log.Fatalf("[Admin] Invalid configuration: %v", err)
	}
	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("[Admin] Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zlog.Info("Starting admin service",
		zap.String("addr", cfg.HTTPAddr),
		zap.Strings("kafka", cfg.KafkaBrokers),
		zap.String("group", cfg.ConsumerGroup),
	)

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	if err := store.Migrate(ctx, db, store.AdminTaskSchema); err != nil {
		zlog.Fatal("Failed to migrate admin task schema", zap.Error(err))
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

	producer := kafka.NewProducer(cfg.KafkaBrokers, true, zlog.Named("producer"))
	defer producer.Close()
	bus := eventbus.NewBus(producer, zlog.Named("bus"))

	taskSvc := admintask.NewService(store.NewPostgresAdminTaskStore(db), bus, zlog.Named("admintask"))

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, event.TopicMerchantRegistered, cfg.ConsumerGroup, zlog.Named("consumer"))
	defer consumer.Close()
	dispatcher := eventbus.NewDispatcher(admintask.NewRegistrationSubscriber(taskSvc), zlog.Named("dispatcher"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		zlog.Info("Starting merchant registration consumer")
		if err := consumer.Consume(ctx, dispatcher.HandleMessage); err != nil && ctx.Err() == nil {
			zlog.Error("Consumer error", zap.Error(err))
		}
	}()

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.ServiceSecret, 15*time.Minute, time.Minute)
	router := api.NewAdminRouter(
		api.NewAdminHandlers(taskSvc, zlog.Named("http")),
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
	cancel() // Cancel context to stop consumer

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("Graceful shutdown failed", zap.Error(err))
	}

	wg.Wait() // Wait for consumer to finish
}
