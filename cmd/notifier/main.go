package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/catalog"
	"github.com/example/surprisebag/internal/config"
	"github.com/example/surprisebag/internal/email"
	"github.com/example/surprisebag/internal/eventbus"
	"github.com/example/surprisebag/internal/infrastructure/cache"
	"github.com/example/surprisebag/internal/infrastructure/kafka"
	"github.com/example/surprisebag/internal/logger"
	"github.com/example/surprisebag/internal/notification"
)

func main() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Fatalf("[Notifier] Invalid configuration: %v", err)
	}
	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("[Notifier] Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zlog.Info("Starting notifier",
		zap.Strings("kafka", cfg.KafkaBrokers),
		zap.String("group", cfg.ConsumerGroup),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort),
		zap.String("from", cfg.SMTPFrom),
	)

	var cacheStore cache.Store = cache.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		cacheStore = cache.NewRedisStore(client)
	} else {
		zlog.Warn("REDIS_URL not set, merchant cache invalidation has no effect")
	}

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)

	subscribers := []eventbus.Subscriber{
		notification.NewActivationSubscriber(emailSvc, cfg.ActivationURL, zlog),
		notification.NewMerchantProcessedSubscriber(catalog.NewMerchantInvalidator(cacheStore), zlog),
	}

	var wg sync.WaitGroup
	for _, sub := range subscribers {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, sub.Topic(), cfg.ConsumerGroup, zlog.Named("consumer"))
		defer consumer.Close()
		dispatcher := eventbus.NewDispatcher(sub, zlog.Named("dispatcher"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			zlog.Info("Listening", zap.String("topic", sub.Topic()))
			if err := consumer.Consume(ctx, dispatcher.HandleMessage); err != nil && ctx.Err() == nil {
				zlog.Error("Consumer error", zap.String("topic", sub.Topic()), zap.Error(err))
			}
		}()
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zlog.Info("Shutting down")
	cancel()
	wg.Wait()
}
