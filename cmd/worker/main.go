package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"

	"retell/internal/config"
	"retell/internal/orchestrator"
	"retell/internal/provider"
	"retell/internal/queue"
	"retell/internal/session"
	"retell/internal/worker"
	"retell/pkg/cache"
	"retell/pkg/logger"
	"retell/pkg/resilience"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	debug := os.Getenv("DEBUG") != ""
	if err := logger.Init(debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting retell worker service")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
		return
	}

	botSettings := tele.Settings{
		Token: cfg.Telegram.Token,
		Poller: &tele.LongPoller{
			Timeout: 10 * time.Second,
		},
	}

	tb, err := tele.NewBot(botSettings)
	if err != nil {
		logger.Fatal("Failed to create Telegram bot", zap.Error(err))
		return
	}

	logger.Info("Telegram bot initialized")

	redisCache, err := cache.NewRedisCache(
		cfg.Redis.Addr,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.SessionTTL,
	)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
		return
	}
	defer redisCache.Close()

	logger.Info("Redis cache connection established")

	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		return
	}
	defer rabbitMQ.Close()

	logger.Info("RabbitMQ connection established")

	sessions := session.NewRedisStore(redisCache, cfg.Redis.SessionTTL)

	groq := provider.NewGroq(
		cfg.Groq.APIKey,
		cfg.Groq.BaseURL,
		cfg.Groq.WhisperModel,
		cfg.Groq.ChatModel,
	)

	retry := resilience.DefaultRetryConfig()
	if cfg.Limits.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.Limits.RetryAttempts
	}

	orch := orchestrator.New(sessions, groq, orchestrator.Options{
		MaxMessageLen:          cfg.Limits.MaxMessageLen,
		SummaryWordThreshold:   cfg.Limits.SummaryWordThreshold,
		SendInitialAsMultipart: cfg.Limits.SendInitialAsMultipart,
		ProviderTimeout:        cfg.Limits.ProviderTimeout,
		Retry:                  retry,
	})

	processor := worker.NewProcessor(tb, groq, sessions, orch, retry, cfg.Limits.ProviderTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting to consume messages from queue")
		if err := rabbitMQ.Consume(queue.QueueNameTranscribe, cfg.Worker.Concurrency, processor.ProcessTask); err != nil {
			logger.Error("Failed to consume messages", zap.Error(err))
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Worker service shutdown complete")
}
