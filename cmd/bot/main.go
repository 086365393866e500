package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"retell/internal/auth"
	"retell/internal/bot"
	"retell/internal/config"
	"retell/internal/orchestrator"
	"retell/internal/provider"
	"retell/internal/queue"
	"retell/internal/session"
	"retell/pkg/cache"
	"retell/pkg/logger"
	"retell/pkg/resilience"
)

func main() {
	// Load .env file first
	_ = godotenv.Load()

	debug := os.Getenv("DEBUG") != ""
	if err := logger.Init(debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting retell bot service")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
		return
	}

	if cfg.Telegram.Token == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN environment variable is required")
		return
	}
	if cfg.Groq.APIKey == "" {
		logger.Fatal("GROQ_API_KEY environment variable is required")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	botInstance, err := bot.NewBot(cfg, rabbitMQ, orch, nil)
	if err != nil {
		logger.Fatal("Failed to initialize bot", zap.Error(err))
		return
	}

	if cfg.Subscription.ChannelID != "" {
		botInstance.SetAuthorizer(auth.NewChannelSubscription(
			botInstance.Telebot(),
			cfg.Subscription.ChannelID,
			redisCache,
		))
		logger.Info("Subscription gate enabled",
			zap.String("channel_id", cfg.Subscription.ChannelID))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting Telegram bot")
		botInstance.Start()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	botInstance.Stop()

	logger.Info("Bot service shutdown complete")
}
