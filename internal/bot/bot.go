package bot

import (
	"time"

	tele "gopkg.in/telebot.v4"
	"go.uber.org/zap"

	"retell/internal/auth"
	"retell/internal/config"
	"retell/internal/orchestrator"
	"retell/internal/queue"
	"retell/pkg/logger"
)

// QueuePublisher is the slice of the queue layer the bot needs.
type QueuePublisher interface {
	PublishTask(task *queue.VoiceTask) error
}

type Bot struct {
	cfg  *config.Config
	tb   *tele.Bot
	q    QueuePublisher
	orch *orchestrator.Orchestrator
	auth auth.Authorizer
}

func NewBot(cfg *config.Config, q QueuePublisher, orch *orchestrator.Orchestrator, authorizer auth.Authorizer) (*Bot, error) {
	logger.Info("Starting bot initialization")

	pref := tele.Settings{
		Token: cfg.Telegram.Token,
		Poller: &tele.LongPoller{
			Timeout: 10 * time.Second,
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		logger.Error("Failed to create bot", zap.Error(err))
		return nil, err
	}

	logger.Info("Bot created successfully")

	bot := &Bot{
		cfg:  cfg,
		tb:   tb,
		q:    q,
		orch: orch,
		auth: authorizer,
	}

	bot.registerHandlers()
	return bot, nil
}

// Telebot returns the underlying client, used to wire the subscription
// authorizer which needs the same connection.
func (b *Bot) Telebot() *tele.Bot {
	return b.tb
}

// SetAuthorizer replaces the access-control policy. The subscription
// authorizer can only be built after the Telegram client exists, so main
// wires it here. A nil authorizer allows everyone.
func (b *Bot) SetAuthorizer(a auth.Authorizer) {
	b.auth = a
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle(tele.OnVoice, b.handleVoice)
	b.tb.Handle(tele.OnAudio, b.handleAudio)
	b.tb.Handle(tele.OnCallback, b.handleCallback)
	b.tb.Handle(tele.OnText, b.handleText)
}

func (b *Bot) Start() {
	b.tb.Start()
	logger.Info("Bot started")
}

func (b *Bot) Stop() {
	b.tb.Stop()
	logger.Info("Bot stopped")
}
