package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
	"go.uber.org/zap"

	"retell/internal/orchestrator"
	"retell/internal/queue"
	"retell/internal/session"
	"retell/pkg/logger"
	"retell/pkg/model"
	"retell/pkg/resilience"
)

const (
	msgWelcome = "Привет! Я бот для расшифровки голосовых сообщений.\n\n" +
		"Отправьте мне голосовое сообщение или аудиофайл, и я расшифрую его в текст.\n\n" +
		"Также я могу сделать краткий пересказ или перевести текст."
	msgTextOnly = "Я понимаю только голосовые сообщения и команду /start. " +
		"Пришлите мне голосовое сообщение, и я его расшифрую."
	msgTranscribing    = "Расшифровываю..."
	msgQueueError      = "Ошибка при обработке. Попробуйте позже."
	msgSessionMiss     = "Текст не найден. Возможно, бот был перезапущен. Отправьте аудио ещё раз."
	msgOverloaded      = "Сервис перегружен. Попробуйте позже."
	msgActionFailed    = "Не удалось выполнить действие. Попробуйте ещё раз."
	msgSubscribeNeeded = "Для использования бота необходимо подписаться на канал.\n\n" +
		"После подписки нажмите кнопку проверить:"
	msgSubConfirmed = "Спасибо за подписку! Теперь отправьте мне голосовое сообщение, и я расшифрую его в текст."

	checkSubToken = "check_sub"
)

func (b *Bot) handleStart(c tele.Context) error {
	if !b.allowed(c.Sender().ID) {
		return b.sendSubscribePrompt(c)
	}
	return c.Send(msgWelcome)
}

func (b *Bot) handleText(c tele.Context) error {
	return c.Send(msgTextOnly)
}

func (b *Bot) handleVoice(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Voice == nil {
		return nil
	}
	return b.enqueue(c, msg.Voice.FileID, model.AudioKindVoice, msg.Voice.MIME, msg.Voice.Duration, msg.Voice.FileSize)
}

func (b *Bot) handleAudio(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Audio == nil {
		return nil
	}
	return b.enqueue(c, msg.Audio.FileID, model.AudioKindAudio, msg.Audio.MIME, msg.Audio.Duration, msg.Audio.FileSize)
}

// enqueue replies with a status placeholder and publishes a transcription
// task correlated to it. The worker edits the placeholder with the result.
func (b *Bot) enqueue(c tele.Context, fileID string, kind model.AudioKind, mime string, duration int, fileSize int64) error {
	if !b.allowed(c.Sender().ID) {
		return b.sendSubscribePrompt(c)
	}

	msg := c.Message()

	status, err := b.tb.Reply(msg, msgTranscribing)
	if err != nil {
		logger.Error("Failed to send status message", zap.Error(err))
		return err
	}

	task := &queue.VoiceTask{
		TaskID:          uuid.New().String(),
		ChatID:          msg.Chat.ID,
		MessageID:       int64(msg.ID),
		StatusMessageID: int64(status.ID),
		FileID:          fileID,
		Kind:            kind,
		MimeType:        mime,
		Duration:        duration,
		FileSize:        fileSize,
		CreatedAt:       time.Now(),
	}

	if err := b.q.PublishTask(task); err != nil {
		logger.Error("Failed to publish task to queue",
			zap.Error(err),
			zap.String("task_id", task.TaskID))
		_, editErr := b.tb.Edit(status, msgQueueError)
		if editErr != nil {
			logger.Error("Failed to edit status message", zap.Error(editErr))
		}
		return err
	}

	logger.Info("Task published to queue",
		zap.String("task_id", task.TaskID),
		zap.String("kind", string(kind)),
		zap.Int64("chat_id", task.ChatID))

	return nil
}

func (b *Bot) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	data := cleanCallbackData(cb.Data)

	if data == checkSubToken {
		return b.handleCheckSubscription(c)
	}

	req, err := orchestrator.ParseAction(data)
	if err != nil {
		logger.Warn("Ignoring malformed callback", zap.String("data", data), zap.Error(err))
		return c.Respond()
	}

	ack := "Перевожу..."
	if req.Kind == orchestrator.ActionSummary {
		ack = "Создаю пересказ..."
	}
	if err := c.Respond(&tele.CallbackResponse{Text: ack}); err != nil {
		logger.Error("Failed to acknowledge callback", zap.Error(err))
	}

	// Generation is slow; run it off the update loop so other chats are
	// not blocked behind this one.
	chat := cb.Message.Chat
	go b.runAction(chat, req)

	return nil
}

// runAction executes a summarize/translate request and reports the outcome
// to the chat. Provider errors are logged and turned into short notices,
// never propagated.
func (b *Bot) runAction(chat *tele.Chat, req orchestrator.ActionRequest) {
	result, err := b.orch.Run(context.Background(), req)
	if err != nil {
		logger.Error("Action failed",
			zap.String("kind", string(req.Kind)),
			zap.String("transcript_id", req.ID.String()),
			zap.Error(err))

		b.send(chat, actionErrorMessage(err))
		return
	}

	for _, msg := range result.Messages {
		b.send(chat, msg)
	}
}

// actionErrorMessage maps an action error to the user-facing notice.
func actionErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return msgSessionMiss
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return msgOverloaded
	default:
		return msgActionFailed
	}
}

func (b *Bot) handleCheckSubscription(c tele.Context) error {
	allowed, err := b.checkAccess(c.Sender().ID)
	if err != nil {
		logger.Error("Subscription check failed", zap.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Ошибка проверки подписки", ShowAlert: true})
	}

	if !allowed {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Вы не подписаны на канал!", ShowAlert: true})
	}

	if err := c.Respond(&tele.CallbackResponse{Text: "✅ Подписка подтверждена!", ShowAlert: true}); err != nil {
		logger.Error("Failed to respond to callback", zap.Error(err))
	}
	return c.Send(msgSubConfirmed)
}

func (b *Bot) allowed(userID int64) bool {
	allowed, err := b.checkAccess(userID)
	if err != nil {
		logger.Error("Authorization check failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return false
	}
	return allowed
}

func (b *Bot) checkAccess(userID int64) (bool, error) {
	if b.auth == nil {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return b.auth.Allow(ctx, userID)
}

func (b *Bot) sendSubscribePrompt(c tele.Context) error {
	return c.Send(msgSubscribeNeeded, subscribeKeyboard(b.cfg.Subscription.ChannelURL))
}

func (b *Bot) send(chat *tele.Chat, text string) {
	if _, err := b.tb.Send(chat, text); err != nil {
		logger.Error("Failed to send message",
			zap.Int64("chat_id", chat.ID),
			zap.Error(err))
	}
}

// cleanCallbackData strips the prefix telebot adds to unique-tagged
// callbacks and surrounding whitespace. Our buttons carry raw data, but
// clients occasionally echo the separator back.
func cleanCallbackData(data string) string {
	return strings.TrimSpace(strings.TrimPrefix(data, "\f"))
}
