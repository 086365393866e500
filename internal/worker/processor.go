package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"
	"go.uber.org/zap"

	"retell/internal/bot"
	"retell/internal/orchestrator"
	"retell/internal/provider"
	"retell/internal/queue"
	"retell/internal/session"
	"retell/pkg/logger"
	"retell/pkg/model"
	"retell/pkg/resilience"
)

const (
	msgNoSpeech        = "Не удалось распознать речь."
	msgTranscribeError = "Ошибка при расшифровке. Попробуйте позже."
)

// telegramAPI is the slice of the Telegram client the processor uses.
type telegramAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// fileDownloader fetches the raw bytes of a Telegram file.
type fileDownloader interface {
	Download(fileID string) ([]byte, error)
}

// Processor consumes transcription tasks: it downloads the audio, runs the
// transcriber, stores the session and delivers the segmented transcript
// with its action keyboard.
type Processor struct {
	tg          telegramAPI
	files       fileDownloader
	transcriber provider.Transcriber
	sessions    session.Store
	orch        *orchestrator.Orchestrator
	retry       *resilience.RetryConfig
	timeout     time.Duration
}

// NewProcessor creates a worker processor bound to a live Telegram client.
func NewProcessor(
	tb *tele.Bot,
	transcriber provider.Transcriber,
	sessions session.Store,
	orch *orchestrator.Orchestrator,
	retry *resilience.RetryConfig,
	timeout time.Duration,
) *Processor {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Processor{
		tg: tb,
		files: &telegramDownloader{
			bot: tb,
			httpClient: &http.Client{
				Timeout: 60 * time.Second,
			},
		},
		transcriber: transcriber,
		sessions:    sessions,
		orch:        orch,
		retry:       retry,
		timeout:     timeout,
	}
}

// ProcessTask handles one queued voice task. Failures are reported to the
// user and logged; the message is always consumed, since redelivering a
// failed transcription attempt would only repeat the failure in front of
// the user.
func (p *Processor) ProcessTask(taskData []byte) error {
	var voiceTask queue.VoiceTask
	if err := json.Unmarshal(taskData, &voiceTask); err != nil {
		logger.Error("Failed to unmarshal task, dropping", zap.Error(err))
		return nil
	}

	logger.Info("Processing voice task",
		zap.String("task_id", voiceTask.TaskID),
		zap.Int64("chat_id", voiceTask.ChatID),
		zap.String("kind", string(voiceTask.Kind)))

	task := &model.Task{
		ID:              voiceTask.TaskID,
		ChatID:          voiceTask.ChatID,
		MessageID:       voiceTask.MessageID,
		StatusMessageID: voiceTask.StatusMessageID,
		FileID:          voiceTask.FileID,
		Kind:            voiceTask.Kind,
		Status:          model.TaskStatusReceived,
		CreatedAt:       voiceTask.CreatedAt,
		UpdatedAt:       time.Now(),
	}
	task.SetTranscribing()

	fileData, err := p.files.Download(voiceTask.FileID)
	if err != nil {
		p.fail(task, fmt.Sprintf("failed to download file: %v", err))
		return nil
	}

	logger.Info("File downloaded from Telegram",
		zap.String("task_id", task.ID),
		zap.Int("size", len(fileData)))

	text, err := p.transcribe(fileData, formatHint(voiceTask.Kind, voiceTask.MimeType))
	if err != nil {
		p.fail(task, fmt.Sprintf("transcription failed: %v", err))
		return nil
	}

	if text == "" {
		// Silence or music: an outcome, not an error.
		logger.Info("No speech recognized", zap.String("task_id", task.ID))
		task.SetTranscribed()
		p.editStatus(task, msgNoSpeech, nil)
		return nil
	}

	transcript := &model.Transcript{
		ID:        model.TranscriptID(voiceTask.StatusMessageID),
		Text:      text,
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.sessions.Put(ctx, transcript); err != nil {
		// Deliver anyway; buttons will answer with a resend prompt.
		logger.Error("Failed to store transcript session",
			zap.String("task_id", task.ID),
			zap.Error(err))
	}

	if err := p.deliver(task, transcript); err != nil {
		logger.Error("Failed to deliver transcript",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return nil
	}

	task.SetTranscribed()
	logger.Info("Task completed successfully",
		zap.String("task_id", task.ID),
		zap.Int("text_length", len(text)))

	return nil
}

// transcribe runs the provider under the retry policy with a per-attempt
// timeout.
func (p *Processor) transcribe(audio []byte, hint string) (string, error) {
	var text string
	err := resilience.RetryWithExponentialBackoff(context.Background(), p.retry, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		var trErr error
		text, trErr = p.transcriber.Transcribe(ctx, audio, hint)
		return trErr
	})
	return text, err
}

// deliver edits the status placeholder with the first part and sends the
// rest as follow-ups, attaching the action keyboard where the reply says.
func (p *Processor) deliver(task *model.Task, transcript *model.Transcript) error {
	reply, err := p.orch.TranscriptReply(transcript)
	if err != nil {
		return err
	}

	keyboard := bot.ActionsKeyboard(reply.Actions)

	for i, msg := range reply.Messages {
		var markup *tele.ReplyMarkup
		if i == reply.KeyboardIndex {
			markup = keyboard
		}

		if i == 0 {
			p.editStatus(task, msg, markup)
			continue
		}

		if err := p.send(task.ChatID, msg, markup); err != nil {
			return err
		}
	}

	return nil
}

// fail marks the task failed and tells the user.
func (p *Processor) fail(task *model.Task, reason string) {
	logger.Error("Task processing error",
		zap.String("task_id", task.ID),
		zap.String("error", reason))

	task.IncrementAttempts()
	task.SetFailed(reason)
	p.editStatus(task, msgTranscribeError, nil)
}

func (p *Processor) editStatus(task *model.Task, text string, markup *tele.ReplyMarkup) {
	stored := tele.StoredMessage{
		MessageID: strconv.FormatInt(task.StatusMessageID, 10),
		ChatID:    task.ChatID,
	}

	var err error
	if markup != nil {
		_, err = p.tg.Edit(stored, text, markup)
	} else {
		_, err = p.tg.Edit(stored, text)
	}
	if err != nil {
		logger.Error("Failed to edit status message",
			zap.String("task_id", task.ID),
			zap.Error(err))
	}
}

func (p *Processor) send(chatID int64, text string, markup *tele.ReplyMarkup) error {
	chat := &tele.Chat{ID: chatID}

	var err error
	if markup != nil {
		_, err = p.tg.Send(chat, text, markup)
	} else {
		_, err = p.tg.Send(chat, text)
	}
	return err
}

// formatHint picks the filename extension the transcription provider uses
// to identify the container format.
func formatHint(kind model.AudioKind, mimeType string) string {
	if kind == model.AudioKindVoice {
		return ".ogg"
	}

	switch mimeType {
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	default:
		return ".mp3"
	}
}

// telegramDownloader fetches file bytes through the Bot API file endpoint.
type telegramDownloader struct {
	bot        *tele.Bot
	httpClient *http.Client
}

func (d *telegramDownloader) Download(fileID string) ([]byte, error) {
	file, err := d.bot.FileByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	fileURL := d.bot.URL + "/file/bot" + d.bot.Token + "/" + file.FilePath

	resp, err := d.httpClient.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status=%d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}

	return data, nil
}
