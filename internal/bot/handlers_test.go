package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retell/internal/langdetect"
	"retell/internal/orchestrator"
	"retell/internal/queue"
	"retell/internal/session"
	"retell/pkg/logger"
	"retell/pkg/model"
	"retell/pkg/resilience"
)

func init() {
	if err := logger.Init(true); err != nil {
		panic(err)
	}
}

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) PublishTask(task *queue.VoiceTask) error {
	args := m.Called(task)
	return args.Error(0)
}

func TestQueuePublisher_PublishTask(t *testing.T) {
	mockQueue := new(MockQueue)
	voiceTask := &queue.VoiceTask{
		TaskID:          "task-123",
		ChatID:          123,
		MessageID:       1,
		StatusMessageID: 2,
		FileID:          "file-123",
		Kind:            model.AudioKindVoice,
		MimeType:        "audio/ogg",
		Duration:        10,
		FileSize:        1024,
		CreatedAt:       time.Now(),
	}

	mockQueue.On("PublishTask", voiceTask).Return(nil)

	err := mockQueue.PublishTask(voiceTask)
	assert.NoError(t, err)

	mockQueue.AssertExpectations(t)
}

func TestQueuePublisher_PublishTaskError(t *testing.T) {
	mockQueue := new(MockQueue)
	voiceTask := &queue.VoiceTask{TaskID: "task-123"}

	expectedError := errors.New("queue connection failed")
	mockQueue.On("PublishTask", voiceTask).Return(expectedError)

	err := mockQueue.PublishTask(voiceTask)
	assert.Error(t, err)
	assert.Equal(t, expectedError, err)

	mockQueue.AssertExpectations(t)
}

func TestCleanCallbackData(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "raw token", data: "summary:42", want: "summary:42"},
		{name: "unique prefix stripped", data: "\fsummary:42", want: "summary:42"},
		{name: "whitespace trimmed", data: " check_sub \n", want: "check_sub"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanCallbackData(tt.data))
		})
	}
}

func TestActionErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "session miss", err: session.ErrNotFound, want: msgSessionMiss},
		{name: "circuit open", err: resilience.ErrCircuitOpen, want: msgOverloaded},
		{name: "rate limited", err: resilience.ErrTooManyRequests, want: msgOverloaded},
		{name: "anything else", err: errors.New("boom"), want: msgActionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, actionErrorMessage(tt.err))
		})
	}
}

func TestActionsKeyboard(t *testing.T) {
	actions := []orchestrator.Action{
		{Kind: orchestrator.ActionSummary, Label: "Краткий пересказ", Token: "summary:42"},
		{Kind: orchestrator.ActionTranslate, TargetLang: langdetect.LangEN, Label: "Перевести на английский", Token: "translate:en:42"},
	}

	markup := ActionsKeyboard(actions)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)

	assert.Equal(t, "Краткий пересказ", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "summary:42", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "translate:en:42", markup.InlineKeyboard[1][0].Data)
}

func TestActionsKeyboard_Empty(t *testing.T) {
	assert.Nil(t, ActionsKeyboard(nil))
}

func TestSubscribeKeyboard(t *testing.T) {
	markup := subscribeKeyboard("https://t.me/somechannel")
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "https://t.me/somechannel", markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, checkSubToken, markup.InlineKeyboard[1][0].Data)

	// Without a channel URL only the re-check button remains.
	markup = subscribeKeyboard("")
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, checkSubToken, markup.InlineKeyboard[0][0].Data)
}

func TestTask_StatusTransitions(t *testing.T) {
	task := &model.Task{
		ID:        "test-id",
		Status:    model.TaskStatusReceived,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	assert.False(t, task.IsCompleted())

	task.SetTranscribing()
	assert.Equal(t, model.TaskStatusTranscribing, task.Status)
	assert.False(t, task.IsCompleted())

	task.SetTranscribed()
	assert.Equal(t, model.TaskStatusTranscribed, task.Status)
	assert.True(t, task.IsCompleted())
	assert.Empty(t, task.ErrorText)
}

func TestTask_SetFailed(t *testing.T) {
	task := &model.Task{
		ID:     "test-id",
		Status: model.TaskStatusTranscribing,
	}

	task.IncrementAttempts()
	task.SetFailed("test error")

	assert.Equal(t, model.TaskStatusFailed, task.Status)
	assert.True(t, task.IsCompleted())
	assert.Equal(t, "test error", task.ErrorText)
	assert.Equal(t, 1, task.Attempts)
}

func TestTranscript_WordCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "single word", text: "привет", want: 1},
		{name: "spaces and newlines", text: "раз два\nтри  четыре\t пять", want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &model.Transcript{Text: tt.text}
			assert.Equal(t, tt.want, tr.WordCount())
		})
	}
}
