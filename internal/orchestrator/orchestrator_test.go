package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retell/internal/langdetect"
	"retell/internal/session"
	"retell/pkg/model"
	"retell/pkg/resilience"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, system, user string, temperature float32) (string, error) {
	args := m.Called(ctx, system, user, temperature)
	return args.String(0), args.Error(1)
}

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1.0,
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retry = fastRetry()
	return opts
}

func words(n int, word string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = word
	}
	return strings.Join(parts, " ")
}

func TestActions_BelowSummaryThreshold(t *testing.T) {
	opts := testOptions()
	opts.SummaryWordThreshold = 40

	o := New(session.NewMemoryStore(), new(MockGenerator), opts)

	transcript := &model.Transcript{ID: 1, Text: words(30, "hello")}
	actions := o.Actions(transcript)

	require.Len(t, actions, 1)
	assert.Equal(t, ActionTranslate, actions[0].Kind)
	assert.Equal(t, langdetect.LangRU, actions[0].TargetLang)
	assert.Equal(t, "translate:ru:1", actions[0].Token)
}

func TestActions_AboveSummaryThreshold(t *testing.T) {
	opts := testOptions()
	opts.SummaryWordThreshold = 40

	o := New(session.NewMemoryStore(), new(MockGenerator), opts)

	transcript := &model.Transcript{ID: 7, Text: words(60, "привет")}
	actions := o.Actions(transcript)

	require.Len(t, actions, 2)
	assert.Equal(t, ActionSummary, actions[0].Kind)
	assert.Equal(t, "summary:7", actions[0].Token)
	assert.Equal(t, ActionTranslate, actions[1].Kind)
	assert.Equal(t, langdetect.LangEN, actions[1].TargetLang)
	assert.Equal(t, "Перевести на английский", actions[1].Label)
}

func TestEncodeParseAction_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		kind  ActionKind
		lang  langdetect.Lang
		id    model.TranscriptID
		token string
	}{
		{name: "summary", kind: ActionSummary, id: 123, token: "summary:123"},
		{name: "translate to en", kind: ActionTranslate, lang: langdetect.LangEN, id: 456, token: "translate:en:456"},
		{name: "translate to ru", kind: ActionTranslate, lang: langdetect.LangRU, id: 789, token: "translate:ru:789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := EncodeAction(tt.kind, tt.lang, tt.id)
			assert.Equal(t, tt.token, token)

			req, err := ParseAction(token)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, req.Kind)
			assert.Equal(t, tt.lang, req.TargetLang)
			assert.Equal(t, tt.id, req.ID)
		})
	}
}

func TestParseAction_Malformed(t *testing.T) {
	for _, token := range []string{
		"",
		"summary",
		"summary:abc",
		"summary:1:2",
		"translate:1",
		"translate:de:1",
		"translate:ru:xyz",
		"unknown:1",
	} {
		_, err := ParseAction(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestRun_SummarySegmentsLongOutput(t *testing.T) {
	store := session.NewMemoryStore()
	gen := new(MockGenerator)
	o := New(store, gen, testOptions())

	ctx := context.Background()
	transcript := &model.Transcript{ID: 42, Text: words(100, "слово")}
	require.NoError(t, store.Put(ctx, transcript))

	// 1500 words of 5 runes each, space separated: 9000 runes minus the
	// trailing cut, forcing a three-part split at the 4000 limit.
	longSummary := words(1500, "слово")
	gen.On("Generate", mock.Anything, summarySystemPrompt, transcript.Text, float32(0.3)).
		Return(longSummary, nil)

	result, err := o.Run(ctx, ActionRequest{Kind: ActionSummary, ID: 42})
	require.NoError(t, err)
	require.Len(t, result.Messages, 3)

	for i, msg := range result.Messages {
		assert.LessOrEqual(t, utf8.RuneCountInString(msg), 4096, "message %d", i)
	}
	assert.Contains(t, result.Messages[0], "Краткий пересказ (часть 1/3):")
	assert.Contains(t, result.Messages[1], "(часть 2/3)")
	assert.Contains(t, result.Messages[2], "(часть 3/3)")

	gen.AssertExpectations(t)
}

func TestRun_TranslatePrompt(t *testing.T) {
	store := session.NewMemoryStore()
	gen := new(MockGenerator)
	o := New(store, gen, testOptions())

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &model.Transcript{ID: 5, Text: "Привет, как дела?"}))

	gen.On("Generate", mock.Anything,
		"Ты переводчик. Переведи текст на английский язык. Сохрани смысл и стиль оригинала. Выводи только перевод, без пояснений.",
		"Привет, как дела?", float32(0.3)).
		Return("Hi, how are you?", nil)

	result, err := o.Run(ctx, ActionRequest{Kind: ActionTranslate, TargetLang: langdetect.LangEN, ID: 5})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "Перевод на английский:\n\nHi, how are you?", result.Messages[0])

	gen.AssertExpectations(t)
}

func TestRun_SessionMiss(t *testing.T) {
	o := New(session.NewMemoryStore(), new(MockGenerator), testOptions())

	_, err := o.Run(context.Background(), ActionRequest{Kind: ActionSummary, ID: 404})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRun_RetriesTransientFailure(t *testing.T) {
	store := session.NewMemoryStore()
	gen := new(MockGenerator)
	o := New(store, gen, testOptions())

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &model.Transcript{ID: 9, Text: words(25, "text")}))

	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, float32(0.3)).
		Return("", errors.New("temporary")).Once()
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, float32(0.3)).
		Return("краткий итог", nil).Once()

	result, err := o.Run(ctx, ActionRequest{Kind: ActionSummary, ID: 9})
	require.NoError(t, err)
	assert.Equal(t, "Краткий пересказ:\n\nкраткий итог", result.Messages[0])

	gen.AssertExpectations(t)
}

func TestRun_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	store := session.NewMemoryStore()
	gen := new(MockGenerator)
	o := New(store, gen, testOptions())

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, &model.Transcript{ID: 3, Text: "short text"}))

	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, float32(0.3)).
		Return("", errors.New("provider down"))

	req := ActionRequest{Kind: ActionTranslate, TargetLang: langdetect.LangRU, ID: 3}

	// Five failed executions trip the breaker.
	for i := 0; i < 5; i++ {
		_, err := o.Run(ctx, req)
		require.Error(t, err)
	}

	_, err := o.Run(ctx, req)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestTranscriptReply_SinglePart(t *testing.T) {
	o := New(session.NewMemoryStore(), new(MockGenerator), testOptions())

	transcript := &model.Transcript{ID: 1, Text: words(30, "слово")}
	reply, err := o.TranscriptReply(transcript)
	require.NoError(t, err)

	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "Расшифровка:\n\n"+transcript.Text, reply.Messages[0])
	assert.Equal(t, 0, reply.KeyboardIndex)
	assert.NotEmpty(t, reply.Actions)
}

func TestTranscriptReply_MultipartKeyboardPlacement(t *testing.T) {
	longText := words(1500, "слово")
	transcript := &model.Transcript{ID: 1, Text: longText}

	multipart := testOptions()
	o := New(session.NewMemoryStore(), new(MockGenerator), multipart)

	reply, err := o.TranscriptReply(transcript)
	require.NoError(t, err)
	require.Len(t, reply.Messages, 3)
	assert.Contains(t, reply.Messages[0], "Расшифровка (часть 1/3):")
	assert.Contains(t, reply.Messages[1], "Часть 2/3:")
	assert.Equal(t, 2, reply.KeyboardIndex)

	firstOnly := testOptions()
	firstOnly.SendInitialAsMultipart = false
	o = New(session.NewMemoryStore(), new(MockGenerator), firstOnly)

	reply, err = o.TranscriptReply(transcript)
	require.NoError(t, err)
	require.Len(t, reply.Messages, 3)
	assert.Equal(t, 0, reply.KeyboardIndex)
}
