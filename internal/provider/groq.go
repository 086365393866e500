package provider

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"retell/pkg/logger"
)

const (
	// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultWhisperModel transcribes voice messages.
	DefaultWhisperModel = "whisper-large-v3"

	// DefaultChatModel handles summaries and translations.
	DefaultChatModel = "llama-3.3-70b-versatile"
)

// Groq implements both Transcriber and Generator over Groq's
// OpenAI-compatible API.
type Groq struct {
	client       *openai.Client
	whisperModel string
	chatModel    string
}

// NewGroq creates a client for the given API key. Empty baseURL and model
// names fall back to the defaults above.
func NewGroq(apiKey, baseURL, whisperModel, chatModel string) *Groq {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if whisperModel == "" {
		whisperModel = DefaultWhisperModel
	}
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	return &Groq{
		client:       openai.NewClientWithConfig(cfg),
		whisperModel: whisperModel,
		chatModel:    chatModel,
	}
}

// Transcribe sends audio bytes to the Whisper model. The format hint
// becomes the upload filename, which is how the API learns the container
// format.
func (g *Groq) Transcribe(ctx context.Context, audio []byte, formatHint string) (string, error) {
	if formatHint == "" {
		formatHint = ".ogg"
	}

	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    g.whisperModel,
		FilePath: "audio" + formatHint,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	text := strings.TrimSpace(resp.Text)

	logger.Debug("Transcription response received",
		zap.Int("audio_bytes", len(audio)),
		zap.Int("text_length", len(text)))

	return text, nil
}

// Generate runs a chat completion with a fixed system instruction.
func (g *Groq) Generate(ctx context.Context, system, user string, temperature float32) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.chatModel,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
