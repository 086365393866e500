// Package provider defines the two external collaborators the bot depends
// on: speech-to-text and text generation. Both are narrow interfaces so
// handlers and tests never touch a concrete API client.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrTranscription wraps any failure of the speech-to-text provider.
	ErrTranscription = errors.New("transcription failed")

	// ErrGeneration wraps any failure of the text-generation provider.
	ErrGeneration = errors.New("generation failed")
)

// Transcriber converts audio bytes into text. formatHint is a filename
// extension hint such as ".ogg" so the provider can pick a decoder.
// A blank result with a nil error means the audio contained no
// recognizable speech; that is an outcome, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, formatHint string) (string, error)
}

// Generator produces text from a system instruction and user text.
// Temperature is passed through to the model.
type Generator interface {
	Generate(ctx context.Context, system, user string, temperature float32) (string, error)
}
