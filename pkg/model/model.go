package model

import (
	"strconv"
	"time"
)

// TaskStatus tracks a voice message through its lifecycle.
type TaskStatus string

const (
	TaskStatusReceived     TaskStatus = "received"
	TaskStatusTranscribing TaskStatus = "transcribing"
	TaskStatusTranscribed  TaskStatus = "transcribed"
	TaskStatusFailed       TaskStatus = "failed"
)

// AudioKind distinguishes Telegram voice notes from uploaded audio files.
type AudioKind string

const (
	AudioKindVoice AudioKind = "voice"
	AudioKindAudio AudioKind = "audio"
)

// Task represents one incoming voice or audio message being transcribed.
// Tasks live only in flight: they are created by the bot, carried through
// the queue and finished by the worker. There is no durable task storage.
type Task struct {
	ID              string     `json:"id"`
	ChatID          int64      `json:"chat_id"`
	MessageID       int64      `json:"message_id"`
	StatusMessageID int64      `json:"status_message_id"`
	FileID          string     `json:"file_id"`
	Kind            AudioKind  `json:"kind"`
	Status          TaskStatus `json:"status"`
	Attempts        int        `json:"attempts"`
	ErrorText       string     `json:"error_text,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TranscriptID correlates a delivered transcript with later button actions.
// It is the Telegram id of the status message the transcript was attached
// to, kept as its own type so equality and formatting are explicit rather
// than transport-specific.
type TranscriptID int64

// String renders the id the way it travels inside callback tokens and
// cache keys.
func (id TranscriptID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseTranscriptID parses the string form back into an id.
func ParseTranscriptID(s string) (TranscriptID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return TranscriptID(n), nil
}

// Transcript is the text produced from one audio message. Transcripts are
// read-only after creation.
type Transcript struct {
	ID        TranscriptID `json:"id"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"created_at"`
}

// WordCount returns the number of whitespace-separated words, used to
// decide whether a summary action makes sense.
func (t *Transcript) WordCount() int {
	count := 0
	inWord := false
	for _, r := range t.Text {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}

// IsCompleted returns true if the task is in a final state.
func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusTranscribed || t.Status == TaskStatusFailed
}

// SetTranscribing marks the task as picked up by a worker.
func (t *Task) SetTranscribing() {
	t.Status = TaskStatusTranscribing
	t.UpdatedAt = time.Now()
}

// SetTranscribed marks the task as successfully finished.
func (t *Task) SetTranscribed() {
	t.Status = TaskStatusTranscribed
	t.ErrorText = ""
	t.UpdatedAt = time.Now()
}

// SetFailed marks the task as failed with an error message.
func (t *Task) SetFailed(errorText string) {
	t.Status = TaskStatusFailed
	t.ErrorText = errorText
	t.UpdatedAt = time.Now()
}

// IncrementAttempts increases the attempt counter.
func (t *Task) IncrementAttempts() {
	t.Attempts++
}
