package queue

import (
	"time"

	"retell/pkg/model"
)

// VoiceTask is the queue payload for one audio message awaiting
// transcription. StatusMessageID is the "transcribing..." placeholder the
// worker edits with the result; it doubles as the transcript correlation id.
type VoiceTask struct {
	TaskID          string          `json:"task_id"`
	ChatID          int64           `json:"chat_id"`
	MessageID       int64           `json:"message_id"`
	StatusMessageID int64           `json:"status_message_id"`
	FileID          string          `json:"file_id"`
	Kind            model.AudioKind `json:"kind"`
	MimeType        string          `json:"mime_type"`
	Duration        int             `json:"duration"`
	FileSize        int64           `json:"file_size"`
	CreatedAt       time.Time       `json:"created_at"`
}
