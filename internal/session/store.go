// Package session keeps the association between a delivered transcript and
// its message id, so a button press arriving minutes later can recover the
// original text.
package session

import (
	"context"
	"errors"

	"retell/pkg/model"
)

// ErrNotFound is returned when no transcript is stored under the requested
// id. This is an expected condition after a restart or TTL expiry, not a
// failure: callers ask the user to resend the audio.
var ErrNotFound = errors.New("session: transcript not found")

// Store maps a transcript id to its transcript. Implementations must be
// safe for concurrent Put and Get.
type Store interface {
	Put(ctx context.Context, t *model.Transcript) error
	Get(ctx context.Context, id model.TranscriptID) (*model.Transcript, error)
}
