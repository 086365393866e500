package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"retell/pkg/cache"
	"retell/pkg/model"
)

// RedisStore keeps transcripts in Redis with a TTL, which lets the bot and
// the worker run as separate processes and bounds session growth. Expired
// transcripts surface as ErrNotFound, same as a restart would.
type RedisStore struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewRedisStore(c cache.Cache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, t *model.Transcript) error {
	key := cache.TranscriptCacheKey(t.ID.String())
	if err := s.cache.SetWithTTL(ctx, key, t, s.ttl); err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id model.TranscriptID) (*model.Transcript, error) {
	key := cache.TranscriptCacheKey(id.String())

	var t model.Transcript
	err := s.cache.Get(ctx, key, &t)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	return &t, nil
}
