// Package auth gates bot usage behind a pluggable allow/deny check. The
// only production policy is channel subscription, but the interface keeps
// access control out of the message-handling path.
package auth

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v4"
	"go.uber.org/zap"

	"retell/pkg/cache"
	"retell/pkg/logger"
)

// Authorizer decides whether a user may use the bot. A denied user gets a
// subscribe prompt instead of service.
type Authorizer interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

// AllowAll permits everyone. Used when no channel is configured.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, int64) (bool, error) {
	return true, nil
}

// membershipTTL caches a positive membership check. Short on purpose: an
// unsubscribed user should lose access within minutes.
const membershipTTL = 5 * time.Minute

// MembershipChecker is the Telegram call ChannelSubscription depends on,
// extracted so tests do not need a live bot.
type MembershipChecker interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// channel adapts a raw channel identifier ("@name" or a numeric id) to
// telebot's Recipient.
type channel string

func (c channel) Recipient() string { return string(c) }

// ChannelSubscription allows users who are members of a Telegram channel.
// Positive results are cached; negative ones are re-checked every time so
// a fresh subscriber is let in immediately.
type ChannelSubscription struct {
	tg        MembershipChecker
	channelID string
	cache     cache.Cache
}

func NewChannelSubscription(tg MembershipChecker, channelID string, c cache.Cache) *ChannelSubscription {
	return &ChannelSubscription{
		tg:        tg,
		channelID: channelID,
		cache:     c,
	}
}

func (s *ChannelSubscription) Allow(ctx context.Context, userID int64) (bool, error) {
	if s.cache != nil {
		var allowed bool
		if err := s.cache.Get(ctx, cache.SubscriptionCacheKey(userID), &allowed); err == nil && allowed {
			return true, nil
		}
	}

	member, err := s.tg.ChatMemberOf(channel(s.channelID), &tele.User{ID: userID})
	if err != nil {
		return false, err
	}

	switch member.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		if s.cache != nil {
			if err := s.cache.SetWithTTL(ctx, cache.SubscriptionCacheKey(userID), true, membershipTTL); err != nil {
				logger.Warn("Failed to cache membership result",
					zap.Int64("user_id", userID),
					zap.Error(err))
			}
		}
		return true, nil
	default:
		return false, nil
	}
}
