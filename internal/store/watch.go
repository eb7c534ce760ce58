package store

import (
	"context"
	"errors"

	"github.com/lennartp/chatstore/internal/identity"
	"github.com/lennartp/chatstore/internal/models"
	"go.uber.org/zap"
)

// ConversationSubscription delivers a fresh snapshot of one user's summary
// list on every change. C is closed after Cancel (or when the parent
// context ends); snapshots coalesce, a slow reader sees only the newest.
type ConversationSubscription struct {
	C      <-chan []models.ConversationSummary
	cancel context.CancelFunc
}

// Cancel tears the subscription down. Watchers are never cancelled
// automatically; callers own the lifetime.
func (s *ConversationSubscription) Cancel() { s.cancel() }

// MessageSubscription delivers a fresh snapshot of one conversation's log
// on every change, with the same lifetime rules.
type MessageSubscription struct {
	C      <-chan []models.MessageRecord
	cancel context.CancelFunc
}

func (s *MessageSubscription) Cancel() { s.cancel() }

// WatchConversations subscribes to a user's conversation list. The current
// snapshot is delivered immediately; an absent list is delivered as empty
// rather than failing, since watchers of a brand-new user are the common
// case.
func (s *ConversationStore) WatchConversations(ctx context.Context, userEmail string) (*ConversationSubscription, error) {
	user := identity.SafeEmail(userEmail)
	topic := conversationsTopic(user)

	snapshot, err := s.ListConversations(ctx, userEmail)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	id, signal := s.hub.register(topic)
	out := make(chan []models.ConversationSummary, 1)
	out <- snapshot

	go func() {
		defer close(out)
		defer s.hub.unregister(topic, id)
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-signal:
				snap, err := s.ListConversations(watchCtx, userEmail)
				if err != nil && !errors.Is(err, ErrNotFound) {
					s.logger.Debug("conversation watch refresh failed",
						zap.String("user", user), zap.Error(err))
					continue
				}
				push(out, snap)
			}
		}
	}()

	return &ConversationSubscription{C: out, cancel: cancel}, nil
}

// WatchMessages subscribes to a conversation's message log. A log that
// does not exist yet is delivered as empty; it shows up once created.
func (s *ConversationStore) WatchMessages(ctx context.Context, conversationID string) (*MessageSubscription, error) {
	topic := messagesTopic(conversationID)

	snapshot, err := s.ListMessages(ctx, conversationID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	id, signal := s.hub.register(topic)
	out := make(chan []models.MessageRecord, 1)
	out <- snapshot

	go func() {
		defer close(out)
		defer s.hub.unregister(topic, id)
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-signal:
				snap, err := s.ListMessages(watchCtx, conversationID)
				if err != nil && !errors.Is(err, ErrNotFound) {
					s.logger.Debug("message watch refresh failed",
						zap.String("conversation_id", conversationID), zap.Error(err))
					continue
				}
				push(out, snap)
			}
		}
	}()

	return &MessageSubscription{C: out, cancel: cancel}, nil
}

// push replaces a pending, unconsumed snapshot with the newer one.
func push[T any](out chan []T, snap []T) {
	for {
		select {
		case out <- snap:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
