// Package store implements the conversation-storage core: per-user
// conversation summary lists, per-conversation message logs and the flat
// user directory, all kept as whole-document aggregates behind the
// repository contracts.
//
// Every multi-document update (the dual summary writes plus the log write)
// is a sequence of independent writes with no transaction across them. A
// failure in the middle leaves an observable inconsistency; readers
// tolerate it and ListConversations can repair diverged latest-message
// copies from the canonical log.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lennartp/chatstore/internal/identity"
	"github.com/lennartp/chatstore/internal/models"
	"github.com/lennartp/chatstore/internal/repository"
	"go.uber.org/zap"
)

// ConversationIDPrefix joins the first message's id to form the
// conversation id.
const ConversationIDPrefix = "conversation_"

// Publisher broadcasts a change topic to other instances. The local hub is
// always notified directly; the publisher is optional.
type Publisher interface {
	Publish(ctx context.Context, topic string) error
}

// Options tune retry and read-repair behavior. The zero value is usable.
type Options struct {
	// MaxRetries bounds re-attempts after a transient failure or version
	// conflict. Defaults to 4.
	MaxRetries uint64

	// InitialBackoff is the first retry delay. Defaults to 50ms.
	InitialBackoff time.Duration

	// DisableRepairOnRead turns off the latest-message reconciliation
	// pass in ListConversations. It costs one log read per summary.
	DisableRepairOnRead bool
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = 4
	}
	if o.InitialBackoff == 0 {
		o.InitialBackoff = 50 * time.Millisecond
	}
	return o
}

// ConversationStore owns the mapping from user identity to conversation
// summaries and from conversation identity to its ordered message log.
type ConversationStore struct {
	users  repository.UserRepository
	logs   repository.LogRepository
	hub    *Hub
	pub    Publisher
	logger *zap.Logger
	opts   Options
}

func NewConversationStore(users repository.UserRepository, logs repository.LogRepository, hub *Hub, pub Publisher, logger *zap.Logger, opts Options) *ConversationStore {
	return &ConversationStore{
		users:  users,
		logs:   logs,
		hub:    hub,
		pub:    pub,
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

// CreateConversation starts a conversation between the initiator and the
// counterpart from the first message. It returns the conversation id,
// derived from the first message's id. The initiator must have a user
// record. Three writes, in order: initiator's summary list, counterpart's
// summary list, then the message log; there is no rollback when a later
// write fails, so a conversation can briefly exist in the summary lists
// with no log. Readers must treat that as "no messages yet".
func (s *ConversationStore) CreateConversation(ctx context.Context, initiatorEmail, counterpartEmail, counterpartName string, first models.Draft) (string, error) {
	if first.ID == "" {
		return "", fmt.Errorf("%w: first message has no id", ErrWriteFailed)
	}
	initiator := identity.SafeEmail(initiatorEmail)
	counterpart := identity.SafeEmail(counterpartEmail)

	rec, err := s.users.GetUser(ctx, initiator)
	if errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%w: initiator %s", ErrNotFound, initiator)
	}
	if err != nil {
		return "", fetchFailed(err)
	}

	conversationID := ConversationIDPrefix + first.ID
	content := first.RenderContent()
	date := models.Timestamp(sentAtOrNow(first))
	latest := models.LatestMessage{Date: date, Message: content, IsRead: false}

	mine := models.ConversationSummary{
		ID:             conversationID,
		OtherUserEmail: counterpart,
		Name:           counterpartName,
		LatestMessage:  latest,
	}
	theirs := models.ConversationSummary{
		ID:             conversationID,
		OtherUserEmail: initiator,
		Name:           rec.DisplayName(),
		LatestMessage:  latest,
	}

	if err := s.upsertSummary(ctx, initiator, mine); err != nil {
		return "", writeFailed(err)
	}
	if err := s.upsertSummary(ctx, counterpart, theirs); err != nil {
		// The initiator's copy is already written; accepted inconsistency.
		s.logger.Warn("counterpart summary write failed after initiator write",
			zap.String("conversation_id", conversationID),
			zap.String("counterpart", counterpart),
			zap.Error(err))
		return "", writeFailed(err)
	}

	logRec := models.MessageRecord{
		ID:          first.ID,
		Type:        first.Kind,
		Content:     content,
		Date:        date,
		SenderEmail: initiator,
		IsRead:      false,
		Name:        counterpartName,
	}
	err = s.retry(ctx, func() error {
		err := s.logs.PutLog(ctx, conversationID, []models.MessageRecord{logRec}, 0)
		if errors.Is(err, repository.ErrConflict) {
			// The log already exists: duplicate first-message id. Not
			// transient, give up.
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		s.logger.Warn("message log create failed after summary writes",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return "", writeFailed(err)
	}

	s.notify(ctx, messagesTopic(conversationID), conversationsTopic(initiator), conversationsTopic(counterpart))
	return conversationID, nil
}

// AppendMessage appends a rendered message to an existing conversation's
// log and then updates both participants' latest-message snapshots. It
// never creates a conversation: a missing log fails with ErrNotFound and
// writes nothing. The log write strictly precedes the summary updates; the
// two summary updates are independent of each other.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID, senderEmail, counterpartEmail, counterpartName string, msg models.Draft) error {
	if msg.ID == "" {
		return fmt.Errorf("%w: message has no id", ErrWriteFailed)
	}
	sender := identity.SafeEmail(senderEmail)
	counterpart := identity.SafeEmail(counterpartEmail)

	content := msg.RenderContent()
	date := models.Timestamp(sentAtOrNow(msg))
	rec := models.MessageRecord{
		ID:          msg.ID,
		Type:        msg.Kind,
		Content:     content,
		Date:        date,
		SenderEmail: sender,
		IsRead:      false,
		Name:        counterpartName,
	}

	err := s.retry(ctx, func() error {
		log, version, err := s.logs.GetLog(ctx, conversationID)
		if errors.Is(err, repository.ErrNotFound) {
			return backoff.Permanent(ErrNotFound)
		}
		if err != nil {
			return err
		}
		log = append(log, rec)
		return s.logs.PutLog(ctx, conversationID, log, version)
	})
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	if err != nil {
		return writeFailed(err)
	}

	latest := models.LatestMessage{Date: date, Message: content, IsRead: false}

	// If a participant's list is missing this conversation, the entry is
	// rebuilt from that participant's own perspective: the sender's entry
	// points at the counterpart, the counterpart's entry points back at
	// the sender under the sender's display name.
	senderName := sender
	if senderRec, err := s.users.GetUser(ctx, sender); err == nil {
		senderName = senderRec.DisplayName()
	}

	senderErr := s.upsertSummary(ctx, sender, models.ConversationSummary{
		ID:             conversationID,
		OtherUserEmail: counterpart,
		Name:           counterpartName,
		LatestMessage:  latest,
	})
	counterpartErr := s.upsertSummary(ctx, counterpart, models.ConversationSummary{
		ID:             conversationID,
		OtherUserEmail: sender,
		Name:           senderName,
		LatestMessage:  latest,
	})

	s.notify(ctx, messagesTopic(conversationID), conversationsTopic(sender), conversationsTopic(counterpart))

	if senderErr != nil {
		return writeFailed(fmt.Errorf("sender summary: %v", senderErr))
	}
	if counterpartErr != nil {
		return writeFailed(fmt.Errorf("counterpart summary: %v", counterpartErr))
	}
	return nil
}

// ListConversations returns the user's summary list. ErrNotFound means the
// list is absent; callers should treat that as zero conversations. Unless
// disabled, diverged latest-message snapshots are repaired from the tail
// of each conversation's canonical log before returning.
func (s *ConversationStore) ListConversations(ctx context.Context, userEmail string) ([]models.ConversationSummary, error) {
	user := identity.SafeEmail(userEmail)

	summaries, version, err := s.users.GetSummaries(ctx, user)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, user)
	}
	if err != nil {
		return nil, fetchFailed(err)
	}
	if summaries == nil {
		return nil, fmt.Errorf("%w: no conversations for %s", ErrNotFound, user)
	}

	if !s.opts.DisableRepairOnRead {
		summaries = s.repairLatest(ctx, user, summaries, version)
	}
	return summaries, nil
}

// repairLatest reconciles each summary's latest-message snapshot against
// the tail of the conversation's log. The log is canonical: when the tail
// is newer than (or simply differs from, with a parseable newer date) the
// snapshot, the snapshot is rewritten. A version conflict on the write-back
// just leaves repair to the next read.
func (s *ConversationStore) repairLatest(ctx context.Context, user string, summaries []models.ConversationSummary, version int64) []models.ConversationSummary {
	dirty := false
	for i := range summaries {
		log, _, err := s.logs.GetLog(ctx, summaries[i].ID)
		if err != nil || len(log) == 0 {
			continue
		}
		tail, ok := lastValid(log)
		if !ok {
			continue
		}
		fromLog := models.LatestMessage{Date: tail.Date, Message: tail.Content, IsRead: tail.IsRead}
		if summaries[i].LatestMessage == fromLog {
			continue
		}
		summaryDate, err := time.Parse(time.RFC3339, summaries[i].LatestMessage.Date)
		if err == nil && summaryDate.After(tail.SentAt()) {
			// Snapshot claims to be newer than the canonical tail; a
			// pending log write will catch up, leave it alone.
			continue
		}
		summaries[i].LatestMessage = fromLog
		dirty = true
	}
	if dirty {
		if err := s.users.PutSummaries(ctx, user, summaries, version); err != nil {
			s.logger.Debug("latest-message repair write skipped",
				zap.String("user", user), zap.Error(err))
		}
	}
	return summaries
}

// ListMessages returns the conversation's log in insertion order. Entries
// that fail validation (missing fields, unparseable date, malformed
// location payload) are dropped, favoring availability over completeness.
func (s *ConversationStore) ListMessages(ctx context.Context, conversationID string) ([]models.MessageRecord, error) {
	log, _, err := s.logs.GetLog(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, fetchFailed(err)
	}

	messages := make([]models.MessageRecord, 0, len(log))
	dropped := 0
	for _, m := range log {
		if err := m.Validate(); err != nil {
			dropped++
			continue
		}
		messages = append(messages, m)
	}
	if dropped > 0 {
		s.logger.Debug("dropped malformed message records",
			zap.String("conversation_id", conversationID), zap.Int("dropped", dropped))
	}
	return messages, nil
}

// DeleteConversation removes the summary entry with the given id from the
// user's list. Only an exact id match is removed; a missing id fails with
// ErrNotFound and removes nothing. The canonical message log is left in
// place for the other participant.
func (s *ConversationStore) DeleteConversation(ctx context.Context, userEmail, conversationID string) error {
	user := identity.SafeEmail(userEmail)

	err := s.retry(ctx, func() error {
		summaries, version, err := s.users.GetSummaries(ctx, user)
		if errors.Is(err, repository.ErrNotFound) {
			return backoff.Permanent(ErrNotFound)
		}
		if err != nil {
			return err
		}
		idx := -1
		for i := range summaries {
			if summaries[i].ID == conversationID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return backoff.Permanent(ErrNotFound)
		}
		summaries = append(summaries[:idx], summaries[idx+1:]...)
		err = s.users.PutSummaries(ctx, user, summaries, version)
		if errors.Is(err, repository.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: conversation %s for user %s", ErrNotFound, conversationID, user)
	}
	if err != nil {
		return writeFailed(err)
	}

	s.notify(ctx, conversationsTopic(user))
	return nil
}

// ConversationExists scans the target user's summary list for an entry
// pointing back at the current user and returns its conversation id.
// Callers use it to reuse an existing conversation instead of creating a
// duplicate between the same two users.
func (s *ConversationStore) ConversationExists(ctx context.Context, currentEmail, targetEmail string) (string, error) {
	current := identity.SafeEmail(currentEmail)
	target := identity.SafeEmail(targetEmail)

	summaries, _, err := s.users.GetSummaries(ctx, target)
	if errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%w: user %s", ErrNotFound, target)
	}
	if err != nil {
		return "", fetchFailed(err)
	}
	for _, sum := range summaries {
		if sum.OtherUserEmail == current {
			return sum.ID, nil
		}
	}
	return "", fmt.Errorf("%w: no conversation between %s and %s", ErrNotFound, current, target)
}

// upsertSummary puts entry into the user's summary list keyed by
// conversation id: an existing entry gets its latest-message snapshot
// replaced, a missing one is appended (list created if absent). Keyed
// upserts keep the "id appears at most once" invariant by construction.
func (s *ConversationStore) upsertSummary(ctx context.Context, user string, entry models.ConversationSummary) error {
	return s.retry(ctx, func() error {
		summaries, version, err := s.users.GetSummaries(ctx, user)
		if errors.Is(err, repository.ErrNotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		found := false
		for i := range summaries {
			if summaries[i].ID == entry.ID {
				summaries[i].LatestMessage = entry.LatestMessage
				found = true
				break
			}
		}
		if !found {
			summaries = append(summaries, entry)
		}
		err = s.users.PutSummaries(ctx, user, summaries, version)
		if errors.Is(err, repository.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
}

// retry runs op with exponential backoff. Version conflicts and transient
// failures are retried up to Options.MaxRetries; ops mark dead ends with
// backoff.Permanent.
func (s *ConversationStore) retry(ctx context.Context, op backoff.Operation) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.InitialBackoff
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, s.opts.MaxRetries), ctx))
}

func (s *ConversationStore) notify(ctx context.Context, topics ...string) {
	for _, topic := range topics {
		s.hub.Notify(topic)
		if s.pub != nil {
			if err := s.pub.Publish(ctx, topic); err != nil {
				s.logger.Debug("publish change topic failed",
					zap.String("topic", topic), zap.Error(err))
			}
		}
	}
}

func sentAtOrNow(d models.Draft) time.Time {
	if d.SentAt.IsZero() {
		return time.Now()
	}
	return d.SentAt
}

func lastValid(log []models.MessageRecord) (models.MessageRecord, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Validate() == nil {
			return log[i], true
		}
	}
	return models.MessageRecord{}, false
}
