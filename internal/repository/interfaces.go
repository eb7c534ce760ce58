// Package repository defines the aggregate-level storage contracts the
// conversation store runs on. Aggregates are read and written whole: the
// summary list of one user, the message log of one conversation, the flat
// directory. Every mutable aggregate carries a version so a write based on
// a stale read fails with ErrConflict instead of silently winning.
package repository

import (
	"context"
	"errors"

	"github.com/lennartp/chatstore/internal/models"
)

var (
	// ErrNotFound means the aggregate (or user record) does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means the write carried a stale version. The caller
	// should re-read and retry.
	ErrConflict = errors.New("version conflict")

	// ErrAlreadyExists means a create hit an existing key.
	ErrAlreadyExists = errors.New("record already exists")
)

// UserRepository stores user records and their embedded summary lists.
//
// GetSummaries returns a nil slice (not ErrNotFound) when the user exists
// but has never had a conversation written; ErrNotFound only when the user
// record itself is missing. PutSummaries replaces the whole list and must
// be called with the version GetSummaries returned.
type UserRepository interface {
	CreateUser(ctx context.Context, rec models.UserRecord, passwordHash string) error
	GetUser(ctx context.Context, safeEmail string) (*models.UserRecord, error)
	GetCredentials(ctx context.Context, safeEmail string) (string, error)
	UserExists(ctx context.Context, safeEmail string) (bool, error)

	GetSummaries(ctx context.Context, safeEmail string) ([]models.ConversationSummary, int64, error)
	PutSummaries(ctx context.Context, safeEmail string, summaries []models.ConversationSummary, version int64) error
}

// LogRepository stores per-conversation message logs. PutLog with version 0
// creates the log and fails with ErrConflict if it already exists; any
// other version is an optimistic whole-log replace.
type LogRepository interface {
	GetLog(ctx context.Context, conversationID string) ([]models.MessageRecord, int64, error)
	PutLog(ctx context.Context, conversationID string, messages []models.MessageRecord, version int64) error
}

// DirectoryRepository stores the flat registered-user list. Entries are
// written once and never updated; Append of an existing identity is a
// no-op. List returns ErrNotFound when the directory has no entries at all.
type DirectoryRepository interface {
	Append(ctx context.Context, entry models.DirectoryEntry) error
	List(ctx context.Context) ([]models.DirectoryEntry, error)
}
