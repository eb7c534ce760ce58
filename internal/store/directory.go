package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lennartp/chatstore/internal/identity"
	"github.com/lennartp/chatstore/internal/models"
	"github.com/lennartp/chatstore/internal/repository"
	"go.uber.org/zap"
)

// Directory maintains user records and the flat registered-user list used
// for search. It is a leaf dependency of the conversation store: consulted
// before conversation creation, never mutated by it.
type Directory struct {
	users   repository.UserRepository
	entries repository.DirectoryRepository
	logger  *zap.Logger
}

func NewDirectory(users repository.UserRepository, entries repository.DirectoryRepository, logger *zap.Logger) *Directory {
	return &Directory{users: users, entries: entries, logger: logger}
}

// RegisterUser writes the user record and then appends a directory entry.
// Two independent writes with no atomicity between them: a failure after
// the first write leaves a registered user missing from the directory
// until a re-registration repairs it (Append of an existing identity is a
// no-op, so retrying is safe).
func (d *Directory) RegisterUser(ctx context.Context, email, firstName, lastName, passwordHash string) error {
	rec := models.UserRecord{
		SafeEmail: identity.SafeEmail(email),
		FirstName: firstName,
		LastName:  lastName,
	}
	if err := d.users.CreateUser(ctx, rec, passwordHash); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return fmt.Errorf("%w: user %s", ErrWriteFailed, rec.SafeEmail)
		}
		return writeFailed(err)
	}

	entry := models.DirectoryEntry{
		Name:  identity.DisplayName(firstName, lastName),
		Email: rec.SafeEmail,
	}
	if err := d.entries.Append(ctx, entry); err != nil {
		d.logger.Warn("directory append failed after user record write",
			zap.String("user", rec.SafeEmail), zap.Error(err))
		return writeFailed(err)
	}
	return nil
}

// UserExists checks for a user record under the normalized identity.
func (d *Directory) UserExists(ctx context.Context, email string) (bool, error) {
	exists, err := d.users.UserExists(ctx, identity.SafeEmail(email))
	if err != nil {
		return false, fetchFailed(err)
	}
	return exists, nil
}

// GetUser returns the user record for the normalized identity.
func (d *Directory) GetUser(ctx context.Context, email string) (*models.UserRecord, error) {
	rec, err := d.users.GetUser(ctx, identity.SafeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, identity.SafeEmail(email))
	}
	if err != nil {
		return nil, fetchFailed(err)
	}
	return rec, nil
}

// Credentials returns the stored password hash for login verification.
func (d *Directory) Credentials(ctx context.Context, email string) (string, error) {
	hash, err := d.users.GetCredentials(ctx, identity.SafeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%w: user %s", ErrNotFound, identity.SafeEmail(email))
	}
	if err != nil {
		return "", fetchFailed(err)
	}
	return hash, nil
}

// ListAllUsers returns the full directory snapshot. An empty directory is
// ErrNotFound so callers can tell logical absence from a failed read.
func (d *Directory) ListAllUsers(ctx context.Context) ([]models.DirectoryEntry, error) {
	entries, err := d.entries.List(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: directory is empty", ErrNotFound)
	}
	if err != nil {
		return nil, fetchFailed(err)
	}
	return entries, nil
}
