// Package memory is an in-process implementation of the repository
// contracts. It backs tests and the DATABASE_URL=memory development mode.
package memory

import (
	"context"
	"sync"

	"github.com/lennartp/chatstore/internal/models"
	"github.com/lennartp/chatstore/internal/repository"
)

type userEntry struct {
	rec          models.UserRecord
	passwordHash string
	summaries    []models.ConversationSummary
	version      int64
}

type logEntry struct {
	messages []models.MessageRecord
	version  int64
}

// Store holds every aggregate behind one mutex. Copies go in and out so
// callers can't alias internal state.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*userEntry
	logs      map[string]*logEntry
	directory []models.DirectoryEntry
}

func NewStore() *Store {
	return &Store{
		users: make(map[string]*userEntry),
		logs:  make(map[string]*logEntry),
	}
}

func (s *Store) CreateUser(_ context.Context, rec models.UserRecord, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.SafeEmail]; ok {
		return repository.ErrAlreadyExists
	}
	s.users[rec.SafeEmail] = &userEntry{rec: rec, passwordHash: passwordHash, version: 1}
	return nil
}

func (s *Store) GetUser(_ context.Context, safeEmail string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.users[safeEmail]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec := e.rec
	return &rec, nil
}

func (s *Store) GetCredentials(_ context.Context, safeEmail string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.users[safeEmail]
	if !ok {
		return "", repository.ErrNotFound
	}
	return e.passwordHash, nil
}

func (s *Store) UserExists(_ context.Context, safeEmail string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[safeEmail]
	return ok, nil
}

func (s *Store) GetSummaries(_ context.Context, safeEmail string) ([]models.ConversationSummary, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.users[safeEmail]
	if !ok {
		return nil, 0, repository.ErrNotFound
	}
	if e.summaries == nil {
		return nil, e.version, nil
	}
	out := make([]models.ConversationSummary, len(e.summaries))
	copy(out, e.summaries)
	return out, e.version, nil
}

func (s *Store) PutSummaries(_ context.Context, safeEmail string, summaries []models.ConversationSummary, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.users[safeEmail]
	if !ok {
		return repository.ErrNotFound
	}
	if e.version != version {
		return repository.ErrConflict
	}
	cp := make([]models.ConversationSummary, len(summaries))
	copy(cp, summaries)
	e.summaries = cp
	e.version++
	return nil
}

func (s *Store) GetLog(_ context.Context, conversationID string) ([]models.MessageRecord, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.logs[conversationID]
	if !ok {
		return nil, 0, repository.ErrNotFound
	}
	out := make([]models.MessageRecord, len(e.messages))
	copy(out, e.messages)
	return out, e.version, nil
}

func (s *Store) PutLog(_ context.Context, conversationID string, messages []models.MessageRecord, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]models.MessageRecord, len(messages))
	copy(cp, messages)

	e, ok := s.logs[conversationID]
	if version == 0 {
		if ok {
			return repository.ErrConflict
		}
		s.logs[conversationID] = &logEntry{messages: cp, version: 1}
		return nil
	}
	if !ok {
		return repository.ErrNotFound
	}
	if e.version != version {
		return repository.ErrConflict
	}
	e.messages = cp
	e.version++
	return nil
}

func (s *Store) Append(_ context.Context, entry models.DirectoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.directory {
		if existing.Email == entry.Email {
			return nil
		}
	}
	s.directory = append(s.directory, entry)
	return nil
}

func (s *Store) List(_ context.Context) ([]models.DirectoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.directory) == 0 {
		return nil, repository.ErrNotFound
	}
	out := make([]models.DirectoryEntry, len(s.directory))
	copy(out, s.directory)
	return out, nil
}

var (
	_ repository.UserRepository      = (*Store)(nil)
	_ repository.LogRepository       = (*Store)(nil)
	_ repository.DirectoryRepository = (*Store)(nil)
)
