package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lennartp/chatstore/internal/models"
	"github.com/lennartp/chatstore/internal/repository"
)

// DirectoryStore persists the flat registered-user list.
type DirectoryStore struct {
	pool *pgxpool.Pool
}

func NewDirectoryStore(pool *pgxpool.Pool) *DirectoryStore {
	return &DirectoryStore{pool: pool}
}

func (s *DirectoryStore) Append(ctx context.Context, entry models.DirectoryEntry) error {
	// Entries are written once and never updated; re-registering the same
	// identity is a no-op rather than an error.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO directory_entries (safe_email, name) VALUES ($1, $2)
		 ON CONFLICT (safe_email) DO NOTHING`, entry.Email, entry.Name)
	if err != nil {
		return fmt.Errorf("append directory entry: %w", err)
	}
	return nil
}

func (s *DirectoryStore) List(ctx context.Context) ([]models.DirectoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, safe_email FROM directory_entries ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	defer rows.Close()

	var entries []models.DirectoryEntry
	for rows.Next() {
		var e models.DirectoryEntry
		if err := rows.Scan(&e.Name, &e.Email); err != nil {
			return nil, fmt.Errorf("scan directory entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directory: %w", err)
	}
	if len(entries) == 0 {
		return nil, repository.ErrNotFound
	}
	return entries, nil
}

var _ repository.DirectoryRepository = (*DirectoryStore)(nil)
