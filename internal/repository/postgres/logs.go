package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lennartp/chatstore/internal/models"
	"github.com/lennartp/chatstore/internal/repository"
)

// LogStore persists whole conversation message logs.
type LogStore struct {
	pool *pgxpool.Pool
}

func NewLogStore(pool *pgxpool.Pool) *LogStore {
	return &LogStore{pool: pool}
}

func (s *LogStore) GetLog(ctx context.Context, conversationID string) ([]models.MessageRecord, int64, error) {
	query := `
		SELECT messages, version
		FROM conversation_logs
		WHERE id = $1`

	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx, query, conversationID).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, repository.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get log: %w", err)
	}

	var messages []models.MessageRecord
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, 0, fmt.Errorf("decode log: %w", err)
	}
	return messages, version, nil
}

func (s *LogStore) PutLog(ctx context.Context, conversationID string, messages []models.MessageRecord, version int64) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}

	if version == 0 {
		// Create. DO NOTHING on conflict so a concurrent create surfaces
		// as ErrConflict instead of clobbering the other writer's log.
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO conversation_logs (id, messages) VALUES ($1, $2)
			 ON CONFLICT (id) DO NOTHING`, conversationID, raw)
		if err != nil {
			return fmt.Errorf("create log: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrConflict
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE conversation_logs
		 SET messages = $2, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $3`, conversationID, raw, version)
	if err != nil {
		return fmt.Errorf("put log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM conversation_logs WHERE id = $1)`, conversationID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("put log: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

var _ repository.LogRepository = (*LogStore)(nil)
