package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lennartp/chatstore/internal/models"
	"github.com/lennartp/chatstore/internal/repository"
)

// UserStore persists user records with their embedded summary lists.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) CreateUser(ctx context.Context, rec models.UserRecord, passwordHash string) error {
	query := `
		INSERT INTO user_records (safe_email, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, query, rec.SafeEmail, rec.FirstName, rec.LastName, passwordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetUser(ctx context.Context, safeEmail string) (*models.UserRecord, error) {
	query := `
		SELECT first_name, last_name
		FROM user_records
		WHERE safe_email = $1`

	rec := models.UserRecord{SafeEmail: safeEmail}
	err := s.pool.QueryRow(ctx, query, safeEmail).Scan(&rec.FirstName, &rec.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &rec, nil
}

func (s *UserStore) GetCredentials(ctx context.Context, safeEmail string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM user_records WHERE safe_email = $1`, safeEmail,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get credentials: %w", err)
	}
	return hash, nil
}

func (s *UserStore) UserExists(ctx context.Context, safeEmail string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_records WHERE safe_email = $1)`, safeEmail,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

func (s *UserStore) GetSummaries(ctx context.Context, safeEmail string) ([]models.ConversationSummary, int64, error) {
	// COALESCE to a JSON null so a never-written list scans cleanly and
	// unmarshals to a nil slice, which the store treats as "no list yet".
	query := `
		SELECT COALESCE(conversations, 'null'::jsonb), version
		FROM user_records
		WHERE safe_email = $1`

	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx, query, safeEmail).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, repository.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get summaries: %w", err)
	}

	var summaries []models.ConversationSummary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		return nil, 0, fmt.Errorf("decode summaries: %w", err)
	}
	return summaries, version, nil
}

func (s *UserStore) PutSummaries(ctx context.Context, safeEmail string, summaries []models.ConversationSummary, version int64) error {
	raw, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("encode summaries: %w", err)
	}

	query := `
		UPDATE user_records
		SET conversations = $2, version = version + 1
		WHERE safe_email = $1 AND version = $3`

	tag, err := s.pool.Exec(ctx, query, safeEmail, raw, version)
	if err != nil {
		return fmt.Errorf("put summaries: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.UserExists(ctx, safeEmail)
		if err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

var _ repository.UserRepository = (*UserStore)(nil)
