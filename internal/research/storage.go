package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quorumhq/quorum/internal/logger"
	"github.com/quorumhq/quorum/internal/orchestrator"
)

// ErrNotFound reports that no saved research matched the id for the user.
var ErrNotFound = errors.New("saved research not found")

// Storage persists saved research to PostgreSQL.
type Storage struct {
	logger *logger.Logger
	db     *sql.DB
}

// NewStorage creates a storage instance.
func NewStorage(log *logger.Logger, db *sql.DB) *Storage {
	return &Storage{
		logger: log.WithComponent("research-storage"),
		db:     db,
	}
}

// Save inserts one completed run for the user and returns the stored record.
func (s *Storage) Save(ctx context.Context, userID string, req SaveRequest) (*SavedResearch, error) {
	responses, err := json.Marshal(req.Responses)
	if err != nil {
		return nil, fmt.Errorf("failed to encode responses: %w", err)
	}

	record := &SavedResearch{
		ID:        uuid.New().String(),
		UserID:    userID,
		Query:     req.Query,
		Responses: req.Responses,
		Synthesis: req.Synthesis,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO saved_research (id, user_id, query, responses, synthesis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query, record.ID, record.UserID, record.Query, responses, record.Synthesis, record.CreatedAt); err != nil {
		s.logger.Error("failed to save research",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to save research: %w", err)
	}

	s.logger.Debug("research saved",
		slog.String("user_id", userID),
		slog.String("research_id", record.ID))
	return record, nil
}

// List returns the user's saved research, most recent first.
func (s *Storage) List(ctx context.Context, userID string) ([]SavedResearch, error) {
	query := `
		SELECT id, user_id, query, responses, synthesis, created_at
		FROM saved_research
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list research: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	records := []SavedResearch{}
	for rows.Next() {
		record, err := scanResearch(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read research rows: %w", err)
	}

	return records, nil
}

// Get fetches one saved research record owned by the user.
func (s *Storage) Get(ctx context.Context, userID, id string) (*SavedResearch, error) {
	query := `
		SELECT id, user_id, query, responses, synthesis, created_at
		FROM saved_research
		WHERE id = $1 AND user_id = $2
	`
	row := s.db.QueryRowContext(ctx, query, id, userID)

	record, err := scanResearch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// Delete removes one saved research record owned by the user.
func (s *Storage) Delete(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM saved_research WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete research: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("research deleted",
		slog.String("user_id", userID),
		slog.String("research_id", id))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResearch(row rowScanner) (*SavedResearch, error) {
	var record SavedResearch
	var responses []byte

	if err := row.Scan(&record.ID, &record.UserID, &record.Query, &responses, &record.Synthesis, &record.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan research row: %w", err)
	}

	if err := json.Unmarshal(responses, &record.Responses); err != nil {
		return nil, fmt.Errorf("failed to decode responses: %w", err)
	}
	if record.Responses == nil {
		record.Responses = []orchestrator.AggregateResult{}
	}
	return &record, nil
}
