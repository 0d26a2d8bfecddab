package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/iserve-be/internal/models"
	"github.com/jmoiron/sqlx"
)

// SQLEventRepository is the SQLite-backed EventRepository.
type SQLEventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new SQLEventRepository.
func NewEventRepository(db *sqlx.DB) *SQLEventRepository {
	return &SQLEventRepository{db: db}
}

func (r *SQLEventRepository) Insert(ctx context.Context, event models.Event) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO events (id, type, level, message, user_id, created_at)
		VALUES (:id, :type, :level, :message, :user_id, :created_at)`, event)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent retrieves the most recent events, newest first. An empty userID
// selects events of every account.
func (r *SQLEventRepository) Recent(ctx context.Context, userID string, limit int) ([]models.Event, error) {
	events := []models.Event{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, type, level, message, user_id, created_at FROM events
		WHERE ? = '' OR user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}

func (r *SQLEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	return res.RowsAffected()
}
