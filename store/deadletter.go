package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/item"
)

// Dead-letter reasons. Validation failures never reach the stores;
// exhausted retries and fatal rejections fall out of materialization.
const (
	ReasonValidation       = "validation"
	ReasonRetriesExhausted = "retries_exhausted"
	ReasonFatal            = "fatal"
)

// DeadLetter records a payload that could not be applied, kept for audit.
type DeadLetter struct {
	ID        int64     `json:"id"`
	ItemID    item.ID   `json:"item_id"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// DeadLetterStore persists dead letters in the primary database.
type DeadLetterStore struct {
	db *sql.DB
}

func NewDeadLetterStore(db *sql.DB) *DeadLetterStore {
	return &DeadLetterStore{db: db}
}

// Add records a dead letter and returns its assigned id.
func (s *DeadLetterStore) Add(ctx context.Context, dl *DeadLetter) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (item_id, reason, detail, payload, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(dl.ItemID), dl.Reason, dl.Detail, dl.Payload, dl.Attempts, time.Now().UTC(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert dead letter")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "dead letter id")
	}
	return id, nil
}

// List returns the most recent dead letters, newest first.
func (s *DeadLetterStore) List(ctx context.Context, limit int) ([]*DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, reason, detail, payload, attempts, created_at
		FROM dead_letters
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list dead letters")
	}
	defer rows.Close()

	var letters []*DeadLetter
	for rows.Next() {
		dl := &DeadLetter{}
		var itemID string
		if err := rows.Scan(&dl.ID, &itemID, &dl.Reason, &dl.Detail, &dl.Payload, &dl.Attempts, &dl.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan dead letter")
		}
		dl.ItemID = item.ID(itemID)
		letters = append(letters, dl)
	}
	return letters, rows.Err()
}

// Count returns the total number of dead letters.
func (s *DeadLetterStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count dead letters")
	}
	return count, nil
}
