// Package store persists canonical items in the primary SQLite store, the
// durable source of truth. All writes go through a conditional upsert whose
// predicate enforces the anti-regression invariant at the storage layer:
// a stored version is never overwritten by an equal-or-older candidate,
// no matter how deliveries interleave.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/item"
)

// ItemStore handles persistence of items in the primary store.
type ItemStore struct {
	db *sql.DB
}

// NewItemStore creates a store over an opened, migrated primary database.
func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

const itemColumns = `
	item_id, source, external_id, title, description,
	price_amount, price_currency, location, category,
	images, listing_flags, state,
	version_ts, version_hash, first_seen_at, last_seen_at`

// Get returns the item for an id, or errors.ErrNotFound.
func (s *ItemStore) Get(ctx context.Context, id item.ID) (*item.Item, error) {
	query := `SELECT` + itemColumns + ` FROM items WHERE item_id = ?`

	it, err := scanItem(s.db.QueryRowContext(ctx, query, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "item %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get item")
	}
	return it, nil
}

// Upsert applies the item if and only if the stored version for its id is
// absent or strictly older than the candidate's. It returns true when the
// row was written and false when the conditional write lost to an
// equal-or-newer stored version — which is convergence, not failure.
//
// The predicate lives in SQL, not in Go: SQLite executes the upsert
// atomically per row, so concurrent invocations racing on the same item
// resolve identically without in-process locking.
func (s *ItemStore) Upsert(ctx context.Context, it *item.Item) (bool, error) {
	images, err := json.Marshal(it.Images)
	if err != nil {
		return false, errors.Wrap(err, "marshal images")
	}
	flags, err := json.Marshal(it.ListingFlags)
	if err != nil {
		return false, errors.Wrap(err, "marshal listing flags")
	}

	var priceAmount sql.NullInt64
	var priceCurrency sql.NullString
	if it.Price != nil {
		priceAmount = sql.NullInt64{Int64: it.Price.Amount, Valid: true}
		priceCurrency = sql.NullString{String: it.Price.Currency, Valid: true}
	}

	query := `
		INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			title          = excluded.title,
			description    = excluded.description,
			price_amount   = excluded.price_amount,
			price_currency = excluded.price_currency,
			location       = excluded.location,
			category       = excluded.category,
			images         = excluded.images,
			listing_flags  = excluded.listing_flags,
			state          = excluded.state,
			version_ts     = excluded.version_ts,
			version_hash   = excluded.version_hash,
			last_seen_at   = excluded.last_seen_at
		WHERE items.version_hash != excluded.version_hash
		  AND (items.version_ts < excluded.version_ts
		       OR (items.version_ts = excluded.version_ts
		           AND items.version_hash < excluded.version_hash))
	`

	result, err := s.db.ExecContext(ctx, query,
		string(it.ID),
		it.Source,
		it.ExternalID,
		it.Title,
		it.Description,
		priceAmount,
		priceCurrency,
		it.Location,
		it.Category,
		string(images),
		string(flags),
		string(it.State),
		it.Version.ObservedAt,
		it.Version.Hash,
		it.FirstSeenAt,
		it.LastSeenAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "upsert item")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "upsert rows affected")
	}
	return affected > 0, nil
}

// Stats returns the total item count and a per-state breakdown.
func (s *ItemStore) Stats(ctx context.Context) (int, map[item.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM items GROUP BY state`)
	if err != nil {
		return 0, nil, errors.Wrap(err, "query item stats")
	}
	defer rows.Close()

	total := 0
	byState := make(map[item.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return 0, nil, errors.Wrap(err, "scan item stats")
		}
		byState[item.State(state)] = count
		total += count
	}
	return total, byState, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*item.Item, error) {
	var (
		it            item.Item
		id            string
		state         string
		priceAmount   sql.NullInt64
		priceCurrency sql.NullString
		images        string
		flags         string
		firstSeen     time.Time
		lastSeen      time.Time
	)

	err := row.Scan(
		&id,
		&it.Source,
		&it.ExternalID,
		&it.Title,
		&it.Description,
		&priceAmount,
		&priceCurrency,
		&it.Location,
		&it.Category,
		&images,
		&flags,
		&state,
		&it.Version.ObservedAt,
		&it.Version.Hash,
		&firstSeen,
		&lastSeen,
	)
	if err != nil {
		return nil, err
	}

	it.ID = item.ID(id)
	it.State = item.State(state)
	it.FirstSeenAt = firstSeen
	it.LastSeenAt = lastSeen
	if priceAmount.Valid {
		it.Price = &item.Price{Amount: priceAmount.Int64, Currency: priceCurrency.String}
	}
	if err := json.Unmarshal([]byte(images), &it.Images); err != nil {
		return nil, errors.Wrap(err, "unmarshal images")
	}
	if err := json.Unmarshal([]byte(flags), &it.ListingFlags); err != nil {
		return nil, errors.Wrap(err, "unmarshal listing flags")
	}
	return &it, nil
}
