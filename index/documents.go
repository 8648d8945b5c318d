// Package index maintains the search side of the dual-store pipeline:
// denormalized item documents in the search SQLite database, written with
// the same external-version discipline the primary store enforces. A
// document write that loses the version comparison is skipped, so replayed
// and reordered deliveries converge on the newest document without the
// index ever moving backwards.
package index

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/filter"
	"github.com/teranos/curio/item"
)

// Document is the denormalized projection of an item held by the search
// store. Images and raw listing flags stay in the primary store; the
// document carries only queryable attributes.
type Document struct {
	ItemID      item.ID      `json:"item_id"`
	Source      string       `json:"source"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Price       *item.Price  `json:"price,omitempty"`
	Location    string       `json:"location,omitempty"`
	Category    string       `json:"category,omitempty"`
	State       item.State   `json:"state"`
	Version     item.Version `json:"version"`
	FirstSeenAt time.Time    `json:"first_seen_at"`
	LastSeenAt  time.Time    `json:"last_seen_at"`
}

// DocumentStore handles item documents in the search database.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore creates a store over an opened, migrated search database.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `
	item_id, source, title, description,
	price_amount, price_currency, location, category, state,
	external_version_ts, external_version_hash, first_seen_at, last_seen_at`

// Index writes the item's document if and only if no document with an
// equal-or-newer external version exists for its id. Returns true when the
// document was written, false when the existing document already carries
// an equal-or-newer version.
func (s *DocumentStore) Index(ctx context.Context, it *item.Item) (bool, error) {
	var priceAmount sql.NullInt64
	var priceCurrency sql.NullString
	if it.Price != nil {
		priceAmount = sql.NullInt64{Int64: it.Price.Amount, Valid: true}
		priceCurrency = sql.NullString{String: it.Price.Currency, Valid: true}
	}

	query := `
		INSERT INTO item_documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			source                = excluded.source,
			title                 = excluded.title,
			description           = excluded.description,
			price_amount          = excluded.price_amount,
			price_currency        = excluded.price_currency,
			location              = excluded.location,
			category              = excluded.category,
			state                 = excluded.state,
			external_version_ts   = excluded.external_version_ts,
			external_version_hash = excluded.external_version_hash,
			last_seen_at          = excluded.last_seen_at
		WHERE item_documents.external_version_hash != excluded.external_version_hash
		  AND (item_documents.external_version_ts < excluded.external_version_ts
		       OR (item_documents.external_version_ts = excluded.external_version_ts
		           AND item_documents.external_version_hash < excluded.external_version_hash))
	`

	result, err := s.db.ExecContext(ctx, query,
		string(it.ID),
		it.Source,
		it.Title,
		it.Description,
		priceAmount,
		priceCurrency,
		it.Location,
		it.Category,
		string(it.State),
		it.Version.ObservedAt,
		it.Version.Hash,
		it.FirstSeenAt,
		it.LastSeenAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "index document")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "index rows affected")
	}
	return affected > 0, nil
}

// Get returns the document for an id, or errors.ErrNotFound.
func (s *DocumentStore) Get(ctx context.Context, id item.ID) (*Document, error) {
	query := `SELECT` + documentColumns + ` FROM item_documents WHERE item_id = ?`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "document %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get document")
	}
	return doc, nil
}

// Search returns documents matching the criteria, newest observation first.
// A nil criteria matches every document.
func (s *DocumentStore) Search(ctx context.Context, c filter.Criteria, limit int) ([]*Document, error) {
	if limit <= 0 {
		limit = 50
	}

	qb := &queryBuilder{}
	where, err := qb.build(c)
	if err != nil {
		return nil, errors.Wrap(err, "build search query")
	}

	query := `SELECT` + documentColumns + ` FROM item_documents WHERE ` + where +
		` ORDER BY external_version_ts DESC, item_id LIMIT ?`
	args := append(qb.args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search documents")
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan document")
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents in the index.
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_documents`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count documents")
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc           Document
		id            string
		state         string
		priceAmount   sql.NullInt64
		priceCurrency sql.NullString
	)

	err := row.Scan(
		&id,
		&doc.Source,
		&doc.Title,
		&doc.Description,
		&priceAmount,
		&priceCurrency,
		&doc.Location,
		&doc.Category,
		&state,
		&doc.Version.ObservedAt,
		&doc.Version.Hash,
		&doc.FirstSeenAt,
		&doc.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	doc.ItemID = item.ID(id)
	doc.State = item.State(state)
	if priceAmount.Valid {
		doc.Price = &item.Price{Amount: priceAmount.Int64, Currency: priceCurrency.String}
	}
	return &doc, nil
}
