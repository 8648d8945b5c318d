package materialize

import (
	"context"

	"github.com/teranos/curio/index"
	"github.com/teranos/curio/item"
	"github.com/teranos/curio/store"
)

// Materializer is one sink of the dual-store pipeline. Apply must be
// idempotent and version-conditional: given the same item twice, or an
// item older than what the sink holds, it returns applied=false with a
// nil error.
type Materializer interface {
	Name() string
	Apply(ctx context.Context, it *item.Item) (applied bool, err error)
}

// PrimarySink materializes items into the primary item store.
type PrimarySink struct {
	store *store.ItemStore
}

func NewPrimarySink(s *store.ItemStore) *PrimarySink {
	return &PrimarySink{store: s}
}

func (p *PrimarySink) Name() string { return "primary" }

func (p *PrimarySink) Apply(ctx context.Context, it *item.Item) (bool, error) {
	return p.store.Upsert(ctx, it)
}

// SearchSink materializes items into the search document index.
type SearchSink struct {
	docs *index.DocumentStore
}

func NewSearchSink(d *index.DocumentStore) *SearchSink {
	return &SearchSink{docs: d}
}

func (s *SearchSink) Name() string { return "search" }

func (s *SearchSink) Apply(ctx context.Context, it *item.Item) (bool, error) {
	return s.docs.Index(ctx, it)
}
