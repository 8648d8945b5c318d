package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/curio/errors"
	"github.com/teranos/curio/filter"
	curiotesting "github.com/teranos/curio/internal/testing"
	"github.com/teranos/curio/item"
)

func lampItem(observedAt int64) *item.Item {
	it := &item.Item{
		ID:          item.ComputeID("craigslist", "post-9001"),
		Source:      "craigslist",
		ExternalID:  "post-9001",
		Title:       "Vintage desk lamp",
		Description: "Brass, working",
		Price:       &item.Price{Amount: 4500, Currency: "USD"},
		Location:    "portland",
		Category:    "furniture",
		State:       item.StateActive,
		FirstSeenAt: time.Unix(0, observedAt).UTC(),
		LastSeenAt:  time.Unix(0, observedAt).UTC(),
	}
	it.Version = item.ComputeVersion(time.Unix(0, observedAt), it)
	return it
}

func TestDocumentStoreIndexAndGet(t *testing.T) {
	database := curiotesting.CreateSearchTestDB(t)
	s := NewDocumentStore(database)
	ctx := context.Background()

	it := lampItem(1000)

	applied, err := s.Index(ctx, it)
	require.NoError(t, err)
	assert.True(t, applied)

	doc, err := s.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, it.Title, doc.Title)
	assert.Equal(t, it.Version, doc.Version)
	require.NotNil(t, doc.Price)
	assert.Equal(t, int64(4500), doc.Price.Amount)
}

func TestDocumentStoreGetNotFound(t *testing.T) {
	database := curiotesting.CreateSearchTestDB(t)
	s := NewDocumentStore(database)

	_, err := s.Get(context.Background(), item.ID("missing"))
	assert.True(t, errors.IsNotFound(err))
}

func TestDocumentStoreRejectsStaleVersion(t *testing.T) {
	database := curiotesting.CreateSearchTestDB(t)
	s := NewDocumentStore(database)
	ctx := context.Background()

	newer := lampItem(2000)
	newer.Price = &item.Price{Amount: 3900, Currency: "USD"}
	newer.Version = item.ComputeVersion(time.Unix(0, 2000), newer)

	applied, err := s.Index(ctx, newer)
	require.NoError(t, err)
	require.True(t, applied)

	stale := lampItem(1000)
	applied, err = s.Index(ctx, stale)
	require.NoError(t, err)
	assert.False(t, applied, "stale document must be skipped")

	doc, err := s.Get(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.Version, doc.Version)
	assert.Equal(t, int64(3900), doc.Price.Amount)
}

func TestDocumentStoreIndexIdempotent(t *testing.T) {
	database := curiotesting.CreateSearchTestDB(t)
	s := NewDocumentStore(database)
	ctx := context.Background()

	it := lampItem(1000)

	applied, err := s.Index(ctx, it)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = s.Index(ctx, it)
	require.NoError(t, err)
	assert.False(t, applied)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func seedDocuments(t *testing.T, s *DocumentStore) {
	t.Helper()
	ctx := context.Background()

	items := []*item.Item{
		{
			ID: item.ComputeID("craigslist", "lamp"), Source: "craigslist", ExternalID: "lamp",
			Title: "Vintage desk lamp", Description: "Brass, working",
			Price: &item.Price{Amount: 4500, Currency: "USD"},
			Location: "portland", Category: "furniture", State: item.StateActive,
		},
		{
			ID: item.ComputeID("craigslist", "bike"), Source: "craigslist", ExternalID: "bike",
			Title: "Road bike 54cm", Description: "Needs new tires",
			Price: &item.Price{Amount: 22000, Currency: "USD"},
			Location: "seattle", Category: "sporting", State: item.StateActive,
		},
		{
			ID: item.ComputeID("ebay", "lamp2"), Source: "ebay", ExternalID: "lamp2",
			Title: "Desk LAMP, broken shade", Description: "For parts",
			Location: "portland", Category: "furniture", State: item.StateRemoved,
		},
	}
	for i, it := range items {
		observedAt := int64(1000 + i)
		it.FirstSeenAt = time.Unix(0, observedAt).UTC()
		it.LastSeenAt = it.FirstSeenAt
		it.Version = item.ComputeVersion(time.Unix(0, observedAt), it)
		_, err := s.Index(ctx, it)
		require.NoError(t, err)
	}
}

func TestDocumentStoreSearch(t *testing.T) {
	database := curiotesting.CreateSearchTestDB(t)
	s := NewDocumentStore(database)
	seedDocuments(t, s)
	ctx := context.Background()

	t.Run("nil criteria matches all", func(t *testing.T) {
		docs, err := s.Search(ctx, nil, 0)
		require.NoError(t, err)
		assert.Len(t, docs, 3)
	})

	t.Run("keyword is case-insensitive over title and description", func(t *testing.T) {
		docs, err := s.Search(ctx, filter.Keyword{Term: "lamp"}, 0)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("price range excludes unpriced documents", func(t *testing.T) {
		// Both priced documents fall inside the range; the unpriced one
		// must not match even though every bound would be satisfied vacuously.
		min, max := int64(1000), int64(50000)
		docs, err := s.Search(ctx, filter.PriceRange{Min: &min, Max: &max, Currency: "USD"}, 0)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		titles := []string{docs[0].Title, docs[1].Title}
		assert.ElementsMatch(t, []string{"Vintage desk lamp", "Road bike 54cm"}, titles)
	})

	t.Run("price range upper bound", func(t *testing.T) {
		min, max := int64(1000), int64(5000)
		docs, err := s.Search(ctx, filter.PriceRange{Min: &min, Max: &max, Currency: "USD"}, 0)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Vintage desk lamp", docs[0].Title)
	})

	t.Run("conjunction", func(t *testing.T) {
		c := filter.And{Children: []filter.Criteria{
			filter.Keyword{Term: "lamp"},
			filter.StateIn{States: []item.State{item.StateActive}},
			filter.LocationIs{Location: "Portland"},
		}}
		docs, err := s.Search(ctx, c, 0)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Vintage desk lamp", docs[0].Title)
	})

	t.Run("negation", func(t *testing.T) {
		docs, err := s.Search(ctx, filter.Not{Child: filter.CategoryIs{Category: "furniture"}}, 0)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Road bike 54cm", docs[0].Title)
	})

	t.Run("empty or matches nothing", func(t *testing.T) {
		docs, err := s.Search(ctx, filter.Or{}, 0)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("like wildcards in terms are escaped", func(t *testing.T) {
		docs, err := s.Search(ctx, filter.Keyword{Term: "100%"}, 0)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestQueryBuilderMatchesEvaluator(t *testing.T) {
	// The SQL translation and the in-process evaluator must agree on the
	// same criteria over the same items.
	database := curiotesting.CreateSearchTestDB(t)
	s := NewDocumentStore(database)
	seedDocuments(t, s)
	ctx := context.Background()

	min := int64(1000)
	criteria := []filter.Criteria{
		filter.Keyword{Term: "lamp"},
		filter.PriceRange{Min: &min},
		filter.Or{Children: []filter.Criteria{
			filter.CategoryIs{Category: "sporting"},
			filter.StateIn{States: []item.State{item.StateRemoved}},
		}},
	}

	all, err := s.Search(ctx, nil, 0)
	require.NoError(t, err)

	for _, c := range criteria {
		docs, err := s.Search(ctx, c, 0)
		require.NoError(t, err)

		matched := map[item.ID]bool{}
		for _, doc := range docs {
			matched[doc.ItemID] = true
		}
		for _, doc := range all {
			it := &item.Item{
				ID: doc.ItemID, Title: doc.Title, Description: doc.Description,
				Price: doc.Price, Location: doc.Location, Category: doc.Category,
				State: doc.State,
			}
			assert.Equal(t, filter.Evaluate(c, it), matched[doc.ItemID],
				"evaluator and SQL disagree on %T for %s", c, doc.ItemID)
		}
	}
}
