package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	curiotesting "github.com/teranos/curio/internal/testing"
	"github.com/teranos/curio/item"
)

func TestDeadLetterStoreAddAndList(t *testing.T) {
	database := curiotesting.CreatePrimaryTestDB(t)
	s := NewDeadLetterStore(database)
	ctx := context.Background()

	id, err := s.Add(ctx, &DeadLetter{
		ItemID:   item.ID("abc123"),
		Reason:   ReasonRetriesExhausted,
		Detail:   "primary store unavailable after 5 attempts",
		Payload:  `{"source":"craigslist","external_id":"post-1"}`,
		Attempts: 5,
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	_, err = s.Add(ctx, &DeadLetter{
		Reason: ReasonValidation,
		Detail: "missing title",
	})
	require.NoError(t, err)

	letters, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 2)

	// Newest first.
	assert.Equal(t, ReasonValidation, letters[0].Reason)
	assert.Equal(t, ReasonRetriesExhausted, letters[1].Reason)
	assert.Equal(t, item.ID("abc123"), letters[1].ItemID)
	assert.Equal(t, 5, letters[1].Attempts)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDeadLetterStoreListEmpty(t *testing.T) {
	database := curiotesting.CreatePrimaryTestDB(t)
	s := NewDeadLetterStore(database)

	letters, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, letters)
}
