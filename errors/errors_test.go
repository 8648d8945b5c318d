package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrapPreservesIdentity(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWrapfFormats(t *testing.T) {
	original := New("original")
	wrapped := Wrapf(original, "attempt %d", 3)

	assert.Contains(t, wrapped.Error(), "attempt 3")
	assert.True(t, Is(wrapped, original))
}

func TestStackTracePresent(t *testing.T) {
	err := New("boom")
	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestSentinels(t *testing.T) {
	t.Run("not found survives wrapping", func(t *testing.T) {
		err := Wrap(ErrNotFound, "item 3vQB7B6M")
		assert.True(t, IsNotFound(err))
		assert.False(t, IsStale(err))
	})

	t.Run("stale survives wrapping", func(t *testing.T) {
		err := Wrapf(ErrStale, "candidate version %d", 42)
		assert.True(t, IsStale(err))
		assert.False(t, IsNotFound(err))
	})
}

func TestHintsAndDetails(t *testing.T) {
	err := New("base")
	err = WithHint(err, "try again later")
	err = WithDetail(err, "item_id: 3vQB7B6M")

	assert.Contains(t, GetAllHints(err), "try again later")
	assert.Contains(t, GetAllDetails(err), "item_id: 3vQB7B6M")
}
