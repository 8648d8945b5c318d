package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeIDDeterministic(t *testing.T) {
	a := ComputeID("acme", "123")
	b := ComputeID("acme", "123")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestComputeIDDistinctInputs(t *testing.T) {
	assert.NotEqual(t, ComputeID("acme", "123"), ComputeID("acme", "124"))
	assert.NotEqual(t, ComputeID("acme", "123"), ComputeID("emca", "123"))
}

func TestComputeIDSeparatorPreventsShiftCollisions(t *testing.T) {
	// ("ab","c") must differ from ("a","bc") in spite of equal concatenation.
	assert.NotEqual(t, ComputeID("ab", "c"), ComputeID("a", "bc"))
}
