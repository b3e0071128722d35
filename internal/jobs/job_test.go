package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	assert.False(t, StateQueued.Terminal())
	assert.False(t, StateProcessing.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateQueued, StateProcessing, true},
		{StateQueued, StateCompleted, false},
		{StateQueued, StateFailed, true},
		{StateProcessing, StateCompleted, true},
		{StateProcessing, StateFailed, true},
		{StateProcessing, StateProcessing, false},
		{StateCompleted, StateFailed, false},
		{StateCompleted, StateProcessing, false},
		{StateFailed, StateCompleted, false},
		{StateFailed, StateProcessing, false},
		{StateCompleted, StateQueued, false},
		{StateProcessing, StateQueued, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}
