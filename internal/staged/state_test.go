package staged

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateTransitions(t *testing.T) {
	assert.True(t, canTransition(Idle, PrimaryPending))
	assert.True(t, canTransition(SecondaryPending, Complete))
	assert.True(t, canTransition(PrimaryDone, Failed))
	assert.False(t, canTransition(Idle, Complete))
	assert.False(t, canTransition(Complete, Failed))
	assert.False(t, canTransition(Failed, Idle))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "primary-pending", PrimaryPending.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, Failed.Terminal())
	assert.False(t, PrimaryDone.Terminal())
}
