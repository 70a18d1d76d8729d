package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
		want bool
	}{
		{Unstarted, Provisioned, true},
		{Unstarted, Navigated, false},
		{Provisioned, Navigated, true},
		{Provisioned, ActionSubmitted, false},
		{Navigated, InterstitialBypassed, true},
		{Navigated, ActionSubmitted, true},
		{InterstitialBypassed, Navigated, true},
		{InterstitialBypassed, Asserted, false},
		{ActionSubmitted, Asserted, true},
		{Asserted, Navigated, true},
		{Asserted, Provisioned, false},
		{Released, Navigated, false},
		{Released, Released, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestReleasedReachableFromEveryState(t *testing.T) {
	for _, s := range []State{Unstarted, Provisioned, Navigated, InterstitialBypassed, ActionSubmitted, Asserted} {
		assert.True(t, s.CanTransition(Released), "from %s", s)
		assert.False(t, s.Terminal())
	}
	assert.True(t, Released.Terminal())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "interstitial_bypassed", InterstitialBypassed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
