package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeTransitions(t *testing.T) {
	// none só anda pra placed ou failed
	assert.True(t, OutcomeNone.CanTransition(OutcomePlaced))
	assert.True(t, OutcomeNone.CanTransition(OutcomeFailed))
	assert.False(t, OutcomeNone.CanTransition(OutcomeWon))
	assert.False(t, OutcomeNone.CanTransition(OutcomeSold))

	// placed resolve pra qualquer terminal exceto failed
	for _, to := range []Outcome{OutcomeSold, OutcomeWon, OutcomeLost, OutcomeDraw, OutcomeVoid} {
		assert.True(t, OutcomePlaced.CanTransition(to), string(to))
	}
	assert.False(t, OutcomePlaced.CanTransition(OutcomeFailed))
	assert.False(t, OutcomePlaced.CanTransition(OutcomeNone))

	// terminais não transicionam pra nada
	for _, from := range []Outcome{OutcomeFailed, OutcomeSold, OutcomeWon, OutcomeLost, OutcomeDraw, OutcomeVoid} {
		for _, to := range []Outcome{OutcomeNone, OutcomePlaced, OutcomeFailed, OutcomeSold, OutcomeWon, OutcomeLost, OutcomeDraw, OutcomeVoid} {
			assert.False(t, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestOutcomeTerminal(t *testing.T) {
	assert.False(t, OutcomeNone.Terminal())
	assert.False(t, OutcomePlaced.Terminal())
	for _, o := range []Outcome{OutcomeFailed, OutcomeSold, OutcomeWon, OutcomeLost, OutcomeDraw, OutcomeVoid} {
		assert.True(t, o.Terminal(), string(o))
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("maximize_shares")
	assert.NoError(t, err)
	assert.Equal(t, StrategyMaximizeShares, s)

	s, err = ParseStrategy("maximize_privacy")
	assert.NoError(t, err)
	assert.Equal(t, StrategyMaximizePrivacy, s)

	_, err = ParseStrategy("yolo")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
