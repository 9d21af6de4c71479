package proposal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionFollowsStepOrder(t *testing.T) {
	r := newRun(func() time.Time { return fixedNow })

	for _, to := range []Phase{PhaseBaseResolved, PhaseBranchCreated, PhaseModeDetermined, PhaseContentWritten, PhasePRCreated} {
		require.NoError(t, r.Transition(to, "", string(to)))
	}
	assert.Equal(t, PhasePRCreated, r.phase)
	assert.Len(t, r.events, 5)
}

func TestTransitionRejectsSkippedPhase(t *testing.T) {
	r := newRun(time.Now)

	err := r.Transition(PhaseBranchCreated, StepCreateBranch, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, PhaseStart, r.phase)
	assert.Empty(t, r.events)
}

func TestFailedReachableFromEveryNonTerminalPhase(t *testing.T) {
	for from := range validTransitions {
		r := newRun(time.Now)
		r.phase = from
		assert.NoError(t, r.Transition(PhaseFailed, "", ""), "from %s", from)
	}
}

func TestTerminalPhasesHaveNoTransitions(t *testing.T) {
	for _, from := range []Phase{PhasePRCreated, PhaseFailed} {
		r := newRun(time.Now)
		r.phase = from
		assert.ErrorIs(t, r.Transition(PhaseFailed, "", ""), ErrInvalidTransition)
		assert.True(t, from.Terminal())
	}
}
