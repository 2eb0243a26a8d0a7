package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Every edge kind in a transition table must have a guard and every guard must
// belong to an edge.

func TestTaskTableMatchesGuards(t *testing.T) {
	kinds := map[TaskTransitionKind]bool{}
	for from, targets := range taskTransitions {
		if from.IsTerminal() {
			assert.Empty(t, targets, from)
		}
		for _, kind := range targets {
			kinds[kind] = true
		}
	}
	guards := map[TaskTransitionKind]bool{}
	for kind := range taskGuards {
		guards[kind] = true
	}
	assert.Equal(t, kinds, guards)
	assert.Len(t, taskTransitions, len(TaskStates))
}

func TestEscrowTableMatchesGuards(t *testing.T) {
	kinds := map[EscrowTransitionKind]bool{}
	for from, targets := range escrowTransitions {
		if from.IsTerminal() {
			assert.Empty(t, targets, from)
		}
		for _, kind := range targets {
			kinds[kind] = true
		}
	}
	guards := map[EscrowTransitionKind]bool{}
	for kind := range escrowGuards {
		guards[kind] = true
	}
	assert.Equal(t, kinds, guards)
	assert.Len(t, escrowTransitions, len(EscrowStates))
}

func TestProofTableMatchesGuards(t *testing.T) {
	kinds := map[ProofTransitionKind]bool{}
	for from, targets := range proofTransitions {
		if from.IsTerminal() {
			assert.Empty(t, targets, from)
		}
		for _, kind := range targets {
			kinds[kind] = true
		}
	}
	guards := map[ProofTransitionKind]bool{}
	for kind := range proofGuards {
		guards[kind] = true
	}
	assert.Equal(t, kinds, guards)
	assert.Len(t, proofTransitions, len(ProofStates))
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "terminal_state", KindName(terminalError(EntityTask, "COMPLETED", "OPEN")))
	assert.Equal(t, "invalid_transition", KindName(invalidError(EntityTask, "OPEN", "COMPLETED")))
	assert.Equal(t, "guard_rejected", KindName(guardError(EntityTask, "OPEN", "ACCEPTED", "canAccept")))
	assert.Equal(t, "error", KindName(errors.New("boom")))
}
