package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinel kinds for transition failures. Match with errors.Is.
var (
	ErrTerminalState     = errors.New("terminal state violation")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrGuardRejected     = errors.New("guard rejected")
)

// Entity names used in errors, events and metrics.
const (
	EntityTask   = "task"
	EntityEscrow = "escrow"
	EntityProof  = "proof"
)

// TransitionError describes why a machine refused a transition.
type TransitionError struct {
	Kind   error
	Entity string
	From   string
	To     string
	// Guard is set only for ErrGuardRejected.
	Guard string
}

func (e *TransitionError) Error() string {
	if e.Guard != "" {
		return fmt.Sprintf("%s %s -> %s: %v: %s", e.Entity, e.From, e.To, e.Kind, e.Guard)
	}
	return fmt.Sprintf("%s %s -> %s: %v", e.Entity, e.From, e.To, e.Kind)
}

func (e *TransitionError) Unwrap() error {
	return e.Kind
}

// KindName returns a short label for the failure kind.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrTerminalState):
		return "terminal_state"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrGuardRejected):
		return "guard_rejected"
	default:
		return "error"
	}
}

func terminalError(entity, from, to string) error {
	return &TransitionError{Kind: ErrTerminalState, Entity: entity, From: from, To: to}
}

func invalidError(entity, from, to string) error {
	return &TransitionError{Kind: ErrInvalidTransition, Entity: entity, From: from, To: to}
}

func guardError(entity, from, to, guard string) error {
	return &TransitionError{Kind: ErrGuardRejected, Entity: entity, From: from, To: to, Guard: guard}
}
