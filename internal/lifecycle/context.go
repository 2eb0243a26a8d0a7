// Package lifecycle holds the task, escrow and proof state machines.
//
// Machines are pure: they take an entity snapshot, a target state and a context
// of caller-supplied facts, and return a new snapshot or a *TransitionError. They
// never read storage. Peer entity state (the escrow behind a task, the proof under
// review) must be loaded by the caller in the same transaction that will persist
// the result.
package lifecycle

import "time"

// DisputeResolution is the outcome produced by the dispute process.
type DisputeResolution string

const (
	ResolutionHustlerWins DisputeResolution = "HUSTLER_WINS"
	ResolutionClientWins  DisputeResolution = "CLIENT_WINS"
	ResolutionSplit       DisputeResolution = "SPLIT"
)

// Valid reports whether r is a known resolution.
func (r DisputeResolution) Valid() bool {
	switch r {
	case ResolutionHustlerWins, ResolutionClientWins, ResolutionSplit:
		return true
	}
	return false
}

// Payment processor events the escrow guards understand.
const (
	PaymentIntentSucceeded = "payment_intent.succeeded"
	PaymentIntentCanceled  = "payment_intent.canceled"
)

// Actor is the already-authorized caller of a transition.
type Actor struct {
	ID      string
	IsAdmin bool
}

// Option configures a machine.
type Option func(*machineConfig)

type machineConfig struct {
	clock func() time.Time
}

// WithClock overrides the clock used to stamp transition timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *machineConfig) {
		c.clock = clock
	}
}

func newMachineConfig(opts []Option) machineConfig {
	cfg := machineConfig{
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
