package lifecycle

import (
	"fmt"
	"time"
)

// EscrowState labels the lifecycle state of an escrow.
type EscrowState string

const (
	EscrowPending       EscrowState = "PENDING"
	EscrowFunded        EscrowState = "FUNDED"
	EscrowLockedDispute EscrowState = "LOCKED_DISPUTE"
	EscrowReleased      EscrowState = "RELEASED"
	EscrowRefunded      EscrowState = "REFUNDED"
	EscrowRefundPartial EscrowState = "REFUND_PARTIAL"
)

// EscrowStates lists every escrow state.
var EscrowStates = []EscrowState{
	EscrowPending, EscrowFunded, EscrowLockedDispute,
	EscrowReleased, EscrowRefunded, EscrowRefundPartial,
}

// IsTerminal reports whether no transition may leave s.
func (s EscrowState) IsTerminal() bool {
	return s == EscrowReleased || s == EscrowRefunded || s == EscrowRefundPartial
}

// Valid reports whether s is a known escrow state.
func (s EscrowState) Valid() bool {
	_, ok := escrowTransitions[s]
	return ok
}

// Escrow is an immutable snapshot of the funds backing a task. Amount is in
// minor currency units and never changes after creation.
type Escrow struct {
	ID     string
	TaskID string
	Amount int64
	State  EscrowState
	// Split fields are set only when entering REFUND_PARTIAL.
	SplitPercent  int
	HustlerAmount int64
	ClientAmount  int64
	FundedAt      *time.Time
	ReleasedAt    *time.Time
	RefundedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EscrowTransitionKind identifies an edge of the escrow graph.
type EscrowTransitionKind string

const (
	EscrowFund               EscrowTransitionKind = "fund"
	EscrowRelease            EscrowTransitionKind = "release"
	EscrowReleaseFromDispute EscrowTransitionKind = "release_from_dispute"
	EscrowRefundFromPending  EscrowTransitionKind = "refund_from_pending"
	EscrowRefundFromFunded   EscrowTransitionKind = "refund_from_funded"
	EscrowRefundFromDispute  EscrowTransitionKind = "refund_from_dispute"
	EscrowRefundPartialSplit EscrowTransitionKind = "refund_partial"
	EscrowLockForDispute     EscrowTransitionKind = "lock_for_dispute"
)

var escrowTransitions = map[EscrowState]map[EscrowState]EscrowTransitionKind{
	EscrowPending: {
		EscrowFunded:   EscrowFund,
		EscrowRefunded: EscrowRefundFromPending,
	},
	EscrowFunded: {
		EscrowReleased:      EscrowRelease,
		EscrowRefunded:      EscrowRefundFromFunded,
		EscrowLockedDispute: EscrowLockForDispute,
	},
	EscrowLockedDispute: {
		EscrowReleased:      EscrowReleaseFromDispute,
		EscrowRefunded:      EscrowRefundFromDispute,
		EscrowRefundPartial: EscrowRefundPartialSplit,
	},
	EscrowReleased:      {},
	EscrowRefunded:      {},
	EscrowRefundPartial: {},
}

// EscrowContext carries the facts escrow guards read.
type EscrowContext struct {
	// PaymentEvent is the processor's event name, trusted as given:
	// fund, refund_from_pending.
	PaymentEvent string
	// TaskState is the peer task's current state: release, refund_from_funded,
	// lock_for_dispute.
	TaskState TaskState
	// DisputeResolution: release_from_dispute, refund_from_dispute, refund_partial.
	DisputeResolution DisputeResolution
	// SplitPercent is the hustler's share in percent: refund_partial.
	SplitPercent int
}

// PaymentEventContext builds the context for transitions driven by the processor.
func PaymentEventContext(event string) EscrowContext {
	return EscrowContext{PaymentEvent: event}
}

// PeerTaskContext builds the context for transitions gated on the task state.
func PeerTaskContext(task TaskState) EscrowContext {
	return EscrowContext{TaskState: task}
}

// DisputeOutcomeContext builds the context for leaving LOCKED_DISPUTE.
func DisputeOutcomeContext(resolution DisputeResolution, splitPercent int) EscrowContext {
	return EscrowContext{DisputeResolution: resolution, SplitPercent: splitPercent}
}

type escrowGuard struct {
	name  string
	allow func(Escrow, EscrowContext) bool
}

var escrowGuards = map[EscrowTransitionKind]escrowGuard{
	EscrowFund: {"canFund", func(e Escrow, c EscrowContext) bool {
		return e.State == EscrowPending && c.PaymentEvent == PaymentIntentSucceeded
	}},
	EscrowRelease: {"canRelease", func(_ Escrow, c EscrowContext) bool {
		return c.TaskState == TaskCompleted
	}},
	EscrowReleaseFromDispute: {"canReleaseFromDispute", func(_ Escrow, c EscrowContext) bool {
		return c.DisputeResolution == ResolutionHustlerWins
	}},
	EscrowRefundFromPending: {"canRefundFromPending", func(_ Escrow, c EscrowContext) bool {
		return c.PaymentEvent == PaymentIntentCanceled
	}},
	EscrowRefundFromFunded: {"canRefundFromFunded", func(_ Escrow, c EscrowContext) bool {
		return c.TaskState == TaskCancelled
	}},
	EscrowRefundFromDispute: {"canRefundFromDispute", func(_ Escrow, c EscrowContext) bool {
		return c.DisputeResolution == ResolutionClientWins
	}},
	EscrowRefundPartialSplit: {"canRefundPartial", func(_ Escrow, c EscrowContext) bool {
		return c.DisputeResolution == ResolutionSplit && c.SplitPercent > 0 && c.SplitPercent < 100
	}},
	EscrowLockForDispute: {"canLockForDispute", func(_ Escrow, c EscrowContext) bool {
		return c.TaskState == TaskDisputed
	}},
}

// EscrowTransitionKindFor resolves the edge from -> to, if the graph has one.
func EscrowTransitionKindFor(from, to EscrowState) (EscrowTransitionKind, bool) {
	kind, ok := escrowTransitions[from][to]
	return kind, ok
}

// SplitAmount divides amount so that hustler gets floor(amount*percent/100) and
// the client gets the remainder. The parts always sum to amount.
func SplitAmount(amount int64, percent int) (hustler, client int64) {
	p := int64(percent)
	// Split amount into hundreds and remainder so amount*percent cannot overflow.
	hustler = (amount/100)*p + (amount%100)*p/100
	return hustler, amount - hustler
}

// EscrowMachine validates and applies escrow transitions.
type EscrowMachine struct {
	cfg machineConfig
}

// NewEscrowMachine creates an escrow machine.
func NewEscrowMachine(opts ...Option) *EscrowMachine {
	return &EscrowMachine{cfg: newMachineConfig(opts)}
}

// IsValidTransition reports whether the graph has an edge from -> to.
func (m *EscrowMachine) IsValidTransition(from, to EscrowState) bool {
	_, ok := EscrowTransitionKindFor(from, to)
	return ok
}

// IsTerminalState reports whether s is terminal.
func (m *EscrowMachine) IsTerminalState(s EscrowState) bool {
	return s.IsTerminal()
}

// Transition returns escrow moved to target, or a *TransitionError. Amount is
// carried through unchanged.
func (m *EscrowMachine) Transition(escrow Escrow, target EscrowState, ctx EscrowContext) (Escrow, error) {
	from, to := string(escrow.State), string(target)
	if escrow.State.IsTerminal() {
		return Escrow{}, terminalError(EntityEscrow, from, to)
	}

	kind, ok := EscrowTransitionKindFor(escrow.State, target)
	if !ok {
		return Escrow{}, invalidError(EntityEscrow, from, to)
	}

	guard, ok := escrowGuards[kind]
	if !ok {
		panic(fmt.Sprintf("lifecycle: escrow transition %q has no guard", kind))
	}
	if !guard.allow(escrow, ctx) {
		return Escrow{}, guardError(EntityEscrow, from, to, guard.name)
	}

	now := m.cfg.clock()
	next := escrow
	next.State = target
	next.UpdatedAt = now
	switch target {
	case EscrowFunded:
		next.FundedAt = &now
	case EscrowReleased:
		next.ReleasedAt = &now
	case EscrowRefunded:
		next.RefundedAt = &now
	case EscrowRefundPartial:
		next.SplitPercent = ctx.SplitPercent
		next.HustlerAmount, next.ClientAmount = SplitAmount(escrow.Amount, ctx.SplitPercent)
		next.RefundedAt = &now
	}
	return next, nil
}
