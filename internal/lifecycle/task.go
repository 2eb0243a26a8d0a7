package lifecycle

import (
	"fmt"
	"time"
)

// TaskState labels the lifecycle state of a task.
type TaskState string

const (
	TaskOpen           TaskState = "OPEN"
	TaskAccepted       TaskState = "ACCEPTED"
	TaskProofSubmitted TaskState = "PROOF_SUBMITTED"
	TaskDisputed       TaskState = "DISPUTED"
	TaskCompleted      TaskState = "COMPLETED"
	TaskCancelled      TaskState = "CANCELLED"
	TaskExpired        TaskState = "EXPIRED"
)

// TaskStates lists every task state in lifecycle order.
var TaskStates = []TaskState{
	TaskOpen, TaskAccepted, TaskProofSubmitted, TaskDisputed,
	TaskCompleted, TaskCancelled, TaskExpired,
}

// IsTerminal reports whether no transition may leave s.
func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskCancelled || s == TaskExpired
}

// Valid reports whether s is a known task state.
func (s TaskState) Valid() bool {
	_, ok := taskTransitions[s]
	return ok
}

// Task is an immutable snapshot of a posted task.
type Task struct {
	ID       string
	ClientID string
	// HustlerID is empty until the task is accepted.
	HustlerID   string
	State       TaskState
	Deadline    time.Time
	AcceptedAt  *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskTransitionKind identifies an edge of the task graph. COMPLETED is reached
// by two distinct kinds depending on the source state.
type TaskTransitionKind string

const (
	TaskAccept              TaskTransitionKind = "accept"
	TaskSubmitProof         TaskTransitionKind = "submit_proof"
	TaskCompleteFromProof   TaskTransitionKind = "complete_from_proof"
	TaskCompleteFromDispute TaskTransitionKind = "complete_from_dispute"
	TaskDispute             TaskTransitionKind = "dispute"
	TaskCancel              TaskTransitionKind = "cancel"
	TaskExpire              TaskTransitionKind = "expire"
)

// taskTransitions maps each source state to its allowed targets and the kind of
// each edge. Terminal states map to empty sets.
var taskTransitions = map[TaskState]map[TaskState]TaskTransitionKind{
	TaskOpen: {
		TaskAccepted:  TaskAccept,
		TaskCancelled: TaskCancel,
		TaskExpired:   TaskExpire,
	},
	TaskAccepted: {
		TaskProofSubmitted: TaskSubmitProof,
		TaskCancelled:      TaskCancel,
		TaskExpired:        TaskExpire,
	},
	TaskProofSubmitted: {
		TaskCompleted: TaskCompleteFromProof,
		TaskDisputed:  TaskDispute,
		TaskCancelled: TaskCancel,
	},
	TaskDisputed: {
		TaskCompleted: TaskCompleteFromDispute,
		TaskCancelled: TaskCancel,
	},
	TaskCompleted: {},
	TaskCancelled: {},
	TaskExpired:   {},
}

// TaskContext carries the facts task guards read. Each guard reads only the
// fields named in its comment; use the constructor helpers to build one.
type TaskContext struct {
	// Actor: dispute, cancel.
	Actor Actor
	// HustlerID: accept.
	HustlerID string
	// EscrowState is the peer escrow's current state: accept.
	EscrowState EscrowState
	// ProofID: submit_proof.
	ProofID string
	// ProofState is the peer proof's current state: complete_from_proof.
	ProofState ProofState
	// DisputeResolution: complete_from_dispute.
	DisputeResolution DisputeResolution
	// Now: expire.
	Now time.Time
}

// AcceptContext builds the context for OPEN -> ACCEPTED.
func AcceptContext(hustlerID string, escrow EscrowState) TaskContext {
	return TaskContext{HustlerID: hustlerID, EscrowState: escrow}
}

// SubmitProofContext builds the context for ACCEPTED -> PROOF_SUBMITTED.
func SubmitProofContext(proofID string) TaskContext {
	return TaskContext{ProofID: proofID}
}

// CompleteFromProofContext builds the context for PROOF_SUBMITTED -> COMPLETED.
func CompleteFromProofContext(proof ProofState) TaskContext {
	return TaskContext{ProofState: proof}
}

// CompleteFromDisputeContext builds the context for DISPUTED -> COMPLETED.
func CompleteFromDisputeContext(resolution DisputeResolution) TaskContext {
	return TaskContext{DisputeResolution: resolution}
}

// DisputeContext builds the context for PROOF_SUBMITTED -> DISPUTED.
func DisputeContext(actor Actor) TaskContext {
	return TaskContext{Actor: actor}
}

// CancelContext builds the context for any cancellation.
func CancelContext(actor Actor) TaskContext {
	return TaskContext{Actor: actor}
}

// ExpireContext builds the context for a deadline expiry.
func ExpireContext(now time.Time) TaskContext {
	return TaskContext{Now: now}
}

type taskGuard struct {
	name  string
	allow func(Task, TaskContext) bool
}

var taskGuards = map[TaskTransitionKind]taskGuard{
	TaskAccept: {"canAccept", func(t Task, c TaskContext) bool {
		return t.State == TaskOpen && c.HustlerID != "" && c.EscrowState == EscrowFunded
	}},
	TaskSubmitProof: {"canSubmitProof", func(t Task, c TaskContext) bool {
		return t.State == TaskAccepted && c.ProofID != ""
	}},
	TaskCompleteFromProof: {"canComplete", func(_ Task, c TaskContext) bool {
		return c.ProofState == ProofAccepted
	}},
	TaskCompleteFromDispute: {"canCompleteFromDispute", func(_ Task, c TaskContext) bool {
		return c.DisputeResolution == ResolutionHustlerWins
	}},
	TaskDispute: {"canDispute", func(t Task, c TaskContext) bool {
		return t.State == TaskProofSubmitted && c.Actor.ID != "" && c.Actor.ID == t.ClientID
	}},
	TaskCancel: {"canCancel", func(t Task, c TaskContext) bool {
		if t.State.IsTerminal() {
			return false
		}
		return c.Actor.IsAdmin || (c.Actor.ID != "" && c.Actor.ID == t.ClientID)
	}},
	TaskExpire: {"canExpire", func(t Task, c TaskContext) bool {
		if t.State != TaskOpen && t.State != TaskAccepted {
			return false
		}
		return !c.Now.IsZero() && c.Now.After(t.Deadline)
	}},
}

// TaskTransitionKindFor resolves the edge from -> to, if the graph has one.
func TaskTransitionKindFor(from, to TaskState) (TaskTransitionKind, bool) {
	kind, ok := taskTransitions[from][to]
	return kind, ok
}

// TaskMachine validates and applies task transitions.
type TaskMachine struct {
	cfg machineConfig
}

// NewTaskMachine creates a task machine.
func NewTaskMachine(opts ...Option) *TaskMachine {
	return &TaskMachine{cfg: newMachineConfig(opts)}
}

// IsValidTransition reports whether the graph has an edge from -> to.
func (m *TaskMachine) IsValidTransition(from, to TaskState) bool {
	_, ok := TaskTransitionKindFor(from, to)
	return ok
}

// IsTerminalState reports whether s is terminal.
func (m *TaskMachine) IsTerminalState(s TaskState) bool {
	return s.IsTerminal()
}

// Transition returns task moved to target, or a *TransitionError.
// Entering ACCEPTED records the hustler from the context.
func (m *TaskMachine) Transition(task Task, target TaskState, ctx TaskContext) (Task, error) {
	from, to := string(task.State), string(target)
	if task.State.IsTerminal() {
		return Task{}, terminalError(EntityTask, from, to)
	}

	kind, ok := TaskTransitionKindFor(task.State, target)
	if !ok {
		return Task{}, invalidError(EntityTask, from, to)
	}

	guard, ok := taskGuards[kind]
	if !ok {
		panic(fmt.Sprintf("lifecycle: task transition %q has no guard", kind))
	}
	if !guard.allow(task, ctx) {
		return Task{}, guardError(EntityTask, from, to, guard.name)
	}

	now := m.cfg.clock()
	next := task
	next.State = target
	next.UpdatedAt = now
	switch target {
	case TaskAccepted:
		next.HustlerID = ctx.HustlerID
		next.AcceptedAt = &now
	case TaskCompleted:
		next.CompletedAt = &now
	}
	return next, nil
}
