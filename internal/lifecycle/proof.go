package lifecycle

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf16"
)

// ProofState labels the review state of a proof.
type ProofState string

const (
	ProofPending  ProofState = "PENDING"
	ProofAccepted ProofState = "ACCEPTED"
	ProofRejected ProofState = "REJECTED"
)

// ProofStates lists every proof state.
var ProofStates = []ProofState{ProofPending, ProofAccepted, ProofRejected}

// IsTerminal reports whether no transition may leave s.
func (s ProofState) IsTerminal() bool {
	return s == ProofAccepted || s == ProofRejected
}

// Valid reports whether s is a known proof state.
func (s ProofState) Valid() bool {
	_, ok := proofTransitions[s]
	return ok
}

// ProofQuality grades the evidence attached to a proof.
type ProofQuality string

const (
	QualityBasic         ProofQuality = "BASIC"
	QualityStandard      ProofQuality = "STANDARD"
	QualityComprehensive ProofQuality = "COMPREHENSIVE"
)

const comprehensiveDescriptionLength = 50

// DetermineQuality grades proof content. COMPREHENSIVE needs two or more photos,
// before/after marking and a description of at least 50 UTF-16 code units, the
// length web clients report; STANDARD needs one photo.
func DetermineQuality(photoURLs []string, description string, beforeAfterMarked bool) ProofQuality {
	switch {
	case len(photoURLs) >= 2 && beforeAfterMarked &&
		len(utf16.Encode([]rune(description))) >= comprehensiveDescriptionLength:
		return QualityComprehensive
	case len(photoURLs) >= 1:
		return QualityStandard
	default:
		return QualityBasic
	}
}

// Proof is an immutable snapshot of a hustler's completion evidence.
type Proof struct {
	ID        string
	TaskID    string
	HustlerID string
	// TaskClientID is the only identity allowed to review.
	TaskClientID      string
	Description       string
	PhotoURLs         []string
	BeforeAfterMarked bool
	State             ProofState
	Quality           ProofQuality
	SubmittedAt       time.Time
	ReviewedAt        *time.Time
	// RejectionReason is set only when rejected.
	RejectionReason string
}

// NewProofParams are the inputs to NewProof.
type NewProofParams struct {
	ID                string
	TaskID            string
	HustlerID         string
	TaskClientID      string
	Description       string
	PhotoURLs         []string
	BeforeAfterMarked bool
	SubmittedAt       time.Time
}

// ErrMissingIdentifier is returned by NewProof when a required id is empty.
var ErrMissingIdentifier = errors.New("missing identifier")

// NewProof builds a PENDING proof with its quality tier fixed at creation.
func NewProof(p NewProofParams) (Proof, error) {
	switch {
	case p.ID == "":
		return Proof{}, fmt.Errorf("proof id: %w", ErrMissingIdentifier)
	case p.TaskID == "":
		return Proof{}, fmt.Errorf("task id: %w", ErrMissingIdentifier)
	case p.HustlerID == "":
		return Proof{}, fmt.Errorf("hustler id: %w", ErrMissingIdentifier)
	case p.TaskClientID == "":
		return Proof{}, fmt.Errorf("task client id: %w", ErrMissingIdentifier)
	}

	photos := make([]string, len(p.PhotoURLs))
	copy(photos, p.PhotoURLs)

	return Proof{
		ID:                p.ID,
		TaskID:            p.TaskID,
		HustlerID:         p.HustlerID,
		TaskClientID:      p.TaskClientID,
		Description:       p.Description,
		PhotoURLs:         photos,
		BeforeAfterMarked: p.BeforeAfterMarked,
		State:             ProofPending,
		Quality:           DetermineQuality(photos, p.Description, p.BeforeAfterMarked),
		SubmittedAt:       p.SubmittedAt,
	}, nil
}

// ReviewDecision is the reviewer's explicit verdict.
type ReviewDecision string

const (
	DecisionAccept ReviewDecision = "ACCEPT"
	DecisionReject ReviewDecision = "REJECT"
)

// ProofTransitionKind identifies an edge of the proof graph.
type ProofTransitionKind string

const (
	ProofAccept ProofTransitionKind = "accept"
	ProofReject ProofTransitionKind = "reject"
)

var proofTransitions = map[ProofState]map[ProofState]ProofTransitionKind{
	ProofPending: {
		ProofAccepted: ProofAccept,
		ProofRejected: ProofReject,
	},
	ProofAccepted: {},
	ProofRejected: {},
}

// ProofContext carries the facts proof guards read.
type ProofContext struct {
	ReviewerID string
	Decision   ReviewDecision
	// RejectionReason must be non-blank to reject.
	RejectionReason string
}

// ReviewContext builds a proof review context.
func ReviewContext(reviewerID string, decision ReviewDecision, reason string) ProofContext {
	return ProofContext{ReviewerID: reviewerID, Decision: decision, RejectionReason: reason}
}

type proofGuard struct {
	name  string
	allow func(Proof, ProofContext) bool
}

func isReviewer(p Proof, c ProofContext) bool {
	return c.ReviewerID != "" && c.ReviewerID == p.TaskClientID
}

var proofGuards = map[ProofTransitionKind]proofGuard{
	ProofAccept: {"canAccept", func(p Proof, c ProofContext) bool {
		return isReviewer(p, c) && c.Decision == DecisionAccept
	}},
	ProofReject: {"canReject", func(p Proof, c ProofContext) bool {
		return isReviewer(p, c) && c.Decision == DecisionReject &&
			strings.TrimSpace(c.RejectionReason) != ""
	}},
}

// ProofTransitionKindFor resolves the edge from -> to, if the graph has one.
func ProofTransitionKindFor(from, to ProofState) (ProofTransitionKind, bool) {
	kind, ok := proofTransitions[from][to]
	return kind, ok
}

// ProofMachine validates and applies proof review transitions.
type ProofMachine struct {
	cfg machineConfig
}

// NewProofMachine creates a proof machine.
func NewProofMachine(opts ...Option) *ProofMachine {
	return &ProofMachine{cfg: newMachineConfig(opts)}
}

// IsValidTransition reports whether the graph has an edge from -> to.
func (m *ProofMachine) IsValidTransition(from, to ProofState) bool {
	_, ok := ProofTransitionKindFor(from, to)
	return ok
}

// IsTerminalState reports whether s is terminal.
func (m *ProofMachine) IsTerminalState(s ProofState) bool {
	return s.IsTerminal()
}

// Transition returns proof moved to target, or a *TransitionError. Quality is
// not re-derived.
func (m *ProofMachine) Transition(proof Proof, target ProofState, ctx ProofContext) (Proof, error) {
	from, to := string(proof.State), string(target)
	if proof.State.IsTerminal() {
		return Proof{}, terminalError(EntityProof, from, to)
	}

	kind, ok := ProofTransitionKindFor(proof.State, target)
	if !ok {
		return Proof{}, invalidError(EntityProof, from, to)
	}

	guard, ok := proofGuards[kind]
	if !ok {
		panic(fmt.Sprintf("lifecycle: proof transition %q has no guard", kind))
	}
	if !guard.allow(proof, ctx) {
		return Proof{}, guardError(EntityProof, from, to, guard.name)
	}

	now := m.cfg.clock()
	next := proof
	next.PhotoURLs = slices.Clone(proof.PhotoURLs)
	next.State = target
	next.ReviewedAt = &now
	if target == ProofRejected {
		next.RejectionReason = ctx.RejectionReason
	}
	return next, nil
}
