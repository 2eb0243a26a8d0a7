package lifecycle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingProof(t *testing.T) Proof {
	t.Helper()
	p, err := NewProof(NewProofParams{
		ID:           "p1",
		TaskID:       "t1",
		HustlerID:    "h1",
		TaskClientID: "c1",
		Description:  "mowed the lawn",
		PhotoURLs:    []string{"https://cdn.example.com/a.jpg"},
		SubmittedAt:  fixedNow,
	})
	require.NoError(t, err)
	return p
}

func TestDetermineQuality(t *testing.T) {
	tests := []struct {
		name        string
		photos      []string
		description string
		marked      bool
		want        ProofQuality
	}{
		{"no photos", nil, "", false, QualityBasic},
		{"empty photos", []string{}, "", false, QualityBasic},
		{"one photo", []string{"a"}, "", false, QualityStandard},
		{"comprehensive", []string{"a", "b"}, strings.Repeat("x", 50), true, QualityComprehensive},
		{"short description", []string{"a", "b"}, strings.Repeat("x", 49), true, QualityStandard},
		{"not marked", []string{"a", "b"}, strings.Repeat("x", 80), false, QualityStandard},
		{"one photo marked", []string{"a"}, strings.Repeat("x", 80), true, QualityStandard},
		{"multibyte description", []string{"a", "b", "c"}, strings.Repeat("é", 50), true, QualityComprehensive},
		{"astral runes count as two units", []string{"a", "b"}, strings.Repeat("😀", 25), true, QualityComprehensive},
		{"astral runes one unit short", []string{"a", "b"}, strings.Repeat("😀", 24) + "x", true, QualityStandard},
		{"long description without photos", nil, strings.Repeat("x", 200), true, QualityBasic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineQuality(tt.photos, tt.description, tt.marked))
			// Deterministic.
			assert.Equal(t, tt.want, DetermineQuality(tt.photos, tt.description, tt.marked))
		})
	}
}

func TestNewProof(t *testing.T) {
	p := newPendingProof(t)
	assert.Equal(t, ProofPending, p.State)
	assert.Equal(t, QualityStandard, p.Quality)
	assert.Nil(t, p.ReviewedAt)
	assert.Empty(t, p.RejectionReason)

	base := NewProofParams{ID: "p1", TaskID: "t1", HustlerID: "h1", TaskClientID: "c1"}
	for name, mutate := range map[string]func(*NewProofParams){
		"id":       func(p *NewProofParams) { p.ID = "" },
		"task":     func(p *NewProofParams) { p.TaskID = "" },
		"hustler":  func(p *NewProofParams) { p.HustlerID = "" },
		"reviewer": func(p *NewProofParams) { p.TaskClientID = "" },
	} {
		t.Run("missing "+name, func(t *testing.T) {
			params := base
			mutate(&params)
			_, err := NewProof(params)
			assert.ErrorIs(t, err, ErrMissingIdentifier)
		})
	}
}

func TestNewProof_CopiesPhotos(t *testing.T) {
	photos := []string{"a", "b"}
	p, err := NewProof(NewProofParams{ID: "p1", TaskID: "t1", HustlerID: "h1", TaskClientID: "c1", PhotoURLs: photos})
	require.NoError(t, err)

	photos[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, p.PhotoURLs)
}

func TestProofMachine_RejectScenario(t *testing.T) {
	m := NewProofMachine(WithClock(fixedClock))
	proof := newPendingProof(t)

	_, err := m.Transition(proof, ProofRejected, ReviewContext("c1", DecisionReject, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGuardRejected)

	_, err = m.Transition(proof, ProofRejected, ReviewContext("c1", DecisionReject, "   "))
	assert.ErrorIs(t, err, ErrGuardRejected)

	got, err := m.Transition(proof, ProofRejected, ReviewContext("c1", DecisionReject, "photos are blurry"))
	require.NoError(t, err)
	assert.Equal(t, ProofRejected, got.State)
	assert.Equal(t, "photos are blurry", got.RejectionReason)
	require.NotNil(t, got.ReviewedAt)
	assert.Equal(t, fixedNow, *got.ReviewedAt)
	assert.Equal(t, proof.Quality, got.Quality)
}

func TestProofMachine_TransitionCopiesPhotos(t *testing.T) {
	m := NewProofMachine(WithClock(fixedClock))
	proof := newPendingProof(t)
	original := append([]string(nil), proof.PhotoURLs...)

	got, err := m.Transition(proof, ProofAccepted, ReviewContext("c1", DecisionAccept, ""))
	require.NoError(t, err)
	require.NotEmpty(t, got.PhotoURLs)

	got.PhotoURLs[0] = "mutated"
	assert.Equal(t, original, proof.PhotoURLs)
}

func TestProofMachine_Guards(t *testing.T) {
	m := NewProofMachine(WithClock(fixedClock))

	tests := []struct {
		name    string
		to      ProofState
		ctx     ProofContext
		wantErr bool
	}{
		{"client accepts", ProofAccepted, ReviewContext("c1", DecisionAccept, ""), false},
		{"hustler accepts own proof", ProofAccepted, ReviewContext("h1", DecisionAccept, ""), true},
		{"accept with reject decision", ProofAccepted, ReviewContext("c1", DecisionReject, "no"), true},
		{"accept without decision", ProofAccepted, ReviewContext("c1", "", ""), true},
		{"anonymous accept", ProofAccepted, ReviewContext("", DecisionAccept, ""), true},
		{"stranger rejects", ProofRejected, ReviewContext("x9", DecisionReject, "bad"), true},
		{"reject with accept decision", ProofRejected, ReviewContext("c1", DecisionAccept, "bad"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Transition(newPendingProof(t), tt.to, tt.ctx)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrGuardRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.State)
			assert.Empty(t, got.RejectionReason)
		})
	}
}

func TestProofMachine_TerminalAndInvalid(t *testing.T) {
	m := NewProofMachine()
	proof := newPendingProof(t)

	_, err := m.Transition(proof, ProofPending, ReviewContext("c1", DecisionAccept, ""))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, from := range []ProofState{ProofAccepted, ProofRejected} {
		done := proof
		done.State = from
		assert.True(t, m.IsTerminalState(from))
		for _, to := range ProofStates {
			_, err := m.Transition(done, to, ReviewContext("c1", DecisionReject, "late"))
			assert.ErrorIs(t, err, ErrTerminalState)
		}
	}
}
