package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
)

type SubmitProofInput struct {
	TaskID            string
	Actor             lifecycle.Actor
	Description       string
	PhotoURLs         []string
	BeforeAfterMarked bool
}

type ReviewProofInput struct {
	ProofID         string
	Actor           lifecycle.Actor
	Decision        lifecycle.ReviewDecision
	RejectionReason string
}

// SubmitProof records the hustler's evidence and moves the task to
// PROOF_SUBMITTED.
func (l *Lifecycle) SubmitProof(ctx context.Context, in SubmitProofInput) (lifecycle.Proof, error) {
	var result lifecycle.Proof
	err := l.inTx(ctx, "submit_proof", func(s *txScope) error {
		task, err := s.Tasks.GetByID(ctx, in.TaskID)
		if err != nil {
			return err
		}
		if in.Actor.ID == "" || in.Actor.ID != task.Task.HustlerID {
			return fmt.Errorf("%w: only the assigned hustler can submit proof", ErrPermissionDenied)
		}

		proof, err := lifecycle.NewProof(lifecycle.NewProofParams{
			ID:                uuid.NewString(),
			TaskID:            task.Task.ID,
			HustlerID:         in.Actor.ID,
			TaskClientID:      task.Task.ClientID,
			Description:       in.Description,
			PhotoURLs:         in.PhotoURLs,
			BeforeAfterMarked: in.BeforeAfterMarked,
			SubmittedAt:       l.clock(),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}

		// The task moves first so a refused submission leaves no proof row.
		next, err := l.tasks.Transition(task.Task, lifecycle.TaskProofSubmitted, lifecycle.SubmitProofContext(proof.ID))
		if err != nil {
			return err
		}

		if _, err := s.Proofs.Create(ctx, proof); err != nil {
			return err
		}
		if err := s.record(ctx, l.transition(lifecycle.EntityProof, proof.ID, proof.TaskID, "", string(proof.State), in.Actor.ID)); err != nil {
			return err
		}

		if _, err := s.Tasks.Update(ctx, next, task.Version); err != nil {
			return err
		}
		if err := s.record(ctx, l.transition(lifecycle.EntityTask, next.ID, next.ID, string(task.Task.State), string(next.State), in.Actor.ID)); err != nil {
			return err
		}

		result = proof
		return nil
	})
	return result, err
}

// ReviewProof applies the client's verdict. Accepting a proof completes its
// task when the task is waiting on it, which in turn releases the escrow.
func (l *Lifecycle) ReviewProof(ctx context.Context, in ReviewProofInput) (lifecycle.Proof, error) {
	var target lifecycle.ProofState
	switch in.Decision {
	case lifecycle.DecisionAccept:
		target = lifecycle.ProofAccepted
	case lifecycle.DecisionReject:
		target = lifecycle.ProofRejected
	default:
		return lifecycle.Proof{}, fmt.Errorf("%w: unknown review decision %q", ErrInvalidArgument, in.Decision)
	}

	var result lifecycle.Proof
	err := l.inTx(ctx, "review_proof", func(s *txScope) error {
		proof, err := s.Proofs.GetByID(ctx, in.ProofID)
		if err != nil {
			return err
		}

		reviewed, err := l.moveProof(ctx, s, proof, target,
			lifecycle.ReviewContext(in.Actor.ID, in.Decision, in.RejectionReason))
		if err != nil {
			return err
		}
		result = reviewed.Proof

		if reviewed.Proof.State != lifecycle.ProofAccepted {
			return nil
		}

		task, err := s.Tasks.GetByID(ctx, reviewed.Proof.TaskID)
		if err != nil {
			return err
		}
		if task.Task.State != lifecycle.TaskProofSubmitted {
			return nil
		}

		completed, err := l.moveTask(ctx, s, task, lifecycle.TaskCompleted,
			lifecycle.CompleteFromProofContext(reviewed.Proof.State), in.Actor.ID)
		if err != nil {
			return err
		}
		return l.followTask(ctx, s, completed.Task, in.Actor.ID)
	})
	return result, err
}
