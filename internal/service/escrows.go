package service

import (
	"context"
	"fmt"

	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
)

// EscrowTransitionInput asks for the escrow behind TaskID to move to Target.
type EscrowTransitionInput struct {
	TaskID string
	Target lifecycle.EscrowState
	Actor  lifecycle.Actor
	// PaymentEvent is the processor event name, read when funding or
	// refunding a PENDING escrow.
	PaymentEvent string
}

// ResolveDisputeInput settles a disputed task and its locked escrow.
type ResolveDisputeInput struct {
	TaskID     string
	Actor      lifecycle.Actor
	Resolution lifecycle.DisputeResolution
	// SplitPercent is the hustler's share for a SPLIT resolution.
	SplitPercent int
}

// DisputeOutcome is the settled task and escrow.
type DisputeOutcome struct {
	Task   lifecycle.Task
	Escrow lifecycle.Escrow
}

// TransitionEscrow moves the escrow behind a task. Payment events drive
// PENDING escrows; FUNDED escrows are gated on the task read in the same
// transaction.
func (l *Lifecycle) TransitionEscrow(ctx context.Context, in EscrowTransitionInput) (lifecycle.Escrow, error) {
	var result lifecycle.Escrow
	err := l.inTx(ctx, "transition_escrow", func(s *txScope) error {
		escrow, err := s.Escrows.GetByTaskID(ctx, in.TaskID)
		if err != nil {
			return err
		}
		if escrow.Escrow.State == lifecycle.EscrowLockedDispute {
			return fmt.Errorf("%w: escrow %s must be settled with ResolveDispute", ErrDisputeOpen, escrow.Escrow.ID)
		}

		task, err := s.Tasks.GetByID(ctx, in.TaskID)
		if err != nil {
			return err
		}
		var ec lifecycle.EscrowContext
		if escrow.Escrow.State == lifecycle.EscrowPending {
			if in.Target == lifecycle.EscrowFunded && task.Task.State.IsTerminal() {
				return fmt.Errorf("%w: task %s is %s, escrow cannot be funded", ErrTaskClosed, task.Task.ID, task.Task.State)
			}
			ec = lifecycle.PaymentEventContext(in.PaymentEvent)
		} else {
			ec = lifecycle.PeerTaskContext(task.Task.State)
		}

		moved, err := l.moveEscrow(ctx, s, escrow, in.Target, ec, in.Actor.ID)
		if err != nil {
			return err
		}
		result = moved.Escrow
		return nil
	})
	return result, err
}

// ResolveDispute settles a disputed task and its locked escrow together.
// HUSTLER_WINS releases the escrow and completes the task; CLIENT_WINS
// refunds it and SPLIT partially refunds it, both cancelling the task.
func (l *Lifecycle) ResolveDispute(ctx context.Context, in ResolveDisputeInput) (DisputeOutcome, error) {
	if !in.Actor.IsAdmin {
		return DisputeOutcome{}, fmt.Errorf("%w: disputes are resolved by admins", ErrPermissionDenied)
	}

	var (
		escrowTarget lifecycle.EscrowState
		taskTarget   lifecycle.TaskState
		tc           lifecycle.TaskContext
	)
	switch in.Resolution {
	case lifecycle.ResolutionHustlerWins:
		escrowTarget, taskTarget = lifecycle.EscrowReleased, lifecycle.TaskCompleted
		tc = lifecycle.CompleteFromDisputeContext(in.Resolution)
	case lifecycle.ResolutionClientWins:
		escrowTarget, taskTarget = lifecycle.EscrowRefunded, lifecycle.TaskCancelled
		tc = lifecycle.CancelContext(in.Actor)
	case lifecycle.ResolutionSplit:
		escrowTarget, taskTarget = lifecycle.EscrowRefundPartial, lifecycle.TaskCancelled
		tc = lifecycle.CancelContext(in.Actor)
	default:
		return DisputeOutcome{}, fmt.Errorf("%w: unknown resolution %q", ErrInvalidArgument, in.Resolution)
	}

	var out DisputeOutcome
	err := l.inTx(ctx, "resolve_dispute", func(s *txScope) error {
		task, err := s.Tasks.GetByID(ctx, in.TaskID)
		if err != nil {
			return err
		}
		escrow, err := s.Escrows.GetByTaskID(ctx, in.TaskID)
		if err != nil {
			return err
		}
		if escrow.Escrow.State != lifecycle.EscrowLockedDispute {
			return fmt.Errorf("%w: escrow is %s", ErrNotDisputed, escrow.Escrow.State)
		}

		settled, err := l.moveEscrow(ctx, s, escrow, escrowTarget,
			lifecycle.DisputeOutcomeContext(in.Resolution, in.SplitPercent), in.Actor.ID)
		if err != nil {
			return err
		}
		closed, err := l.moveTask(ctx, s, task, taskTarget, tc, in.Actor.ID)
		if err != nil {
			return err
		}

		out = DisputeOutcome{Task: closed.Task, Escrow: settled.Escrow}
		return nil
	})
	if err != nil {
		return DisputeOutcome{}, err
	}

	l.logger.Info("Dispute resolved",
		"task_id", in.TaskID,
		"resolution", in.Resolution,
		"hustler_amount", out.Escrow.HustlerAmount,
		"client_amount", out.Escrow.ClientAmount)
	return out, nil
}
