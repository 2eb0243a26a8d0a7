// internal/service/lifecycle.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gurkanbulca/hustlemarket/internal/events"
	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
	"github.com/gurkanbulca/hustlemarket/internal/metrics"
	"github.com/gurkanbulca/hustlemarket/internal/repository"
)

// Recorder receives transition and sweep measurements.
type Recorder interface {
	Transition(entity, from, to, result string)
	ObserveSweep(d time.Duration, expired int)
}

// Lifecycle loads entities, runs them through the state machines and
// persists the results. Every operation runs in one transaction; events and
// metrics are emitted only after commit.
type Lifecycle struct {
	store      *repository.Store
	tasks      *lifecycle.TaskMachine
	escrows    *lifecycle.EscrowMachine
	proofs     *lifecycle.ProofMachine
	publisher  events.Publisher
	recorder   Recorder
	logger     *slog.Logger
	clock      func() time.Time
	sweepBatch int
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithClock sets the clock used for validation and transition timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Lifecycle) {
		l.clock = clock
	}
}

// WithSweepBatch caps how many overdue tasks one sweep expires.
func WithSweepBatch(n int) Option {
	return func(l *Lifecycle) {
		l.sweepBatch = n
	}
}

// NewLifecycle wires the state machines to the store, publisher and recorder.
func NewLifecycle(store *repository.Store, publisher events.Publisher, recorder Recorder, logger *slog.Logger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:      store,
		publisher:  publisher,
		recorder:   recorder,
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
		sweepBatch: 100,
	}
	for _, opt := range opts {
		opt(l)
	}

	clock := lifecycle.WithClock(l.clock)
	l.tasks = lifecycle.NewTaskMachine(clock)
	l.escrows = lifecycle.NewEscrowMachine(clock)
	l.proofs = lifecycle.NewProofMachine(clock)
	return l
}

// CreateTaskInput describes a task to post together with its PENDING escrow.
type CreateTaskInput struct {
	ClientID string
	Deadline time.Time
	// Amount is the escrowed price in minor currency units.
	Amount int64
}

// TaskView is a task together with its escrow and latest proof.
type TaskView struct {
	Task   lifecycle.Task
	Escrow lifecycle.Escrow
	Proof  *lifecycle.Proof
}

// TaskTransitionInput asks for TaskID to move to Target on behalf of Actor.
type TaskTransitionInput struct {
	TaskID string
	Target lifecycle.TaskState
	Actor  lifecycle.Actor
	// HustlerID is read when accepting.
	HustlerID string
}

// CreateTask posts an OPEN task and its PENDING escrow.
func (l *Lifecycle) CreateTask(ctx context.Context, in CreateTaskInput) (TaskView, error) {
	now := l.clock()
	switch {
	case strings.TrimSpace(in.ClientID) == "":
		return TaskView{}, fmt.Errorf("%w: client id is required", ErrInvalidArgument)
	case in.Amount <= 0:
		return TaskView{}, fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	case !in.Deadline.After(now):
		return TaskView{}, fmt.Errorf("%w: deadline must be in the future", ErrInvalidArgument)
	}

	task := lifecycle.Task{
		ID:        uuid.NewString(),
		ClientID:  in.ClientID,
		State:     lifecycle.TaskOpen,
		Deadline:  in.Deadline.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	escrow := lifecycle.Escrow{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Amount:    in.Amount,
		State:     lifecycle.EscrowPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := l.inTx(ctx, "create_task", func(s *txScope) error {
		if _, err := s.Tasks.Create(ctx, task); err != nil {
			return err
		}
		if _, err := s.Escrows.Create(ctx, escrow); err != nil {
			return err
		}
		if err := s.record(ctx, l.transition(lifecycle.EntityTask, task.ID, task.ID, "", string(task.State), in.ClientID)); err != nil {
			return err
		}
		return s.record(ctx, l.transition(lifecycle.EntityEscrow, escrow.ID, task.ID, "", string(escrow.State), in.ClientID))
	})
	if err != nil {
		return TaskView{}, err
	}

	l.logger.Info("Task created", "task_id", task.ID, "client_id", task.ClientID, "amount", escrow.Amount)
	return TaskView{Task: task, Escrow: escrow}, nil
}

// GetTask returns the task with its escrow and most recent proof, if any.
func (l *Lifecycle) GetTask(ctx context.Context, taskID string) (TaskView, error) {
	repos := l.store.Repos()

	task, err := repos.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	escrow, err := repos.Escrows.GetByTaskID(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}

	view := TaskView{Task: task.Task, Escrow: escrow.Escrow}
	proof, err := repos.Proofs.GetActiveByTaskID(ctx, taskID)
	switch {
	case err == nil:
		view.Proof = &proof.Proof
	case !errors.Is(err, repository.ErrNotFound):
		return TaskView{}, err
	}
	return view, nil
}

// TransitionTask moves a task, reading the peer escrow and proof inside the
// transaction. A FUNDED escrow follows the task: it is released on
// completion, refunded on cancellation and locked on dispute. Tasks in
// dispute only leave through ResolveDispute.
func (l *Lifecycle) TransitionTask(ctx context.Context, in TaskTransitionInput) (lifecycle.Task, error) {
	var result lifecycle.Task
	err := l.inTx(ctx, "transition_task", func(s *txScope) error {
		task, err := s.Tasks.GetByID(ctx, in.TaskID)
		if err != nil {
			return err
		}
		if task.Task.State == lifecycle.TaskDisputed {
			return fmt.Errorf("%w: task %s must be settled with ResolveDispute", ErrDisputeOpen, task.Task.ID)
		}
		if in.Target == lifecycle.TaskAccepted && in.HustlerID != "" && in.HustlerID == task.Task.ClientID {
			return fmt.Errorf("%w: client %s cannot accept its own task", ErrPermissionDenied, in.HustlerID)
		}

		tc, err := l.taskContext(ctx, s, task.Task, in)
		if err != nil {
			return err
		}

		moved, err := l.moveTask(ctx, s, task, in.Target, tc, in.Actor.ID)
		if err != nil {
			return err
		}
		if err := l.followTask(ctx, s, moved.Task, in.Actor.ID); err != nil {
			return err
		}
		result = moved.Task
		return nil
	})
	return result, err
}

// taskContext collects the facts the guard for task.State -> in.Target reads.
// Unknown edges get an empty context; the machine reports them.
func (l *Lifecycle) taskContext(ctx context.Context, s *txScope, task lifecycle.Task, in TaskTransitionInput) (lifecycle.TaskContext, error) {
	kind, ok := lifecycle.TaskTransitionKindFor(task.State, in.Target)
	if !ok {
		return lifecycle.TaskContext{}, nil
	}

	switch kind {
	case lifecycle.TaskAccept:
		escrow, err := s.Escrows.GetByTaskID(ctx, task.ID)
		if err != nil {
			return lifecycle.TaskContext{}, err
		}
		return lifecycle.AcceptContext(in.HustlerID, escrow.Escrow.State), nil
	case lifecycle.TaskSubmitProof:
		proof, err := s.Proofs.GetActiveByTaskID(ctx, task.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return lifecycle.SubmitProofContext(""), nil
		}
		if err != nil {
			return lifecycle.TaskContext{}, err
		}
		if proof.Proof.State != lifecycle.ProofPending {
			return lifecycle.SubmitProofContext(""), nil
		}
		return lifecycle.SubmitProofContext(proof.Proof.ID), nil
	case lifecycle.TaskCompleteFromProof:
		proof, err := s.Proofs.GetActiveByTaskID(ctx, task.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return lifecycle.CompleteFromProofContext(""), nil
		}
		if err != nil {
			return lifecycle.TaskContext{}, err
		}
		return lifecycle.CompleteFromProofContext(proof.Proof.State), nil
	case lifecycle.TaskDispute:
		return lifecycle.DisputeContext(in.Actor), nil
	case lifecycle.TaskCancel:
		return lifecycle.CancelContext(in.Actor), nil
	case lifecycle.TaskExpire:
		return lifecycle.ExpireContext(l.clock()), nil
	}
	return lifecycle.TaskContext{}, nil
}

// followTask moves a FUNDED escrow after its task. Other escrow states are
// left alone.
func (l *Lifecycle) followTask(ctx context.Context, s *txScope, task lifecycle.Task, actorID string) error {
	var target lifecycle.EscrowState
	switch task.State {
	case lifecycle.TaskCompleted:
		target = lifecycle.EscrowReleased
	case lifecycle.TaskCancelled:
		target = lifecycle.EscrowRefunded
	case lifecycle.TaskDisputed:
		target = lifecycle.EscrowLockedDispute
	default:
		return nil
	}

	escrow, err := s.Escrows.GetByTaskID(ctx, task.ID)
	if err != nil {
		return err
	}
	if escrow.Escrow.State != lifecycle.EscrowFunded {
		return nil
	}
	_, err = l.moveEscrow(ctx, s, escrow, target, lifecycle.PeerTaskContext(task.State), actorID)
	return err
}

func (l *Lifecycle) moveTask(ctx context.Context, s *txScope, rec repository.TaskRecord, target lifecycle.TaskState, tc lifecycle.TaskContext, actorID string) (repository.TaskRecord, error) {
	next, err := l.tasks.Transition(rec.Task, target, tc)
	if err != nil {
		return rec, err
	}
	updated, err := s.Tasks.Update(ctx, next, rec.Version)
	if err != nil {
		return rec, err
	}
	t := l.transition(lifecycle.EntityTask, next.ID, next.ID, string(rec.Task.State), string(next.State), actorID)
	return updated, s.record(ctx, t)
}

func (l *Lifecycle) moveEscrow(ctx context.Context, s *txScope, rec repository.EscrowRecord, target lifecycle.EscrowState, ec lifecycle.EscrowContext, actorID string) (repository.EscrowRecord, error) {
	next, err := l.escrows.Transition(rec.Escrow, target, ec)
	if err != nil {
		return rec, err
	}
	updated, err := s.Escrows.Update(ctx, next, rec.Version)
	if err != nil {
		return rec, err
	}
	t := l.transition(lifecycle.EntityEscrow, next.ID, next.TaskID, string(rec.Escrow.State), string(next.State), actorID)
	return updated, s.record(ctx, t)
}

func (l *Lifecycle) moveProof(ctx context.Context, s *txScope, rec repository.ProofRecord, target lifecycle.ProofState, pc lifecycle.ProofContext) (repository.ProofRecord, error) {
	next, err := l.proofs.Transition(rec.Proof, target, pc)
	if err != nil {
		return rec, err
	}
	updated, err := s.Proofs.Update(ctx, next, rec.Version)
	if err != nil {
		return rec, err
	}
	t := l.transition(lifecycle.EntityProof, next.ID, next.TaskID, string(rec.Proof.State), string(next.State), pc.ReviewerID)
	return updated, s.record(ctx, t)
}

func (l *Lifecycle) transition(entity, id, taskID, from, to, actorID string) events.Transition {
	return events.Transition{
		Entity:     entity,
		EntityID:   id,
		TaskID:     taskID,
		From:       from,
		To:         to,
		ActorID:    actorID,
		OccurredAt: l.clock(),
	}
}

// txScope is the repositories of one transaction plus the transitions it
// has written so far.
type txScope struct {
	repository.Repos
	applied []events.Transition
}

// record appends t to the audit ledger.
func (s *txScope) record(ctx context.Context, t events.Transition) error {
	err := s.Events.Record(ctx, repository.AuditEntry{
		Entity:     t.Entity,
		EntityID:   t.EntityID,
		From:       t.From,
		To:         t.To,
		ActorID:    t.ActorID,
		OccurredAt: t.OccurredAt,
	})
	if err != nil {
		return err
	}
	s.applied = append(s.applied, t)
	return nil
}

func (l *Lifecycle) inTx(ctx context.Context, op string, fn func(*txScope) error) error {
	var scope *txScope
	err := l.store.InTx(ctx, func(r repository.Repos) error {
		scope = &txScope{Repos: r}
		return fn(scope)
	})
	if err != nil {
		l.observeFailure(op, err)
		return err
	}

	l.announce(ctx, scope.applied)
	return nil
}

func (l *Lifecycle) observeFailure(op string, err error) {
	var te *lifecycle.TransitionError
	switch {
	case errors.As(err, &te):
		l.recorder.Transition(te.Entity, te.From, te.To, lifecycle.KindName(err))
		l.logger.Info("Transition rejected", "op", op, "error", err)
	case errors.Is(err, repository.ErrConcurrentUpdate):
		l.logger.Warn("Lost update race", "op", op, "error", err)
	case isCallerError(err):
		l.logger.Debug("Request refused", "op", op, "error", err)
	default:
		l.logger.Error("Operation failed", "op", op, "error", err)
	}
}

func isCallerError(err error) bool {
	for _, target := range []error{
		ErrInvalidArgument, ErrPermissionDenied, ErrDisputeOpen, ErrNotDisputed, ErrTaskClosed,
		repository.ErrNotFound, lifecycle.ErrMissingIdentifier,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// announce publishes committed transitions. Delivery failures are logged;
// the database remains the source of truth.
func (l *Lifecycle) announce(ctx context.Context, applied []events.Transition) {
	for _, t := range applied {
		l.recorder.Transition(t.Entity, t.From, t.To, metrics.ResultApplied)
		if err := l.publisher.Publish(ctx, t); err != nil {
			l.logger.Error("Failed to publish transition",
				"entity", t.Entity,
				"entity_id", t.EntityID,
				"to", t.To,
				"error", err)
		}
	}
}
