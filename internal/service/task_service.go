// internal/service/task_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	lifecyclev1 "github.com/gurkanbulca/hustlemarket/api/lifecycle/v1"
	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
	"github.com/gurkanbulca/hustlemarket/internal/middleware"
	"github.com/gurkanbulca/hustlemarket/internal/onboarding"
	"github.com/gurkanbulca/hustlemarket/internal/repository"
)

// TaskService exposes Lifecycle and the onboarding scorer over gRPC.
type TaskService struct {
	lifecycle *Lifecycle
	scorer    *onboarding.Scorer
}

var _ lifecyclev1.LifecycleServiceServer = (*TaskService)(nil)

func NewTaskService(l *Lifecycle, scorer *onboarding.Scorer) *TaskService {
	return &TaskService{
		lifecycle: l,
		scorer:    scorer,
	}
}

// CreateTask posts a task owned by the caller
func (s *TaskService) CreateTask(ctx context.Context, req *lifecyclev1.CreateTaskRequest) (*lifecyclev1.CreateTaskResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if req.Deadline == nil {
		return nil, status.Error(codes.InvalidArgument, "deadline is required")
	}

	view, err := s.lifecycle.CreateTask(ctx, CreateTaskInput{
		ClientID: actor.ID,
		Deadline: req.Deadline.AsTime(),
		Amount:   req.Amount,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return &lifecyclev1.CreateTaskResponse{
		Task:   convertTask(view.Task),
		Escrow: convertEscrow(view.Escrow),
	}, nil
}

// GetTask returns a task with its escrow and latest proof
func (s *TaskService) GetTask(ctx context.Context, req *lifecyclev1.GetTaskRequest) (*lifecyclev1.GetTaskResponse, error) {
	if req.TaskID == "" {
		return nil, status.Error(codes.InvalidArgument, "task_id is required")
	}

	view, err := s.lifecycle.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &lifecyclev1.GetTaskResponse{
		Task:   convertTask(view.Task),
		Escrow: convertEscrow(view.Escrow),
	}
	if view.Proof != nil {
		resp.Proof = convertProof(*view.Proof)
	}
	return resp, nil
}

// TransitionTask moves a task on behalf of the caller. Accepting assigns the
// caller unless an admin names someone else.
func (s *TaskService) TransitionTask(ctx context.Context, req *lifecyclev1.TransitionTaskRequest) (*lifecyclev1.TransitionTaskResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	in := TaskTransitionInput{
		TaskID: req.TaskID,
		Target: lifecycle.TaskState(req.TargetState),
		Actor:  actor,
	}
	if in.Target == lifecycle.TaskAccepted {
		in.HustlerID = actor.ID
		if actor.IsAdmin && req.HustlerID != "" {
			in.HustlerID = req.HustlerID
		}
	}

	task, err := s.lifecycle.TransitionTask(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return &lifecyclev1.TransitionTaskResponse{Task: convertTask(task)}, nil
}

// SubmitProof records completion evidence from the assigned hustler
func (s *TaskService) SubmitProof(ctx context.Context, req *lifecyclev1.SubmitProofRequest) (*lifecyclev1.SubmitProofResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	proof, err := s.lifecycle.SubmitProof(ctx, SubmitProofInput{
		TaskID:            req.TaskID,
		Actor:             actor,
		Description:       req.Description,
		PhotoURLs:         req.PhotoURLs,
		BeforeAfterMarked: req.BeforeAfterMarked,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &lifecyclev1.SubmitProofResponse{Proof: convertProof(proof)}, nil
}

// ReviewProof records the client's verdict on a proof
func (s *TaskService) ReviewProof(ctx context.Context, req *lifecyclev1.ReviewProofRequest) (*lifecyclev1.ReviewProofResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	proof, err := s.lifecycle.ReviewProof(ctx, ReviewProofInput{
		ProofID:         req.ProofID,
		Actor:           actor,
		Decision:        lifecycle.ReviewDecision(req.Decision),
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &lifecyclev1.ReviewProofResponse{Proof: convertProof(proof)}, nil
}

// TransitionEscrow applies a payment processor event. Admin only.
func (s *TaskService) TransitionEscrow(ctx context.Context, req *lifecyclev1.TransitionEscrowRequest) (*lifecyclev1.TransitionEscrowResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, status.Error(codes.PermissionDenied, "escrow transitions are restricted to admins")
	}

	escrow, err := s.lifecycle.TransitionEscrow(ctx, EscrowTransitionInput{
		TaskID:       req.TaskID,
		Target:       lifecycle.EscrowState(req.TargetState),
		Actor:        actor,
		PaymentEvent: req.PaymentEvent,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &lifecyclev1.TransitionEscrowResponse{Escrow: convertEscrow(escrow)}, nil
}

// ResolveDispute settles a disputed task and its escrow
func (s *TaskService) ResolveDispute(ctx context.Context, req *lifecyclev1.ResolveDisputeRequest) (*lifecyclev1.ResolveDisputeResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	out, err := s.lifecycle.ResolveDispute(ctx, ResolveDisputeInput{
		TaskID:       req.TaskID,
		Actor:        actor,
		Resolution:   lifecycle.DisputeResolution(req.Resolution),
		SplitPercent: int(req.SplitPercent),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &lifecyclev1.ResolveDisputeResponse{
		Task:   convertTask(out.Task),
		Escrow: convertEscrow(out.Escrow),
	}, nil
}

// InferRole scores onboarding answers. It needs no authentication.
func (s *TaskService) InferRole(ctx context.Context, req *lifecyclev1.InferRoleRequest) (*lifecyclev1.InferRoleResponse, error) {
	responses := make([]onboarding.Response, len(req.Responses))
	for i, r := range req.Responses {
		responses[i] = onboarding.Response{QuestionID: r.QuestionID, AnswerID: r.AnswerID}
	}

	inf := s.scorer.Infer(responses)
	return &lifecyclev1.InferRoleResponse{
		Role:         string(inf.Role),
		Confidence:   string(inf.Confidence),
		ClientScore:  int32(inf.ClientScore),
		HustlerScore: int32(inf.HustlerScore),
		Answered:     int32(inf.Answered),
	}, nil
}

func requireActor(ctx context.Context) (lifecycle.Actor, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return lifecycle.Actor{}, status.Error(codes.Unauthenticated, "user not authenticated")
	}
	return actor, nil
}

// toStatus maps service and machine errors onto gRPC codes
func toStatus(err error) error {
	var te *lifecycle.TransitionError
	switch {
	case errors.As(err, &te) && errors.Is(err, lifecycle.ErrGuardRejected):
		return status.Errorf(codes.FailedPrecondition, "%s %s -> %s refused by %s", te.Entity, te.From, te.To, te.Guard)
	case errors.Is(err, lifecycle.ErrTerminalState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, repository.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, "resource was modified concurrently, retry")
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, lifecycle.ErrMissingIdentifier):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, ErrDisputeOpen), errors.Is(err, ErrNotDisputed), errors.Is(err, ErrTaskClosed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request deadline exceeded")
	}
	return status.Error(codes.Internal, fmt.Sprintf("internal error: %v", err))
}

// Helper functions for converting between domain and wire types

func convertTask(t lifecycle.Task) *lifecyclev1.Task {
	return &lifecyclev1.Task{
		ID:          t.ID,
		ClientID:    t.ClientID,
		HustlerID:   t.HustlerID,
		State:       string(t.State),
		Deadline:    timestamppb.New(t.Deadline),
		AcceptedAt:  optionalTimestamp(t.AcceptedAt),
		CompletedAt: optionalTimestamp(t.CompletedAt),
		CreatedAt:   timestamppb.New(t.CreatedAt),
		UpdatedAt:   timestamppb.New(t.UpdatedAt),
	}
}

func convertEscrow(e lifecycle.Escrow) *lifecyclev1.Escrow {
	return &lifecyclev1.Escrow{
		ID:            e.ID,
		TaskID:        e.TaskID,
		Amount:        e.Amount,
		State:         string(e.State),
		SplitPercent:  int32(e.SplitPercent),
		HustlerAmount: e.HustlerAmount,
		ClientAmount:  e.ClientAmount,
		FundedAt:      optionalTimestamp(e.FundedAt),
		ReleasedAt:    optionalTimestamp(e.ReleasedAt),
		RefundedAt:    optionalTimestamp(e.RefundedAt),
	}
}

func convertProof(p lifecycle.Proof) *lifecyclev1.Proof {
	return &lifecyclev1.Proof{
		ID:                p.ID,
		TaskID:            p.TaskID,
		HustlerID:         p.HustlerID,
		Description:       p.Description,
		PhotoURLs:         p.PhotoURLs,
		BeforeAfterMarked: p.BeforeAfterMarked,
		State:             string(p.State),
		Quality:           string(p.Quality),
		SubmittedAt:       timestamppb.New(p.SubmittedAt),
		ReviewedAt:        optionalTimestamp(p.ReviewedAt),
		RejectionReason:   p.RejectionReason,
	}
}

func optionalTimestamp(t *time.Time) *timestamppb.Timestamp {
	if t == nil {
		return nil
	}
	return timestamppb.New(*t)
}
