package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"

	lifecyclev1 "github.com/gurkanbulca/hustlemarket/api/lifecycle/v1"
	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
	"github.com/gurkanbulca/hustlemarket/internal/middleware"
	"github.com/gurkanbulca/hustlemarket/internal/onboarding"
	"github.com/gurkanbulca/hustlemarket/internal/repository"
	"github.com/gurkanbulca/hustlemarket/pkg/auth"
)

type rpcHarness struct {
	*harness
	client *lifecyclev1.LifecycleServiceClient
	tokens *auth.TokenManager
}

func newRPCHarness(t *testing.T) *rpcHarness {
	t.Helper()
	h := newHarness(t)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.NewMetadataExtractorInterceptor().Unary(),
		middleware.NewAuthInterceptor(tokens).Unary(),
		middleware.NewValidationInterceptor(nil).Unary(),
	))
	lifecyclev1.RegisterLifecycleServiceServer(server, NewTaskService(h.svc, onboarding.DefaultScorer()))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &rpcHarness{
		harness: h,
		client:  lifecyclev1.NewLifecycleServiceClient(conn),
		tokens:  tokens,
	}
}

func (r *rpcHarness) as(t *testing.T, userID, role string) context.Context {
	t.Helper()
	token, _, err := r.tokens.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestTaskService_Flow(t *testing.T) {
	r := newRPCHarness(t)
	client := r.as(t, clientID, auth.RoleMember)
	hustler := r.as(t, hustlerID, auth.RoleMember)
	admin := r.as(t, "admin-1", auth.RoleAdmin)

	created, err := r.client.CreateTask(client, &lifecyclev1.CreateTaskRequest{
		Deadline: timestamppb.New(r.clock.Now().Add(24 * time.Hour)),
		Amount:   7500,
	})
	require.NoError(t, err)
	taskID := created.Task.ID
	assert.Equal(t, clientID, created.Task.ClientID)
	assert.Equal(t, "OPEN", created.Task.State)
	assert.Equal(t, "PENDING", created.Escrow.State)

	_, err = r.client.TransitionEscrow(client, &lifecyclev1.TransitionEscrowRequest{
		TaskID: taskID, TargetState: "FUNDED", PaymentEvent: lifecycle.PaymentIntentSucceeded,
	})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	funded, err := r.client.TransitionEscrow(admin, &lifecyclev1.TransitionEscrowRequest{
		TaskID: taskID, TargetState: "FUNDED", PaymentEvent: lifecycle.PaymentIntentSucceeded,
	})
	require.NoError(t, err)
	assert.Equal(t, "FUNDED", funded.Escrow.State)
	assert.NotNil(t, funded.Escrow.FundedAt)

	accepted, err := r.client.TransitionTask(hustler, &lifecyclev1.TransitionTaskRequest{
		TaskID: taskID, TargetState: "ACCEPTED", HustlerID: "someone-else",
	})
	require.NoError(t, err)
	assert.Equal(t, hustlerID, accepted.Task.HustlerID, "non-admins always accept for themselves")

	submitted, err := r.client.SubmitProof(hustler, &lifecyclev1.SubmitProofRequest{
		TaskID:      taskID,
		Description: "Gutters cleared",
		PhotoURLs:   []string{"https://cdn.example/gutter.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", submitted.Proof.State)

	reviewed, err := r.client.ReviewProof(client, &lifecyclev1.ReviewProofRequest{
		ProofID: submitted.Proof.ID, Decision: "ACCEPT",
	})
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", reviewed.Proof.State)

	got, err := r.client.GetTask(client, &lifecyclev1.GetTaskRequest{TaskID: taskID})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", got.Task.State)
	assert.Equal(t, "RELEASED", got.Escrow.State)
	require.NotNil(t, got.Proof)
	assert.Equal(t, submitted.Proof.ID, got.Proof.ID)
}

func TestTaskService_AdminAssignsHustler(t *testing.T) {
	r := newRPCHarness(t)
	view := r.createTask(t, 1000)
	r.fund(t, view.Task.ID)

	resp, err := r.client.TransitionTask(r.as(t, "admin-1", auth.RoleAdmin), &lifecyclev1.TransitionTaskRequest{
		TaskID: view.Task.ID, TargetState: "ACCEPTED", HustlerID: hustlerID,
	})
	require.NoError(t, err)
	assert.Equal(t, hustlerID, resp.Task.HustlerID)
}

func TestTaskService_ErrorCodes(t *testing.T) {
	r := newRPCHarness(t)
	client := r.as(t, clientID, auth.RoleMember)
	hustler := r.as(t, hustlerID, auth.RoleMember)

	open := r.createTask(t, 1000)
	funded := r.createTask(t, 1000)
	r.fund(t, funded.Task.ID)
	cancelled := r.createTask(t, 1000)
	_, err := r.svc.TransitionTask(context.Background(), TaskTransitionInput{
		TaskID: cancelled.Task.ID, Target: lifecycle.TaskCancelled, Actor: clientActor,
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		call     func() error
		wantCode codes.Code
		wantMsg  string
	}{
		{
			name: "unauthenticated",
			call: func() error {
				_, err := r.client.GetTask(context.Background(), &lifecyclev1.GetTaskRequest{TaskID: open.Task.ID})
				return err
			},
			wantCode: codes.Unauthenticated,
		},
		{
			name: "not found",
			call: func() error {
				_, err := r.client.GetTask(client, &lifecyclev1.GetTaskRequest{TaskID: uuid.NewString()})
				return err
			},
			wantCode: codes.NotFound,
		},
		{
			name: "malformed id",
			call: func() error {
				_, err := r.client.GetTask(client, &lifecyclev1.GetTaskRequest{TaskID: "task-1"})
				return err
			},
			wantCode: codes.InvalidArgument,
		},
		{
			name: "guard rejected",
			call: func() error {
				_, err := r.client.TransitionTask(hustler, &lifecyclev1.TransitionTaskRequest{TaskID: open.Task.ID, TargetState: "ACCEPTED"})
				return err
			},
			wantCode: codes.FailedPrecondition,
			wantMsg:  "canAccept",
		},
		{
			name: "invalid transition",
			call: func() error {
				_, err := r.client.TransitionTask(client, &lifecyclev1.TransitionTaskRequest{TaskID: open.Task.ID, TargetState: "COMPLETED"})
				return err
			},
			wantCode: codes.InvalidArgument,
		},
		{
			name: "terminal state",
			call: func() error {
				_, err := r.client.TransitionTask(client, &lifecyclev1.TransitionTaskRequest{TaskID: cancelled.Task.ID, TargetState: "OPEN"})
				return err
			},
			wantCode: codes.FailedPrecondition,
			wantMsg:  "terminal state",
		},
		{
			name: "client accepts own task",
			call: func() error {
				_, err := r.client.TransitionTask(client, &lifecyclev1.TransitionTaskRequest{TaskID: funded.Task.ID, TargetState: "ACCEPTED"})
				return err
			},
			wantCode: codes.PermissionDenied,
			wantMsg:  "own task",
		},
		{
			name: "fund a cancelled task",
			call: func() error {
				_, err := r.client.TransitionEscrow(r.as(t, "admin-1", auth.RoleAdmin), &lifecyclev1.TransitionEscrowRequest{
					TaskID: cancelled.Task.ID, TargetState: "FUNDED", PaymentEvent: lifecycle.PaymentIntentSucceeded,
				})
				return err
			},
			wantCode: codes.FailedPrecondition,
			wantMsg:  "task is closed",
		},
		{
			name: "only the hustler submits proof",
			call: func() error {
				_, err := r.client.SubmitProof(client, &lifecyclev1.SubmitProofRequest{TaskID: open.Task.ID})
				return err
			},
			wantCode: codes.PermissionDenied,
		},
		{
			name: "dispute resolution needs admin",
			call: func() error {
				_, err := r.client.ResolveDispute(client, &lifecyclev1.ResolveDisputeRequest{TaskID: open.Task.ID, Resolution: "CLIENT_WINS"})
				return err
			},
			wantCode: codes.PermissionDenied,
		},
		{
			name: "dispute not open",
			call: func() error {
				_, err := r.client.ResolveDispute(r.as(t, "admin-1", auth.RoleAdmin), &lifecyclev1.ResolveDisputeRequest{TaskID: open.Task.ID, Resolution: "CLIENT_WINS"})
				return err
			},
			wantCode: codes.FailedPrecondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, status.Code(err), err.Error())
			if tt.wantMsg != "" {
				assert.Contains(t, status.Convert(err).Message(), tt.wantMsg)
			}
		})
	}
}

func TestTaskService_InferRole(t *testing.T) {
	r := newRPCHarness(t)

	// Public: no token attached.
	resp, err := r.client.InferRole(context.Background(), &lifecyclev1.InferRoleRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(onboarding.RoleHustler), resp.Role)
	assert.Equal(t, string(onboarding.ConfidenceLow), resp.Confidence)
	assert.Zero(t, resp.Answered)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{repository.ErrConcurrentUpdate, codes.Aborted},
		{ErrDisputeOpen, codes.FailedPrecondition},
		{ErrNotDisputed, codes.FailedPrecondition},
		{ErrTaskClosed, codes.FailedPrecondition},
		{ErrInvalidArgument, codes.InvalidArgument},
		{lifecycle.ErrMissingIdentifier, codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{assert.AnError, codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(toStatus(tt.err)))
		})
	}
}
