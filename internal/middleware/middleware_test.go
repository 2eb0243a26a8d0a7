package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	lifecyclev1 "github.com/gurkanbulca/hustlemarket/api/lifecycle/v1"
	"github.com/gurkanbulca/hustlemarket/pkg/auth"
)

func echoHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return ctx, nil
}

func unaryInfo(method string) *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{FullMethod: method}
}

func TestAuthInterceptor(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", time.Minute)
	interceptor := NewAuthInterceptor(tm).Unary()

	adminToken, _, err := tm.GenerateAccessToken("admin-1", auth.RoleAdmin)
	require.NoError(t, err)
	memberToken, _, err := tm.GenerateAccessToken("user-1", auth.RoleMember)
	require.NoError(t, err)

	tests := []struct {
		name      string
		method    string
		header    string
		wantCode  codes.Code
		wantActor string
		wantAdmin bool
	}{
		{"member", lifecyclev1.LifecycleService_GetTask_FullMethodName, "Bearer " + memberToken, codes.OK, "user-1", false},
		{"admin", lifecyclev1.LifecycleService_ResolveDispute_FullMethodName, "Bearer " + adminToken, codes.OK, "admin-1", true},
		{"missing header", lifecyclev1.LifecycleService_GetTask_FullMethodName, "", codes.Unauthenticated, "", false},
		{"bad scheme", lifecyclev1.LifecycleService_GetTask_FullMethodName, "Basic abc", codes.Unauthenticated, "", false},
		{"bad token", lifecyclev1.LifecycleService_GetTask_FullMethodName, "Bearer nope", codes.Unauthenticated, "", false},
		{"public method", lifecyclev1.LifecycleService_InferRole_FullMethodName, "", codes.OK, "", false},
		{"health check", "/grpc.health.v1.Health/Check", "", codes.OK, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.header != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", tt.header))
			} else {
				ctx = metadata.NewIncomingContext(ctx, metadata.MD{})
			}

			resp, err := interceptor(ctx, nil, unaryInfo(tt.method), echoHandler)
			assert.Equal(t, tt.wantCode, status.Code(err))
			if tt.wantCode != codes.OK {
				return
			}

			actor, ok := ActorFromContext(resp.(context.Context))
			assert.Equal(t, tt.wantActor != "", ok)
			assert.Equal(t, tt.wantActor, actor.ID)
			assert.Equal(t, tt.wantAdmin, actor.IsAdmin)
		})
	}

	t.Run("no metadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), nil, unaryInfo(lifecyclev1.LifecycleService_GetTask_FullMethodName), echoHandler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

func TestMetadataExtractor(t *testing.T) {
	interceptor := NewMetadataExtractorInterceptor().Unary()

	ctx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("203.0.113.7"), Port: 51234},
	})
	ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("user-agent", "hustlectl/1.0"))

	resp, err := interceptor(ctx, nil, unaryInfo("/x"), echoHandler)
	require.NoError(t, err)

	info := GetClientInfoFromContext(resp.(context.Context))
	assert.Equal(t, "203.0.113.7", info.IPAddress)
	assert.Equal(t, "hustlectl/1.0", info.UserAgent)
	assert.Empty(t, info.UserID)
}

func TestValidationInterceptor(t *testing.T) {
	interceptor := NewValidationInterceptor(nil).Unary()
	id := uuid.NewString()
	future := timestamppb.New(time.Now().Add(time.Hour))

	tests := []struct {
		name    string
		req     interface{}
		wantErr string
	}{
		{"create ok", &lifecyclev1.CreateTaskRequest{Deadline: future, Amount: 100}, ""},
		{"create no deadline", &lifecyclev1.CreateTaskRequest{Amount: 100}, "deadline is required"},
		{"create zero amount", &lifecyclev1.CreateTaskRequest{Deadline: future}, "amount must be positive"},
		{"get missing id", &lifecyclev1.GetTaskRequest{}, "task_id is required"},
		{"get bad id", &lifecyclev1.GetTaskRequest{TaskID: "42"}, "invalid task_id format"},
		{"transition ok", &lifecyclev1.TransitionTaskRequest{TaskID: id, TargetState: "ACCEPTED"}, ""},
		{"transition unknown state", &lifecyclev1.TransitionTaskRequest{TaskID: id, TargetState: "DONE"}, `unknown task state "DONE"`},
		{"proof ok", &lifecyclev1.SubmitProofRequest{TaskID: id, PhotoURLs: []string{"https://cdn.example/a.jpg"}}, ""},
		{"proof bad url", &lifecyclev1.SubmitProofRequest{TaskID: id, PhotoURLs: []string{"ftp://cdn.example/a.jpg"}}, "photo_urls[0]"},
		{"proof long description", &lifecyclev1.SubmitProofRequest{TaskID: id, Description: strings.Repeat("x", 5001)}, "description too long"},
		{"review unknown decision", &lifecyclev1.ReviewProofRequest{ProofID: id, Decision: "MAYBE"}, `unknown decision "MAYBE"`},
		{"review ok", &lifecyclev1.ReviewProofRequest{ProofID: id, Decision: "REJECT", RejectionReason: "blurry"}, ""},
		{"escrow unknown state", &lifecyclev1.TransitionEscrowRequest{TaskID: id, TargetState: "PAID"}, `unknown escrow state "PAID"`},
		{"dispute split out of range", &lifecyclev1.ResolveDisputeRequest{TaskID: id, Resolution: "SPLIT", SplitPercent: 101}, "split_percent"},
		{"dispute unknown resolution", &lifecyclev1.ResolveDisputeRequest{TaskID: id, Resolution: "DRAW"}, `unknown resolution "DRAW"`},
		{"infer too many", &lifecyclev1.InferRoleRequest{Responses: make([]lifecyclev1.QuestionResponse, 51)}, "too many responses"},
		{"unknown message", "anything", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(context.Background(), tt.req, unaryInfo("/x"), echoHandler)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	interceptor := NewLoggingInterceptor(logger).Unary()

	ctx := context.WithValue(context.Background(), ContextKeyUserID, "user-1")
	_, err := interceptor(ctx, nil, unaryInfo("/hustle/Ok"), echoHandler)
	require.NoError(t, err)

	failing := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.FailedPrecondition, "nope")
	}
	_, err = interceptor(ctx, nil, unaryInfo("/hustle/Refused"), failing)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=INFO msg=\"RPC handled\" method=/hustle/Ok code=OK")
	assert.Contains(t, out, "user_id=user-1")
	assert.Contains(t, out, "level=WARN msg=\"RPC refused\" method=/hustle/Refused code=FailedPrecondition")
}

// runChain applies interceptors the way grpc.ChainUnaryInterceptor does.
func runChain(ctx context.Context, chain []grpc.UnaryServerInterceptor, info *grpc.UnaryServerInfo, req interface{}, handler grpc.UnaryHandler) (interface{}, error) {
	next := handler
	for i := len(chain) - 1; i >= 0; i-- {
		interceptor, inner := chain[i], next
		next = func(ctx context.Context, req interface{}) (interface{}, error) {
			return interceptor(ctx, req, info, inner)
		}
	}
	return next(ctx, req)
}

func TestUnaryChain_LogsRefusedCredentials(t *testing.T) {
	var buf bytes.Buffer
	tm := auth.NewTokenManager("test-secret", time.Minute)
	chain := UnaryChain(
		NewMetadataExtractorInterceptor(),
		NewAuthInterceptor(tm),
		NewLoggingInterceptor(slog.New(slog.NewTextHandler(&buf, nil))),
		NewValidationInterceptor(nil),
	)
	info := unaryInfo("/hustle.lifecycle.v1.LifecycleService/GetTask")

	_, err := runChain(context.Background(), chain, info, &lifecyclev1.GetTaskRequest{TaskID: uuid.NewString()}, echoHandler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Contains(t, buf.String(), "level=WARN msg=\"RPC refused\" method=/hustle.lifecycle.v1.LifecycleService/GetTask code=Unauthenticated")
	assert.NotContains(t, buf.String(), "user_id=")

	buf.Reset()
	token, _, err := tm.GenerateAccessToken("user-1", auth.RoleMember)
	require.NoError(t, err)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	_, err = runChain(ctx, chain, info, &lifecyclev1.GetTaskRequest{TaskID: uuid.NewString()}, echoHandler)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "level=INFO msg=\"RPC handled\"")
	assert.Contains(t, buf.String(), "user_id=user-1")
}
