package lifecyclev1

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "hustle.lifecycle.v1.LifecycleService"

const (
	LifecycleService_CreateTask_FullMethodName       = "/" + ServiceName + "/CreateTask"
	LifecycleService_GetTask_FullMethodName          = "/" + ServiceName + "/GetTask"
	LifecycleService_TransitionTask_FullMethodName   = "/" + ServiceName + "/TransitionTask"
	LifecycleService_SubmitProof_FullMethodName      = "/" + ServiceName + "/SubmitProof"
	LifecycleService_ReviewProof_FullMethodName      = "/" + ServiceName + "/ReviewProof"
	LifecycleService_TransitionEscrow_FullMethodName = "/" + ServiceName + "/TransitionEscrow"
	LifecycleService_ResolveDispute_FullMethodName   = "/" + ServiceName + "/ResolveDispute"
	LifecycleService_InferRole_FullMethodName        = "/" + ServiceName + "/InferRole"
)

// LifecycleServiceServer is the server API for LifecycleService.
type LifecycleServiceServer interface {
	CreateTask(context.Context, *CreateTaskRequest) (*CreateTaskResponse, error)
	GetTask(context.Context, *GetTaskRequest) (*GetTaskResponse, error)
	TransitionTask(context.Context, *TransitionTaskRequest) (*TransitionTaskResponse, error)
	SubmitProof(context.Context, *SubmitProofRequest) (*SubmitProofResponse, error)
	ReviewProof(context.Context, *ReviewProofRequest) (*ReviewProofResponse, error)
	TransitionEscrow(context.Context, *TransitionEscrowRequest) (*TransitionEscrowResponse, error)
	ResolveDispute(context.Context, *ResolveDisputeRequest) (*ResolveDisputeResponse, error)
	InferRole(context.Context, *InferRoleRequest) (*InferRoleResponse, error)
}

func RegisterLifecycleServiceServer(s grpc.ServiceRegistrar, srv LifecycleServiceServer) {
	s.RegisterService(&LifecycleService_ServiceDesc, srv)
}

// LifecycleService_ServiceDesc describes LifecycleService for grpc.Server.
var LifecycleService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LifecycleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateTask", Handler: unaryHandler(LifecycleService_CreateTask_FullMethodName, LifecycleServiceServer.CreateTask)},
		{MethodName: "GetTask", Handler: unaryHandler(LifecycleService_GetTask_FullMethodName, LifecycleServiceServer.GetTask)},
		{MethodName: "TransitionTask", Handler: unaryHandler(LifecycleService_TransitionTask_FullMethodName, LifecycleServiceServer.TransitionTask)},
		{MethodName: "SubmitProof", Handler: unaryHandler(LifecycleService_SubmitProof_FullMethodName, LifecycleServiceServer.SubmitProof)},
		{MethodName: "ReviewProof", Handler: unaryHandler(LifecycleService_ReviewProof_FullMethodName, LifecycleServiceServer.ReviewProof)},
		{MethodName: "TransitionEscrow", Handler: unaryHandler(LifecycleService_TransitionEscrow_FullMethodName, LifecycleServiceServer.TransitionEscrow)},
		{MethodName: "ResolveDispute", Handler: unaryHandler(LifecycleService_ResolveDispute_FullMethodName, LifecycleServiceServer.ResolveDispute)},
		{MethodName: "InferRole", Handler: unaryHandler(LifecycleService_InferRole_FullMethodName, LifecycleServiceServer.InferRole)},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler[Req, Resp any](fullMethod string, call func(LifecycleServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LifecycleServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LifecycleServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LifecycleServiceClient calls LifecycleService using the JSON codec.
type LifecycleServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLifecycleServiceClient(cc grpc.ClientConnInterface) *LifecycleServiceClient {
	return &LifecycleServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LifecycleServiceClient) CreateTask(ctx context.Context, in *CreateTaskRequest, opts ...grpc.CallOption) (*CreateTaskResponse, error) {
	return invoke[CreateTaskResponse](ctx, c.cc, LifecycleService_CreateTask_FullMethodName, in, opts)
}

func (c *LifecycleServiceClient) GetTask(ctx context.Context, in *GetTaskRequest, opts ...grpc.CallOption) (*GetTaskResponse, error) {
	return invoke[GetTaskResponse](ctx, c.cc, LifecycleService_GetTask_FullMethodName, in, opts)
}

func (c *LifecycleServiceClient) TransitionTask(ctx context.Context, in *TransitionTaskRequest, opts ...grpc.CallOption) (*TransitionTaskResponse, error) {
	return invoke[TransitionTaskResponse](ctx, c.cc, LifecycleService_TransitionTask_FullMethodName, in, opts)
}

func (c *LifecycleServiceClient) SubmitProof(ctx context.Context, in *SubmitProofRequest, opts ...grpc.CallOption) (*SubmitProofResponse, error) {
	return invoke[SubmitProofResponse](ctx, c.cc, LifecycleService_SubmitProof_FullMethodName, in, opts)
}

func (c *LifecycleServiceClient) ReviewProof(ctx context.Context, in *ReviewProofRequest, opts ...grpc.CallOption) (*ReviewProofResponse, error) {
	return invoke[ReviewProofResponse](ctx, c.cc, LifecycleService_ReviewProof_FullMethodName, in, opts)
}

func (c *LifecycleServiceClient) TransitionEscrow(ctx context.Context, in *TransitionEscrowRequest, opts ...grpc.CallOption) (*TransitionEscrowResponse, error) {
	return invoke[TransitionEscrowResponse](ctx, c.cc, LifecycleService_TransitionEscrow_FullMethodName, in, opts)
}

func (c *LifecycleServiceClient) ResolveDispute(ctx context.Context, in *ResolveDisputeRequest, opts ...grpc.CallOption) (*ResolveDisputeResponse, error) {
	return invoke[ResolveDisputeResponse](ctx, c.cc, LifecycleService_ResolveDispute_FullMethodName, in, opts)
}

func (c *LifecycleServiceClient) InferRole(ctx context.Context, in *InferRoleRequest, opts ...grpc.CallOption) (*InferRoleResponse, error) {
	return invoke[InferRoleResponse](ctx, c.cc, LifecycleService_InferRole_FullMethodName, in, opts)
}
