// Package proto holds the gRPC contract of the replica service. Messages are
// protobuf well-known types, so the service descriptor is maintained by hand
// in the layout protoc-gen-go-grpc produces.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "gophsync.replica.ReplicaService"

const (
	ReplicaService_Authenticate_FullMethodName     = "/gophsync.replica.ReplicaService/Authenticate"
	ReplicaService_UpsertEntity_FullMethodName     = "/gophsync.replica.ReplicaService/UpsertEntity"
	ReplicaService_DeleteEntity_FullMethodName     = "/gophsync.replica.ReplicaService/DeleteEntity"
	ReplicaService_UpsertAttachment_FullMethodName = "/gophsync.replica.ReplicaService/UpsertAttachment"
	ReplicaService_DeleteAttachment_FullMethodName = "/gophsync.replica.ReplicaService/DeleteAttachment"
	ReplicaService_Ping_FullMethodName             = "/gophsync.replica.ReplicaService/Ping"
)

// ReplicaServiceClient is the client API for ReplicaService.
type ReplicaServiceClient interface {
	// Authenticate exchanges {device_id, secret} for an access token.
	Authenticate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	UpsertEntity(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	DeleteEntity(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	// UpsertAttachment returns a presigned upload URL, or "" when the blob
	// is already stored.
	UpsertAttachment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	DeleteAttachment(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type replicaServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewReplicaServiceClient(cc grpc.ClientConnInterface) ReplicaServiceClient {
	return &replicaServiceClient{cc}
}

func (c *replicaServiceClient) Authenticate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	err := c.cc.Invoke(ctx, ReplicaService_Authenticate_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replicaServiceClient) UpsertEntity(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	err := c.cc.Invoke(ctx, ReplicaService_UpsertEntity_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replicaServiceClient) DeleteEntity(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	err := c.cc.Invoke(ctx, ReplicaService_DeleteEntity_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replicaServiceClient) UpsertAttachment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	err := c.cc.Invoke(ctx, ReplicaService_UpsertAttachment_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replicaServiceClient) DeleteAttachment(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	err := c.cc.Invoke(ctx, ReplicaService_DeleteAttachment_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replicaServiceClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	err := c.cc.Invoke(ctx, ReplicaService_Ping_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReplicaServiceServer is the server API for ReplicaService.
// All implementations must embed UnimplementedReplicaServiceServer.
type ReplicaServiceServer interface {
	Authenticate(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	UpsertEntity(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DeleteEntity(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	UpsertAttachment(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	DeleteAttachment(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	mustEmbedUnimplementedReplicaServiceServer()
}

type UnimplementedReplicaServiceServer struct{}

func (UnimplementedReplicaServiceServer) Authenticate(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Authenticate not implemented")
}
func (UnimplementedReplicaServiceServer) UpsertEntity(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpsertEntity not implemented")
}
func (UnimplementedReplicaServiceServer) DeleteEntity(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DeleteEntity not implemented")
}
func (UnimplementedReplicaServiceServer) UpsertAttachment(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UpsertAttachment not implemented")
}
func (UnimplementedReplicaServiceServer) DeleteAttachment(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DeleteAttachment not implemented")
}
func (UnimplementedReplicaServiceServer) Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedReplicaServiceServer) mustEmbedUnimplementedReplicaServiceServer() {}

func RegisterReplicaServiceServer(s grpc.ServiceRegistrar, srv ReplicaServiceServer) {
	s.RegisterService(&ReplicaService_ServiceDesc, srv)
}

func _ReplicaService_Authenticate_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServiceServer).Authenticate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ReplicaService_Authenticate_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServiceServer).Authenticate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _ReplicaService_UpsertEntity_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServiceServer).UpsertEntity(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ReplicaService_UpsertEntity_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServiceServer).UpsertEntity(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _ReplicaService_DeleteEntity_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServiceServer).DeleteEntity(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ReplicaService_DeleteEntity_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServiceServer).DeleteEntity(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ReplicaService_UpsertAttachment_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServiceServer).UpsertAttachment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ReplicaService_UpsertAttachment_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServiceServer).UpsertAttachment(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _ReplicaService_DeleteAttachment_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServiceServer).DeleteAttachment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ReplicaService_DeleteAttachment_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServiceServer).DeleteAttachment(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ReplicaService_Ping_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReplicaServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ReplicaService_Ping_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReplicaServiceServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ReplicaService_ServiceDesc is the grpc.ServiceDesc for ReplicaService.
var ReplicaService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReplicaServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Authenticate", Handler: _ReplicaService_Authenticate_Handler},
		{MethodName: "UpsertEntity", Handler: _ReplicaService_UpsertEntity_Handler},
		{MethodName: "DeleteEntity", Handler: _ReplicaService_DeleteEntity_Handler},
		{MethodName: "UpsertAttachment", Handler: _ReplicaService_UpsertAttachment_Handler},
		{MethodName: "DeleteAttachment", Handler: _ReplicaService_DeleteAttachment_Handler},
		{MethodName: "Ping", Handler: _ReplicaService_Ping_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "replica.proto",
}
