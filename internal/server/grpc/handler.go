package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophsync/internal/common"
	pb "github.com/dmitrijs2005/gophsync/internal/proto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// toStatus maps service errors onto the codes the client maps back.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, common.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error(ctx, "internal error", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) Authenticate(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	deviceID, secret := pb.AuthFields(req)

	token, err := s.auth.Authenticate(ctx, deviceID, secret)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Device authenticated", "device_id", deviceID)
	return wrapperspb.String(token), nil
}

func (s *GRPCServer) UpsertEntity(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.replica.UpsertEntity(ctx, deviceIDFromContext(ctx), pb.StructToRecord(req)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) DeleteEntity(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.replica.DeleteEntity(ctx, req.GetValue()); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) UpsertAttachment(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	url, err := s.replica.UpsertAttachment(ctx, deviceIDFromContext(ctx), pb.StructToRecord(req))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return wrapperspb.String(url), nil
}

func (s *GRPCServer) DeleteAttachment(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.replica.DeleteAttachment(ctx, req.GetValue()); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.replica.Ping(ctx); err != nil {
		return nil, status.Error(codes.Unavailable, "database unavailable")
	}
	return &emptypb.Empty{}, nil
}
