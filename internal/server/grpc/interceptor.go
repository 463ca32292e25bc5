package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	pb "github.com/dmitrijs2005/gophsync/internal/proto"
	"github.com/dmitrijs2005/gophsync/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const DeviceIDKey ctxKey = "deviceID"

// publicMethods do not require an access token.
var publicMethods = map[string]bool{
	pb.ReplicaService_Authenticate_FullMethodName: true,
}

func deviceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(DeviceIDKey).(string)
	return id
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	deviceID, err := auth.GetDeviceIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	return handler(context.WithValue(ctx, DeviceIDKey, deviceID), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	args := []any{"method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start)}
	if err != nil {
		s.logger.Warn(ctx, "rpc failed", append(args, "error", err)...)
	} else {
		s.logger.Debug(ctx, "rpc", args...)
	}
	return resp, err
}
