// Package grpc exposes the replica services over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
	pb "github.com/dmitrijs2005/gophsync/internal/proto"
	"google.golang.org/grpc"
)

type replicaSvc interface {
	UpsertEntity(ctx context.Context, deviceID string, rec mapping.RemoteRecord) error
	DeleteEntity(ctx context.Context, id string) error
	UpsertAttachment(ctx context.Context, deviceID string, rec mapping.RemoteRecord) (string, error)
	DeleteAttachment(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type authSvc interface {
	Authenticate(ctx context.Context, deviceID, secret string) (string, error)
}

type GRPCServer struct {
	pb.UnimplementedReplicaServiceServer
	address   string
	replica   replicaSvc
	auth      authSvc
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, rs replicaSvc, as authSvc, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		replica:   rs,
		auth:      as,
		jwtSecret: []byte(secretKey),
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	pb.RegisterReplicaServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}
