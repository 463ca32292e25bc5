package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
	"github.com/dmitrijs2005/gophsync/internal/netx"
	pb "github.com/dmitrijs2005/gophsync/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// uploadBlob is a seam for tests.
var uploadBlob = netx.UploadToPresignedURL

// GRPCReplica talks to the gophsync replica server.
type GRPCReplica struct {
	endpointURL string
	deviceID    string
	secret      string

	conn   *grpc.ClientConn
	client pb.ReplicaServiceClient

	mu          sync.RWMutex
	accessToken string
}

func NewGRPCReplica(endpointURL, deviceID, secret string) (*GRPCReplica, error) {
	return newGRPCReplica(endpointURL, deviceID, secret)
}

func newGRPCReplica(endpointURL, deviceID, secret string, extra ...grpc.DialOption) (*GRPCReplica, error) {
	r := &GRPCReplica{endpointURL: endpointURL, deviceID: deviceID, secret: secret}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(r.accessTokenInterceptor),
	}, extra...)
	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	r.conn = conn
	r.client = pb.NewReplicaServiceClient(conn)
	return r, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (r *GRPCReplica) token() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accessToken
}

func (r *GRPCReplica) setToken(t string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessToken = t
}

// accessTokenInterceptor attaches the access token. When the server rejects
// an expired or unknown token the client authenticates again and retries
// the call once.
func (r *GRPCReplica) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method == pb.ReplicaService_Authenticate_FullMethodName {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, r.token()), method, req, reply, cc, opts...)
	if status.Code(err) != codes.Unauthenticated {
		return err
	}

	r.setToken("")
	if aerr := r.Authenticate(ctx); aerr != nil {
		return err
	}
	return invoker(withAccessToken(ctx, r.token()), method, req, reply, cc, opts...)
}

func (r *GRPCReplica) Authenticate(ctx context.Context) error {
	resp, err := r.client.Authenticate(ctx, pb.AuthRequest(r.deviceID, r.secret))
	if err != nil {
		return mapError(err)
	}
	r.setToken(resp.GetValue())
	return nil
}

func (r *GRPCReplica) UpsertEntity(ctx context.Context, rec mapping.RemoteRecord) error {
	in, err := pb.RecordToStruct(rec)
	if err != nil {
		return err
	}
	if _, err := r.client.UpsertEntity(ctx, in); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *GRPCReplica) DeleteEntity(ctx context.Context, id string) error {
	if _, err := r.client.DeleteEntity(ctx, wrapperspb.String(id)); err != nil {
		return mapError(err)
	}
	return nil
}

// UpsertAttachment replicates the metadata and, when the server hands back a
// presigned URL, streams the blob to object storage.
func (r *GRPCReplica) UpsertAttachment(ctx context.Context, rec mapping.RemoteRecord, open BlobOpener) error {
	in, err := pb.RecordToStruct(rec)
	if err != nil {
		return err
	}
	resp, err := r.client.UpsertAttachment(ctx, in)
	if err != nil {
		return mapError(err)
	}

	url := resp.GetValue()
	if url == "" || open == nil {
		return nil
	}

	a, err := mapping.AttachmentFromRemote(rec)
	if err != nil {
		return err
	}
	body, err := open()
	if err != nil {
		return fmt.Errorf("open blob %s: %w", a.ID, err)
	}
	defer body.Close()

	if err := uploadBlob(ctx, url, body, a.SizeBytes, a.ContentType); err != nil {
		return fmt.Errorf("upload blob %s: %w: %w", a.ID, common.ErrRemoteUnavailable, err)
	}
	return nil
}

func (r *GRPCReplica) DeleteAttachment(ctx context.Context, id string) error {
	if _, err := r.client.DeleteAttachment(ctx, wrapperspb.String(id)); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *GRPCReplica) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", common.ErrRemoteUnavailable, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", common.ErrRemoteUnavailable, st.Message())
	case codes.Aborted, codes.AlreadyExists:
		return fmt.Errorf("%w: %s", common.ErrConflict, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrValidation, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrNotFound, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
