package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophsync/internal/common"
	pb "github.com/dmitrijs2005/gophsync/internal/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestAuthenticate(t *testing.T) {
	s := newServer(&fakeReplica{})

	resp, err := s.Authenticate(context.Background(), pb.AuthRequest("dev-1", "shared"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.GetValue())

	_, err = s.Authenticate(context.Background(), pb.AuthRequest("dev-1", "nope"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUpsertEntity_PassesDeviceAndRecord(t *testing.T) {
	r := &fakeReplica{}
	s := newServer(r)
	ctx := context.WithValue(context.Background(), DeviceIDKey, "dev-2")

	in, err := structpb.NewStruct(map[string]any{"id": "e1", "title": "t"})
	require.NoError(t, err)

	_, err = s.UpsertEntity(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev-2"}, r.devices)
	assert.Equal(t, "e1", r.records[0].ID())
}

func TestUpsertAttachment_ReturnsURL(t *testing.T) {
	r := &fakeReplica{url: "https://put"}
	s := newServer(r)

	in, err := structpb.NewStruct(map[string]any{"id": "a1"})
	require.NoError(t, err)

	resp, err := s.UpsertAttachment(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "https://put", resp.GetValue())
}

func TestDeletes(t *testing.T) {
	r := &fakeReplica{}
	s := newServer(r)

	_, err := s.DeleteEntity(context.Background(), wrapperspb.String("e1"))
	require.NoError(t, err)
	_, err = s.DeleteAttachment(context.Background(), wrapperspb.String("a1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"e1", "a1"}, r.deletedIDs)
}

func TestErrorsMapToCodes(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{common.Invalid("id", "is required"), codes.InvalidArgument},
		{common.ErrConflict, codes.Aborted},
		{common.ErrUnauthorized, codes.Unauthenticated},
		{common.ErrNotFound, codes.NotFound},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("db exploded"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			s := newServer(&fakeReplica{err: tt.err})

			_, err := s.DeleteEntity(context.Background(), wrapperspb.String("e1"))
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	s := newServer(&fakeReplica{err: errors.New("password=hunter2")})

	_, err := s.DeleteAttachment(context.Background(), wrapperspb.String("a1"))
	assert.Equal(t, "internal error", status.Convert(err).Message())
}

func TestPing(t *testing.T) {
	r := &fakeReplica{}
	s := newServer(r)

	_, err := s.Ping(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)

	r.pingErr = errors.New("db down")
	_, err = s.Ping(context.Background(), &emptypb.Empty{})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
