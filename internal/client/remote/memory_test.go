package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, updated string) mapping.RemoteRecord {
	return mapping.RemoteRecord{"id": id, "title": "t-" + updated, "updated_at": updated}
}

func TestMemoryReplica_UpsertIsIdempotent(t *testing.T) {
	m := NewMemoryReplica()
	ctx := context.Background()

	r := rec("e1", "2025-01-01T00:00:00Z")
	for i := 0; i < 3; i++ {
		require.NoError(t, m.UpsertEntity(ctx, r))
	}

	ents, atts := m.Count()
	assert.Equal(t, 1, ents)
	assert.Equal(t, 0, atts)
	assert.Equal(t, 3, m.Writes("e1"))

	got, ok := m.Entity("e1")
	require.True(t, ok)
	assert.Equal(t, r, got)
}

func TestMemoryReplica_LastWriteWins(t *testing.T) {
	m := NewMemoryReplica()
	ctx := context.Background()

	require.NoError(t, m.UpsertEntity(ctx, rec("e1", "2025-01-02T00:00:00Z")))
	err := m.UpsertEntity(ctx, rec("e1", "2025-01-01T00:00:00Z"))
	require.ErrorIs(t, err, common.ErrConflict)

	got, _ := m.Entity("e1")
	assert.Equal(t, "t-2025-01-02T00:00:00Z", got["title"])

	require.NoError(t, m.UpsertEntity(ctx, rec("e1", "2025-01-03T00:00:00Z")))
	got, _ = m.Entity("e1")
	assert.Equal(t, "t-2025-01-03T00:00:00Z", got["title"])
}

func TestMemoryReplica_FailAll(t *testing.T) {
	m := NewMemoryReplica()
	ctx := context.Background()
	m.FailAll(true)

	require.ErrorIs(t, m.Authenticate(ctx), common.ErrRemoteUnavailable)
	require.ErrorIs(t, m.UpsertEntity(ctx, rec("e1", "")), common.ErrRemoteUnavailable)
	require.ErrorIs(t, m.DeleteEntity(ctx, "e1"), common.ErrRemoteUnavailable)
	require.ErrorIs(t, m.UpsertAttachment(ctx, rec("a1", ""), nil), common.ErrRemoteUnavailable)
	require.ErrorIs(t, m.DeleteAttachment(ctx, "a1"), common.ErrRemoteUnavailable)

	ents, _ := m.Count()
	assert.Zero(t, ents)
	assert.Len(t, m.Calls(), 5)

	m.FailAll(false)
	require.NoError(t, m.UpsertEntity(ctx, rec("e1", "")))
}

func TestMemoryReplica_RejectAuth(t *testing.T) {
	m := NewMemoryReplica()
	m.RejectAuth(common.ErrUnauthorized)
	require.ErrorIs(t, m.Authenticate(context.Background()), common.ErrUnauthorized)
	m.RejectAuth(nil)
	require.NoError(t, m.Authenticate(context.Background()))
}

func TestMemoryReplica_AttachmentBlobAndCascade(t *testing.T) {
	m := NewMemoryReplica()
	ctx := context.Background()

	require.NoError(t, m.UpsertEntity(ctx, rec("e1", "")))
	a := mapping.RemoteRecord{"id": "a1", "owner_entity_id": "e1", "updated_at": ""}
	open := func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte("blob"))), nil }
	require.NoError(t, m.UpsertAttachment(ctx, a, open))
	assert.Equal(t, []byte("blob"), m.Blob("a1"))

	require.NoError(t, m.DeleteEntity(ctx, "e1"))
	_, ok := m.Attachment("a1")
	assert.False(t, ok)
	assert.Nil(t, m.Blob("a1"))
}

func TestMemoryReplica_BlobOpenError(t *testing.T) {
	m := NewMemoryReplica()
	open := func() (io.ReadCloser, error) { return nil, errors.New("gone") }
	err := m.UpsertAttachment(context.Background(), rec("a1", ""), open)
	require.ErrorContains(t, err, "open blob a1")
}

func TestMemoryReplica_MissingID(t *testing.T) {
	m := NewMemoryReplica()
	err := m.UpsertEntity(context.Background(), mapping.RemoteRecord{"title": "x"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestMemoryReplica_CallsOrder(t *testing.T) {
	m := NewMemoryReplica()
	ctx := context.Background()
	require.NoError(t, m.DeleteEntity(ctx, "x"))
	require.NoError(t, m.UpsertEntity(ctx, rec("e1", "")))
	assert.Equal(t, []string{"delete_entity:x", "upsert_entity:e1"}, m.Calls())
	m.ResetCalls()
	assert.Empty(t, m.Calls())
}

func TestNew_Modes(t *testing.T) {
	r, c, err := New(Options{Mode: ModeMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryReplica{}, r)
	require.NoError(t, c.Close())

	r, c, err = New(Options{Mode: ModeNone})
	require.NoError(t, err)
	assert.Nil(t, r)
	require.NoError(t, c.Close())

	_, _, err = New(Options{Mode: "carrier-pigeon"})
	require.ErrorContains(t, err, "unknown remote mode")

	r, c, err = New(Options{Mode: ModeGRPC, Address: "localhost:1"})
	require.NoError(t, err)
	assert.IsType(t, &GRPCReplica{}, r)
	require.NoError(t, c.Close())
}
