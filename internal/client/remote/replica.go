// Package remote contains the client side of the replica store: the
// contract the sync engine replicates through and its implementations.
package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophsync/internal/mapping"
)

// BlobOpener opens the bytes of an attachment for upload.
type BlobOpener func() (io.ReadCloser, error)

// Replica is a best-effort mirror of the local store. Upserts are idempotent
// and last-write-wins by updated_at; a stale upsert fails with
// common.ErrConflict.
type Replica interface {
	Authenticate(ctx context.Context) error
	UpsertEntity(ctx context.Context, r mapping.RemoteRecord) error
	DeleteEntity(ctx context.Context, id string) error
	UpsertAttachment(ctx context.Context, r mapping.RemoteRecord, open BlobOpener) error
	DeleteAttachment(ctx context.Context, id string) error
}

const (
	ModeGRPC   = "grpc"
	ModeMemory = "memory"
	ModeNone   = "none"
)

// Options configure New.
type Options struct {
	Mode     string
	Address  string
	DeviceID string
	Secret   string
}

// New builds the replica selected by opts.Mode. ModeNone returns (nil, nil):
// the engine then stays offline.
func New(opts Options) (Replica, io.Closer, error) {
	switch opts.Mode {
	case ModeGRPC:
		r, err := NewGRPCReplica(opts.Address, opts.DeviceID, opts.Secret)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	case ModeMemory:
		return NewMemoryReplica(), nopCloser{}, nil
	case ModeNone, "":
		return nil, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown remote mode %q", opts.Mode)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
