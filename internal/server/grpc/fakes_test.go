package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
	"github.com/dmitrijs2005/gophsync/internal/server/auth"
)

const testSecret = "k"

type fakeReplica struct {
	mu         sync.Mutex
	devices    []string
	records    []mapping.RemoteRecord
	deletedIDs []string
	url        string
	err        error
	pingErr    error
}

func (f *fakeReplica) UpsertEntity(ctx context.Context, deviceID string, rec mapping.RemoteRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = append(f.devices, deviceID)
	f.records = append(f.records, rec)
	return f.err
}

func (f *fakeReplica) DeleteEntity(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, id)
	return f.err
}

func (f *fakeReplica) UpsertAttachment(ctx context.Context, deviceID string, rec mapping.RemoteRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = append(f.devices, deviceID)
	f.records = append(f.records, rec)
	return f.url, f.err
}

func (f *fakeReplica) DeleteAttachment(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, id)
	return f.err
}

func (f *fakeReplica) Ping(ctx context.Context) error { return f.pingErr }

type fakeAuth struct{}

func (fakeAuth) Authenticate(ctx context.Context, deviceID, secret string) (string, error) {
	if secret != "shared" {
		return "", common.ErrUnauthorized
	}
	return auth.GenerateToken(deviceID, []byte(testSecret), time.Hour)
}

func newServer(r *fakeReplica) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), r, fakeAuth{}, testSecret)
}
