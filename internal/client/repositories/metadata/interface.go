// Package metadata is the sync bookkeeping table of the local store: when
// the last sweep completed and why the last one failed.
package metadata

import (
	"context"
	"time"
)

const (
	// KeyLastSyncAt holds the completion time of the last successful sweep.
	KeyLastSyncAt = "last_sync_at"
	// KeyLastSyncError holds the error of the last failed sweep. A successful
	// sweep removes it.
	KeyLastSyncError = "last_sync_error"
)

// Entry is one bookkeeping value and the time it was written.
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

type Repository interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key, value string, at time.Time) error
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) (int64, error)
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}
