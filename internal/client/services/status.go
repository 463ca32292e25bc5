package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
)

type Status struct {
	Online           bool         `json:"online"`
	NetworkReachable bool         `json:"networkReachable"`
	LocalReady       bool         `json:"localReady"`
	RemoteReachable  bool         `json:"remoteReachable"`
	PendingCount     int          `json:"pendingCount"`
	PendingDeletes   int          `json:"pendingDeletes"`
	State            syncer.State `json:"-"`
	LastSyncAt       time.Time    `json:"lastSyncAt"`
	Message          string       `json:"message"`
	Timestamp        time.Time    `json:"timestamp"`
}

// GetStatus never fails. A local store that cannot be read is reported as
// not ready. It probes the network, so it may block for the probe timeout.
func (s *EntityService) GetStatus(ctx context.Context) Status {
	st := s.LocalStatus(ctx)
	if s.deps.Prober != nil {
		st.NetworkReachable = s.deps.Prober.IsReachable(ctx)
	}
	return st
}

// LocalStatus is GetStatus without the network probe: engine state and
// local counts only. NetworkReachable is always false.
func (s *EntityService) LocalStatus(ctx context.Context) Status {
	snap := s.deps.Sync.Snapshot()
	st := Status{
		Online:          snap.State.Online(),
		RemoteReachable: snap.State.Online(),
		State:           snap.State,
		LastSyncAt:      snap.LastSyncAt,
		Timestamp:       s.now().UTC(),
	}

	st.LocalReady = s.deps.DB != nil && s.deps.DB.PingContext(ctx) == nil
	if st.LocalReady {
		ne, err1 := s.deps.Entities.CountPending(ctx)
		na, err2 := s.deps.Attachments.CountPending(ctx)
		nd, err3 := s.deps.Deletes.Count(ctx)
		if err1 != nil || err2 != nil || err3 != nil {
			st.LocalReady = false
		}
		st.PendingCount = ne + na
		st.PendingDeletes = nd
	}

	st.Message = statusMessage(st, snap)
	return st
}

func statusMessage(st Status, snap syncer.Snapshot) string {
	pending := st.PendingCount + st.PendingDeletes
	switch {
	case !st.LocalReady:
		return "local store unavailable"
	case !snap.RemoteEnabled:
		return "local only, replication disabled"
	case st.State == syncer.StateOnlineSyncing:
		return fmt.Sprintf("syncing, %d changes pending", pending)
	case st.Online && pending == 0:
		return "online, all changes synced"
	case st.Online:
		return fmt.Sprintf("online, %d changes pending", pending)
	case snap.LastError != "":
		return fmt.Sprintf("offline (%s), %d changes pending", snap.LastError, pending)
	default:
		return fmt.Sprintf("offline, %d changes pending", pending)
	}
}

// SyncBookkeeping lists the persisted sync bookkeeping entries.
func (s *EntityService) SyncBookkeeping(ctx context.Context) ([]metadata.Entry, error) {
	if s.deps.Metadata == nil {
		return []metadata.Entry{}, nil
	}
	return s.deps.Metadata.List(ctx)
}

// ResetSyncBookkeeping forgets the persisted sweep outcome and reloads the
// engine's view of it. Pending changes are untouched.
func (s *EntityService) ResetSyncBookkeeping(ctx context.Context) (int64, error) {
	if s.deps.Metadata == nil {
		return 0, nil
	}
	n, err := s.deps.Metadata.Clear(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.deps.Sync.Restore(ctx); err != nil {
		return n, fmt.Errorf("reload sync state: %w", err)
	}
	return n, nil
}
