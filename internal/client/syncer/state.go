// Package syncer replicates the local store to the remote replica.
//
// The engine owns the connectivity state machine:
//
//	OFFLINE --probe ok + authenticate ok--> ONLINE_IDLE
//	ONLINE_IDLE --local write / fresh transition--> ONLINE_SYNCING
//	ONLINE_SYNCING --done--> ONLINE_IDLE
//	any --replication failure / probe failure--> OFFLINE
//
// Replication is one way, local to remote. Failures never reach callers of
// the entity façade; they only show up in Snapshot.
package syncer

import "time"

type State int

const (
	StateOffline State = iota
	StateOnlineIdle
	StateOnlineSyncing
)

func (s State) String() string {
	switch s {
	case StateOnlineIdle:
		return "ONLINE_IDLE"
	case StateOnlineSyncing:
		return "ONLINE_SYNCING"
	default:
		return "OFFLINE"
	}
}

func (s State) Online() bool { return s != StateOffline }

// Snapshot is a read-only view of the engine.
type Snapshot struct {
	State         State
	LastError     string
	LastSyncAt    time.Time
	RetryAttempt  int
	QueuedRetries []Task
	SweepInFlight bool
	RemoteEnabled bool
}
