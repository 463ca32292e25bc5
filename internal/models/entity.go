// Package models defines the syncable records shared by the client store,
// the sync engine and the replica server.
package models

import (
	"fmt"
	"strings"
	"time"
)

// SyncState is the local-only replication flag of a record.
type SyncState int

const (
	SyncStateUnsynced SyncState = 0
	SyncStateSynced   SyncState = 1
)

func (s SyncState) String() string {
	if s == SyncStateSynced {
		return "SYNCED"
	}
	return "UNSYNCED"
}

// Priority orders replication during a sweep. The zero value means "not set".
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// SweepOrder lists priorities in the order a sweep must process them.
var SweepOrder = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// OrDefault returns p, or MEDIUM when p is unset.
func (p Priority) OrDefault() Priority {
	if p == 0 {
		return PriorityMedium
	}
	return p
}

// ParsePriority accepts "low", "medium", "high" (any case) and "l", "m", "h".
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "m", "medium":
		return PriorityMedium, nil
	case "l", "low":
		return PriorityLow, nil
	case "h", "high":
		return PriorityHigh, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// Payload is the user-editable part of an Entity.
type Payload struct {
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Tags       []string       `json:"tags"`
	Pinned     bool           `json:"pinned"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Entity is a syncable note.
type Entity struct {
	ID string
	Payload
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SyncState    SyncState
	SyncPriority Priority
	// Revision increments on every local write; sync acknowledgements carry it.
	Revision int64
}

// Attachment is the metadata row of a stored file.
type Attachment struct {
	ID string
	// OwnerEntityID is empty for unattached files.
	OwnerEntityID string
	OriginalName  string
	StorageName   string
	SizeBytes     int64
	ContentType   string
	IntegrityHash string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SyncState     SyncState
	SyncPriority  Priority
	Revision      int64
}

// RecordKind names the two replicated record types.
type RecordKind string

const (
	KindEntity     RecordKind = "entity"
	KindAttachment RecordKind = "attachment"
)

// PendingDelete is an outbox row for a remote delete that has not been
// acknowledged yet.
type PendingDelete struct {
	Kind       RecordKind
	ID         string
	EnqueuedAt time.Time
}
