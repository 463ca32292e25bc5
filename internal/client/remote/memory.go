package remote

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
)

// MemoryReplica keeps replicated records in maps. It applies the same
// last-write-wins rule as the server and can be switched to fail every call.
type MemoryReplica struct {
	mu          sync.RWMutex
	entities    map[string]mapping.RemoteRecord
	attachments map[string]mapping.RemoteRecord
	blobs       map[string][]byte
	writes      map[string]int
	calls       []string
	failAll     bool
	authErr     error
}

func NewMemoryReplica() *MemoryReplica {
	return &MemoryReplica{
		entities:    map[string]mapping.RemoteRecord{},
		attachments: map[string]mapping.RemoteRecord{},
		blobs:       map[string][]byte{},
		writes:      map[string]int{},
	}
}

// FailAll makes every subsequent call fail with common.ErrRemoteUnavailable.
func (m *MemoryReplica) FailAll(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = fail
}

// RejectAuth makes Authenticate fail with err (nil restores success).
func (m *MemoryReplica) RejectAuth(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authErr = err
}

func (m *MemoryReplica) begin(call string) error {
	m.calls = append(m.calls, call)
	if m.failAll {
		return fmt.Errorf("%s: %w", call, common.ErrRemoteUnavailable)
	}
	return nil
}

func (m *MemoryReplica) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("authenticate"); err != nil {
		return err
	}
	return m.authErr
}

func upsert(store map[string]mapping.RemoteRecord, r mapping.RemoteRecord) error {
	id := r.ID()
	if id == "" {
		return common.Invalid("id", "missing")
	}
	if prev, ok := store[id]; ok {
		incoming, _ := time.Parse(time.RFC3339Nano, fmt.Sprint(r["updated_at"]))
		stored, _ := time.Parse(time.RFC3339Nano, fmt.Sprint(prev["updated_at"]))
		if !mapping.LastWriteWins(incoming, stored) {
			return fmt.Errorf("record %s: %w", id, common.ErrConflict)
		}
	}
	cp := make(mapping.RemoteRecord, len(r))
	for k, v := range r {
		cp[k] = v
	}
	store[id] = cp
	return nil
}

func (m *MemoryReplica) UpsertEntity(ctx context.Context, r mapping.RemoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("upsert_entity:" + r.ID()); err != nil {
		return err
	}
	if err := upsert(m.entities, r); err != nil {
		return err
	}
	m.writes[r.ID()]++
	return nil
}

func (m *MemoryReplica) DeleteEntity(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("delete_entity:" + id); err != nil {
		return err
	}
	delete(m.entities, id)
	for aid, a := range m.attachments {
		if a["owner_entity_id"] == id {
			delete(m.attachments, aid)
			delete(m.blobs, aid)
		}
	}
	return nil
}

func (m *MemoryReplica) UpsertAttachment(ctx context.Context, r mapping.RemoteRecord, open BlobOpener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("upsert_attachment:" + r.ID()); err != nil {
		return err
	}
	if err := upsert(m.attachments, r); err != nil {
		return err
	}
	m.writes[r.ID()]++

	if open == nil {
		return nil
	}
	rc, err := open()
	if err != nil {
		return fmt.Errorf("open blob %s: %w", r.ID(), err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read blob %s: %w", r.ID(), err)
	}
	m.blobs[r.ID()] = data
	return nil
}

func (m *MemoryReplica) DeleteAttachment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("delete_attachment:" + id); err != nil {
		return err
	}
	delete(m.attachments, id)
	delete(m.blobs, id)
	return nil
}

// Entity returns a copy of the stored entity record.
func (m *MemoryReplica) Entity(id string) (mapping.RemoteRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.entities[id]
	return r, ok
}

func (m *MemoryReplica) Attachment(id string) (mapping.RemoteRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.attachments[id]
	return r, ok
}

func (m *MemoryReplica) Blob(id string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blobs[id]
}

// Count returns the number of stored entities and attachments.
func (m *MemoryReplica) Count() (entities, attachments int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities), len(m.attachments)
}

// Writes reports how many accepted upserts record id received.
func (m *MemoryReplica) Writes(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[id]
}

// Calls returns every call made so far, failed ones included, in order.
func (m *MemoryReplica) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.calls...)
}

func (m *MemoryReplica) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
