package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
	"github.com/dmitrijs2005/gophsync/internal/models"
	sm "github.com/dmitrijs2005/gophsync/internal/server/models"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/entities"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------- test fakes --------

// fakeEntities applies the same last-write-wins rule as the SQL upsert.
type fakeEntities struct {
	entities.Repository
	mu        sync.Mutex
	rows      map[string]*sm.Entity
	upsertErr error
	deleted   []string
}

func (f *fakeEntities) Upsert(ctx context.Context, e *sm.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if cur, ok := f.rows[e.ID]; ok && !mapping.LastWriteWins(e.UpdatedAt, cur.UpdatedAt) {
		return common.ErrConflict
	}
	cp := *e
	f.rows[e.ID] = &cp
	return nil
}

func (f *fakeEntities) Delete(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	_, ok := f.rows[id]
	delete(f.rows, id)
	return ok, nil
}

type fakeAttachments struct {
	attachments.Repository
	rows      map[string]*sm.Attachment
	getErr    error
	ownerErr  error
	upsertErr error
}

func (f *fakeAttachments) GetByID(ctx context.Context, id string) (*sm.Attachment, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttachments) Upsert(ctx context.Context, a *sm.Attachment) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if cur, ok := f.rows[a.ID]; ok && !mapping.LastWriteWins(a.UpdatedAt, cur.UpdatedAt) {
		return common.ErrConflict
	}
	cp := *a
	f.rows[a.ID] = &cp
	return nil
}

func (f *fakeAttachments) Delete(ctx context.Context, id string) (string, error) {
	a, ok := f.rows[id]
	if !ok {
		return "", nil
	}
	delete(f.rows, id)
	return a.StorageKey, nil
}

func (f *fakeAttachments) DeleteByOwner(ctx context.Context, owner string) ([]string, error) {
	if f.ownerErr != nil {
		return nil, f.ownerErr
	}
	var keys []string
	for id, a := range f.rows {
		if a.OwnerEntityID == owner {
			keys = append(keys, a.StorageKey)
			delete(f.rows, id)
		}
	}
	return keys, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	e *fakeEntities
	a *fakeAttachments
}

func (m *fakeRepoManager) Entities(dbx.DBTX) entities.Repository       { return m.e }
func (m *fakeRepoManager) Attachments(dbx.DBTX) attachments.Repository { return m.a }

type fakeBlobs struct {
	stored     map[string]bool
	presigned  []string
	deleted    []string
	existsErr  error
	presignErr error
	deleteErr  error
}

func (f *fakeBlobs) PresignPut(ctx context.Context, key string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	f.presigned = append(f.presigned, key)
	return "https://blobs.example/" + key, nil
}

func (f *fakeBlobs) Exists(ctx context.Context, key string) (bool, error) {
	return f.stored[key], f.existsErr
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.deleteErr
}

// -------- helpers --------

var (
	t1 = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Minute)
)

type fixture struct {
	svc   *ReplicaService
	mock  sqlmock.Sqlmock
	ents  *fakeEntities
	atts  *fakeAttachments
	blobs *fakeBlobs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		mock:  mock,
		ents:  &fakeEntities{rows: map[string]*sm.Entity{}},
		atts:  &fakeAttachments{rows: map[string]*sm.Attachment{}},
		blobs: &fakeBlobs{stored: map[string]bool{}},
	}
	f.svc = NewReplicaService(db, &fakeRepoManager{e: f.ents, a: f.atts}, f.blobs, logging.Nop())
	f.svc.now = func() time.Time { return t1 }

	orig := newStorageKey
	t.Cleanup(func() { newStorageKey = orig })
	n := 0
	newStorageKey = func(time.Time) string {
		n++
		return fmt.Sprintf("key-%d", n)
	}
	return f
}

func entityRecord(id string, updated time.Time) mapping.RemoteRecord {
	return mapping.ToRemoteFormat(models.Entity{
		ID:        id,
		Payload:   models.Payload{Title: "t", Tags: []string{"x"}, Attributes: map[string]any{"k": "v"}},
		CreatedAt: t1,
		UpdatedAt: updated,
	})
}

func attachmentRecord(id, owner, hash string, updated time.Time) mapping.RemoteRecord {
	return mapping.AttachmentToRemote(models.Attachment{
		ID:            id,
		OwnerEntityID: owner,
		OriginalName:  "f.bin",
		SizeBytes:     10,
		ContentType:   "application/octet-stream",
		IntegrityHash: hash,
		CreatedAt:     t1,
		UpdatedAt:     updated,
	})
}

// -------- tests --------

func TestUpsertEntity_StoresRow(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.UpsertEntity(context.Background(), "dev-1", entityRecord("e1", t1)))

	row := f.ents.rows["e1"]
	require.NotNil(t, row)
	assert.Equal(t, "t", row.Title)
	assert.Equal(t, []string{"x"}, row.Tags)
	assert.JSONEq(t, `{"k":"v"}`, string(row.Attributes))
	assert.Equal(t, "dev-1", row.DeviceID)
	assert.True(t, row.UpdatedAt.Equal(t1))
}

func TestUpsertEntity_ReplayKeepsOneRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.UpsertEntity(ctx, "dev-1", entityRecord("e1", t1)))
	require.NoError(t, f.svc.UpsertEntity(ctx, "dev-1", entityRecord("e1", t1)))

	assert.Len(t, f.ents.rows, 1)
}

func TestUpsertEntity_StaleWriteConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.UpsertEntity(ctx, "dev-1", entityRecord("e1", t2)))
	err := f.svc.UpsertEntity(ctx, "dev-2", entityRecord("e1", t1))

	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, "dev-1", f.ents.rows["e1"].DeviceID)
}

func TestUpsertEntity_EmptyAttributesStoredAsObject(t *testing.T) {
	f := newFixture(t)
	rec := entityRecord("e1", t1)
	rec["attributes"] = map[string]any{}

	require.NoError(t, f.svc.UpsertEntity(context.Background(), "dev-1", rec))
	assert.Equal(t, "{}", string(f.ents.rows["e1"].Attributes))
}

func TestUpsertEntity_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.UpsertEntity(ctx, "dev-1", mapping.RemoteRecord{"title": "no id"})
	assert.ErrorIs(t, err, common.ErrValidation)

	rec := entityRecord("e1", t1)
	delete(rec, "updated_at")
	err = f.svc.UpsertEntity(ctx, "dev-1", rec)
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "updated_at", ve.Field)

	assert.Empty(t, f.ents.rows)
}

func TestDeleteEntity_CascadesToAttachmentsAndBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.UpsertEntity(ctx, "dev-1", entityRecord("e1", t1)))
	_, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "e1", "h", t1))
	require.NoError(t, err)
	_, err = f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a2", "", "h", t1))
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.DeleteEntity(ctx, "e1"))
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Empty(t, f.ents.rows)
	assert.Contains(t, f.atts.rows, "a2")
	assert.NotContains(t, f.atts.rows, "a1")
	assert.Equal(t, []string{"key-1"}, f.blobs.deleted)
}

func TestDeleteEntity_UnknownIDSucceeds(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	require.NoError(t, f.svc.DeleteEntity(context.Background(), "ghost"))
	assert.Equal(t, []string{"ghost"}, f.ents.deleted)
}

func TestDeleteEntity_RollsBackOnError(t *testing.T) {
	f := newFixture(t)
	f.atts.ownerErr = errors.New("boom")
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.DeleteEntity(context.Background(), "e1")
	assert.EqualError(t, err, "boom")
	assert.Empty(t, f.ents.deleted)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDeleteEntity_RequiresID(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.svc.DeleteEntity(context.Background(), ""), common.ErrValidation)
}

func TestUpsertAttachment_NewRecordGetsUploadURL(t *testing.T) {
	f := newFixture(t)

	url, err := f.svc.UpsertAttachment(context.Background(), "dev-1", attachmentRecord("a1", "e1", "h1", t1))
	require.NoError(t, err)

	assert.Equal(t, "https://blobs.example/key-1", url)
	assert.Equal(t, "key-1", f.atts.rows["a1"].StorageKey)
	assert.Equal(t, "e1", f.atts.rows["a1"].OwnerEntityID)
}

func TestUpsertAttachment_StoredBlobSkipsUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h1", t1))
	require.NoError(t, err)
	f.blobs.stored["key-1"] = true

	url, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h1", t2))
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Equal(t, "key-1", f.atts.rows["a1"].StorageKey)
}

func TestUpsertAttachment_MissingBlobIsPresignedAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h1", t1))
	require.NoError(t, err)

	url, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h1", t1))
	require.NoError(t, err)
	assert.Equal(t, "https://blobs.example/key-1", url)
	assert.Equal(t, []string{"key-1", "key-1"}, f.blobs.presigned)
}

func TestUpsertAttachment_ChangedHashReuploads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h1", t1))
	require.NoError(t, err)
	f.blobs.stored["key-1"] = true

	url, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h2", t2))
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestUpsertAttachment_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid record", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpsertAttachment(ctx, "dev-1", mapping.RemoteRecord{"id": "a1"})
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("negative size", func(t *testing.T) {
		f := newFixture(t)
		rec := attachmentRecord("a1", "", "h", t1)
		rec["size_bytes"] = float64(-1)
		_, err := f.svc.UpsertAttachment(ctx, "dev-1", rec)
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("lookup failure", func(t *testing.T) {
		f := newFixture(t)
		f.atts.getErr = errors.New("db down")
		_, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h", t1))
		assert.EqualError(t, err, "db down")
	})

	t.Run("stale write", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h", t2))
		require.NoError(t, err)
		_, err = f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h", t1))
		assert.ErrorIs(t, err, common.ErrConflict)
	})

	t.Run("presign failure", func(t *testing.T) {
		f := newFixture(t)
		f.blobs.presignErr = errors.New("s3 down")
		_, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h", t1))
		assert.EqualError(t, err, "s3 down")
	})

	t.Run("head failure", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h", t1))
		require.NoError(t, err)
		f.blobs.existsErr = errors.New("head failed")
		_, err = f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h", t1))
		assert.EqualError(t, err, "head failed")
	})
}

func TestDeleteAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpsertAttachment(ctx, "dev-1", attachmentRecord("a1", "", "h", t1))
	require.NoError(t, err)

	f.blobs.deleteErr = errors.New("ignored")
	require.NoError(t, f.svc.DeleteAttachment(ctx, "a1"))
	assert.Empty(t, f.atts.rows)
	assert.Equal(t, []string{"key-1"}, f.blobs.deleted)

	// unknown ids are a no-op
	require.NoError(t, f.svc.DeleteAttachment(ctx, "a1"))
	assert.Len(t, f.blobs.deleted, 1)

	assert.ErrorIs(t, f.svc.DeleteAttachment(ctx, ""), common.ErrValidation)
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	svc := NewReplicaService(db, &fakeRepoManager{}, &fakeBlobs{}, logging.Nop())

	mock.ExpectPing()
	require.NoError(t, svc.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, svc.Ping(context.Background()), sql.ErrConnDone)
}
