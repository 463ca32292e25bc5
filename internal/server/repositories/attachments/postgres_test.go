package attachments

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upsertQuery = `(?s)^\s*INSERT\s+INTO\s+attachments\b.*ON\s+CONFLICT\s*\(id\)\s*DO\s+UPDATE\s+SET\b.*WHERE\s+attachments\.updated_at\s*<=\s*EXCLUDED\.updated_at;?\s*$`

var (
	created = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	updated = time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func sample() *models.Attachment {
	return &models.Attachment{
		ID:            "a1",
		OwnerEntityID: "e1",
		OriginalName:  "report.pdf",
		SizeBytes:     2048,
		ContentType:   "application/pdf",
		IntegrityHash: "0123456789abcdef",
		StorageKey:    "attachments/a1",
		CreatedAt:     created,
		UpdatedAt:     updated,
		DeviceID:      "dev-1",
	}
}

func TestUpsert(t *testing.T) {
	t.Run("owned attachment", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		a := sample()
		mock.ExpectExec(upsertQuery).
			WithArgs("a1", "e1", "report.pdf", int64(2048), "application/pdf", "0123456789abcdef",
				"attachments/a1", created, updated, "dev-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Upsert(context.Background(), a))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unowned attachment stores NULL owner", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		a := sample()
		a.OwnerEntityID = ""
		mock.ExpectExec(upsertQuery).
			WithArgs("a1", nil, "report.pdf", int64(2048), "application/pdf", "0123456789abcdef",
				"attachments/a1", created, updated, "dev-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Upsert(context.Background(), a))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale write", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(upsertQuery).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Upsert(context.Background(), sample()), common.ErrConflict)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(upsertQuery).WillReturnError(errors.New("db down"))

		assert.ErrorContains(t, repo.Upsert(context.Background(), sample()), "db error: db down")
	})
}

func TestGetByID(t *testing.T) {
	q := `(?s)^SELECT\s+id,\s*owner_entity_id,.*FROM\s+attachments\s+WHERE\s+id\s*=\s*\$1$`
	cols := []string{"id", "owner_entity_id", "original_name", "size_bytes", "content_type", "integrity_hash",
		"storage_key", "created_at", "updated_at", "device_id"}

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("a1").WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", "e1", "report.pdf", int64(2048), "application/pdf", "0123456789abcdef",
				"attachments/a1", created, updated, "dev-1"))

		got, err := repo.GetByID(context.Background(), "a1")
		require.NoError(t, err)
		assert.Equal(t, sample(), got)
	})

	t.Run("null owner", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("a1").WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", nil, "report.pdf", int64(2048), "application/pdf", "0123456789abcdef",
				"attachments/a1", created, updated, "dev-1"))

		got, err := repo.GetByID(context.Background(), "a1")
		require.NoError(t, err)
		assert.Empty(t, got.OwnerEntityID)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("a1").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), "a1")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestDelete(t *testing.T) {
	q := `^DELETE FROM attachments WHERE id = \$1 RETURNING storage_key$`

	t.Run("returns storage key", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("a1").WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("attachments/a1"))

		key, err := repo.Delete(context.Background(), "a1")
		require.NoError(t, err)
		assert.Equal(t, "attachments/a1", key)
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("a1").WillReturnRows(sqlmock.NewRows([]string{"storage_key"}))

		key, err := repo.Delete(context.Background(), "a1")
		require.NoError(t, err)
		assert.Empty(t, key)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("a1").WillReturnError(errors.New("boom"))

		_, err := repo.Delete(context.Background(), "a1")
		assert.ErrorContains(t, err, "failed to delete attachment")
	})
}

func TestDeleteByOwner(t *testing.T) {
	q := `^DELETE FROM attachments WHERE owner_entity_id = \$1 RETURNING storage_key$`

	t.Run("returns all keys", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("e1").WillReturnRows(
			sqlmock.NewRows([]string{"storage_key"}).AddRow("k1").AddRow("k2"))

		keys, err := repo.DeleteByOwner(context.Background(), "e1")
		require.NoError(t, err)
		assert.Equal(t, []string{"k1", "k2"}, keys)
	})

	t.Run("rows error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("e1").WillReturnRows(
			sqlmock.NewRows([]string{"storage_key"}).AddRow("k1").RowError(0, errors.New("row-err")))

		_, err := repo.DeleteByOwner(context.Background(), "e1")
		assert.ErrorContains(t, err, "row-err")
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("e1").WillReturnError(errors.New("boom"))

		_, err := repo.DeleteByOwner(context.Background(), "e1")
		assert.ErrorContains(t, err, "failed to delete attachments")
	})
}
