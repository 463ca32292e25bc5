package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
	"github.com/dmitrijs2005/gophsync/internal/models"
)

const columns = `id, owner_entity_id, original_name, storage_name, size_bytes, content_type,
	integrity_hash, created_at, updated_at, sync_state, sync_priority, revision`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, a *models.Attachment) error {
	row := mapping.AttachmentToLocal(*a)

	query := `
		INSERT INTO attachments (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			owner_entity_id = excluded.owner_entity_id,
			original_name   = excluded.original_name,
			storage_name    = excluded.storage_name,
			size_bytes      = excluded.size_bytes,
			content_type    = excluded.content_type,
			integrity_hash  = excluded.integrity_hash,
			updated_at      = excluded.updated_at,
			sync_state      = 0,
			sync_priority   = excluded.sync_priority,
			revision        = attachments.revision + 1
		RETURNING revision`

	var revision int64
	err := r.db.QueryRowContext(ctx, query,
		row.ID, row.OwnerEntityID, row.OriginalName, row.StorageName, row.SizeBytes,
		row.ContentType, row.IntegrityHash, row.CreatedAt, row.UpdatedAt, row.SyncPriority,
	).Scan(&revision)
	if err != nil {
		return fmt.Errorf("failed to save attachment %s: %w", a.ID, err)
	}

	a.Revision = revision
	a.SyncState = models.SyncStateUnsynced
	a.SyncPriority = models.Priority(row.SyncPriority)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttachment(s scanner) (models.Attachment, error) {
	var row mapping.AttachmentRow
	err := s.Scan(&row.ID, &row.OwnerEntityID, &row.OriginalName, &row.StorageName, &row.SizeBytes,
		&row.ContentType, &row.IntegrityHash, &row.CreatedAt, &row.UpdatedAt,
		&row.SyncState, &row.SyncPriority, &row.Revision)
	if err != nil {
		return models.Attachment{}, err
	}
	return mapping.AttachmentFromLocal(row), nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM attachments WHERE id = ?`, id)

	a, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attachment %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", id, err)
	}
	return &a, nil
}

func (r *SQLiteRepository) query(ctx context.Context, op, query string, args ...any) ([]models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s attachments: %w", op, err)
	}
	defer rows.Close()

	result := []models.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachment rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Attachment, error) {
	return r.query(ctx, "list",
		`SELECT `+columns+` FROM attachments ORDER BY created_at, id`)
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, entityID string) ([]models.Attachment, error) {
	return r.query(ctx, "list",
		`SELECT `+columns+` FROM attachments WHERE owner_entity_id = ? ORDER BY created_at, id`, entityID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment %s: %w", id, err)
	}

	ok, err := dbx.AtMostOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("attachment %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByOwner(ctx context.Context, entityID string) ([]models.Attachment, error) {
	owned, err := r.ListByOwner(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return owned, nil
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachments WHERE owner_entity_id = ?`, entityID); err != nil {
		return nil, fmt.Errorf("failed to delete attachments of %s: %w", entityID, err)
	}
	return owned, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, p models.Priority, limit int) ([]models.Attachment, error) {
	return r.query(ctx, "list pending", `
		SELECT `+columns+` FROM attachments
		WHERE sync_state = 0 AND sync_priority = ?
		ORDER BY updated_at, id
		LIMIT ?`, int64(p), limit)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, revision int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE attachments SET sync_state = 1 WHERE id = ? AND revision = ? AND sync_state = 0`,
		id, revision)
	if err != nil {
		return false, fmt.Errorf("failed to mark attachment %s synced: %w", id, err)
	}
	return dbx.AtMostOne(res)
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attachments WHERE sync_state = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending attachments: %w", err)
	}
	return n, nil
}
