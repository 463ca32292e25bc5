// Package attachments provides the PostgreSQL repository for replicated
// attachment metadata.
package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/server/models"
)

// PostgresRepository implements attachment storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Upsert inserts a or replaces the stored metadata when a is at least as
// recent. The storage key of an existing row is kept. A stale write returns
// common.ErrConflict.
func (r *PostgresRepository) Upsert(ctx context.Context, a *models.Attachment) error {
	query := `
		INSERT INTO attachments (id, owner_entity_id, original_name, size_bytes, content_type,
			integrity_hash, storage_key, created_at, updated_at, device_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET
			owner_entity_id = EXCLUDED.owner_entity_id,
			original_name = EXCLUDED.original_name,
			size_bytes = EXCLUDED.size_bytes,
			content_type = EXCLUDED.content_type,
			integrity_hash = EXCLUDED.integrity_hash,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			device_id = EXCLUDED.device_id,
			received_at = now()
			WHERE attachments.updated_at <= EXCLUDED.updated_at;
	`
	res, err := r.db.ExecContext(ctx, query,
		a.ID, nullable(a.OwnerEntityID), a.OriginalName, a.SizeBytes, a.ContentType,
		a.IntegrityHash, a.StorageKey, a.CreatedAt, a.UpdatedAt, a.DeviceID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrConflict
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// GetByID returns common.ErrNotFound when no attachment has the id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	query := `SELECT id, owner_entity_id, original_name, size_bytes, content_type, integrity_hash,
		storage_key, created_at, updated_at, device_id
		FROM attachments WHERE id = $1`

	var a models.Attachment
	var owner sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &owner, &a.OriginalName, &a.SizeBytes, &a.ContentType, &a.IntegrityHash,
		&a.StorageKey, &a.CreatedAt, &a.UpdatedAt, &a.DeviceID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select attachment: %w", err)
	}
	a.OwnerEntityID = owner.String
	return &a, nil
}

// Delete removes the attachment and returns the storage key of its blob, or
// "" when no row existed.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (string, error) {
	var key string
	err := r.db.QueryRowContext(ctx, `DELETE FROM attachments WHERE id = $1 RETURNING storage_key`, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete attachment: %w", err)
	}
	return key, nil
}

// DeleteByOwner removes every attachment of ownerID and returns their
// storage keys.
func (r *PostgresRepository) DeleteByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM attachments WHERE owner_entity_id = $1 RETURNING storage_key`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete attachments: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
