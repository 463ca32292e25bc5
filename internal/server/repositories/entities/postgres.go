// Package entities provides the PostgreSQL repository for replicated
// entities.
package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/server/models"
	"github.com/lib/pq"
)

// PostgresRepository implements entity storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts e or replaces the stored row when e is at least as recent
// (last write wins on updated_at, ties go to the incoming write). A stale
// write affects no row and returns common.ErrConflict.
func (r *PostgresRepository) Upsert(ctx context.Context, e *models.Entity) error {
	query := `
		INSERT INTO entities (id, title, body, tags, pinned, attributes, created_at, updated_at, device_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			tags = EXCLUDED.tags,
			pinned = EXCLUDED.pinned,
			attributes = EXCLUDED.attributes,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			device_id = EXCLUDED.device_id,
			received_at = now()
			WHERE entities.updated_at <= EXCLUDED.updated_at;
	`
	attrs := string(e.Attributes)
	if attrs == "" {
		attrs = "{}"
	}
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}

	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.Title, e.Body, pq.Array(tags), e.Pinned, attrs, e.CreatedAt, e.UpdatedAt, e.DeviceID)
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

// GetByID returns common.ErrNotFound when no entity has the id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	query := `SELECT id, title, body, tags, pinned, attributes, created_at, updated_at, device_id
		FROM entities WHERE id = $1`

	var e models.Entity
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.Body, pq.Array(&e.Tags), &e.Pinned, &e.Attributes,
		&e.CreatedAt, &e.UpdatedAt, &e.DeviceID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select entity: %w", err)
	}
	return &e, nil
}

// Delete removes the entity and reports whether a row existed.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete entity: %w", err)
	}
	return dbx.AtMostOne(res)
}
