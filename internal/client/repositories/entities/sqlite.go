package entities

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/mapping"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"modernc.org/sqlite"
)

// SQLite lower() folds ASCII only; fold() lowercases the full Unicode range.
func init() {
	if err := sqlite.RegisterDeterministicScalarFunction("fold", 1, fold); err != nil {
		panic(err)
	}
}

func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	case nil:
		return nil, nil
	default:
		return strings.ToLower(fmt.Sprint(v)), nil
	}
}

const columns = `id, title, body, tags, attributes, pinned, created_at, updated_at,
	sync_state, sync_priority, revision`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, e *models.Entity) error {
	row, err := mapping.ToLocalFormat(*e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO entities (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			title         = excluded.title,
			body          = excluded.body,
			tags          = excluded.tags,
			attributes    = excluded.attributes,
			pinned        = excluded.pinned,
			updated_at    = excluded.updated_at,
			sync_state    = 0,
			sync_priority = excluded.sync_priority,
			revision      = entities.revision + 1
		RETURNING revision`

	var revision int64
	err = r.db.QueryRowContext(ctx, query,
		row.ID, row.Title, row.Body, row.Tags, row.Attributes, row.Pinned,
		row.CreatedAt, row.UpdatedAt, row.SyncPriority,
	).Scan(&revision)
	if err != nil {
		return fmt.Errorf("failed to save entity %s: %w", e.ID, err)
	}

	e.Revision = revision
	e.SyncState = models.SyncStateUnsynced
	e.SyncPriority = models.Priority(row.SyncPriority)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(s scanner) (models.Entity, error) {
	var row mapping.EntityRow
	err := s.Scan(&row.ID, &row.Title, &row.Body, &row.Tags, &row.Attributes, &row.Pinned,
		&row.CreatedAt, &row.UpdatedAt, &row.SyncState, &row.SyncPriority, &row.Revision)
	if err != nil {
		return models.Entity{}, err
	}
	return mapping.FromLocalFormat(row)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM entities WHERE id = ?`, id)

	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", id, err)
	}
	return &e, nil
}

func (r *SQLiteRepository) query(ctx context.Context, op, query string, args ...any) ([]models.Entity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s entities: %w", op, err)
	}
	defer rows.Close()

	result := []models.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entity rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Entity, error) {
	return r.query(ctx, "list",
		`SELECT `+columns+` FROM entities ORDER BY updated_at DESC, id`)
}

func (r *SQLiteRepository) Search(ctx context.Context, q string) ([]models.Entity, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return r.List(ctx)
	}
	return r.query(ctx, "search", `
		SELECT `+columns+` FROM entities
		WHERE instr(fold(title), ?) > 0 OR instr(fold(body), ?) > 0
		ORDER BY updated_at DESC, id`, q, q)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity %s: %w", id, err)
	}

	ok, err := dbx.AtMostOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, p models.Priority, limit int) ([]models.Entity, error) {
	return r.query(ctx, "list pending", `
		SELECT `+columns+` FROM entities
		WHERE sync_state = 0 AND sync_priority = ?
		ORDER BY updated_at, id
		LIMIT ?`, int64(p), limit)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, revision int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE entities SET sync_state = 1 WHERE id = ? AND revision = ? AND sync_state = 0`,
		id, revision)
	if err != nil {
		return false, fmt.Errorf("failed to mark entity %s synced: %w", id, err)
	}
	return dbx.AtMostOne(res)
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE sync_state = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending entities: %w", err)
	}
	return n, nil
}
