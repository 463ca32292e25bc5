// Package deletes is the outbox of local deletions that still have to be
// replayed against the remote replica.
package deletes

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/dbx"
	"github.com/dmitrijs2005/gophsync/internal/models"
)

type Repository interface {
	Enqueue(ctx context.Context, kind models.RecordKind, id string, at time.Time) error
	List(ctx context.Context, limit int) ([]models.PendingDelete, error)
	Remove(ctx context.Context, kind models.RecordKind, id string) error
	Count(ctx context.Context) (int, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Enqueue records a deletion. Enqueuing the same record twice keeps the
// first timestamp.
func (r *SQLiteRepository) Enqueue(ctx context.Context, kind models.RecordKind, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_deletes (kind, id, enqueued_at) VALUES (?, ?, ?)
		ON CONFLICT(kind, id) DO NOTHING`, string(kind), id, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to enqueue delete of %s %s: %w", kind, id, err)
	}
	return nil
}

// List returns up to limit deletions, oldest first. limit <= 0 means all.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]models.PendingDelete, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, id, enqueued_at FROM pending_deletes
		ORDER BY enqueued_at, kind, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletes: %w", err)
	}
	defer rows.Close()

	result := []models.PendingDelete{}
	for rows.Next() {
		var (
			kind string
			d    models.PendingDelete
			ms   int64
		)
		if err := rows.Scan(&kind, &d.ID, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan pending delete: %w", err)
		}
		d.Kind = models.RecordKind(kind)
		d.EnqueuedAt = time.UnixMilli(ms).UTC()
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending deletes: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, kind models.RecordKind, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_deletes WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to remove pending delete of %s %s: %w", kind, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_deletes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending deletes: %w", err)
	}
	return n, nil
}
