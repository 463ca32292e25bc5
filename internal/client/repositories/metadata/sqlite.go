package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns common.ErrNotFound when key was never set.
func (r *SQLiteRepository) Get(ctx context.Context, key string) (*Entry, error) {
	e := &Entry{Key: key}
	var ms int64
	err := r.db.QueryRowContext(ctx, `SELECT value, updated_at FROM metadata WHERE key = ?`, key).Scan(&e.Value, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("metadata[%s]: %w", key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	e.UpdatedAt = time.UnixMilli(ms).UTC()
	return e, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key, value string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// Delete removes keys; missing keys are ignored.
func (r *SQLiteRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	if _, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key IN (`+marks+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete metadata %v: %w", keys, err)
	}
	return nil
}

// Clear drops every entry and reports how many there were.
func (r *SQLiteRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM metadata`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clear metadata: %w", err)
	}
	return n, nil
}

// List returns all entries ordered by key.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value, updated_at FROM metadata ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	defer rows.Close()

	result := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.Key, &e.Value, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		e.UpdatedAt = time.UnixMilli(ms).UTC()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata rows: %w", err)
	}
	return result, nil
}

// GetTime reads a timestamp stored by SetTime. A missing key yields the zero
// time.
func (r *SQLiteRepository) GetTime(ctx context.Context, key string) (time.Time, error) {
	e, err := r.Get(ctx, key)
	if errors.Is(err, common.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, e.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to decode metadata[%s]: %w", key, err)
	}
	return t, nil
}

func (r *SQLiteRepository) SetTime(ctx context.Context, key string, t time.Time) error {
	return r.Set(ctx, key, t.UTC().Format(time.RFC3339Nano), t)
}
