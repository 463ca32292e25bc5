package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/migrations"
	"github.com/dmitrijs2005/gophsync/internal/filex"
	"github.com/pressly/goose/v3"
)

var now = time.Now

// PendingDestructive returns the versions above current whose migration file
// carries the destructive marker, in ascending order.
func PendingDestructive(fsys fs.FS, current int64) ([]int64, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}

	var out []int64
	for _, name := range names {
		v, err := goose.NumericComponent(path.Base(name))
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
		if v <= current {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if bytes.Contains(data, []byte(migrations.DestructiveMarker)) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// BackupIfDestructive copies the store file to "<path>.bak-<version>-<unix>"
// when a pending migration is destructive. A brand new store (current == 0)
// holds no data and is never copied. It returns the backup path or "".
func BackupIfDestructive(ctx context.Context, db *sql.DB, dbPath string, fsys fs.FS, current int64) (string, error) {
	if current == 0 {
		return "", nil
	}

	versions, err := PendingDestructive(fsys, current)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", nil
	}

	if _, err := os.Stat(dbPath); err != nil {
		return "", fmt.Errorf("stat local store: %w", err)
	}

	// fold the WAL into the main file so the copy is complete
	if _, err := db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return "", fmt.Errorf("checkpoint local store: %w", err)
	}

	dst := fmt.Sprintf("%s.bak-%d-%d", dbPath, versions[0], now().Unix())
	if err := filex.CopyFile(dbPath, dst); err != nil {
		return "", fmt.Errorf("backup local store: %w", err)
	}
	return dst, nil
}
