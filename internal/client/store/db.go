// Package store opens the local SQLite database, applies embedded schema
// migrations and wires the client repositories on top of the connection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/gophsync/internal/client/migrations"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/attachments"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/deletes"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/entities"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Pragmas applied to every connection. WAL with synchronous=FULL makes a
// committed transaction durable before the call returns.
const pragmas = "_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(FULL)" +
	"&_pragma=foreign_keys(1)" +
	"&_pragma=busy_timeout(5000)"

// test seams
var (
	gooseUpContext          = goose.UpContext
	gooseGetDBVersion       = goose.GetDBVersionContext
	migrationsFS      fs.FS = migrations.Migrations
)

type Repositories struct {
	DB          *sql.DB
	Path        string
	Entities    *entities.SQLiteRepository
	Attachments *attachments.SQLiteRepository
	Deletes     *deletes.SQLiteRepository
	Metadata    *metadata.SQLiteRepository
}

// DSN builds the modernc sqlite data source name for a store file.
func DSN(path string) string {
	return "file:" + path + "?" + pragmas
}

func prepareGoose() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	return goose.SetDialect("sqlite3")
}

// RunMigrations applies all pending migrations. Running it twice is a no-op.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if err := prepareGoose(); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate local store: %w", err)
	}
	return nil
}

// InitDatabase opens (creating if needed) the store at path, backs the file
// up when a pending migration is destructive, and migrates the schema.
func InitDatabase(ctx context.Context, path string, logger logging.Logger) (*Repositories, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// single writer; queries are never nested while rows are open
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open local store: %w", err)
	}

	if err := prepareGoose(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	current, err := gooseGetDBVersion(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	backup, err := BackupIfDestructive(ctx, db, path, migrationsFS, current)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if backup != "" {
		logger.Warn(ctx, "destructive migration pending, store backed up", "backup", backup)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:          db,
		Path:        path,
		Entities:    entities.NewSQLiteRepository(db),
		Attachments: attachments.NewSQLiteRepository(db),
		Deletes:     deletes.NewSQLiteRepository(db),
		Metadata:    metadata.NewSQLiteRepository(db),
	}, nil
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}
