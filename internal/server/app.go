// Package server wires the replica server: PostgreSQL storage, S3 blob
// storage, and the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/server/config"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsync/internal/server/services"

	gs "github.com/dmitrijs2005/gophsync/internal/server/grpc"
)

// Seams for tests.
var (
	openDB         = repomanager.OpenPostgres
	newRepoManager = repomanager.NewPostgresRepositoryManager
	newBlobStore   = func(ctx context.Context, c *config.Config) (services.BlobStore, error) {
		return services.NewS3BlobStore(ctx, c)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *gs.GRPCServer
}

// Migrate applies the embedded schema migrations and returns.
func Migrate(ctx context.Context, c *config.Config, logger logging.Logger) error {
	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	if err := newRepoManager().RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	logger.Info(ctx, "Migrations applied")
	return nil
}

// NewApp opens the database, migrates it and builds the gRPC server.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	rs := services.NewReplicaService(db, rm, blobs, logger)
	as := services.NewAuthService(c)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		server: gs.NewGRPCServer(c.EndpointAddrGRPC, logger, rs, as, c.SecretKey),
	}, nil
}

// Run serves until ctx is cancelled and closes the database afterwards.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")
	defer app.db.Close()

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
