package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/server/config"
	"github.com/dmitrijs2005/gophsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsync/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepoManager struct {
	repomanager.RepositoryManager
	migrateErr error
	migrated   int
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	m.migrated++
	return m.migrateErr
}

type nopBlobs struct{ services.BlobStore }

func stubDeps(t *testing.T, rm *fakeRepoManager) sqlmock.Sqlmock {
	t.Helper()
	origOpen, origRM, origBlobs := openDB, newRepoManager, newBlobStore
	t.Cleanup(func() { openDB, newRepoManager, newBlobStore = origOpen, origRM, origBlobs })

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	openDB = func(ctx context.Context, dsn string) (*sql.DB, error) { return db, nil }
	newRepoManager = func() repomanager.RepositoryManager { return rm }
	newBlobStore = func(ctx context.Context, c *config.Config) (services.BlobStore, error) { return nopBlobs{}, nil }
	return mock
}

func testConfig() *config.Config {
	var c config.Config
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	return &c
}

func TestNewApp_RunsMigrationsAndServes(t *testing.T) {
	rm := &fakeRepoManager{}
	stubDeps(t, rm)

	app, err := NewApp(context.Background(), testConfig(), logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, rm.migrated)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestNewApp_Failures(t *testing.T) {
	t.Run("db", func(t *testing.T) {
		stubDeps(t, &fakeRepoManager{})
		openDB = func(ctx context.Context, dsn string) (*sql.DB, error) { return nil, errors.New("refused") }

		_, err := NewApp(context.Background(), testConfig(), logging.Nop())
		assert.EqualError(t, err, "db init error: refused")
	})

	t.Run("migrations", func(t *testing.T) {
		stubDeps(t, &fakeRepoManager{migrateErr: errors.New("bad sql")})

		_, err := NewApp(context.Background(), testConfig(), logging.Nop())
		assert.EqualError(t, err, "migration error: bad sql")
	})

	t.Run("blob store", func(t *testing.T) {
		stubDeps(t, &fakeRepoManager{})
		newBlobStore = func(ctx context.Context, c *config.Config) (services.BlobStore, error) {
			return nil, errors.New("no s3")
		}

		_, err := NewApp(context.Background(), testConfig(), logging.Nop())
		assert.EqualError(t, err, "blob store init error: no s3")
	})
}

func TestMigrate(t *testing.T) {
	rm := &fakeRepoManager{}
	stubDeps(t, rm)

	require.NoError(t, Migrate(context.Background(), testConfig(), logging.Nop()))
	assert.Equal(t, 1, rm.migrated)

	rm.migrateErr = errors.New("locked")
	assert.EqualError(t, Migrate(context.Background(), testConfig(), logging.Nop()), "migration error: locked")
}
