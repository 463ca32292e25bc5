package cli

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/config"
	"github.com/dmitrijs2005/gophsync/internal/client/remote"
	"github.com/dmitrijs2005/gophsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	orig := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = orig })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.RemoteMode = remote.ModeMemory
	cfg.ServerAddr = "127.0.0.1:1"
	cfg.ProbeTimeout = 100 * time.Millisecond

	a, err := NewApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		a.engine.Wait()
		_ = a.Close()
	})

	out := &bytes.Buffer{}
	a.out = out
	return a, out
}

func (a *App) feed(lines ...string) {
	a.reader = bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func TestNewApp_LaysOutDataDir(t *testing.T) {
	a, _ := newTestApp(t)

	assert.FileExists(t, filepath.Join(a.config.DataDir, "gophsync.db"))
	assert.DirExists(t, filepath.Join(a.config.DataDir, "uploads"))
	assert.DirExists(t, filepath.Join(a.config.DataDir, "tmp"))
}

func TestNewApp_UnknownRemoteMode(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = t.TempDir()
	cfg.RemoteMode = "carrier-pigeon"

	_, err := NewApp(context.Background(), cfg, logging.Nop())
	require.Error(t, err)
}

func TestApp_NoteLifecycle(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	a.feed("Shopping", "milk", "eggs", "", "food, weekly", "high", "y", "store=corner", "")
	require.NoError(t, a.New(ctx))
	require.Contains(t, out.String(), "Created ")

	list, err := a.svc.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	e := list[0]
	assert.Equal(t, "Shopping", e.Title)
	assert.Equal(t, "milk\neggs", e.Body)
	assert.Equal(t, []string{"food", "weekly"}, e.Tags)
	assert.Equal(t, models.PriorityHigh, e.SyncPriority)
	assert.True(t, e.Pinned)
	assert.Equal(t, map[string]any{"store": "corner"}, e.Attributes)

	out.Reset()
	require.NoError(t, a.List(ctx))
	assert.Contains(t, out.String(), "[pinned] Shopping")
	assert.Contains(t, out.String(), "*")

	out.Reset()
	a.feed("", "", "", "", "n", "")
	require.NoError(t, a.Edit(ctx, e.ID))
	assert.Contains(t, out.String(), "revision 2")
	got, err := a.svc.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping", got.Title)
	assert.False(t, got.Pinned)

	out.Reset()
	require.NoError(t, a.Search(ctx, "MILK"))
	assert.Contains(t, out.String(), e.ID)

	out.Reset()
	require.NoError(t, a.Show(ctx, e.ID))
	assert.Contains(t, out.String(), "store = corner")
	assert.Contains(t, out.String(), "tags: food, weekly")

	out.Reset()
	require.NoError(t, a.Delete(ctx, e.ID))
	assert.Contains(t, out.String(), "Deleted "+e.ID)

	out.Reset()
	require.Error(t, a.Show(ctx, e.ID))
	assert.Contains(t, out.String(), "show failed")
}

func TestApp_NewRejectsEmptyTitle(t *testing.T) {
	a, out := newTestApp(t)

	a.feed("", "", "", "", "", "")
	require.Error(t, a.New(context.Background()))
	assert.Contains(t, out.String(), "new: title is required")
}

func TestApp_UploadSmallFileAndList(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	require.NoError(t, a.Upload(ctx, path, ""))
	assert.Contains(t, out.String(), "Stored hello.txt as ")

	out.Reset()
	require.NoError(t, a.Files(ctx, ""))
	assert.Contains(t, out.String(), "hello.txt")

	atts, err := a.svc.ListAttachments(ctx, "")
	require.NoError(t, err)
	require.Len(t, atts, 1)

	out.Reset()
	require.NoError(t, a.DeleteFile(ctx, atts[0].ID))
	require.NoError(t, a.Files(ctx, ""))
	assert.Contains(t, out.String(), "No files.")
}

func TestApp_StatusAndSync(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.Status(ctx))
	assert.Contains(t, out.String(), "OFFLINE")
	assert.Regexp(t, `network reachable\s+false`, out.String())

	out.Reset()
	require.NoError(t, a.Sync(ctx))
	assert.Contains(t, out.String(), "pending changes")

	assert.Contains(t, a.prompt(), "0 pending")
}

func TestApp_CancelUnknownSession(t *testing.T) {
	a, out := newTestApp(t)
	require.Error(t, a.Cancel(context.Background(), "nope"))
	assert.Contains(t, out.String(), "cancel failed")
}

func TestApp_MetaShowsAndClearsBookkeeping(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.Meta(ctx, false))
	assert.Contains(t, out.String(), "No sync bookkeeping.")

	at := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, a.repos.Metadata.SetTime(ctx, metadata.KeyLastSyncAt, at))
	require.NoError(t, a.engine.Restore(ctx))

	out.Reset()
	require.NoError(t, a.Meta(ctx, false))
	assert.Contains(t, out.String(), metadata.KeyLastSyncAt)
	assert.Contains(t, out.String(), "2025-04-02T08:00:00Z")

	out.Reset()
	require.NoError(t, a.Meta(ctx, true))
	assert.Contains(t, out.String(), "Cleared 1 entries.")
	assert.True(t, a.engine.Snapshot().LastSyncAt.IsZero())
}

func TestNewApp_RestoresLastSyncAfterRestart(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	at := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, a.repos.Metadata.SetTime(ctx, metadata.KeyLastSyncAt, at))
	a.engine.Wait()
	require.NoError(t, a.Close())

	b, err := NewApp(ctx, a.config, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.True(t, b.engine.Snapshot().LastSyncAt.Equal(at))

	out := &bytes.Buffer{}
	b.out = out
	require.NoError(t, b.Status(ctx))
	assert.Contains(t, out.String(), "last sync")
}
