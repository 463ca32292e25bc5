package filex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSubDir_CreatesNestedDirectory(t *testing.T) {
	root := t.TempDir()

	got, err := EnsureSubDir(root, filepath.Join("data", "uploads"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data", "uploads"), got)

	fi, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	again, err := EnsureSubDir(root, filepath.Join("data", "uploads"))
	require.NoError(t, err, "must be idempotent")
	require.Equal(t, got, again)
}

func TestEnsureSubDir_FailsWhenPathIsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "blocker"), []byte("x"), 0o600))

	_, err := EnsureSubDir(root, "blocker")
	require.Error(t, err)
}

func TestWriteFileSyncAndCommit(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "a.part")
	dst := filepath.Join(dir, "a")

	require.NoError(t, WriteFileSync(tmp, []byte("payload")))
	require.NoError(t, Commit(tmp, dst))

	_, err := os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "x")
	require.NoError(t, os.WriteFile(p, []byte("1"), 0o600))

	require.NoError(t, RemoveIfExists(p))
	require.NoError(t, RemoveIfExists(p), "second remove is not an error")
	require.NoError(t, RemoveIfExists(""))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")
	require.NoError(t, os.WriteFile(src, []byte("sqlite-bytes"), 0o600))

	dst := filepath.Join(dir, "src.db.bak")
	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "sqlite-bytes", string(data))

	require.Error(t, CopyFile(filepath.Join(dir, "missing"), dst))
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.part", "b.part", "keep.bin"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.part"), 0o700))

	n, err := Sweep(dir, func(name string) bool { return strings.HasSuffix(name, ".part") })
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "keep.bin", left[0].Name())

	n, err = Sweep(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = Sweep(filepath.Join(dir, "nope"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
