package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")

	require.NoError(t, WriteAtomic(Default, path, []byte("v1"), 0o640))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	// Overwrite is atomic too.
	require.NoError(t, WriteAtomic(Default, path, []byte("v2"), 0o640))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	// No temp file left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "schema.json", entries[0].Name())
}

func TestWriteAtomicFailureLeavesOldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	require.NoError(t, WriteAtomic(Default, path, []byte("old"), 0o640))

	faulty := NewFaultyFS(nil)
	faulty.AddRule("schema.json.tmp", Fault{FailAfterBytes: 0})

	err := WriteAtomic(faulty, path, []byte("new"), 0o640)
	require.ErrorIs(t, err, ErrInjected)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFSWriteLimit(t *testing.T) {
	dir := t.TempDir()
	faulty := NewFaultyFS(nil)
	faulty.AddRule("limited", Fault{FailAfterBytes: 4})

	f, err := faulty.OpenFile(filepath.Join(dir, "limited.bin"), os.O_WRONLY|os.O_CREATE, 0o640)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("1234"))
	require.NoError(t, err)
	_, err = f.Write([]byte("5"))
	assert.ErrorIs(t, err, ErrInjected)
}

func TestFaultyFSSyncAndClose(t *testing.T) {
	dir := t.TempDir()
	faulty := NewFaultyFS(nil)
	faulty.AddRule("sync.bin", Fault{FailOnSync: true})
	faulty.AddRule("close.bin", Fault{FailOnClose: true, Err: os.ErrClosed})

	f, err := faulty.OpenFile(filepath.Join(dir, "sync.bin"), os.O_WRONLY|os.O_CREATE, 0o640)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), ErrInjected)
	require.NoError(t, f.Close())

	f, err = faulty.OpenFile(filepath.Join(dir, "close.bin"), os.O_WRONLY|os.O_CREATE, 0o640)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	assert.ErrorIs(t, f.Close(), os.ErrClosed)
}

func TestFaultyFSPassThrough(t *testing.T) {
	dir := t.TempDir()
	faulty := NewFaultyFS(nil)

	path := filepath.Join(dir, "plain.bin")
	f, err := faulty.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o640)
	require.NoError(t, err)
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	fi, err := faulty.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), fi.Size())
}

func TestSyncDir(t *testing.T) {
	assert.NoError(t, SyncDir(Default, t.TempDir()))
}
