package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("teacher-1/snap-1.json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, "teacher-1/snap-1.json", name)

	rc, err := store.Open(name)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `{"ok":true}`, string(body))

	require.NoError(t, store.Delete(name))
	require.NoError(t, store.Delete(name), "deleting twice is fine")
	_, err = store.Open(name)
	assert.Error(t, err)
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../outside.json", []byte("x"))
	assert.Error(t, err)
	_, err = store.Open("/etc/passwd")
	assert.Error(t, err)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("teacher-1/old.json", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("teacher-1/new.json", []byte("new"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "teacher-1", "old.json"), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("teacher-1", "old.json")}, deleted)
	_, err = os.Stat(filepath.Join(dir, "teacher-1", "new.json"))
	assert.NoError(t, err)
}
