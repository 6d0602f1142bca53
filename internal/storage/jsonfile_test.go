package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveAndLoad(t *testing.T) {
	f := NewJSONFile(filepath.Join(t.TempDir(), "sub", "doc.json"))

	require.NoError(t, f.Save(&doc{Name: "a", Count: 3}))
	assert.True(t, f.Exists())

	var got doc
	require.NoError(t, f.Load(&got))
	assert.Equal(t, doc{Name: "a", Count: 3}, got)
}

func TestLoadMissingFile(t *testing.T) {
	f := NewJSONFile(filepath.Join(t.TempDir(), "missing.json"))

	var got doc
	err := f.Load(&got)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	f := NewJSONFile(filepath.Join(dir, "doc.json"))

	require.NoError(t, f.Save(&doc{Name: "first"}))
	require.NoError(t, f.Save(&doc{Name: "second"}))

	var got doc
	require.NoError(t, f.Load(&got))
	assert.Equal(t, "second", got.Name)

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBackupAndRestore(t *testing.T) {
	f := NewJSONFile(filepath.Join(t.TempDir(), "doc.json"))
	require.NoError(t, f.Save(&doc{Name: "original"}))

	backup, err := f.Backup()
	require.NoError(t, err)
	require.NotEmpty(t, backup)

	require.NoError(t, f.Save(&doc{Name: "clobbered"}))
	require.NoError(t, f.Restore(backup))

	var got doc
	require.NoError(t, f.Load(&got))
	assert.Equal(t, "original", got.Name)
}

func TestBackupOfMissingFile(t *testing.T) {
	f := NewJSONFile(filepath.Join(t.TempDir(), "doc.json"))

	backup, err := f.Backup()
	require.NoError(t, err)
	assert.Empty(t, backup)

	// Restoring an empty backup removes whatever was written since.
	require.NoError(t, f.Save(&doc{Name: "new"}))
	require.NoError(t, f.Restore(backup))
	assert.False(t, f.Exists())
}
