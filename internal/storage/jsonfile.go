// Package storage implements the JSON record stores backing the catalog,
// the account store and the session store. Each store is a single file,
// fully loaded and fully rewritten on save; callers serialize their
// read-modify-write cycles with a per-resource mutex.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// JSONFile persists one value as a JSON document on disk.
type JSONFile struct {
	path string
}

// NewJSONFile returns a store over path. The file itself is created on
// the first Save.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the backing file path.
func (f *JSONFile) Path() string {
	return f.path
}

// Exists reports whether the backing file is present.
func (f *JSONFile) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Load decodes the file into v. A missing file returns os.ErrNotExist so
// callers can seed their defaults.
func (f *JSONFile) Load(v interface{}) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", f.path, err)
	}
	return nil
}

// Save encodes v and atomically replaces the file contents. The document
// is written to a sibling temp file first so a crash mid-write never
// leaves a truncated store behind.
func (f *JSONFile) Save(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Backup copies the current file aside and returns the backup path.
// A missing source returns ("", nil): there is nothing to restore.
func (f *JSONFile) Backup() (string, error) {
	src, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer src.Close()

	backupPath := f.path + ".bak"
	dst, err := os.Create(backupPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(backupPath)
		return "", err
	}
	return backupPath, nil
}

// Restore replaces the file with the backup taken by Backup. An empty
// backup path removes the file, matching a Backup of a missing source.
func (f *JSONFile) Restore(backupPath string) error {
	if backupPath == "" {
		err := os.Remove(f.path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.Rename(backupPath, f.path)
}

// RemoveBackup discards a backup after a successful operation.
func (f *JSONFile) RemoveBackup(backupPath string) {
	if backupPath != "" {
		os.Remove(backupPath)
	}
}
