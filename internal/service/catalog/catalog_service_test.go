package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiwangfds/photosync/config"
	"github.com/weiwangfds/photosync/internal/errors"
)

func testStorageConfig(t *testing.T) config.StorageConfig {
	t.Helper()
	root := t.TempDir()
	return config.StorageConfig{
		MediaDir:       filepath.Join(root, "media"),
		IndexFile:      filepath.Join(root, "index.json"),
		QuarantineDir:  filepath.Join(root, "quarantine"),
		HashBufferSize: 65536,
	}
}

func newTestService(t *testing.T) (Service, config.StorageConfig) {
	t.Helper()
	cfg := testStorageConfig(t)
	require.NoError(t, os.MkdirAll(cfg.MediaDir, 0o755))
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return svc, cfg
}

func writeMedia(t *testing.T, cfg config.StorageConfig, relPath, content string) {
	t.Helper()
	abs := filepath.Join(cfg.MediaDir, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestIndexAssignsSequentialIDs(t *testing.T) {
	svc, cfg := newTestService(t)
	writeMedia(t, cfg, "20200101_120000.jpg", "first")
	writeMedia(t, cfg, "20200102_120000.jpg", "second")

	a, err := svc.Index("20200101_120000.jpg", false)
	require.NoError(t, err)
	b, err := svc.Index("20200102_120000.jpg", false)
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, SystemUser, a.Owner)
	assert.Equal(t, "image", a.Type)
	assert.NotEmpty(t, a.Hash)
	assert.Equal(t, int64(5), a.Size)
}

func TestIndexIsIdempotent(t *testing.T) {
	svc, cfg := newTestService(t)
	writeMedia(t, cfg, "photo.jpg", "content")

	first, err := svc.Index("photo.jpg", false)
	require.NoError(t, err)
	second, err := svc.Index("photo.jpg", false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Hash, second.Hash)
}

func TestIndexMissingFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Index("nope.jpg", false)
	assert.True(t, errors.IsCode(err, errors.ErrFileNotFound))
}

func TestUploadConflictOnKnownPath(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.Upload("pics/photo.jpg", "alice", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Owner)

	_, err = svc.Upload("pics/photo.jpg", "bob", strings.NewReader("other"))
	assert.True(t, errors.IsCode(err, errors.ErrFileAlreadyIndexed))
}

func TestIdentifiersAreNeverReused(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.Upload("a.jpg", "alice", strings.NewReader("a"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(first.ID))

	second, err := svc.Upload("b.jpg", "alice", strings.NewReader("b"))
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}

func TestDeleteQuarantinesContent(t *testing.T) {
	svc, cfg := newTestService(t)

	rec, err := svc.Upload("photo.jpg", "alice", strings.NewReader("precious"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(rec.ID))

	_, err = svc.Get(rec.ID)
	assert.True(t, errors.IsCode(err, errors.ErrFileNotFound))

	_, err = os.Stat(filepath.Join(cfg.MediaDir, "photo.jpg"))
	assert.True(t, os.IsNotExist(err))
	moved, err := os.ReadFile(filepath.Join(cfg.QuarantineDir, "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "precious", string(moved))
}

func TestDeleteQuarantineCollisionRenames(t *testing.T) {
	svc, cfg := newTestService(t)

	a, err := svc.Upload("one/photo.jpg", "alice", strings.NewReader("first"))
	require.NoError(t, err)
	b, err := svc.Upload("two/photo.jpg", "alice", strings.NewReader("second"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(a.ID))
	require.NoError(t, svc.Delete(b.ID))

	first, err := os.ReadFile(filepath.Join(cfg.QuarantineDir, "photo.jpg"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(cfg.QuarantineDir, "photo.jpg.1"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(first))
	assert.Equal(t, "second", string(second))
}

func TestPersistenceAcrossRestart(t *testing.T) {
	svc, cfg := newTestService(t)

	rec, err := svc.Upload("photo.jpg", "alice", strings.NewReader("data"))
	require.NoError(t, err)

	reopened, err := NewService(cfg)
	require.NoError(t, err)
	loaded, err := reopened.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Path, loaded.Path)
	assert.Equal(t, "alice", loaded.Owner)
}

func TestSetOwnerAppendsPreviousOwner(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.Upload("photo.jpg", "alice", strings.NewReader("data"))
	require.NoError(t, err)

	admin := Viewer{Username: "root", Admin: true}
	updated, err := svc.SetOwner(rec.ID, admin, "bob")
	require.NoError(t, err)

	assert.Equal(t, "bob", updated.Owner)
	assert.Contains(t, updated.Rights, "alice")
}

func TestSetOwnerDeniedWithoutAccess(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.Upload("photo.jpg", "alice", strings.NewReader("data"))
	require.NoError(t, err)

	_, err = svc.SetOwner(rec.ID, Viewer{Username: "mallory"}, "mallory")
	assert.True(t, errors.IsCode(err, errors.ErrForbidden))
}

func TestSetRightsRequiresOwnerOrAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.Upload("photo.jpg", "alice", strings.NewReader("data"))
	require.NoError(t, err)

	_, err = svc.SetRights(rec.ID, Viewer{Username: "bob"}, []string{"bob"})
	assert.True(t, errors.IsCode(err, errors.ErrForbidden))

	updated, err := svc.SetRights(rec.ID, Viewer{Username: "alice"}, []string{"bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, updated.Rights)
}

// uploadDated creates files whose capture dates ascend with creation
// order, so the descending-date view is deterministic regardless of
// which precedence step resolves the date.
func uploadDated(t *testing.T, svc Service, owner string, names ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		rec, err := svc.Upload(name, owner, strings.NewReader("data-"+name))
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestPageDescendingOrderAndWindows(t *testing.T) {
	svc, _ := newTestService(t)
	ids := uploadDated(t, svc, "alice",
		"20200101_120000.jpg",
		"20200102_120000.jpg",
		"20200103_120000.jpg",
		"20200104_120000.jpg",
	)

	viewer := Viewer{Username: "alice"}
	page, err := svc.Page(Cursor{}, 2, viewer, true)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	next, err := svc.Page(Cursor{ID: page[1].ID}, 2, viewer, true)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, ids[1], next[0].ID)
	assert.Equal(t, ids[0], next[1].ID)

	last, err := svc.Page(Cursor{ID: next[1].ID}, 2, viewer, true)
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestPageCursorSurvivesDeletion(t *testing.T) {
	svc, _ := newTestService(t)
	ids := uploadDated(t, svc, "alice",
		"20210101_120000.jpg",
		"20210102_120000.jpg",
		"20210103_120000.jpg",
	)

	viewer := Viewer{Username: "alice"}
	first, err := svc.Page(Cursor{}, 1, viewer, true)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, ids[2], first[0].ID)

	// The client's cursor record disappears between pages. Paging must
	// carry on with the remaining records instead of reporting the
	// catalog exhausted.
	require.NoError(t, svc.Delete(first[0].ID))

	rest, err := svc.Page(Cursor{ID: first[0].ID}, 10, viewer, true)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, ids[1], rest[0].ID)
	assert.Equal(t, ids[0], rest[1].ID)

	// A cursor whose record still exists resumes below it as before.
	tail, err := svc.Page(Cursor{ID: ids[1]}, 10, viewer, true)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, ids[0], tail[0].ID)
}

func TestPageFiltersByAccess(t *testing.T) {
	svc, _ := newTestService(t)

	mine, err := svc.Upload("mine.jpg", "alice", strings.NewReader("1"))
	require.NoError(t, err)
	shared, err := svc.Upload("shared.jpg", "bob", strings.NewReader("2"))
	require.NoError(t, err)
	_, err = svc.SetRights(shared.ID, Viewer{Username: "bob"}, []string{"alice"})
	require.NoError(t, err)
	public, err := svc.Upload("public.jpg", "carol", strings.NewReader("3"))
	require.NoError(t, err)
	_, err = svc.SetRights(public.ID, Viewer{Username: "carol"}, []string{PublicRight})
	require.NoError(t, err)
	private, err := svc.Upload("private.jpg", "dave", strings.NewReader("4"))
	require.NoError(t, err)

	page, err := svc.Page(Cursor{}, 100, Viewer{Username: "alice"}, true)
	require.NoError(t, err)

	seen := make(map[int64]bool)
	for _, rec := range page {
		seen[rec.ID] = true
	}
	assert.True(t, seen[mine.ID])
	assert.True(t, seen[shared.ID])
	assert.True(t, seen[public.ID])
	assert.False(t, seen[private.ID])

	// An admin sees everything unless the query excludes the admin
	// override.
	all, err := svc.Page(Cursor{}, 100, Viewer{Username: "root", Admin: true}, true)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	own, err := svc.Page(Cursor{}, 100, Viewer{Username: "root", Admin: true}, false)
	require.NoError(t, err)
	for _, rec := range own {
		assert.NotEqual(t, private.ID, rec.ID)
	}
}

func TestUpgradeReindexPreservesIdentifiers(t *testing.T) {
	svc, cfg := newTestService(t)

	rec, err := svc.Upload("keep.jpg", "alice", strings.NewReader("keep"))
	require.NoError(t, err)
	_, err = svc.SetRights(rec.ID, Viewer{Username: "alice"}, []string{"bob"})
	require.NoError(t, err)
	gone, err := svc.Upload("gone.jpg", "alice", strings.NewReader("gone"))
	require.NoError(t, err)

	// Simulate out-of-band churn: one file vanishes, one appears.
	require.NoError(t, os.Remove(filepath.Join(cfg.MediaDir, "gone.jpg")))
	writeMedia(t, cfg, "fresh.jpg", "fresh")

	report, err := svc.UpgradeReindex()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Kept)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, []string{"gone.jpg"}, report.DroppedEntries)

	kept, err := svc.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep.jpg", kept.Path)
	assert.Equal(t, "alice", kept.Owner)
	assert.Equal(t, []string{"bob"}, kept.Rights)

	_, err = svc.Get(gone.ID)
	assert.True(t, errors.IsCode(err, errors.ErrFileNotFound))

	// The fresh file's id must be beyond every id ever issued.
	page, err := svc.Page(Cursor{}, 100, Viewer{Username: "root", Admin: true}, true)
	require.NoError(t, err)
	for _, got := range page {
		if got.Path == "fresh.jpg" {
			assert.Greater(t, got.ID, gone.ID)
		}
	}
}

func TestReindexDiscoversAndPurges(t *testing.T) {
	svc, cfg := newTestService(t)
	writeMedia(t, cfg, "a.jpg", "a")
	writeMedia(t, cfg, "sub/b.mp4", "b")

	report, err := svc.Reindex(false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 0, report.Purged)

	// A second non-forced run finds nothing new.
	report, err = svc.Reindex(false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Indexed)

	require.NoError(t, os.Remove(filepath.Join(cfg.MediaDir, "a.jpg")))
	report, err = svc.Reindex(true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
}

func TestOpenStreamsContent(t *testing.T) {
	svc, _ := newTestService(t)

	uploaded := []byte("the original bytes")
	rec, err := svc.Upload("photo.jpg", "alice", bytes.NewReader(uploaded))
	require.NoError(t, err)

	got, r, err := svc.Open(rec.ID)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, rec.ID, got.ID)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, uploaded, buf.Bytes())
}
