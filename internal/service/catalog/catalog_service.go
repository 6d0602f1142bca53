package catalog

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weiwangfds/photosync/config"
	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/logger"
	"github.com/weiwangfds/photosync/internal/service/access"
	"github.com/weiwangfds/photosync/internal/storage"
)

// Service is the file catalog.
type Service interface {
	// Index computes or returns the record for a path relative to the
	// media store. A known, still-existing path returns the cached
	// record unless force is set. A missing file produces no record.
	Index(relPath string, force bool) (*FileRecord, error)

	// Reindex walks the media store and indexes every undiscovered
	// path. With force it also recomputes known records and purges
	// records whose underlying path no longer exists.
	Reindex(force bool) (*ReindexReport, error)

	// UpgradeReindex rebuilds the catalog wholesale while preserving
	// identifiers by path match. The persisted catalog is backed up
	// first and restored on any failure.
	UpgradeReindex() (*UpgradeReport, error)

	// Page returns up to count records after the cursor in descending
	// capture-date order, filtered to records the viewer may access.
	Page(cursor Cursor, count int, viewer Viewer, includeAdmin bool) ([]*FileRecord, error)

	// Get returns the record for id.
	Get(id int64) (*FileRecord, error)

	// Open returns the record and a reader over its content.
	Open(id int64) (*FileRecord, io.ReadCloser, error)

	// Upload stores content under relPath owned by owner and indexes
	// it. An already-indexed path is a conflict.
	Upload(relPath, owner string, r io.Reader) (*FileRecord, error)

	// Delete relocates the content to the quarantine area and removes
	// the record.
	Delete(id int64) error

	// SetOwner transfers ownership. The caller must already have
	// access; the previous owner is appended to the rights set.
	SetOwner(id int64, caller Viewer, newOwner string) (*FileRecord, error)

	// SetRights replaces the rights set of a record the caller owns or
	// administers.
	SetRights(id int64, caller Viewer, rights []string) (*FileRecord, error)
}

type catalogService struct {
	cfg   config.StorageConfig
	store *storage.JSONFile

	// mu serializes every read-modify-write cycle over the records map
	// and the persisted file (single writer per resource).
	mu      sync.Mutex
	lastID  int64
	records map[int64]*FileRecord
	paths   map[string]int64 // known paths, mirrors records
	order   []int64          // ids sorted by capture date descending

	// reindexing makes full and upgrade reindex single-flight.
	reindexing atomic.Bool
}

// NewService loads the persisted catalog and returns the service.
func NewService(cfg config.StorageConfig) (Service, error) {
	s := &catalogService{
		cfg:     cfg,
		store:   storage.NewJSONFile(cfg.IndexFile),
		records: make(map[int64]*FileRecord),
		paths:   make(map[string]int64),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	logger.Infof("catalog loaded: %d records, last id %d", len(s.records), s.lastID)
	return s, nil
}

func (s *catalogService) load() error {
	var doc persistedCatalog
	if err := s.store.Load(&doc); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for key, rec := range doc.Records {
		if rec == nil {
			continue
		}
		if rec.ID == 0 {
			if id, err := strconv.ParseInt(key, 10, 64); err == nil {
				rec.ID = id
			}
		}
		s.records[rec.ID] = rec
		s.paths[rec.Path] = rec.ID
		if rec.ID > s.lastID {
			s.lastID = rec.ID
		}
	}
	if doc.LastID > s.lastID {
		s.lastID = doc.LastID
	}
	s.rebuildOrder()
	return nil
}

// persist writes the catalog under the held lock.
func (s *catalogService) persist() error {
	doc := persistedCatalog{
		LastID:  s.lastID,
		Records: make(map[string]*FileRecord, len(s.records)),
	}
	for id, rec := range s.records {
		doc.Records[strconv.FormatInt(id, 10)] = rec
	}
	if err := s.store.Save(&doc); err != nil {
		return errors.Wrap(errors.ErrFileWriteFailed, "failed to persist catalog", err)
	}
	return nil
}

// rebuildOrder refreshes the descending-date view. Ties break on id
// descending; records without a capture date sort last so pagination
// stays total.
func (s *catalogService) rebuildOrder() {
	s.order = s.order[:0]
	for id := range s.records {
		s.order = append(s.order, id)
	}
	sort.Slice(s.order, func(i, j int) bool {
		a, b := s.records[s.order[i]], s.records[s.order[j]]
		aZero, bZero := a.Date.IsZero(), b.Date.IsZero()
		if aZero != bZero {
			return bZero
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID > b.ID
	})
}

func (s *catalogService) absPath(relPath string) string {
	return filepath.Join(s.cfg.MediaDir, filepath.FromSlash(relPath))
}

// hashFile streams the content through the keyed digest in chunks of
// the configured buffer size.
func (s *catalogService) hashFile(absPath string) (string, int64, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	var h hash.Hash
	if s.cfg.HashKey != "" {
		h = hmac.New(sha256.New, []byte(s.cfg.HashKey))
	} else {
		h = sha256.New()
	}

	buf := make([]byte, s.cfg.HashBufferSize)
	var size int64
	for {
		n, err := f.Read(buf)
		if n > 0 {
			size += int64(n)
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

func (s *catalogService) Index(relPath string, force bool) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.indexLocked(relPath, force, 0)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// indexLocked indexes one path under the held lock. presetID, when non
// zero, pins the identifier (reconciliation during upgrade reindex).
// It does not persist; callers batch that.
func (s *catalogService) indexLocked(relPath string, force bool, presetID int64) (*FileRecord, error) {
	relPath = filepath.ToSlash(relPath)
	absPath := s.absPath(relPath)

	if id, known := s.paths[relPath]; known && !force {
		if _, err := os.Stat(absPath); err == nil {
			return s.records[id], nil
		}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, errors.WrapCode(errors.ErrFileNotFound, err)
	}
	if info.IsDir() {
		return nil, errors.NewByCode(errors.ErrFileNotFound).WithDetails("path is a directory")
	}

	mt := classify(relPath)
	sum, size, err := s.hashFile(absPath)
	if err != nil {
		return nil, errors.WrapCode(errors.ErrFileReadFailed, err)
	}
	date := resolveCaptureDate(absPath, mt, info)

	if id, known := s.paths[relPath]; known {
		// Recompute in place, preserving identity and sharing state.
		rec := s.records[id]
		rec.Hash = sum
		rec.Size = size
		rec.Date = date
		rec.Type = mt.Type
		rec.Format = mt.Format
		s.rebuildOrder()
		return rec, nil
	}

	id := presetID
	if id == 0 {
		s.lastID++
		id = s.lastID
	} else if id > s.lastID {
		s.lastID = id
	}

	rec := &FileRecord{
		ID:     id,
		Path:   relPath,
		Hash:   sum,
		Size:   size,
		Date:   date,
		Type:   mt.Type,
		Format: mt.Format,
		Owner:  SystemUser,
		Rights: []string{},
	}
	s.records[id] = rec
	s.paths[relPath] = id
	s.rebuildOrder()
	return rec, nil
}

// walkMedia lists every file below the media store as slash-relative
// paths, skipping the catalog's own artifacts.
func (s *catalogService) walkMedia() ([]string, error) {
	var found []string
	err := filepath.WalkDir(s.cfg.MediaDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.cfg.MediaDir, path)
		if err != nil {
			return err
		}
		found = append(found, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrReindexFailed, "media store walk failed", err)
	}
	return found, nil
}

func (s *catalogService) Reindex(force bool) (*ReindexReport, error) {
	if !s.reindexing.CompareAndSwap(false, true) {
		return nil, errors.NewByCode(errors.ErrReindexInProgress)
	}
	defer s.reindexing.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.walkMedia()
	if err != nil {
		return nil, err
	}

	report := &ReindexReport{}
	onDisk := make(map[string]bool, len(found))
	for _, rel := range found {
		onDisk[rel] = true
		_, known := s.paths[rel]
		if known && !force {
			continue
		}
		if _, err := s.indexLocked(rel, force, 0); err != nil {
			logger.Warnf("reindex: failed to index %s: %v", rel, err)
			report.Failed++
			continue
		}
		report.Indexed++
	}

	if force {
		for rel, id := range s.paths {
			if !onDisk[rel] {
				delete(s.records, id)
				delete(s.paths, rel)
				report.Purged++
			}
		}
		s.rebuildOrder()
	}

	if err := s.persist(); err != nil {
		return nil, err
	}
	logger.Infof("reindex done: %d indexed, %d purged, %d failed", report.Indexed, report.Purged, report.Failed)
	return report, nil
}

func (s *catalogService) UpgradeReindex() (*UpgradeReport, error) {
	if !s.reindexing.CompareAndSwap(false, true) {
		return nil, errors.NewByCode(errors.ErrReindexInProgress)
	}
	defer s.reindexing.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	backup, err := s.store.Backup()
	if err != nil {
		return nil, errors.Wrap(errors.ErrReindexFailed, "failed to back up catalog", err)
	}

	report, err := s.upgradeLocked()
	if err != nil {
		// Restore both the persisted file and whatever in-memory state
		// the failed rebuild left behind.
		if restoreErr := s.store.Restore(backup); restoreErr != nil {
			logger.Errorf("catalog backup restore failed: %v", restoreErr)
		}
		s.records = make(map[int64]*FileRecord)
		s.paths = make(map[string]int64)
		s.lastID = 0
		s.order = s.order[:0]
		if loadErr := s.load(); loadErr != nil {
			logger.Errorf("catalog reload after restore failed: %v", loadErr)
		}
		return nil, errors.Wrap(errors.ErrReindexFailed, "upgrade reindex failed", err)
	}

	s.store.RemoveBackup(backup)
	logger.Infof("upgrade reindex done: %d kept, %d added, %d fields merged, %d dropped",
		report.Kept, report.Added, report.FieldsMerged, len(report.DroppedEntries))
	return report, nil
}

func (s *catalogService) upgradeLocked() (*UpgradeReport, error) {
	old := s.records
	oldPathToID := make(map[string]int64, len(old))
	for id, rec := range old {
		oldPathToID[rec.Path] = id
	}
	oldLastID := s.lastID

	found, err := s.walkMedia()
	if err != nil {
		return nil, err
	}

	// Rebuild from scratch. Ids are pinned by path match first so fresh
	// allocations can never collide with a preserved identifier.
	s.records = make(map[int64]*FileRecord, len(found))
	s.paths = make(map[string]int64, len(found))
	s.lastID = oldLastID

	report := &UpgradeReport{}
	var fresh []string
	for _, rel := range found {
		oldID, existed := oldPathToID[rel]
		if !existed {
			fresh = append(fresh, rel)
			continue
		}
		rec, err := s.indexLocked(rel, true, oldID)
		if err != nil {
			return nil, fmt.Errorf("reindexing %s: %w", rel, err)
		}
		report.Kept++
		report.FieldsMerged += mergeDroppedFields(rec, old[oldID])
	}
	for _, rel := range fresh {
		if _, err := s.indexLocked(rel, true, 0); err != nil {
			return nil, fmt.Errorf("indexing %s: %w", rel, err)
		}
		report.Added++
	}

	// Old records whose path no longer resolves are reported, never
	// silently lost.
	for path := range oldPathToID {
		if _, ok := s.paths[path]; !ok {
			report.DroppedEntries = append(report.DroppedEntries, path)
		}
	}
	sort.Strings(report.DroppedEntries)

	if err := s.persist(); err != nil {
		return nil, err
	}
	return report, nil
}

// mergeDroppedFields carries fields from the old record that the fresh
// extraction lost, returning how many were merged.
func mergeDroppedFields(rec, old *FileRecord) int {
	merged := 0
	if rec.Owner == SystemUser && old.Owner != "" && old.Owner != SystemUser {
		rec.Owner = old.Owner
		merged++
	}
	if len(rec.Rights) == 0 && len(old.Rights) > 0 {
		rec.Rights = append([]string(nil), old.Rights...)
		merged++
	}
	if rec.Date.IsZero() && !old.Date.IsZero() {
		rec.Date = old.Date
		merged++
	}
	if rec.Metadata == nil && old.Metadata != nil {
		rec.Metadata = old.Metadata
		merged++
	}
	if rec.Tags == nil && old.Tags != nil {
		rec.Tags = old.Tags
		merged++
	}
	return merged
}

func (s *catalogService) Page(cursor Cursor, count int, viewer Viewer, includeAdmin bool) ([]*FileRecord, error) {
	if count <= 0 {
		return nil, errors.NewByCode(errors.ErrInvalidParams).WithDetails("count must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Resolve the cursor to an exclusive (date, id) start position. The
	// cursor record may have been deleted since the client's previous
	// page; in that case fall back to the timestamp, or to the top of
	// the view, rather than reporting a false end of the catalog.
	var afterDate time.Time
	var afterID int64
	haveKey := false
	if cursor.ID != 0 {
		if rec, ok := s.records[cursor.ID]; ok {
			afterDate, afterID, haveKey = rec.Date, rec.ID, true
		}
	}
	sinceTS := cursor.Timestamp

	page := make([]*FileRecord, 0, count)
	for _, id := range s.order {
		rec := s.records[id]
		if haveKey {
			if !sortsAfter(rec, afterDate, afterID) {
				continue
			}
		} else if !sinceTS.IsZero() && !rec.Date.Before(sinceTS) {
			continue
		}
		if !access.Allowed(rec.Owner, rec.Rights, viewer.Username, viewer.Admin, includeAdmin) {
			continue
		}
		page = append(page, rec.Clone())
		if len(page) == count {
			break
		}
	}
	return page, nil
}

// sortsAfter reports whether rec occupies a position strictly after the
// (date, id) key in the descending-date view. The comparison mirrors
// rebuildOrder: dated before undated, later dates first, id descending
// on ties.
func sortsAfter(rec *FileRecord, date time.Time, id int64) bool {
	recZero, keyZero := rec.Date.IsZero(), date.IsZero()
	if recZero != keyZero {
		return recZero
	}
	if !rec.Date.Equal(date) {
		return rec.Date.Before(date)
	}
	return rec.ID < id
}

func (s *catalogService) Get(id int64) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, errors.NewByCode(errors.ErrFileNotFound)
	}
	return rec.Clone(), nil
}

func (s *catalogService) Open(id int64) (*FileRecord, io.ReadCloser, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.absPath(rec.Path))
	if err != nil {
		return nil, nil, errors.WrapCode(errors.ErrFileNotFound, err)
	}
	return rec, f, nil
}

func (s *catalogService) Upload(relPath, owner string, r io.Reader) (*FileRecord, error) {
	relPath = filepath.ToSlash(relPath)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.paths[relPath]; known {
		return nil, errors.NewByCode(errors.ErrFileAlreadyIndexed).WithDetails(relPath)
	}

	absPath := s.absPath(relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, errors.WrapCode(errors.ErrFileWriteFailed, err)
	}
	dst, err := os.Create(absPath)
	if err != nil {
		return nil, errors.WrapCode(errors.ErrFileWriteFailed, err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(absPath)
		return nil, errors.WrapCode(errors.ErrFileWriteFailed, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(absPath)
		return nil, errors.WrapCode(errors.ErrFileWriteFailed, err)
	}

	rec, err := s.indexLocked(relPath, false, 0)
	if err != nil {
		os.Remove(absPath)
		return nil, err
	}
	rec.Owner = owner
	if err := s.persist(); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *catalogService) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return errors.NewByCode(errors.ErrFileNotFound)
	}

	if err := s.quarantine(rec); err != nil {
		return err
	}

	delete(s.records, id)
	delete(s.paths, rec.Path)
	s.rebuildOrder()
	return s.persist()
}

// quarantine moves the content aside instead of unlinking it, renaming
// on collision so nothing is ever overwritten.
func (s *catalogService) quarantine(rec *FileRecord) error {
	if err := os.MkdirAll(s.cfg.QuarantineDir, 0o755); err != nil {
		return errors.WrapCode(errors.ErrFileWriteFailed, err)
	}

	base := filepath.Base(rec.Path)
	target := filepath.Join(s.cfg.QuarantineDir, base)
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = filepath.Join(s.cfg.QuarantineDir, fmt.Sprintf("%s.%d", base, i))
	}

	if err := os.Rename(s.absPath(rec.Path), target); err != nil {
		if os.IsNotExist(err) {
			// Content already gone; dropping the record is still right.
			logger.Warnf("delete: content for %s missing on disk", rec.Path)
			return nil
		}
		return errors.WrapCode(errors.ErrFileWriteFailed, err)
	}
	logger.Infof("quarantined file %d: %s -> %s", rec.ID, rec.Path, target)
	return nil
}

func (s *catalogService) SetOwner(id int64, caller Viewer, newOwner string) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, errors.NewByCode(errors.ErrFileNotFound)
	}
	if !access.Allowed(rec.Owner, rec.Rights, caller.Username, caller.Admin, true) {
		return nil, errors.NewByCode(errors.ErrForbidden)
	}

	previous := rec.Owner
	rec.Owner = newOwner
	// The previous owner keeps access after the transfer.
	if previous != newOwner && !rec.HasRight(previous) {
		rec.Rights = append(rec.Rights, previous)
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *catalogService) SetRights(id int64, caller Viewer, rights []string) (*FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, errors.NewByCode(errors.ErrFileNotFound)
	}
	if rec.Owner != caller.Username && !caller.Admin {
		return nil, errors.NewByCode(errors.ErrForbidden)
	}

	rec.Rights = append([]string(nil), rights...)
	if err := s.persist(); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}
