// Package changes records the append-only feed of catalog mutations so
// sync clients can ask "what changed since X" instead of re-walking the
// whole catalog.
package changes

import (
	"time"

	"gorm.io/gorm"

	"github.com/weiwangfds/photosync/internal/database"
	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/logger"
)

// Recipients builds the audience of a change entry from a file's owner
// and access rights. The public sentinel passes through unchanged.
func Recipients(owner string, rights []string) []string {
	out := make([]string, 0, len(rights)+1)
	out = append(out, owner)
	out = append(out, rights...)
	return out
}

// Entry is one feed row returned to clients.
type Entry struct {
	ID      int64   `json:"id"`
	User    string  `json:"user"`
	Date    int64   `json:"date"`
	FileIDs []int64 `json:"file_ids"`
}

// Service is the change feed.
type Service interface {
	// Record appends one change entry made by actor touching fileIDs,
	// visible to the given recipients. Recipients are stored verbatim,
	// including the public sentinel.
	Record(actor string, fileIDs []int64, recipients []string) (int64, error)

	// FileIDsSince returns the distinct file ids of entries addressed to
	// user (or to the public) recorded strictly after the unix timestamp.
	FileIDsSince(user string, since int64) ([]int64, error)

	// FileIDsSinceID is the timestamp-free variant keyed on the last
	// change id the client has seen.
	FileIDsSinceID(user string, lastID int64) ([]int64, error)

	// EntriesSince returns the full entries addressed to user recorded
	// strictly after the unix timestamp, oldest first.
	EntriesSince(user string, since int64) ([]Entry, error)

	// LatestID returns the id of the newest entry, 0 when the feed is
	// empty.
	LatestID() (int64, error)
}

type changeService struct {
	db *gorm.DB

	// now is swappable for feed-ordering tests.
	now func() time.Time
}

// NewService wires the feed to the shared database handle.
func NewService(db *gorm.DB) Service {
	return &changeService{db: db, now: time.Now}
}

func (s *changeService) Record(actor string, fileIDs []int64, recipients []string) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, errors.New(errors.ErrInvalidParams, "change entry needs at least one file")
	}

	change := database.Change{User: actor, Date: s.now().Unix()}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&change).Error; err != nil {
			return err
		}
		files := make([]database.ChangeFile, 0, len(fileIDs))
		for _, id := range fileIDs {
			files = append(files, database.ChangeFile{ChangeID: change.ID, FileID: id})
		}
		if err := tx.Create(&files).Error; err != nil {
			return err
		}
		seen := make(map[string]bool, len(recipients))
		rows := make([]database.ChangeRecipient, 0, len(recipients))
		for _, user := range recipients {
			if user == "" || seen[user] {
				continue
			}
			seen[user] = true
			rows = append(rows, database.ChangeRecipient{ChangeID: change.ID, User: user})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, errors.Wrap(errors.ErrChangesRecordFailed, "failed to append change entry", err)
	}

	logger.Debugf("change %d recorded by %s (%d files)", change.ID, actor, len(fileIDs))
	return change.ID, nil
}

// visibleChanges scopes the query to entries addressed to user or to the
// public.
func (s *changeService) visibleChanges(user string) *gorm.DB {
	return s.db.Model(&database.Change{}).
		Joins("JOIN change_recipients ON change_recipients.change_id = changes.id").
		Where("change_recipients.user IN ?", []string{user, "public"})
}

func (s *changeService) FileIDsSince(user string, since int64) ([]int64, error) {
	return s.fileIDs(s.visibleChanges(user).Where("changes.date > ?", since))
}

func (s *changeService) FileIDsSinceID(user string, lastID int64) ([]int64, error) {
	return s.fileIDs(s.visibleChanges(user).Where("changes.id > ?", lastID))
}

func (s *changeService) fileIDs(scope *gorm.DB) ([]int64, error) {
	var ids []int64
	err := scope.
		Joins("JOIN change_files ON change_files.change_id = changes.id").
		Distinct("change_files.file_id").
		Order("change_files.file_id").
		Pluck("change_files.file_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrChangesQueryFailed, "failed to read change feed", err)
	}
	return ids, nil
}

func (s *changeService) EntriesSince(user string, since int64) ([]Entry, error) {
	var rows []database.Change
	err := s.visibleChanges(user).
		Where("changes.date > ?", since).
		Distinct("changes.*").
		Order("changes.id").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.ErrChangesQueryFailed, "failed to read change feed", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		var fileIDs []int64
		err := s.db.Model(&database.ChangeFile{}).
			Where("change_id = ?", row.ID).
			Order("file_id").
			Pluck("file_id", &fileIDs).Error
		if err != nil {
			return nil, errors.Wrap(errors.ErrChangesQueryFailed, "failed to read change files", err)
		}
		entries = append(entries, Entry{ID: row.ID, User: row.User, Date: row.Date, FileIDs: fileIDs})
	}
	return entries, nil
}

func (s *changeService) LatestID() (int64, error) {
	var row database.Change
	err := s.db.Order("id DESC").Limit(1).Find(&row).Error
	if err != nil {
		return 0, errors.Wrap(errors.ErrChangesQueryFailed, "failed to read change feed", err)
	}
	return row.ID, nil
}
