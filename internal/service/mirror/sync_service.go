package mirror

import (
	"fmt"
	"mime"
	"path"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/weiwangfds/photosync/internal/database"
	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/logger"
	"github.com/weiwangfds/photosync/internal/service/catalog"
)

// SyncService pushes catalog originals to the active mirror target and
// keeps an audit trail in mirror_logs.
type SyncService interface {
	// Sync uploads one file to the active mirror.
	Sync(fileID int64) error

	// SyncBatch uploads several files, continuing past per-file
	// failures. It returns the number synced successfully.
	SyncBatch(fileIDs []int64) (int, error)

	// Retry re-runs a failed mirror attempt.
	Retry(logID uint) error

	// Logs returns a page of mirror attempts, newest first.
	Logs(page, pageSize int) ([]database.MirrorLog, int64, error)

	// Status returns the latest mirror attempt for a file.
	Status(fileID int64) (*database.MirrorLog, error)
}

type syncService struct {
	db         *gorm.DB
	catalogSvc catalog.Service
	configSvc  ConfigService

	// newProvider is swappable for tests.
	newProvider func(*database.MirrorConfig) (Provider, error)
}

// NewSyncService wires the sync worker to the catalog and the config
// store.
func NewSyncService(db *gorm.DB, catalogSvc catalog.Service, configSvc ConfigService) SyncService {
	return &syncService{
		db:          db,
		catalogSvc:  catalogSvc,
		configSvc:   configSvc,
		newProvider: NewProvider,
	}
}

// objectKey builds the mirror key for a catalog entry. The id prefix
// keeps renamed files addressable.
func objectKey(cfg *database.MirrorConfig, rec *catalog.FileRecord) string {
	key := strconv.FormatInt(rec.ID, 10) + "/" + path.Base(rec.Path)
	if cfg.PathPrefix != "" {
		key = path.Join(cfg.PathPrefix, key)
	}
	return key
}

func contentTypeFor(rec *catalog.FileRecord) string {
	if ct := mime.TypeByExtension("." + rec.Format); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *syncService) Sync(fileID int64) error {
	cfg, err := s.configSvc.Active()
	if err != nil {
		return err
	}
	return s.syncTo(cfg, fileID)
}

func (s *syncService) syncTo(cfg *database.MirrorConfig, fileID int64) error {
	rec, err := s.catalogSvc.Get(fileID)
	if err != nil {
		return err
	}

	key := objectKey(cfg, rec)
	entry := database.MirrorLog{
		FileID:         fileID,
		MirrorConfigID: cfg.ID,
		Status:         "pending",
		ObjectKey:      key,
		FileSize:       rec.Size,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return errors.Wrap(errors.ErrInternalServer, "failed to record mirror attempt", err)
	}

	start := time.Now()
	uploadErr := s.upload(cfg, key, rec)

	entry.Duration = time.Since(start).Milliseconds()
	if uploadErr != nil {
		entry.Status = "failed"
		entry.ErrorMsg = uploadErr.Error()
	} else {
		entry.Status = "success"
	}
	if err := s.db.Save(&entry).Error; err != nil {
		logger.Errorf("failed to update mirror log %d: %v", entry.ID, err)
	}

	if uploadErr != nil {
		return errors.Wrap(errors.ErrMirrorSyncFailed,
			fmt.Sprintf("failed to mirror file %d", fileID), uploadErr)
	}
	logger.Infof("file %d mirrored to %s as %s (%dms)", fileID, cfg.Name, key, entry.Duration)
	return nil
}

// upload opens the content under its own reader so a retry never
// reuses a drained stream.
func (s *syncService) upload(cfg *database.MirrorConfig, key string, rec *catalog.FileRecord) error {
	provider, err := s.newProvider(cfg)
	if err != nil {
		return err
	}

	_, r, err := s.catalogSvc.Open(rec.ID)
	if err != nil {
		return err
	}
	defer r.Close()

	return provider.Upload(key, r, contentTypeFor(rec))
}

func (s *syncService) SyncBatch(fileIDs []int64) (int, error) {
	cfg, err := s.configSvc.Active()
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, id := range fileIDs {
		if err := s.syncTo(cfg, id); err != nil {
			logger.Warnf("mirror batch: file %d failed: %v", id, err)
			continue
		}
		synced++
	}
	return synced, nil
}

func (s *syncService) Retry(logID uint) error {
	var entry database.MirrorLog
	err := s.db.First(&entry, logID).Error
	if err == gorm.ErrRecordNotFound {
		return errors.NewByCode(errors.ErrNotFound).WithDetails("mirror log not found")
	}
	if err != nil {
		return errors.Wrap(errors.ErrInternalServer, "failed to load mirror log", err)
	}
	if entry.Status != "failed" {
		return errors.NewByCode(errors.ErrInvalidParams).
			WithDetails("only failed attempts can be retried")
	}

	cfg, err := s.configSvc.Get(entry.MirrorConfigID)
	if err != nil {
		return err
	}
	return s.syncTo(cfg, entry.FileID)
}

func (s *syncService) Logs(page, pageSize int) ([]database.MirrorLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int64
	if err := s.db.Model(&database.MirrorLog{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(errors.ErrInternalServer, "failed to count mirror logs", err)
	}

	var logs []database.MirrorLog
	err := s.db.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrInternalServer, "failed to list mirror logs", err)
	}
	return logs, total, nil
}

func (s *syncService) Status(fileID int64) (*database.MirrorLog, error) {
	var entry database.MirrorLog
	err := s.db.Where("file_id = ?", fileID).Order("id DESC").First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.NewByCode(errors.ErrNotFound).WithDetails("file has no mirror attempts")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternalServer, "failed to load mirror status", err)
	}
	return &entry, nil
}
