// Package thumbnail generates and caches square preview images for
// catalog entries. Images are decoded in process; videos go through
// ffmpeg for a representative frame. Generated thumbnails are always
// PNG regardless of the source format.
package thumbnail

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/weiwangfds/photosync/config"
	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/logger"
	"github.com/weiwangfds/photosync/internal/service/catalog"
)

// Service produces thumbnails for catalog entries.
type Service interface {
	// Get returns an open reader over the PNG thumbnail of the file at
	// the given edge length. Size 0 selects the configured default.
	// The thumbnail is generated on first request and served from the
	// cache directory afterwards.
	Get(fileID int64, size int) (io.ReadCloser, error)

	// GetMultiple bundles the thumbnails of several files into a zip
	// archive written to w, one `<id>.png` entry per file. Every
	// thumbnail is generated before the first archive byte is written;
	// any file that cannot be thumbnailed fails the whole bundle.
	GetMultiple(fileIDs []int64, size int, w io.Writer) error

	// Invalidate removes every cached thumbnail of the file.
	Invalidate(fileID int64) error
}

type thumbnailService struct {
	cfg        config.ThumbnailConfig
	cacheDir   string
	mediaDir   string
	catalogSvc catalog.Service

	// group collapses concurrent generation of the same thumbnail into
	// a single run.
	group singleflight.Group
}

// NewService wires the thumbnail cache over the catalog.
func NewService(cfg config.ThumbnailConfig, storageCfg config.StorageConfig, catalogSvc catalog.Service) Service {
	return &thumbnailService{
		cfg:        cfg,
		cacheDir:   storageCfg.ThumbnailDir,
		mediaDir:   storageCfg.MediaDir,
		catalogSvc: catalogSvc,
	}
}

// cachePath is the on-disk location of one (file, size) thumbnail.
func (s *thumbnailService) cachePath(fileID int64, size int) string {
	return filepath.Join(s.cacheDir, fmt.Sprintf("%d_%d.png", fileID, size))
}

func (s *thumbnailService) Get(fileID int64, size int) (io.ReadCloser, error) {
	if size <= 0 {
		size = s.cfg.DefaultSize
	}

	path := s.cachePath(fileID, size)
	if f, err := os.Open(path); err == nil {
		return f, nil
	}

	key := fmt.Sprintf("%d/%d", fileID, size)
	_, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Another goroutine may have finished while we queued.
		if _, err := os.Stat(path); err == nil {
			return nil, nil
		}
		return nil, s.generate(fileID, size, path)
	})
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrThumbnailFailed, "failed to open generated thumbnail", err)
	}
	return f, nil
}

// generate renders the thumbnail into path via a temp file so a crashed
// run never leaves a truncated cache entry behind.
func (s *thumbnailService) generate(fileID int64, size int, path string) error {
	rec, err := s.catalogSvc.Get(fileID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return errors.Wrap(errors.ErrThumbnailFailed, "failed to create thumbnail dir", err)
	}

	tmp, err := os.CreateTemp(s.cacheDir, ".tmp-*.png")
	if err != nil {
		return errors.Wrap(errors.ErrThumbnailFailed, "failed to create temp thumbnail", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	switch rec.Type {
	case catalog.TypeImage:
		err = s.renderImage(fileID, size, tmp)
	case catalog.TypeVideo:
		err = s.renderVideo(rec, size, tmp)
	default:
		err = errors.NewByCode(errors.ErrThumbnailUnsupported).
			WithDetails(fmt.Sprintf("no thumbnailer for type %q", rec.Type))
	}
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = errors.Wrap(errors.ErrThumbnailFailed, "failed to finalize thumbnail", closeErr)
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(errors.ErrThumbnailFailed, "failed to publish thumbnail", err)
	}
	logger.Debugf("thumbnail generated: file=%d size=%d", fileID, size)
	return nil
}

func (s *thumbnailService) GetMultiple(fileIDs []int64, size int, w io.Writer) error {
	// Ensure every artifact exists before the first archive byte goes
	// out, so a failure surfaces as an error instead of a truncated or
	// incomplete download.
	for _, id := range fileIDs {
		r, err := s.Get(id, size)
		if err != nil {
			return err
		}
		r.Close()
	}

	zw := zip.NewWriter(w)
	for _, id := range fileIDs {
		r, err := s.Get(id, size)
		if err != nil {
			return err
		}
		entry, err := zw.Create(fmt.Sprintf("%d.png", id))
		if err != nil {
			r.Close()
			return errors.Wrap(errors.ErrThumbnailFailed, "failed to create archive entry", err)
		}
		_, err = io.Copy(entry, r)
		r.Close()
		if err != nil {
			return errors.Wrap(errors.ErrThumbnailFailed, "failed to write archive entry", err)
		}
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(errors.ErrThumbnailFailed, "failed to finalize archive", err)
	}
	return nil
}

func (s *thumbnailService) Invalidate(fileID int64) error {
	matches, err := filepath.Glob(filepath.Join(s.cacheDir, fmt.Sprintf("%d_*.png", fileID)))
	if err != nil {
		return errors.Wrap(errors.ErrThumbnailFailed, "failed to scan thumbnail cache", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(errors.ErrThumbnailFailed, "failed to remove cached thumbnail", err)
		}
	}
	return nil
}
