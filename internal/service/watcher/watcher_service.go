// Package watcher keeps the catalog in step with the media directory.
// It combines an fsnotify watch over the directory tree with an
// optional cron-scheduled full reindex.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/weiwangfds/photosync/config"
	"github.com/weiwangfds/photosync/internal/logger"
	"github.com/weiwangfds/photosync/internal/service/catalog"
	"github.com/weiwangfds/photosync/internal/service/changes"
)

// Service watches the media directory for new content.
type Service interface {
	// Start begins watching. It returns once the watch is established;
	// event handling continues until Stop or ctx cancellation.
	Start(ctx context.Context) error

	// Stop shuts the watcher down and waits for in-flight work.
	Stop() error
}

type watcherService struct {
	cfg        config.WatcherConfig
	mediaDir   string
	catalogSvc catalog.Service
	changeSvc  changes.Service

	watcher *fsnotify.Watcher
	cron    *cron.Cron

	// settleDelay lets a file finish copying before indexing it.
	settleDelay time.Duration

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewService builds the watcher over the media directory.
func NewService(cfg config.WatcherConfig, mediaDir string, catalogSvc catalog.Service, changeSvc changes.Service) Service {
	return &watcherService{
		cfg:         cfg,
		mediaDir:    mediaDir,
		catalogSvc:  catalogSvc,
		changeSvc:   changeSvc,
		settleDelay: 2 * time.Second,
	}
}

func (s *watcherService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := addRecursive(watcher, s.mediaDir); err != nil {
		watcher.Close()
		return err
	}

	s.watcher = watcher
	s.stopChan = make(chan struct{})
	s.isRunning = true

	s.wg.Add(1)
	go s.eventLoop(ctx)

	if s.cfg.ReindexSchedule != "" {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc(s.cfg.ReindexSchedule, s.scheduledReindex); err != nil {
			s.stopLocked()
			return fmt.Errorf("invalid reindex schedule %q: %w", s.cfg.ReindexSchedule, err)
		}
		s.cron.Start()
		logger.Infof("scheduled reindex enabled: %s", s.cfg.ReindexSchedule)
	}

	logger.Infof("watching media directory: %s", s.mediaDir)
	return nil
}

// addRecursive registers dir and every subdirectory with the watcher.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (s *watcherService) eventLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("watch error: %v", err)
		}
	}
}

func (s *watcherService) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := addRecursive(s.watcher, event.Name); err != nil {
				logger.Warnf("failed to watch new directory %s: %v", event.Name, err)
			}
		}
		return
	}

	rel, err := filepath.Rel(s.mediaDir, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Writers get a moment to finish before we hash the file.
		select {
		case <-time.After(s.settleDelay):
		case <-s.stopChan:
			return
		}
		s.indexFile(rel)
	}()
}

func (s *watcherService) indexFile(relPath string) {
	rec, err := s.catalogSvc.Index(relPath, true)
	if err != nil {
		logger.Warnf("failed to index %s: %v", relPath, err)
		return
	}
	recipients := changes.Recipients(rec.Owner, rec.Rights)
	if _, err := s.changeSvc.Record(catalog.SystemUser, []int64{rec.ID}, recipients); err != nil {
		logger.Warnf("failed to record change for %s: %v", relPath, err)
	}
	logger.Infof("indexed %s as file %d", relPath, rec.ID)
}

func (s *watcherService) scheduledReindex() {
	report, err := s.catalogSvc.Reindex(false)
	if err != nil {
		logger.Warnf("scheduled reindex failed: %v", err)
		return
	}
	logger.Infof("scheduled reindex: %d indexed, %d failed", report.Indexed, report.Failed)
}

func (s *watcherService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *watcherService) stopLocked() error {
	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	close(s.stopChan)
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
	err := s.watcher.Close()
	s.wg.Wait()
	logger.Info("watcher stopped")
	return err
}
