// photosync is a personal media sync server: a file catalog with stable
// identifiers, an append-only change feed, session-based access control
// and a thumbnail cache, backed by the local filesystem with optional
// cloud mirroring.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weiwangfds/photosync/config"
	"github.com/weiwangfds/photosync/internal/database"
	"github.com/weiwangfds/photosync/internal/handler"
	"github.com/weiwangfds/photosync/internal/logger"
	"github.com/weiwangfds/photosync/internal/router"
	"github.com/weiwangfds/photosync/internal/service/account"
	"github.com/weiwangfds/photosync/internal/service/catalog"
	"github.com/weiwangfds/photosync/internal/service/changes"
	"github.com/weiwangfds/photosync/internal/service/mirror"
	"github.com/weiwangfds/photosync/internal/service/session"
	"github.com/weiwangfds/photosync/internal/service/thumbnail"
	"github.com/weiwangfds/photosync/internal/service/watcher"
)

func main() {
	configPath := flag.String("c", "", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.MediaDir, 0o755); err != nil {
		logger.Fatalf("failed to create media directory: %v", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}

	catalogSvc, err := catalog.NewService(cfg.Storage)
	if err != nil {
		logger.Fatalf("failed to load catalog: %v", err)
	}
	accountSvc, err := account.NewService(cfg.Auth, cfg.Storage.AccountsFile)
	if err != nil {
		logger.Fatalf("failed to load accounts: %v", err)
	}
	sessionSvc, err := session.NewService(cfg.Auth, cfg.Storage.SessionsFile)
	if err != nil {
		logger.Fatalf("failed to load sessions: %v", err)
	}
	changeSvc := changes.NewService(db)
	thumbSvc := thumbnail.NewService(cfg.Thumbnail, cfg.Storage, catalogSvc)
	mirrorConfigSvc := mirror.NewConfigService(db)
	mirrorSyncSvc := mirror.NewSyncService(db, catalogSvc, mirrorConfigSvc)

	engine := router.Setup(router.Handlers{
		Account:   handler.NewAccountHandler(accountSvc, sessionSvc),
		Admin:     handler.NewAdminHandler(sessionSvc),
		File:      handler.NewFileHandler(catalogSvc, changeSvc),
		Changes:   handler.NewChangesHandler(changeSvc),
		Thumbnail: handler.NewThumbnailHandler(thumbSvc, catalogSvc),
		Mirror:    handler.NewMirrorHandler(mirrorConfigSvc, mirrorSyncSvc),
	}, sessionSvc, accountSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var watcherSvc watcher.Service
	if cfg.Watcher.Enabled {
		watcherSvc = watcher.NewService(cfg.Watcher, cfg.Storage.MediaDir, catalogSvc, changeSvc)
		if err := watcherSvc.Start(ctx); err != nil {
			logger.Fatalf("failed to start watcher: %v", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", addr)
		var err error
		if cfg.Server.EnableSSL {
			err = srv.ListenAndServeTLS(cfg.Server.SSLCertFile, cfg.Server.SSLKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	if watcherSvc != nil {
		if err := watcherSvc.Stop(); err != nil {
			logger.Errorf("watcher shutdown: %v", err)
		}
	}
	logger.Info("stopped")
}
