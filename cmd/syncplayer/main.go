package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/Lakunake/Sync-Player/internal/api"
	"github.com/Lakunake/Sync-Player/internal/auth"
	"github.com/Lakunake/Sync-Player/internal/clock"
	"github.com/Lakunake/Sync-Player/internal/config"
	"github.com/Lakunake/Sync-Player/internal/media"
	"github.com/Lakunake/Sync-Player/internal/media/jobs"
	"github.com/Lakunake/Sync-Player/internal/metrics"
	"github.com/Lakunake/Sync-Player/internal/protocol"
	"github.com/Lakunake/Sync-Player/internal/room"
	"github.com/Lakunake/Sync-Player/internal/session"
	"github.com/Lakunake/Sync-Player/internal/store"
)

const shutdownGrace = 5 * time.Second

func main() {
	cfg := config.Load()
	clk := clock.RealClock{}

	// Persistence
	key, err := store.LoadKey(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to load encryption key: %v", err)
	}
	mem, err := store.OpenMemory(filepath.Join(cfg.DataDir, "memory.json"), key)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			log.Fatalf("Memory file is corrupt, refusing to start: %v", err)
		}
		log.Fatalf("Failed to open memory file: %v", err)
	}
	roomAdmins, err := store.OpenRoomAdmins(filepath.Join(cfg.DataDir, "room-admins.json"))
	if err != nil {
		log.Fatalf("Failed to open room admin table: %v", err)
	}
	logs := store.NewEventLog(filepath.Join(cfg.DataDir, "logs"), clk)

	// Media library
	var provider media.Provider
	if cfg.Storage.Provider == "s3" {
		provider = media.NewS3Provider(cfg)
		slog.Info("media library backend", "provider", "s3", "bucket", cfg.Storage.Bucket)
	} else {
		provider = media.NewLocalProvider(cfg.MediaDir)
		slog.Info("media library backend", "provider", "local", "dir", cfg.MediaDir)
	}
	manifests := media.NewManifestStore(filepath.Join(cfg.DataDir, "tracks"))
	library := media.NewScanner(provider, manifests, clk)
	manifests.Sweep(library.Exists, clk.Now())
	thumbs := media.NewThumbnailer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobQueue := jobs.NewQueue(library, manifests, clk)
	jobQueue.Start(ctx)

	// Coordinator
	m := metrics.New()
	registry := room.NewRegistry(clk)
	go registry.RunTicker(ctx)
	hub := session.NewHub(clk)
	admins := auth.NewAdmins(mem, cfg.AdminFingerprintLock)
	dispatcher := protocol.NewDispatcher(cfg, clk, hub, registry, admins, mem, roomAdmins, logs, library, m)
	jobQueue.OnTracksChanged = dispatcher.RefreshTracks

	csrf := auth.NewCSRF(clk)
	server := api.New(cfg, clk, hub, dispatcher, registry, library, manifests, thumbs, jobQueue, csrf)

	addr := ":" + strconv.Itoa(cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		var err error
		if cfg.UseHTTPS && cfg.SSLCertFile != "" && cfg.SSLKeyFile != "" {
			slog.Info("listening", "addr", addr, "https", true, "serverMode", cfg.ServerMode)
			err = srv.ListenAndServeTLS(cfg.SSLCertFile, cfg.SSLKeyFile)
		} else {
			slog.Info("listening", "addr", addr, "https", false, "serverMode", cfg.ServerMode)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		slog.Warn("shutdown timed out", "error", err)
	}
	hub.CloseAll()
}
