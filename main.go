package main

// Package structure:
// - api/         : HTTP routes (listing, download trigger, image serving)
// - config/      : Configuration, logging, download queue and site dispatch
// - downloader/  : Rate limited client, chapter resolver, page downloader
// - sites/       : Catalog site plugins (MangaDex)
// - parser/      : File naming, chapter ordering, disk listing, rate budgets
// - bookmarks/   : Watch list downloaded at startup
// - validation/  : Series id and language checks
// - models/      : Task state and snapshot types

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mdrelay/api"
	"mdrelay/bookmarks"
	"mdrelay/config"
	"mdrelay/downloader"
	"mdrelay/sites"
	"mdrelay/validation"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	dir := flag.String("dir", "", "download directory (overrides config)")
	lang := flag.String("lang", "", "chapter language code (overrides config)")
	logFile := flag.String("log", "", "log file (overrides config)")
	bookmarksFile := flag.String("bookmarks", "", "watch list file (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Main] Invalid configuration: %v", err)
	}

	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dir != "" {
		cfg.DownloadDir = *dir
	}
	if *lang != "" {
		cfg.Language = *lang
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *bookmarksFile != "" {
		cfg.BookmarksFile = *bookmarksFile
	}
	if err := cfg.Finalize(); err != nil {
		log.Fatalf("[Main] Invalid configuration: %v", err)
	}
	if err := validation.ValidateLanguage(cfg.Language); err != nil {
		log.Fatalf("[Main] Invalid configuration: %v", err)
	}

	if err := config.InitLogger(cfg.LogFile); err != nil {
		log.Fatalf("[Main] Failed to initialize logger: %v", err)
	}
	defer config.CloseLogger()

	buildInfo := config.GetBuildInfo()
	log.Printf("[Main] mdrelay %s (%s, built %s)", buildInfo.Version, buildInfo.GitCommit, buildInfo.BuildTime)
	log.Printf("[Main] Download directory: %s, language: %s", cfg.DownloadDir, cfg.Language)

	client := downloader.NewClient(cfg.ClientConfig())
	sites.RegisterSites(client, cfg)

	// Root context for running downloads, cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := config.NewDownloadQueue(ctx, "mangadex")
	queue.SetFinishedCallback(func(task *config.DownloadTask) {
		snapshot := task.Snapshot()
		log.Printf("[Main] Download of %s finished: %s, status %d, %d/%d pages",
			snapshot.MangaID, snapshot.State, snapshot.Status, snapshot.Processed, snapshot.Total)
	})

	if cfg.BookmarksFile != "" {
		submitBookmarks(queue, cfg)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(cfg.DownloadDir, cfg.Language, queue),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("[Main] Listening on %s", srv.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case sig := <-sigCh:
		log.Printf("[Main] Received %v, shutting down", sig)
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Main] Server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] Error stopping server: %v", err)
	}

	cancel()
	log.Printf("[Main] Waiting for running downloads to stop...")
	queue.Wait()
	log.Printf("[Main] Shutdown complete")
}

// submitBookmarks starts a download for every valid watch list entry
func submitBookmarks(queue *config.DownloadQueue, cfg *config.Config) {
	watchList, err := bookmarks.LoadBookmarks(cfg.BookmarksFile)
	if err != nil {
		log.Printf("[Bookmarks] %v", err)
		return
	}

	entries := watchList.Valid(cfg.Language)
	for _, entry := range entries {
		snapshot := queue.SubmitOrGet(entry.ID, entry.Language)
		log.Printf("[Bookmarks] Submitted %s %q (%s): %s", entry.ID, entry.Title, entry.Language, snapshot.State)
	}

	log.Printf("[Bookmarks] Submitted %d of %d entries", len(entries), len(watchList.Manga))
}
