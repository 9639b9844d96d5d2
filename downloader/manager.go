package downloader

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DownloadConfig holds configuration for a download session
type DownloadConfig struct {
	SeriesID   string
	Language   string
	Site       SitePlugin
	Client     Fetcher
	RootDir    string
	RetryDelay time.Duration
	Progress   Progress
}

// Manager orchestrates the entire download process
type Manager struct {
	config   *DownloadConfig
	resolver *Resolver
	pages    *PageDownloader
}

// NewManager creates a new download manager
func NewManager(config *DownloadConfig) *Manager {
	return &Manager{
		config:   config,
		resolver: NewResolver(config.Site, config.Client),
		pages:    NewPageDownloader(config.Client, config.RootDir, config.RetryDelay),
	}
}

// Download executes the full download workflow. It returns an error only when
// the series itself could not be resolved (or ctx was cancelled); chapter and
// page failures are recorded on the progress and do not fail the download.
func (m *Manager) Download(ctx context.Context) error {
	cfg := m.config
	progress := cfg.Progress

	log.Printf("[Downloader] Starting download for %s (%s) from %s", cfg.SeriesID, cfg.Language, cfg.Site.GetSiteName())

	// Step 1: Resolve chapters and their page lists
	chapters, err := m.resolver.Resolve(ctx, cfg.SeriesID, cfg.Language, progress)
	if err != nil {
		progress.Error(StatusCode(err), "%v\n", err)
		return fmt.Errorf("failed to resolve series %s: %w", cfg.SeriesID, err)
	}

	// Step 2: Fix the total before the first page is fetched
	total := 0
	for _, chapter := range chapters {
		total += len(chapter.ImageURLs)
	}
	progress.SetTotal(total)

	log.Printf("[Downloader] %s: %d chapters, %d pages to process", cfg.SeriesID, len(chapters), total)

	// Step 3: Download each chapter in order
	for idx, chapter := range chapters {
		if err := ctx.Err(); err != nil {
			return err
		}

		log.Printf("[Downloader:%s] Starting chapter %d/%d: %s", cfg.SeriesID, idx+1, len(chapters), chapter.Key())

		outcomes := m.pages.Download(ctx, cfg.SeriesID, chapter, progress)

		var downloaded, skipped, failed int
		for _, outcome := range outcomes {
			switch outcome.Status {
			case PageDownloaded:
				downloaded++
			case PageSkipped:
				skipped++
			case PageFailed:
				failed++
			}
		}

		log.Printf("[Downloader:%s] ✓ Chapter %s: %d downloaded, %d skipped, %d failed",
			cfg.SeriesID, chapter.Key(), downloaded, skipped, failed)
	}

	progress.Message("Done!")
	log.Printf("[Downloader] Download complete for %s", cfg.SeriesID)
	return ctx.Err()
}
