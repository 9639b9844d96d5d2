package sites

import (
	"log"

	"mdrelay/config"
	"mdrelay/downloader"
)

// RegisterSites registers all site download functions with the queue system.
// Every site shares client, so they all draw from the same budgets and gate.
func RegisterSites(client downloader.Fetcher, cfg *config.Config) {
	mangadex := &MangadexDownloader{
		Site:       NewMangadexSite(cfg.APIBase),
		Client:     client,
		RootDir:    cfg.DownloadDir,
		RetryDelay: cfg.PageRetryDelay.Std(),
	}
	config.RegisterSite(mangadex.Site.GetSiteName(), mangadex.DownloadChapters)

	log.Printf("[Sites] Registered %s (%s)", mangadex.Site.GetSiteName(), cfg.APIBase)
}
