package config

import (
	"context"
	"fmt"
	"sync"
)

// SiteDownloadFunc is the function signature for site-specific download functions.
// It runs on the task's own goroutine and reports through the task's progress methods.
type SiteDownloadFunc func(context.Context, *DownloadTask) error

// registeredSites maps site names to their download functions
var (
	registeredSites   = make(map[string]SiteDownloadFunc)
	registeredSitesMu sync.RWMutex
)

// RegisterSite registers a site's download function
// This should be called during startup, before the queue accepts tasks
func RegisterSite(siteName string, downloadFunc SiteDownloadFunc) {
	registeredSitesMu.Lock()
	defer registeredSitesMu.Unlock()

	registeredSites[siteName] = downloadFunc
}

// ExecuteSiteDownload dispatches to the appropriate site-specific download function
func ExecuteSiteDownload(ctx context.Context, siteName string, task *DownloadTask) error {
	registeredSitesMu.RLock()
	downloadFunc, exists := registeredSites[siteName]
	registeredSitesMu.RUnlock()

	if !exists {
		return fmt.Errorf("download not supported for site: %s", siteName)
	}

	return downloadFunc(ctx, task)
}
