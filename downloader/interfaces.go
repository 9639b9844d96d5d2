package downloader

import (
	"context"
)

// RequestKind selects which rate budget an outbound request is charged to.
type RequestKind int

const (
	// KindAPI is a metadata call against the catalog API
	KindAPI RequestKind = iota
	// KindImage is a page image fetch from an image server
	KindImage
)

func (k RequestKind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// ChapterRef is one chapter entry from a series listing.
type ChapterRef struct {
	ID       string
	Number   string // display number, empty for oneshots
	Language string
	Hash     string
}

// Series is the parsed series listing returned by a site.
type Series struct {
	ID       string
	Title    string
	Chapters []ChapterRef
}

// ChapterDetail holds everything needed to download one chapter's pages.
type ChapterDetail struct {
	MangaID   string
	ID        string
	Hash      string
	ImageURLs []string
}

// Key returns the folder name used for this chapter on disk.
// The chapter ID is preferred so folders can be found again by /chapter/{id}/;
// the content hash is used when a site does not report an ID.
func (d *ChapterDetail) Key() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Hash
}

// SitePlugin defines the interface that a catalog site must implement.
// Sites provide ONLY fetching and parsing - the downloader handles ordering,
// error accumulation and page downloads.
type SitePlugin interface {
	// GetSiteName returns the site identifier (e.g., "mangadex")
	GetSiteName() string

	// FetchSeries fetches the series listing including all chapter refs.
	// A response that cannot be parsed, or has no title, must be reported as ErrSeriesNotFound.
	FetchSeries(ctx context.Context, client Fetcher, seriesID string) (*Series, error)

	// FetchChapter fetches a chapter's page list and builds the page image URLs.
	FetchChapter(ctx context.Context, client Fetcher, ref ChapterRef) (*ChapterDetail, error)
}

// Fetcher is the outbound side used by sites and the page downloader.
// *Client is the production implementation.
type Fetcher interface {
	FetchJSON(ctx context.Context, url string, kind RequestKind, result interface{}) error
	FetchRaw(ctx context.Context, url string, kind RequestKind) ([]byte, error)
}

// Progress receives the bookkeeping of a running download.
// Implementations must be safe for concurrent reads while being updated.
type Progress interface {
	// Message appends a line to the human readable message log
	Message(format string, args ...interface{})

	// Error appends a line to the error log and records statusCode
	// unless an earlier error code is already recorded
	Error(statusCode int, format string, args ...interface{})

	// SetTotal fixes the number of pages to process once discovery is done
	SetTotal(total int)

	// Processed counts one page as handled (downloaded, skipped or failed)
	Processed()
}
