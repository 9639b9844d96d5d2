package downloader

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"mdrelay/parser"
)

// PageStatus is the outcome of a single page.
type PageStatus int

const (
	PageDownloaded PageStatus = iota
	PageSkipped
	PageFailed
)

func (s PageStatus) String() string {
	switch s {
	case PageDownloaded:
		return "downloaded"
	case PageSkipped:
		return "skipped"
	case PageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PageOutcome records what happened to one page.
type PageOutcome struct {
	Page       int // 1-based
	URL        string
	Path       string
	Status     PageStatus
	StatusCode int
	Err        error
}

// PageDownloader saves a chapter's pages under rootDir/{series}/{chapter}/.
type PageDownloader struct {
	client     Fetcher
	rootDir    string
	retryDelay time.Duration
}

// NewPageDownloader creates a page downloader writing below rootDir
func NewPageDownloader(client Fetcher, rootDir string, retryDelay time.Duration) *PageDownloader {
	return &PageDownloader{
		client:     client,
		rootDir:    rootDir,
		retryDelay: retryDelay,
	}
}

// ChapterDir returns the folder the pages of detail are written to
func (d *PageDownloader) ChapterDir(seriesID string, detail *ChapterDetail) string {
	return filepath.Join(d.rootDir, seriesID, detail.Key())
}

// Download fetches every page of detail in order. Pages already on disk are
// skipped, failed pages are retried once and then recorded; neither stops the
// chapter. Every attempted page is counted on progress exactly once.
func (d *PageDownloader) Download(ctx context.Context, seriesID string, detail *ChapterDetail, progress Progress) []PageOutcome {
	chapterDir := d.ChapterDir(seriesID, detail)
	outcomes := make([]PageOutcome, 0, len(detail.ImageURLs))

	for idx, imageURL := range detail.ImageURLs {
		if ctx.Err() != nil {
			log.Printf("[Downloader:%s] Cancelled before page %d", detail.Key(), idx+1)
			break
		}

		outcome := d.downloadPage(ctx, idx+1, imageURL, chapterDir, progress)
		progress.Processed()
		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// downloadPage handles a single page; the caller does the counting
func (d *PageDownloader) downloadPage(ctx context.Context, page int, imageURL, chapterDir string, progress Progress) PageOutcome {
	filename := parser.PadFileName(fmt.Sprintf("%d%s", page, imageExt(imageURL)))
	outfile := filepath.Join(chapterDir, filename)

	outcome := PageOutcome{Page: page, URL: imageURL, Path: outfile}

	if parser.FileExists(outfile) {
		progress.Message(" Skipping %d.\n", page)
		outcome.Status = PageSkipped
		return outcome
	}

	err := d.fetchAndSave(ctx, imageURL, outfile)
	if err != nil && ctx.Err() == nil {
		log.Printf("[Downloader] Page %d failed, retrying in %v: %v", page, d.retryDelay, err)
		if sleepErr := sleepContext(ctx, d.retryDelay); sleepErr == nil {
			err = d.fetchAndSave(ctx, imageURL, outfile)
		}
	}

	if err != nil {
		imgErr := &ImageFetchError{URL: imageURL, Page: page, StatusCode: StatusCode(err), Err: err}
		log.Printf("[Downloader] ✗ %v", imgErr)
		progress.Error(http.StatusInternalServerError, " Skipping download of %v.\n", imgErr)

		outcome.Status = PageFailed
		outcome.StatusCode = imgErr.StatusCode
		outcome.Err = imgErr
		return outcome
	}

	progress.Message(" Downloaded page %d.\n", page)
	outcome.Status = PageDownloaded
	outcome.StatusCode = http.StatusOK
	return outcome
}

func (d *PageDownloader) fetchAndSave(ctx context.Context, imageURL, outfile string) error {
	data, err := d.client.FetchRaw(ctx, imageURL, KindImage)
	if err != nil {
		return err
	}
	return parser.WriteFileAtomic(outfile, data)
}

// imageExt returns the extension of the file named by imageURL, ignoring any query string
func imageExt(imageURL string) string {
	if u, err := url.Parse(imageURL); err == nil {
		return path.Ext(path.Base(u.Path))
	}
	return filepath.Ext(imageURL)
}
