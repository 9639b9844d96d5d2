package sites

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"mdrelay/config"
	"mdrelay/downloader"

	"golang.org/x/net/html"
)

const (
	// officialServerMarker identifies image servers run by MangaDex itself
	officialServerMarker = "mangadex"
)

// flexibleID accepts an ID encoded either as a JSON number or a string
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(b), err)
	}
	*f = flexibleID(n.String())
	return nil
}

// MangaDex v2 API response structures
type mangadexSeriesResponse struct {
	Code int                `json:"code"`
	Data mangadexSeriesData `json:"data"`
}

type mangadexSeriesData struct {
	Manga    *mangadexManga           `json:"manga"`
	Chapters []mangadexChapterSummary `json:"chapters"`
}

type mangadexManga struct {
	ID    flexibleID `json:"id"`
	Title string     `json:"title"`
}

type mangadexChapterSummary struct {
	ID       flexibleID `json:"id"`
	Hash     string     `json:"hash"`
	Chapter  string     `json:"chapter"`
	Language string     `json:"language"`
}

type mangadexChapterResponse struct {
	Code int                 `json:"code"`
	Data mangadexChapterData `json:"data"`
}

type mangadexChapterData struct {
	ID             flexibleID `json:"id"`
	MangaID        flexibleID `json:"mangaId"`
	Hash           string     `json:"hash"`
	Server         string     `json:"server"`
	ServerFallback string     `json:"serverFallback"`
	Pages          []string   `json:"pages"`
}

// MangadexSite implements the SitePlugin interface for the MangaDex v2 API
type MangadexSite struct {
	apiBase string
}

// Ensure MangadexSite implements SitePlugin
var _ downloader.SitePlugin = (*MangadexSite)(nil)

// NewMangadexSite creates the site for the API rooted at apiBase
func NewMangadexSite(apiBase string) *MangadexSite {
	return &MangadexSite{apiBase: strings.TrimRight(apiBase, "/")}
}

// GetSiteName returns the site identifier
func (m *MangadexSite) GetSiteName() string {
	return "mangadex"
}

// FetchSeries retrieves the title and chapter listing of seriesID
func (m *MangadexSite) FetchSeries(ctx context.Context, client downloader.Fetcher, seriesID string) (*downloader.Series, error) {
	apiURL := fmt.Sprintf("%s/manga/%s/?include=chapters", m.apiBase, seriesID)

	log.Printf("<%s> Fetching series: %s", m.GetSiteName(), seriesID)

	var resp mangadexSeriesResponse
	if err := client.FetchJSON(ctx, apiURL, downloader.KindAPI, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch series %s: %w", seriesID, err)
	}

	if resp.Data.Manga == nil || resp.Data.Manga.Title == "" {
		return nil, fmt.Errorf("%w: no title in response for %s", downloader.ErrSeriesNotFound, seriesID)
	}

	series := &downloader.Series{
		ID:       seriesID,
		Title:    html.UnescapeString(resp.Data.Manga.Title),
		Chapters: make([]downloader.ChapterRef, 0, len(resp.Data.Chapters)),
	}

	for _, chapter := range resp.Data.Chapters {
		if chapter.ID == "" {
			log.Printf("<%s> WARNING: Chapter without ID in %s, skipping", m.GetSiteName(), seriesID)
			continue
		}
		series.Chapters = append(series.Chapters, downloader.ChapterRef{
			ID:       string(chapter.ID),
			Number:   chapter.Chapter,
			Language: chapter.Language,
			Hash:     chapter.Hash,
		})
	}

	log.Printf("<%s> %s: %q with %d chapters", m.GetSiteName(), seriesID, series.Title, len(series.Chapters))
	return series, nil
}

// FetchChapter retrieves the page list of a chapter and builds its image URLs
func (m *MangadexSite) FetchChapter(ctx context.Context, client downloader.Fetcher, ref downloader.ChapterRef) (*downloader.ChapterDetail, error) {
	apiURL := fmt.Sprintf("%s/chapter/%s/", m.apiBase, ref.ID)

	var resp mangadexChapterResponse
	if err := client.FetchJSON(ctx, apiURL, downloader.KindAPI, &resp); err != nil {
		return nil, downloader.NewAPIError(apiURL, err)
	}

	data := resp.Data
	server := pickServer(data.Server, data.ServerFallback)

	imageURLs := make([]string, 0, len(data.Pages))
	for _, page := range data.Pages {
		imageURLs = append(imageURLs, fmt.Sprintf("%s%s/%s", server, data.Hash, page))
	}

	chapterID := string(data.ID)
	if chapterID == "" {
		chapterID = ref.ID
	}

	hash := data.Hash
	if hash == "" {
		hash = ref.Hash
	}

	log.Printf("<%s> Found %d images for chapter %s", m.GetSiteName(), len(imageURLs), chapterID)

	return &downloader.ChapterDetail{
		MangaID:   string(data.MangaID),
		ID:        chapterID,
		Hash:      hash,
		ImageURLs: imageURLs,
	}, nil
}

// pickServer prefers the primary image server. A fallback is only used when
// the primary is not one of MangaDex's own servers.
func pickServer(server, fallback string) string {
	if fallback != "" && !strings.Contains(server, officialServerMarker) {
		return fallback
	}
	return server
}

// MangadexDownloader runs download tasks against one MangaDex API
type MangadexDownloader struct {
	Site       *MangadexSite
	Client     downloader.Fetcher
	RootDir    string
	RetryDelay time.Duration
}

// DownloadChapters is the entry point called by the download queue
func (d *MangadexDownloader) DownloadChapters(ctx context.Context, task *config.DownloadTask) error {
	cfg := &downloader.DownloadConfig{
		SeriesID:   task.SeriesID,
		Language:   task.Language,
		Site:       d.Site,
		Client:     d.Client,
		RootDir:    d.RootDir,
		RetryDelay: d.RetryDelay,
		Progress:   task,
	}

	manager := downloader.NewManager(cfg)
	return manager.Download(ctx)
}

