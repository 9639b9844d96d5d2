package downloader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"mdrelay/parser"
)

// Resolver turns a series ID into the ordered list of chapters to download,
// using the site plugin for the actual API calls.
type Resolver struct {
	site   SitePlugin
	client Fetcher
}

// NewResolver creates a resolver for site
func NewResolver(site SitePlugin, client Fetcher) *Resolver {
	return &Resolver{site: site, client: client}
}

// Resolve fetches the series listing, keeps the chapters in language, sorts
// them by chapter number and fetches each chapter's page list. A chapter that
// fails to fetch is logged to progress and skipped; only a series-level
// failure aborts and is returned.
func (r *Resolver) Resolve(ctx context.Context, seriesID, language string, progress Progress) ([]*ChapterDetail, error) {
	series, err := r.site.FetchSeries(ctx, r.client, seriesID)
	if err != nil {
		return nil, classifySeriesError(err)
	}

	progress.Message("TITLE: %s\n", series.Title)

	refs := SelectChapters(series.Chapters, language)
	log.Printf("<%s> %s: %d of %d chapters in language %q", r.site.GetSiteName(), seriesID, len(refs), len(series.Chapters), language)

	details := make([]*ChapterDetail, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return details, err
		}

		progress.Message("Getting chapter API %s...\n", ref.ID)

		detail, err := r.site.FetchChapter(ctx, r.client, ref)
		if err != nil {
			apiErr := chapterError(err)
			log.Printf("<%s> Failed to fetch chapter %s: %v", r.site.GetSiteName(), ref.ID, apiErr)
			progress.Error(apiErr.StatusCode, "%v\n", apiErr)
			continue
		}

		if len(detail.ImageURLs) == 0 {
			log.Printf("<%s> WARNING: Chapter %s has 0 pages, skipping", r.site.GetSiteName(), ref.ID)
			continue
		}

		details = append(details, detail)
	}

	return details, nil
}

// SelectChapters filters refs to language and stable sorts them by chapter
// number, oneshots (no number) first.
func SelectChapters(refs []ChapterRef, language string) []ChapterRef {
	selected := make([]ChapterRef, 0, len(refs))
	for _, ref := range refs {
		if ref.Language == language {
			selected = append(selected, ref)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return parser.ChapterNumber(selected[i].Number) < parser.ChapterNumber(selected[j].Number)
	})

	return selected
}

// classifySeriesError keeps ErrSeriesNotFound as is and turns everything else
// into an APIError carrying the upstream status
func classifySeriesError(err error) error {
	if errors.Is(err, ErrSeriesNotFound) || errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, ErrMalformedResponse) {
		return fmt.Errorf("%w: %v", ErrSeriesNotFound, err)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return NewAPIError(httpErr.URL, err)
	}

	return &APIError{StatusCode: StatusCode(err), Err: err}
}

func chapterError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return NewAPIError(httpErr.URL, err)
	}

	return &APIError{StatusCode: StatusCode(err), Err: fmt.Errorf("chapter fetch failed: %w", err)}
}
