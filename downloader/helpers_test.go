package downloader

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// recordingProgress captures everything a download reports
type recordingProgress struct {
	mu              sync.Mutex
	messages        strings.Builder
	errors          strings.Builder
	statusCode      int
	total           int
	processed       int
	totalAtFirstHit int
	setTotalCalls   int
}

func newRecordingProgress() *recordingProgress {
	return &recordingProgress{statusCode: http.StatusOK, totalAtFirstHit: -1}
}

func (p *recordingProgress) Message(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages.WriteString(fmt.Sprintf(format, args...))
}

func (p *recordingProgress) Error(statusCode int, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.statusCode == http.StatusOK {
		p.statusCode = statusCode
	}
	p.errors.WriteString(fmt.Sprintf(format, args...))
}

func (p *recordingProgress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.setTotalCalls++
}

func (p *recordingProgress) Processed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.totalAtFirstHit < 0 {
		p.totalAtFirstHit = p.total
	}
	p.processed++
}

// fakeFetcher serves bodies from a map and counts calls per URL
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string][]byte),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) FetchJSON(ctx context.Context, url string, kind RequestKind, result interface{}) error {
	return fmt.Errorf("FetchJSON not supported by fakeFetcher")
}

func (f *fakeFetcher) FetchRaw(ctx context.Context, url string, kind RequestKind) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.bodies[url]; ok {
		return body, nil
	}
	return nil, &HTTPError{URL: url, StatusCode: http.StatusNotFound}
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// fakeSite returns a fixed series and per chapter details or errors
type fakeSite struct {
	series    *Series
	seriesErr error
	details   map[string]*ChapterDetail
	errs      map[string]error
	fetched   []string
}

func (s *fakeSite) GetSiteName() string {
	return "fake"
}

func (s *fakeSite) FetchSeries(ctx context.Context, client Fetcher, seriesID string) (*Series, error) {
	if s.seriesErr != nil {
		return nil, s.seriesErr
	}
	return s.series, nil
}

func (s *fakeSite) FetchChapter(ctx context.Context, client Fetcher, ref ChapterRef) (*ChapterDetail, error) {
	s.fetched = append(s.fetched, ref.ID)
	if err, ok := s.errs[ref.ID]; ok {
		return nil, err
	}
	if detail, ok := s.details[ref.ID]; ok {
		return detail, nil
	}
	return &ChapterDetail{ID: ref.ID}, nil
}
