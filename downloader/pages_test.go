package downloader

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPageDownloaderDownloadsAndSkips(t *testing.T) {
	root := t.TempDir()
	fetcher := newFakeFetcher()
	fetcher.bodies["http://img/h/1.png"] = []byte("one")
	fetcher.bodies["http://img/h/2.jpg?token=x"] = []byte("two")

	detail := &ChapterDetail{
		ID:        "c1",
		Hash:      "h",
		ImageURLs: []string{"http://img/h/1.png", "http://img/h/2.jpg?token=x"},
	}

	progress := newRecordingProgress()
	progress.SetTotal(4)
	downloader := NewPageDownloader(fetcher, root, time.Millisecond)

	outcomes := downloader.Download(context.Background(), "42", detail, progress)
	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
	}
	for _, outcome := range outcomes {
		if outcome.Status != PageDownloaded {
			t.Errorf("Page %d: expected downloaded, got %s", outcome.Page, outcome.Status)
		}
	}

	first := filepath.Join(root, "42", "c1", "001.png")
	second := filepath.Join(root, "42", "c1", "002.jpg")
	for _, path := range []string{first, second} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to exist: %v", path, err)
		}
	}

	// Second run finds everything on disk
	outcomes = downloader.Download(context.Background(), "42", detail, progress)
	for _, outcome := range outcomes {
		if outcome.Status != PageSkipped {
			t.Errorf("Page %d: expected skipped, got %s", outcome.Page, outcome.Status)
		}
	}

	if got := fetcher.callCount("http://img/h/1.png"); got != 1 {
		t.Errorf("Expected page 1 to be fetched once, got %d", got)
	}
	if progress.processed != 4 {
		t.Errorf("Expected 4 processed, got %d", progress.processed)
	}
	if progress.statusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", progress.statusCode)
	}

	messages := progress.messages.String()
	if !strings.Contains(messages, " Downloaded page 1.\n") || !strings.Contains(messages, " Skipping 2.\n") {
		t.Errorf("Unexpected messages: %q", messages)
	}
}

func TestPageDownloaderRetriesOnceThenFails(t *testing.T) {
	root := t.TempDir()
	fetcher := newFakeFetcher()
	fetcher.errs["http://img/h/1.png"] = &HTTPError{URL: "http://img/h/1.png", StatusCode: http.StatusBadGateway}
	fetcher.bodies["http://img/h/2.png"] = []byte("two")

	detail := &ChapterDetail{ID: "c1", ImageURLs: []string{"http://img/h/1.png", "http://img/h/2.png"}}

	progress := newRecordingProgress()
	progress.SetTotal(2)

	outcomes := NewPageDownloader(fetcher, root, time.Millisecond).Download(context.Background(), "42", detail, progress)

	if got := fetcher.callCount("http://img/h/1.png"); got != 2 {
		t.Errorf("Expected 2 attempts for the failing page, got %d", got)
	}
	if outcomes[0].Status != PageFailed || outcomes[0].StatusCode != http.StatusBadGateway {
		t.Errorf("Expected page 1 failed with 502, got %s/%d", outcomes[0].Status, outcomes[0].StatusCode)
	}
	if outcomes[1].Status != PageDownloaded {
		t.Errorf("Expected page 2 downloaded after a failed page, got %s", outcomes[1].Status)
	}

	if progress.statusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", progress.statusCode)
	}
	if !strings.Contains(progress.errors.String(), " Skipping download of page 1 - ") {
		t.Errorf("Unexpected error log: %q", progress.errors.String())
	}
	if progress.processed != 2 {
		t.Errorf("Expected 2 processed, got %d", progress.processed)
	}
	if _, err := os.Stat(filepath.Join(root, "42", "c1", "001.png")); !os.IsNotExist(err) {
		t.Errorf("Expected no file for the failed page, got %v", err)
	}
}

func TestPageDownloaderStopsOnCancel(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.bodies["http://img/h/1.png"] = []byte("one")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	detail := &ChapterDetail{ID: "c1", ImageURLs: []string{"http://img/h/1.png"}}
	progress := newRecordingProgress()

	outcomes := NewPageDownloader(fetcher, t.TempDir(), time.Millisecond).Download(ctx, "42", detail, progress)
	if len(outcomes) != 0 || progress.processed != 0 {
		t.Errorf("Expected nothing processed after cancel, got %d outcomes, %d processed", len(outcomes), progress.processed)
	}
}

func TestImageExt(t *testing.T) {
	tests := map[string]string{
		"https://s2.mangadex.org/data/abc/x1.png":     ".png",
		"https://s2.mangadex.org/data/abc/x1.jpg?x=1": ".jpg",
		"https://s2.mangadex.org/data/abc/noext":      "",
	}
	for input, expected := range tests {
		if got := imageExt(input); got != expected {
			t.Errorf("imageExt(%q): expected %q, got %q", input, expected, got)
		}
	}
}
