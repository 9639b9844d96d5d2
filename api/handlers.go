package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"mdrelay/config"
	"mdrelay/models"
	"mdrelay/parser"
	"mdrelay/validation"
)

// Registry is the task side the handlers need
type Registry interface {
	SubmitOrGet(seriesID, language string) models.Snapshot
	List() []models.Snapshot
}

// writeJSON encodes v with status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

// NewSeriesListHandler returns the series folders under rootDir.
// Responds 404 when nothing was ever downloaded.
func NewSeriesListHandler(rootDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		series, err := parser.ListSeries(rootDir)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, series)
	}
}

// NewChapterListHandler returns the non-empty chapter folders of a series
func NewChapterListHandler(rootDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seriesID := r.PathValue("id")
		if err := validation.ValidateSeriesID(seriesID); err != nil {
			http.NotFound(w, r)
			return
		}

		chapters, err := parser.ListChapters(rootDir, seriesID)
		if err != nil || len(chapters) == 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, chapters)
	}
}

// NewPageListHandler returns the files of the first chapter folder named id
func NewPageListHandler(rootDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chapterID := r.PathValue("id")
		if err := validation.ValidateSeriesID(chapterID); err != nil {
			http.NotFound(w, r)
			return
		}

		chapterDir, found := parser.FindChapter(rootDir, chapterID)
		if !found {
			http.NotFound(w, r)
			return
		}

		pages, err := parser.LocalChapterList(chapterDir)
		if err != nil || len(pages) == 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, pages)
	}
}

// NewDownloadHandler starts or reports the download of a series.
// Always answers 200; the outcome is in the snapshot's status field.
func NewDownloadHandler(registry Registry, language string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seriesID := r.PathValue("id")

		if err := validation.ValidateSeriesID(seriesID); err != nil {
			log.Printf("[API] Rejected download of %q: %v", seriesID, err)
			writeJSON(w, http.StatusOK, models.Snapshot{
				MangaID:      seriesID,
				Status:       http.StatusNotFound,
				MessageError: "Invalid ID specified",
				State:        models.TaskStateFailed,
			})
			return
		}

		writeJSON(w, http.StatusOK, registry.SubmitOrGet(seriesID, language))
	}
}

// NewTaskListHandler returns snapshots of every tracked task
func NewTaskListHandler(registry Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, registry.List())
	}
}

// NewImageHandler serves a downloaded file below rootDir
func NewImageHandler(rootDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := r.PathValue("path")

		// Cleaning against "/" drops any ".." that would climb out of rootDir
		cleaned := path.Clean("/" + rel)
		if cleaned == "/" || strings.Contains(rel, "\x00") {
			http.NotFound(w, r)
			return
		}
		fullPath := filepath.Join(rootDir, filepath.FromSlash(cleaned))

		file, err := os.Open(fullPath)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		http.ServeContent(w, r, info.Name(), info.ModTime(), file)
	}
}

// NewVersionHandler reports the build information
func NewVersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, config.GetBuildInfo())
	}
}
