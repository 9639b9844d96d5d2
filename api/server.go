package api

import (
	"log"
	"net/http"
	"time"
)

// NewRouter wires every endpoint onto a ServeMux
func NewRouter(rootDir, language string, registry Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", NewSeriesListHandler(rootDir))
	mux.HandleFunc("GET /manga/{id}/{$}", NewChapterListHandler(rootDir))
	mux.HandleFunc("GET /chapter/{id}/{$}", NewPageListHandler(rootDir))
	mux.HandleFunc("GET /download/{id}/{$}", NewDownloadHandler(registry, language))
	mux.HandleFunc("GET /images/{path...}", NewImageHandler(rootDir))
	mux.HandleFunc("GET /tasks/{$}", NewTaskListHandler(registry))
	mux.HandleFunc("GET /version", NewVersionHandler())

	return WithLogging(mux)
}

// statusRecorder remembers the status written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// WithLogging logs every request once it has been served
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Printf("[API] %s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
