package downloader

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func testClientConfig() ClientConfig {
	return ClientConfig{
		UserAgent:      "mdrelay-test",
		RequestTimeout: 5 * time.Second,
		APICalls:       1000,
		APIPeriod:      time.Minute,
		ImageCalls:     1000,
		ImagePeriod:    time.Minute,
		BackoffBase:    time.Millisecond,
		MaxAttempts:    3,
		MaxConcurrent:  1,
	}
}

func TestClientFetchJSON(t *testing.T) {
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.UserAgent())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"test","count":3}`))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())

	var result struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := client.FetchJSON(context.Background(), server.URL, KindAPI, &result); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}
	if result.Name != "test" || result.Count != 3 {
		t.Errorf("Expected {test 3}, got %+v", result)
	}
	if ua, _ := userAgent.Load().(string); ua != "mdrelay-test" {
		t.Errorf("Expected user agent mdrelay-test, got %q", ua)
	}
}

func TestClientMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())

	var result map[string]interface{}
	err := client.FetchJSON(context.Background(), server.URL, KindAPI, &result)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestClientNotFoundIsNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`<html><head><title>Chapter gone</title></head></html>`))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())

	_, err := client.FetchRaw(context.Background(), server.URL, KindAPI)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", httpErr.StatusCode)
	}
	if httpErr.Reason != "Chapter gone" {
		t.Errorf("Expected reason from page title, got %q", httpErr.Reason)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
}

func TestClientRetriesTooManyRequests(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testClientConfig())

	_, err := client.FetchRaw(context.Background(), server.URL, KindImage)

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if rlErr.Kind != KindImage || rlErr.Attempts != 3 {
		t.Errorf("Expected image/3 attempts, got %s/%d", rlErr.Kind, rlErr.Attempts)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	if StatusCode(err) != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", StatusCode(err))
	}
}

func TestClientRecoversAfterTooManyRequests(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())

	body, err := client.FetchRaw(context.Background(), server.URL, KindAPI)
	if err != nil {
		t.Fatalf("Expected success on retry, got %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("Expected body ok, got %q", string(body))
	}
}

func TestClientBudgetExhausted(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := testClientConfig()
	cfg.APICalls = 1
	cfg.APIPeriod = time.Hour
	client := NewClient(cfg)

	if _, err := client.FetchRaw(context.Background(), server.URL, KindAPI); err != nil {
		t.Fatalf("First call failed: %v", err)
	}

	_, err := client.FetchRaw(context.Background(), server.URL, KindAPI)

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("Expected refused calls not to reach the server, got %d requests", got)
	}

	// Image budget is independent of the exhausted API budget
	if _, err := client.FetchRaw(context.Background(), server.URL, KindImage); err != nil {
		t.Errorf("Expected image call to pass, got %v", err)
	}
}

func TestClientGateSerializesRequests(t *testing.T) {
	var inFlight, maxInFlight int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			seen := atomic.LoadInt32(&maxInFlight)
			if current <= seen || atomic.CompareAndSwapInt32(&maxInFlight, seen, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(testClientConfig())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(kind RequestKind) {
			defer wg.Done()
			if _, err := client.FetchRaw(context.Background(), server.URL, kind); err != nil {
				t.Errorf("FetchRaw failed: %v", err)
			}
		}(RequestKind(i % 2))
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("Expected at most 1 request in flight, got %d", got)
	}
}

func TestClientCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := testClientConfig()
	cfg.BackoffBase = time.Hour
	client := NewClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.FetchRaw(ctx, server.URL, KindAPI)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestClientTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(testClientConfig())

	_, err := client.FetchRaw(context.Background(), url, KindAPI)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != 0 {
		t.Errorf("Expected status 0 for transport failure, got %d", httpErr.StatusCode)
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("Expected mapped status 500, got %d", StatusCode(err))
	}
}

func TestDecompressBody(t *testing.T) {
	var buf bytes.Buffer
	writer := brotli.NewWriter(&buf)
	writer.Write([]byte("hello brotli"))
	writer.Close()

	data, decompressed, err := DecompressBody(buf.Bytes(), "br")
	if err != nil {
		t.Fatalf("DecompressBody failed: %v", err)
	}
	if !decompressed || string(data) != "hello brotli" {
		t.Errorf("Expected decompressed 'hello brotli', got %v %q", decompressed, string(data))
	}

	plain := []byte(`{"already":"decoded"}`)
	data, decompressed, err = DecompressBody(plain, "gzip")
	if err != nil {
		t.Fatalf("DecompressBody failed: %v", err)
	}
	if decompressed || !bytes.Equal(data, plain) {
		t.Errorf("Expected plain body passed through, got %v %q", decompressed, string(data))
	}
}

func TestDescribeErrorBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		expected    string
	}{
		{"empty", "", "", "Service Unavailable"},
		{"json", "application/json", `{"error":"x"}`, "Service Unavailable"},
		{"html title", "text/html", `<html><title>Maintenance</title></html>`, "Maintenance"},
		{"challenge", "text/html", `<html><title>Just a moment...</title><form id="challenge-form"></form></html>`, "anti-bot challenge detected: Just a moment..."},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := DescribeErrorBody(http.StatusServiceUnavailable, test.contentType, []byte(test.body))
			if got != test.expected {
				t.Errorf("Expected %q, got %q", test.expected, got)
			}
		})
	}
}
