package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"mdrelay/parser"

	"github.com/gocolly/colly"
	"golang.org/x/sync/semaphore"
)

// ClientConfig holds the knobs of the outbound client.
type ClientConfig struct {
	UserAgent      string
	RequestTimeout time.Duration

	APICalls    int
	APIPeriod   time.Duration
	ImageCalls  int
	ImagePeriod time.Duration

	// BackoffBase is the first wait after a rate-limited attempt; it doubles per attempt
	BackoffBase time.Duration
	MaxAttempts int

	// MaxConcurrent caps in-flight requests across the whole process
	MaxConcurrent int
}

// Client is the single outbound HTTP client of the process. Every request
// is charged to the budget of its kind and passes one global admission gate,
// so the whole server behaves like one well-behaved crawler.
type Client struct {
	collector   *colly.Collector
	gate        *semaphore.Weighted
	budgets     map[RequestKind]*parser.Budget
	backoffBase time.Duration
	maxAttempts int
}

// NewClient creates the client with its budgets and admission gate
func NewClient(cfg ClientConfig) *Client {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.IgnoreRobotsTxt = true
	collector.MaxBodySize = 0
	// Status handling is done in OnResponse so 2xx other than 200 are not errors
	collector.ParseHTTPErrorResponse = true
	collector.DisableCookies()

	if cfg.RequestTimeout > 0 {
		collector.SetRequestTimeout(cfg.RequestTimeout)
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	budgets := map[RequestKind]*parser.Budget{
		KindAPI:   parser.NewBudget(cfg.APICalls, cfg.APIPeriod),
		KindImage: parser.NewBudget(cfg.ImageCalls, cfg.ImagePeriod),
	}
	for _, kind := range []RequestKind{KindAPI, KindImage} {
		if calls := budgets[kind].GetCalls(); calls > 0 {
			log.Printf("[Client] %s budget: %d calls per %v", kind, calls, budgets[kind].GetPeriod())
		} else {
			log.Printf("[Client] %s budget: unlimited", kind)
		}
	}
	log.Printf("[Client] At most %d request(s) in flight, %d attempt(s) per call", maxConcurrent, maxAttempts)

	return &Client{
		collector:   collector,
		gate:        semaphore.NewWeighted(int64(maxConcurrent)),
		budgets:     budgets,
		backoffBase: cfg.BackoffBase,
		maxAttempts: maxAttempts,
	}
}

// FetchJSON makes an API request and unmarshals the JSON response
func (c *Client) FetchJSON(ctx context.Context, url string, kind RequestKind, result interface{}) error {
	body, err := c.FetchRaw(ctx, url, kind)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: failed to unmarshal JSON from %s: %v", ErrMalformedResponse, url, err)
	}

	return nil
}

// FetchRaw makes a request and returns the raw response body.
// Rate-limit rejections, local or upstream 429, are retried with exponential
// backoff; any other failure is returned immediately.
func (c *Client) FetchRaw(ctx context.Context, url string, kind RequestKind) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase * time.Duration(math.Pow(2, float64(attempt-1)))
			log.Printf("[Client] Rate limited (%s), retry %d/%d after %v: %s", kind, attempt+1, c.maxAttempts, backoff, url)
			if err := sleepContext(ctx, backoff); err != nil {
				return nil, err
			}
		}

		if !c.budget(kind).Allow() {
			continue
		}

		body, err := c.fetchOnce(ctx, url, kind)
		if err == nil {
			return body, nil
		}

		if !IsRateLimited(err) {
			return nil, err
		}
		lastErr = err
	}

	log.Printf("[Client] ✗ Rate limit exceeded after %d attempts: %s", c.maxAttempts, url)
	return nil, &RateLimitError{Kind: kind, Attempts: c.maxAttempts, Err: lastErr}
}

// fetchOnce performs a single request while holding the admission gate
func (c *Client) fetchOnce(ctx context.Context, url string, kind RequestKind) ([]byte, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.gate.Release(1)

	log.Printf("[Client] GET %s (%s)", url, kind)

	// Clone shares transport and settings but starts without callbacks
	collector := c.collector.Clone()

	var body []byte
	var fetchErr error

	collector.OnResponse(func(r *colly.Response) {
		contentType := ""
		contentEncoding := ""
		if r.Headers != nil {
			contentType = r.Headers.Get("Content-Type")
			contentEncoding = r.Headers.Get("Content-Encoding")
		}

		if r.StatusCode < 200 || r.StatusCode >= 300 {
			fetchErr = &HTTPError{
				URL:        url,
				StatusCode: r.StatusCode,
				Reason:     DescribeErrorBody(r.StatusCode, contentType, r.Body),
			}
			return
		}

		data, decompressed, err := DecompressBody(r.Body, contentEncoding)
		if err != nil {
			fetchErr = &HTTPError{URL: url, StatusCode: r.StatusCode, Reason: fmt.Sprintf("failed to decompress response: %v", err)}
			return
		}
		if decompressed {
			log.Printf("[Client] ✓ Decompressed response: %d → %d bytes", len(r.Body), len(data))
		}
		body = data
	})

	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = &HTTPError{URL: url, StatusCode: status, Reason: err.Error()}
	})

	if err := collector.Visit(url); err != nil && fetchErr == nil {
		fetchErr = &HTTPError{URL: url, Reason: err.Error()}
	}

	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}

func (c *Client) budget(kind RequestKind) *parser.Budget {
	if b, ok := c.budgets[kind]; ok {
		return b
	}
	return c.budgets[KindAPI]
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
