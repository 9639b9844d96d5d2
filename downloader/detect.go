package downloader

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// challengeMarkers are body fragments that identify an anti-bot interstitial
// rather than a real API or image response.
var challengeMarkers = map[string]string{
	"cf-browser-verification":      "JS browser verification challenge",
	"challenge-form":               "Cloudflare challenge form",
	"/cdn-cgi/challenge-platform/": "Cloudflare challenge JS",
	"cf-chl-":                      "Cloudflare challenge token",
}

// DescribeErrorBody builds a short reason for a failed response so the task's
// error log says more than a bare status code. HTML error pages contribute
// their <title>; challenge pages are called out as such.
func DescribeErrorBody(statusCode int, contentType string, body []byte) string {
	if len(body) == 0 {
		return http.StatusText(statusCode)
	}

	lower := bytes.ToLower(body)
	var indicators []string
	for marker, reason := range challengeMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			indicators = append(indicators, reason)
		}
	}

	if !strings.Contains(contentType, "html") && !bytes.HasPrefix(bytes.TrimSpace(lower), []byte("<")) {
		if len(indicators) > 0 {
			return "anti-bot challenge detected"
		}
		return http.StatusText(statusCode)
	}

	title := ""
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	switch {
	case len(indicators) > 0 && title != "":
		return "anti-bot challenge detected: " + title
	case len(indicators) > 0:
		return "anti-bot challenge detected"
	case title != "":
		return title
	default:
		return http.StatusText(statusCode)
	}
}
