package downloader

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// DecompressBody returns the decoded body when the upstream sent it encoded
// and the transport did not already decode it. Go's transport only undoes gzip
// it asked for itself, so bodies explicitly marked "br" or "gzip" arrive raw.
//
// Parameters:
//   - body: The response body as received
//   - contentEncoding: The Content-Encoding header value (may be empty)
//
// Returns:
//   - []byte: The decompressed body, or body unchanged
//   - bool: true if decompression was performed
//   - error: any error encountered during decompression
func DecompressBody(body []byte, contentEncoding string) ([]byte, bool, error) {
	if len(body) == 0 {
		return body, false, nil
	}

	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, false, err
		}
		return decompressed, true, nil

	case "gzip":
		// Transport may have decoded it already and left the header behind
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, false, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, false, err
		}
		return decompressed, true, nil
	}

	return body, false, nil
}
