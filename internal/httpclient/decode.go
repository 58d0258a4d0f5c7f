package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// AcceptEncoding is advertised on every request; decodeBody handles each listed coding.
const AcceptEncoding = "gzip, br"

// decodeBody wraps resp.Body according to Content-Encoding. The returned reader
// does not close resp.Body.
func decodeBody(resp *http.Response) (io.Reader, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content-encoding %q", enc)
	}
}

// readBody decodes and reads at most limit bytes of resp.Body.
func readBody(resp *http.Response, limit int64) (string, error) {
	r, err := decodeBody(resp)
	if err != nil {
		return "", err
	}
	if limit <= 0 {
		limit = MaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}
