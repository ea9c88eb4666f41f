// Package http fetches bundles, catalogs, and companion manifests from a
// plain HTTP origin.
package http //nolint:revive // intentional naming for domain clarity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultProgressInterval is the minimum spacing between progress calls.
	DefaultProgressInterval = 16 * time.Millisecond

	// DefaultMaxBytes bounds a single response body.
	DefaultMaxBytes = 1 << 30

	// CacheBustParam is the query parameter appended to defeat intermediate caches.
	CacheBustParam = "t"

	cacheBustLayout = "20060102150405"
	readChunkSize   = 32 * 1024
)

// ErrNotFound is returned when the origin answers 404.
var ErrNotFound = errors.New("http: not found")

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// Is reports 404 responses as ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == nethttp.StatusNotFound
}

// ProgressFunc receives transfer progress. total is 0 until the origin sends
// a length. The final call of a failed transfer carries the error.
type ProgressFunc func(done, total int64, err error)

// Fetcher issues GET, HEAD, and range-probe requests against an origin.
// A Fetcher is safe for concurrent use.
type Fetcher struct {
	client   *nethttp.Client
	headers  nethttp.Header
	interval time.Duration
	bust     bool
	now      func() time.Time
	maxBytes int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(f *Fetcher) {
		if headers == nil {
			return
		}
		f.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		if f.headers == nil {
			f.headers = make(nethttp.Header)
		}
		f.headers.Set(key, value)
	}
}

// WithProgressInterval sets the minimum spacing between progress calls.
// Zero reports after every read.
func WithProgressInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		f.interval = d
	}
}

// WithCacheBusting controls the timestamp query appended to GET requests.
// Enabled by default.
func WithCacheBusting(enabled bool) Option {
	return func(f *Fetcher) {
		f.bust = enabled
	}
}

// WithNow overrides the clock used for cache-busting timestamps.
func WithNow(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// WithMaxBytes bounds a single response body. Values <= 0 use DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   nethttp.DefaultClient,
		interval: DefaultProgressInterval,
		bust:     true,
		now:      time.Now,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = nethttp.DefaultClient
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxBytes
	}
	return f
}

// BustCache appends the cache-busting timestamp to rawURL when enabled.
func (f *Fetcher) BustCache(rawURL string) string {
	if !f.bust {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + CacheBustParam + "=" + url.QueryEscape(f.now().Format(cacheBustLayout))
}

// Get fetches rawURL without progress reporting.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return f.Fetch(ctx, rawURL, nil)
}

// FetchText fetches a small text resource. A 404 matches ErrNotFound.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	data, err := f.Fetch(ctx, rawURL, nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Fetch downloads rawURL into memory.
//
// progress, when non-nil, is called at most once per progress interval while
// the body streams. The first and the final call are always delivered; on
// failure the final call carries the error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, progress ProgressFunc) ([]byte, error) {
	var done, total int64
	report := f.reporter(progress)
	fail := func(err error) ([]byte, error) {
		if progress != nil {
			progress(done, total, err)
		}
		return nil, err
	}

	report(0, 0)
	req, err := f.newRequest(ctx, nethttp.MethodGet, f.BustCache(rawURL))
	if err != nil {
		return fail(err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(&StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status})
	}
	if resp.ContentLength > 0 {
		total = resp.ContentLength
	}
	if total > f.maxBytes {
		return fail(fmt.Errorf("GET %s: body of %d bytes exceeds limit %d", rawURL, total, f.maxBytes))
	}

	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	body := io.LimitReader(resp.Body, f.maxBytes+1)
	chunk := make([]byte, readChunkSize)
	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			done += int64(n)
			if done > f.maxBytes {
				return fail(fmt.Errorf("GET %s: body exceeds limit %d", rawURL, f.maxBytes))
			}
			report(done, total)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fail(fmt.Errorf("GET %s: %w", rawURL, readErr))
		}
	}
	if total > 0 && done != total {
		return fail(fmt.Errorf("GET %s: %w", rawURL, io.ErrUnexpectedEOF))
	}
	if total == 0 {
		total = done
	}
	if progress != nil {
		progress(done, total, nil)
	}
	return buf.Bytes(), nil
}

// reporter throttles progress to one call per interval.
func (f *Fetcher) reporter(progress ProgressFunc) func(done, total int64) {
	if progress == nil {
		return func(int64, int64) {}
	}
	if f.interval <= 0 {
		return func(done, total int64) { progress(done, total, nil) }
	}
	limiter := &rate.Sometimes{Interval: f.interval}
	return func(done, total int64) {
		limiter.Do(func() { progress(done, total, nil) })
	}
}

// ContentLength reports the size of rawURL without downloading it.
// It tries HEAD first, then a single-byte range probe.
func (f *Fetcher) ContentLength(ctx context.Context, rawURL string) (int64, error) {
	req, err := f.newRequest(ctx, nethttp.MethodHead, rawURL)
	if err != nil {
		return 0, err
	}
	if resp, headErr := f.client.Do(req); headErr == nil {
		resp.Body.Close()
		if resp.StatusCode == nethttp.StatusNotFound {
			return 0, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 && resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
	} else if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	return f.rangeProbe(ctx, rawURL)
}

// rangeProbe extracts the content size from a Range: bytes=0-0 response.
func (f *Fetcher) rangeProbe(ctx context.Context, rawURL string) (int64, error) {
	req, err := f.newRequest(ctx, nethttp.MethodGet, rawURL)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, readChunkSize)) //nolint:errcheck // best-effort drain for connection reuse
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		crange := resp.Header.Get("Content-Range")
		if crange == "" {
			return 0, errors.New("range probe missing Content-Range")
		}
		return parseContentRange(crange)
	case nethttp.StatusOK:
		if resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
		return 0, fmt.Errorf("GET %s: size unknown", rawURL)
	default:
		return 0, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}
}

// newRequest creates an HTTP request with configured headers.
func (f *Fetcher) newRequest(ctx context.Context, method, rawURL string) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, rawURL, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range f.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	return req, nil
}

// parseContentRange extracts the total size from a Content-Range header value.
// It expects the format "bytes start-end/size" and returns the size portion.
func parseContentRange(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	parts := strings.SplitN(strings.TrimPrefix(value, "bytes "), "/", 2)
	if len(parts) != 2 || parts[1] == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
