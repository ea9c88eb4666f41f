package http_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	bundlehttp "github.com/meigma/bundle/http"
)

type progressCall struct {
	done, total int64
	err         error
}

type progressLog struct {
	mu    sync.Mutex
	calls []progressCall
}

func (p *progressLog) record(done, total int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, progressCall{done, total, err})
}

func (p *progressLog) snapshot() []progressCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]progressCall(nil), p.calls...)
}

func TestFetch(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("bundle"), 20000)
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	f := bundlehttp.New(bundlehttp.WithProgressInterval(0))
	var log progressLog
	got, err := f.Fetch(context.Background(), server.URL+"/b", log.record)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Fetch() returned %d bytes, want %d", len(got), len(data))
	}

	calls := log.snapshot()
	if len(calls) < 3 {
		t.Fatalf("progress calls = %d, want >= 3", len(calls))
	}
	if first := calls[0]; first.done != 0 || first.err != nil {
		t.Fatalf("first progress = %+v, want zero", first)
	}
	last := calls[len(calls)-1]
	if last.done != int64(len(data)) || last.total != int64(len(data)) || last.err != nil {
		t.Fatalf("final progress = %+v, want %d/%d", last, len(data), len(data))
	}
	for i := 1; i < len(calls); i++ {
		if calls[i].done < calls[i-1].done {
			t.Fatalf("progress regressed at %d: %d < %d", i, calls[i].done, calls[i-1].done)
		}
	}
}

func TestFetchThrottlesProgress(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("x"), 1<<20)
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	f := bundlehttp.New(bundlehttp.WithProgressInterval(time.Hour))
	var log progressLog
	if _, err := f.Fetch(context.Background(), server.URL, log.record); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	// Only the first and the final call get through an hour-long interval.
	calls := log.snapshot()
	if len(calls) != 2 {
		t.Fatalf("progress calls = %d, want 2", len(calls))
	}
	if calls[1].done != int64(len(data)) {
		t.Fatalf("final progress done = %d, want %d", calls[1].done, len(data))
	}
}

func TestFetchCacheBusting(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		queries []string
	)
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	now := func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	f := bundlehttp.New(bundlehttp.WithNow(now))
	if _, err := f.Get(context.Background(), server.URL+"/a"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if _, err := f.Get(context.Background(), server.URL+"/a?v=1"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	plain := bundlehttp.New(bundlehttp.WithCacheBusting(false))
	if _, err := plain.Get(context.Background(), server.URL+"/a"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"t=20260102030405", "v=1&t=20260102030405", ""}
	if fmt.Sprint(queries) != fmt.Sprint(want) {
		t.Fatalf("queries = %q, want %q", queries, want)
	}
}

func TestFetchHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer token" || r.Header.Get("X-Team") != "assets" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	headers := make(nethttp.Header)
	headers.Set("Authorization", "Bearer token")
	f := bundlehttp.New(bundlehttp.WithHeaders(headers), bundlehttp.WithHeader("X-Team", "assets"))
	if _, err := f.Get(context.Background(), server.URL); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestFetchNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.NotFoundHandler())
	t.Cleanup(server.Close)

	f := bundlehttp.New()
	_, err := f.FetchText(context.Background(), server.URL+"/b.manifest")
	if !errors.Is(err, bundlehttp.ErrNotFound) {
		t.Fatalf("FetchText() error = %v, want ErrNotFound", err)
	}

	var log progressLog
	_, err = f.Fetch(context.Background(), server.URL+"/b", log.record)
	var statusErr *bundlehttp.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != nethttp.StatusNotFound {
		t.Fatalf("Fetch() error = %v, want *StatusError 404", err)
	}
	calls := log.snapshot()
	if len(calls) == 0 || calls[len(calls)-1].err == nil {
		t.Fatalf("final progress call did not carry the error: %+v", calls)
	}
}

func TestFetchUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.NotFoundHandler())
	addr := server.URL
	server.Close()

	var log progressLog
	_, err := bundlehttp.New().Fetch(context.Background(), addr+"/b", log.record)
	if err == nil {
		t.Fatal("Fetch() error = nil, want transport error")
	}
	calls := log.snapshot()
	if len(calls) == 0 || calls[len(calls)-1].err == nil {
		t.Fatalf("final progress call did not carry the error: %+v", calls)
	}
}

func TestFetchMaxBytes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 100))
	}))
	t.Cleanup(server.Close)

	if _, err := bundlehttp.New(bundlehttp.WithMaxBytes(10)).Get(context.Background(), server.URL); err == nil {
		t.Fatal("Get() error = nil, want size limit error")
	}
}

func TestContentLength(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/nohead") && r.Method == nethttp.MethodHead:
			w.WriteHeader(nethttp.StatusMethodNotAllowed)
		case strings.HasPrefix(r.URL.Path, "/missing"):
			nethttp.NotFound(w, r)
		default:
			nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
		}
	}))
	t.Cleanup(server.Close)

	f := bundlehttp.New()
	for _, path := range []string{"/b", "/nohead/b"} {
		size, err := f.ContentLength(context.Background(), server.URL+path)
		if err != nil {
			t.Fatalf("ContentLength(%s) error = %v", path, err)
		}
		if size != int64(len(data)) {
			t.Fatalf("ContentLength(%s) = %d, want %d", path, size, len(data))
		}
	}

	if _, err := f.ContentLength(context.Background(), server.URL+"/missing"); !errors.Is(err, bundlehttp.ErrNotFound) {
		t.Fatalf("ContentLength() error = %v, want ErrNotFound", err)
	}
}
