package bundle

import (
	"bytes"
	"fmt"
	"hash/crc32"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/require"

	"github.com/meigma/bundle/archive"
	"github.com/meigma/bundle/manifest"
)

// testOrigin is an HTTP origin that serves bundles from memory and counts
// requests per path.
type testOrigin struct {
	t      *testing.T
	server *httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
	gates map[string]chan struct{}
}

func newTestOrigin(t *testing.T) *testOrigin {
	t.Helper()
	o := &testOrigin{
		t:     t,
		files: make(map[string][]byte),
		hits:  make(map[string]int),
		gates: make(map[string]chan struct{}),
	}
	o.server = httptest.NewServer(nethttp.HandlerFunc(o.serve))
	t.Cleanup(o.server.Close)
	return o
}

func (o *testOrigin) serve(w nethttp.ResponseWriter, r *nethttp.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	o.mu.Lock()
	if r.Method == nethttp.MethodGet {
		o.hits[path]++
	}
	data, ok := o.files[path]
	gate := o.gates[path]
	o.mu.Unlock()

	if gate != nil && r.Method == nethttp.MethodGet {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if !ok {
		nethttp.NotFound(w, r)
		return
	}
	nethttp.ServeContent(w, r, path, time.Time{}, bytes.NewReader(data))
}

// URL returns the base URL, with a trailing slash.
func (o *testOrigin) URL() string {
	return o.server.URL + "/"
}

func (o *testOrigin) put(path string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[path] = data
}

func (o *testOrigin) remove(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.files, path)
}

// hold blocks GET requests for path until the returned function is called.
func (o *testOrigin) hold(path string) func() {
	gate := make(chan struct{})
	o.mu.Lock()
	o.gates[path] = gate
	o.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.gates, path)
			o.mu.Unlock()
			close(gate)
		})
	}
}

func (o *testOrigin) hitCount(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

// putBundle packs a bundle with a single model asset named after the last
// path element of name, serves it, and returns the packed bytes.
func (o *testOrigin) putBundle(name, content string) []byte {
	o.t.Helper()
	data := packBundle(o.t, name, content)
	o.put(name, data)
	return data
}

// putCompanion serves "<name>.manifest" with the CRC of data.
func (o *testOrigin) putCompanion(name string, data []byte) {
	text := fmt.Sprintf("ManifestFileVersion: 0\nCRC: %d\nHashes:\n  AssetFileHash:\n    serializedVersion: 2\n", crc32.ChecksumIEEE(data))
	o.put(name+manifest.CompanionSuffix, []byte(text))
}

// putCatalog serves entries as catalog.json.
func (o *testOrigin) putCatalog(entries ...manifest.Entry) {
	o.t.Helper()
	data, err := manifest.Encode(entries...)
	require.NoError(o.t, err)
	o.put("catalog.json", data)
}

func packBundle(t *testing.T, name, content string) []byte {
	t.Helper()
	data, err := archive.Pack(name, []archive.Asset{
		{Name: assetName(name), Type: archive.TypeModel, Data: []byte(content)},
	})
	require.NoError(t, err)
	return data
}

func assetName(bundleName string) string {
	if i := strings.LastIndexByte(bundleName, '/'); i >= 0 {
		return bundleName[i+1:]
	}
	return bundleName
}

// entry returns a catalog entry for data with a sha256 digest hash.
func entry(name string, data []byte, deps ...string) manifest.Entry {
	return manifest.Entry{
		Name:         name,
		Hash:         manifest.DigestHash(data).String(),
		Dependencies: deps,
	}
}

// descriptorFor returns a descriptor carrying the digest and size of data.
func descriptorFor(data []byte) *ocispec.Descriptor {
	return &ocispec.Descriptor{
		MediaType: manifest.MediaTypeBundle,
		Digest:    digest.FromBytes(data),
		Size:      int64(len(data)),
	}
}

// progressRecorder collects progress events.
type progressRecorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *progressRecorder) record(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *progressRecorder) snapshot() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProgressEvent(nil), r.events...)
}
