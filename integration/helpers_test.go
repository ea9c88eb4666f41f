//go:build integration

package integration

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/bundle"
	"github.com/meigma/bundle/archive"
	"github.com/meigma/bundle/manifest"
)

const webRoot = "/usr/share/nginx/html"

// --- Origin Container Setup ---

var (
	originOnce      sync.Once
	originContainer testcontainers.Container
	originURL       string
	originErr       error
)

// getOrigin returns the shared nginx origin, starting the container if needed.
// The container is shared across all tests for performance.
func getOrigin(tb testing.TB) (testcontainers.Container, string) {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	originOnce.Do(func() {
		originContainer, originURL, originErr = startOriginContainer(context.Background())
	})

	if originErr != nil {
		tb.Fatalf("start origin container: %v", originErr)
	}

	return originContainer, originURL
}

// startOriginContainer starts an nginx container and returns its base URL.
func startOriginContainer(ctx context.Context) (testcontainers.Container, string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "nginx:1.27-alpine",
		ExposedPorts: []string{"80/tcp"},
		WaitingFor:   wait.ForHTTP("/").WithPort("80/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start nginx container: %w", err)
	}

	// Container cleanup is handled by the testcontainers Reaper.

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("resolve origin host: %w", err)
	}

	port, err := container.MappedPort(ctx, "80/tcp")
	if err != nil {
		return nil, "", fmt.Errorf("resolve origin port: %w", err)
	}

	return container, fmt.Sprintf("http://%s:%s/", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Published Origin ---

// origin publishes files under a per-test directory of the nginx web root.
type origin struct {
	tb        testing.TB
	container testcontainers.Container
	dir       string
	base      string
}

// newOrigin returns an origin whose base URL is unique to the test.
func newOrigin(tb testing.TB) *origin {
	tb.Helper()
	container, url := getOrigin(tb)
	dir := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	return &origin{tb: tb, container: container, dir: dir, base: url + dir + "/"}
}

// URL returns the base URL bundles are published under.
func (o *origin) URL() string {
	return o.base
}

// publish copies data into the container at name, relative to the base URL.
func (o *origin) publish(name string, data []byte) {
	o.tb.Helper()
	target := path.Join(webRoot, o.dir, name)
	err := o.container.CopyToContainer(context.Background(), data, target, 0o644)
	require.NoError(o.tb, err, "publish %s", name)
}

// publishBundle packs assets into a bundle, publishes it with a companion
// manifest, and returns the packed bytes.
func (o *origin) publishBundle(name string, assets map[string][]byte) []byte {
	o.tb.Helper()
	data := packBundle(o.tb, name, assets)
	o.publish(name, data)
	text, err := manifest.FormatCompanion(data)
	require.NoError(o.tb, err)
	o.publish(name+manifest.CompanionSuffix, text)
	return data
}

// publishCatalog publishes entries as catalog.json.
func (o *origin) publishCatalog(entries ...manifest.Entry) {
	o.tb.Helper()
	data, err := manifest.Encode(entries...)
	require.NoError(o.tb, err)
	o.publish("catalog.json", data)
}

// --- Engine Factory ---

// newTestEngine creates an engine pointed at o. With catalog set the engine
// reads catalog.json; otherwise it uses companion manifests.
func newTestEngine(tb testing.TB, o *origin, catalog bool, opts ...bundle.Option) *bundle.Engine {
	tb.Helper()

	e, err := bundle.New(opts...)
	require.NoError(tb, err, "create engine")
	tb.Cleanup(func() { _ = e.Close() })

	if catalog {
		err = e.InitializeManifest(context.Background(), o.URL(), "catalog.json")
	} else {
		err = e.Initialize(context.Background(), o.URL())
	}
	require.NoError(tb, err, "initialize engine")
	return e
}

// --- Test Data Helpers ---

// packBundle packs assets as blobs, typed by the asset name's prefix
// ("model/", "texture/", ...) when it has one.
func packBundle(tb testing.TB, name string, assets map[string][]byte) []byte {
	tb.Helper()
	list := make([]archive.Asset, 0, len(assets))
	for assetName, content := range assets {
		typ := archive.TypeBlob
		if prefix, _, ok := strings.Cut(assetName, "/"); ok {
			if parsed, err := archive.ParseType(prefix); err == nil && parsed != archive.TypeAny {
				typ = parsed
			}
		}
		list = append(list, archive.Asset{Name: assetName, Type: typ, Data: content})
	}
	data, err := archive.Pack(name, list)
	require.NoError(tb, err, "pack %s", name)
	return data
}

// makeCompressibleContent creates content that benefits from compression.
func makeCompressibleContent(size int) []byte {
	pattern := []byte("This is a repeating pattern for compression testing. ")
	result := make([]byte, 0, size)
	for len(result) < size {
		result = append(result, pattern...)
	}
	return result[:size]
}

// makeRandomContent creates random binary content.
func makeRandomContent(size int) []byte {
	data := make([]byte, size)
	_, _ = rand.Read(data)
	return data
}

// --- Assertion Helpers ---

// assertAssets verifies that a resident bundle holds the expected assets.
func assertAssets(tb testing.TB, e *bundle.Engine, bundleName string, expected map[string][]byte) {
	tb.Helper()

	for assetName, want := range expected {
		asset, err := e.GetAsset(bundleName, assetName, archive.TypeAny)
		require.NoError(tb, err, "GetAsset(%q, %q)", bundleName, assetName)
		require.Equal(tb, want, asset.Data, "content mismatch for %q", assetName)
	}
}
