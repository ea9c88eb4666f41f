package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/bundle/archive"
	"github.com/meigma/bundle/cache"
	bundlehttp "github.com/meigma/bundle/http"
	"github.com/meigma/bundle/internal/ledger"
	"github.com/meigma/bundle/manifest"
)

// Engine loads bundles from an origin, keeps them resident with reference
// counts, and serves assets from resident bundles.
//
// An Engine is constructed with New, pointed at an origin with Initialize or
// InitializeManifest, and disposed with Close. All methods are safe for
// concurrent use.
type Engine struct {
	logger      *slog.Logger
	metrics     *Metrics
	httpOpts    []bundlehttp.Option
	fetcher     *bundlehttp.Fetcher
	store       cache.Store         // raw bundle bytes, optional
	checksums   cache.ChecksumStore // persisted content hashes, optional
	transform   Transform
	variants    []string
	concurrency int

	ledger *ledger.Ledger[*archive.Bundle]

	ctx    context.Context // cancelled by Close; parent of every flight
	cancel context.CancelFunc

	mu           sync.Mutex
	baseURL      string
	manifestName string
	catalog      *manifest.Manifest // nil in the per-file CRC flow
	initialized  bool
	closed       bool
	flights      map[string]*flight

	companions singleflight.Group
	sizes      singleflight.Group
}

// New creates an Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		concurrency: DefaultConcurrency,
		ledger:      ledger.New[*archive.Bundle](),
		flights:     make(map[string]*flight),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.metrics == nil {
		m, err := NewMetrics(nil)
		if err != nil {
			return nil, err
		}
		e.metrics = m
	}
	e.fetcher = bundlehttp.New(e.httpOpts...)
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e, nil
}

// Initialize points the engine at baseURL using the per-file flow: each
// bundle's change token is read from its companion "<name>.manifest".
func (e *Engine) Initialize(ctx context.Context, baseURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return err
	}
	return e.setOrigin(base, "", nil)
}

// InitializeManifest points the engine at baseURL and loads the catalog at
// baseURL+manifestName. Dependencies, variants, and content hashes come from
// the catalog; companion manifests are consulted only for bundles the
// catalog has no hash for.
func (e *Engine) InitializeManifest(ctx context.Context, baseURL, manifestName string) error {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return err
	}
	if manifestName == "" {
		return errors.New("manifest name is empty")
	}
	if err := e.checkUsable(false); err != nil {
		return err
	}
	catalog, err := manifest.Load(ctx, e.fetcher, base+manifestName)
	if err != nil {
		return err
	}
	return e.setOrigin(base, manifestName, catalog)
}

func (e *Engine) setOrigin(base, manifestName string, catalog *manifest.Manifest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.initialized {
		e.logger.Info("engine already initialized", slog.String("base_url", e.baseURL))
		return ErrAlreadyInitialized
	}
	e.baseURL = base
	e.manifestName = manifestName
	e.catalog = catalog
	e.initialized = true
	e.logger.Debug("engine initialized",
		slog.String("base_url", base),
		slog.String("manifest", manifestName))
	return nil
}

// ReloadManifest fetches the catalog again and replaces it. Resident
// bundles are untouched; the new hashes apply to future staleness checks.
func (e *Engine) ReloadManifest(ctx context.Context) error {
	e.mu.Lock()
	base, name, initialized, closed := e.baseURL, e.manifestName, e.initialized, e.closed
	e.mu.Unlock()
	switch {
	case closed:
		return ErrClosed
	case !initialized:
		return ErrNotInitialized
	case name == "":
		return errors.New("engine was initialized without a catalog")
	}
	catalog, err := manifest.Load(ctx, e.fetcher, base+name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.catalog = catalog
	e.mu.Unlock()
	return nil
}

// BaseURL returns the origin the engine was initialized with.
func (e *Engine) BaseURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseURL
}

// Manifest returns the current catalog, or nil in the per-file flow.
func (e *Engine) Manifest() *manifest.Manifest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog
}

// Close cancels in-flight transfers and releases every resident bundle.
// Operations after Close fail with ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	_, err := e.ledger.ReleaseAll()
	e.metrics.Resident.Set(0)
	return err
}

// origin is a consistent snapshot of the engine's origin state.
type origin struct {
	base    string
	catalog *manifest.Manifest
}

func (e *Engine) snapshot() (origin, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return origin{}, ErrClosed
	}
	if !e.initialized {
		return origin{}, ErrNotInitialized
	}
	return origin{base: e.baseURL, catalog: e.catalog}, nil
}

// checkUsable reports ErrClosed, and ErrNotInitialized when requireInit is set.
func (e *Engine) checkUsable(requireInit bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if requireInit && !e.initialized {
		return ErrNotInitialized
	}
	return nil
}

// normalize maps a requested name to the variant the engine loads.
func (e *Engine) normalize(name string) string {
	e.mu.Lock()
	catalog := e.catalog
	e.mu.Unlock()
	return catalog.ResolveVariant(name, e.variants)
}

// closure returns the normalized name and its dependency closure.
func (o origin) closure(name string, variants []string) (string, []string) {
	resolved := o.catalog.ResolveVariant(name, variants)
	if o.catalog == nil {
		return resolved, nil
	}
	return resolved, o.catalog.Closure(resolved, variants)
}

func (o origin) url(name string) string {
	return o.base + name
}

func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("base url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q: missing host", raw)
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw, nil
}
