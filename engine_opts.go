package bundle

import (
	"errors"
	"log/slog"
	nethttp "net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meigma/bundle/cache"
	"github.com/meigma/bundle/cache/disk"
	"github.com/meigma/bundle/crypt"
	bundlehttp "github.com/meigma/bundle/http"
)

// Option configures an Engine.
type Option func(*Engine) error

// Defaults applied by New.
const (
	// DefaultStoreSize is the size limit of the store created by WithCacheDir.
	DefaultStoreSize int64 = 512 << 20 // 512 MB

	// DefaultConcurrency bounds concurrent acquisitions within one file.
	DefaultConcurrency = 4
)

// Transform is applied to downloaded and cached bytes before they are
// decoded as a bundle. *crypt.Cipher implements Transform.
type Transform interface {
	Decrypt(data []byte) ([]byte, error)
}

// --- Caching Options ---

// WithCacheDir enables the durable store and checksum records in
// subdirectories of dir.
//
// This creates:
//   - dir/bundles/   - raw bundle bytes (512 MB)
//   - dir/checksums/ - last-seen content hash per bundle
func WithCacheDir(dir string) Option {
	return func(e *Engine) error {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
		store, err := disk.NewStore(
			filepath.Join(dir, "bundles"),
			disk.WithMaxBytes(DefaultStoreSize),
		)
		if err != nil {
			return err
		}
		checksums, err := disk.NewChecksumStore(filepath.Join(dir, "checksums"))
		if err != nil {
			return err
		}
		e.store = store
		e.checksums = checksums
		return nil
	}
}

// WithStore sets a custom store for raw bundle bytes.
// Import github.com/meigma/bundle/cache/disk for the disk implementation.
func WithStore(store cache.Store) Option {
	return func(e *Engine) error {
		e.store = store
		return nil
	}
}

// WithChecksumStore sets a custom store for persisted checksums.
func WithChecksumStore(checksums cache.ChecksumStore) Option {
	return func(e *Engine) error {
		e.checksums = checksums
		return nil
	}
}

// --- Transport Options ---

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(client *nethttp.Client) Option {
	return func(e *Engine) error {
		e.httpOpts = append(e.httpOpts, bundlehttp.WithClient(client))
		return nil
	}
}

// WithHeaders sets additional headers on every request.
func WithHeaders(headers nethttp.Header) Option {
	return func(e *Engine) error {
		e.httpOpts = append(e.httpOpts, bundlehttp.WithHeaders(headers))
		return nil
	}
}

// WithProgressInterval sets the minimum spacing between byte progress
// events for one transfer. Defaults to 16ms.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) error {
		if d < 0 {
			return errors.New("progress interval must be non-negative")
		}
		e.httpOpts = append(e.httpOpts, bundlehttp.WithProgressInterval(d))
		return nil
	}
}

// WithCacheBusting controls the timestamp query appended to bundle
// requests. Enabled by default.
func WithCacheBusting(enabled bool) Option {
	return func(e *Engine) error {
		e.httpOpts = append(e.httpOpts, bundlehttp.WithCacheBusting(enabled))
		return nil
	}
}

// WithNow overrides the clock used for cache-busting timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) error {
		e.httpOpts = append(e.httpOpts, bundlehttp.WithNow(now))
		return nil
	}
}

// --- Loading Options ---

// WithVariants sets the accepted variant tags, most preferred first.
func WithVariants(variants ...string) Option {
	return func(e *Engine) error {
		e.variants = append([]string(nil), variants...)
		return nil
	}
}

// WithTransform sets the transform applied before bundles are decoded.
func WithTransform(t Transform) Option {
	return func(e *Engine) error {
		e.transform = t
		return nil
	}
}

// WithPassword decrypts bundles with a key derived from password and salt.
// The salt must be at least 8 bytes.
func WithPassword(password, salt string) Option {
	return func(e *Engine) error {
		c, err := crypt.New([]byte(password), []byte(salt))
		if err != nil {
			return err
		}
		e.transform = c
		return nil
	}
}

// WithConcurrency bounds how many bundles of one file (its dependencies and
// the file itself) are acquired at once. Defaults to DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return errors.New("concurrency must be >= 1")
		}
		e.concurrency = n
		return nil
	}
}

// --- Observability Options ---

// WithLogger sets a logger for the engine.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the collectors updated by the engine.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithRegisterer creates engine collectors and registers them with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) error {
		m, err := NewMetrics(reg)
		if err != nil {
			return err
		}
		e.metrics = m
		return nil
	}
}
