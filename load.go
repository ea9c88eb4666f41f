package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/bundle/archive"
	bundlehttp "github.com/meigma/bundle/http"
	"github.com/meigma/bundle/manifest"
)

// load makes one bundle available: from the durable store when the
// persisted checksum matches the published hash, otherwise from the origin.
// It reports whether the bundle came from the store.
func (e *Engine) load(ctx context.Context, o origin, f *flight) (*archive.Bundle, bool, error) {
	name := f.name
	log := e.logger.With(slog.String("bundle", name))

	f.emit(StageChecking, 0, 0)
	expected := e.expectedHash(ctx, o, name)
	if b, ok := e.loadStored(name, expected, log); ok {
		f.emit(StageLoading, 0, 0)
		return b, true, nil
	}

	u := o.url(name)
	e.metrics.Fetches.Inc()
	data, err := e.fetcher.Fetch(ctx, u, func(done, total int64, _ error) {
		f.emit(StageDownloading, done, total)
	})
	if err != nil {
		e.metrics.FetchFailures.Inc()
		terr := &TransportError{Bundle: name, URL: u, Err: err}
		var statusErr *bundlehttp.StatusError
		if errors.As(err, &statusErr) {
			terr.StatusCode = statusErr.StatusCode
		}
		return nil, false, terr
	}
	e.metrics.FetchedBytes.Add(float64(len(data)))

	if err := expected.Verify(data); err != nil {
		e.metrics.FetchFailures.Inc()
		return nil, false, fmt.Errorf("bundle %s: %w", name, err)
	}

	f.emit(StageLoading, int64(len(data)), int64(len(data)))
	b, err := e.open(name, data)
	if err != nil {
		return nil, false, err
	}
	e.persist(name, expected, data, log)
	return b, false, nil
}

// unversioned is the checksum recorded for bundles fetched without a
// published hash. It never equals a real hash, so a later published hash
// replaces the stored copy.
const unversioned = "unversioned"

// loadStored serves name from the durable store when its persisted checksum
// equals expected. A mismatched checksum purges the stored copy. With no
// expected hash any recorded copy is served.
func (e *Engine) loadStored(name string, expected manifest.Hash, log *slog.Logger) (*archive.Bundle, bool) {
	if e.store == nil || e.checksums == nil {
		return nil, false
	}
	stored, ok := e.checksums.Checksum(name)
	if !expected.IsZero() && (!ok || stored != expected.String()) {
		if e.store.Has(name) {
			log.Info("purging stale bundle",
				slog.String("stored_hash", stored),
				slog.String("published_hash", expected.String()))
			e.metrics.StalePurges.Inc()
			e.purge(name, log)
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}

	data, ok := e.store.Get(name)
	if !ok {
		return nil, false
	}
	b, err := e.open(name, data)
	if err != nil {
		log.Warn("stored bundle unreadable", slog.Any("error", err))
		e.purge(name, log)
		return nil, false
	}
	e.metrics.CacheHits.Inc()
	log.Debug("bundle cache hit")
	return b, true
}

// persist writes fetched bytes and their hash to the durable stores.
// Bundles without a published hash are recorded as unversioned.
// Failures are logged; the bundle is still usable.
func (e *Engine) persist(name string, expected manifest.Hash, data []byte, log *slog.Logger) {
	if e.store == nil || e.checksums == nil {
		return
	}
	sum := expected.String()
	if expected.IsZero() {
		sum = unversioned
	}
	if err := e.store.Put(name, data); err != nil {
		log.Warn("cache write failed", slog.Any("error", err))
		return
	}
	if err := e.checksums.SetChecksum(name, sum); err != nil {
		log.Warn("checksum write failed", slog.Any("error", err))
	}
}

func (e *Engine) purge(name string, log *slog.Logger) {
	if err := e.store.Delete(name); err != nil {
		log.Warn("purge bundle failed", slog.Any("error", err))
	}
	if err := e.checksums.Delete(name); err != nil {
		log.Warn("purge checksum failed", slog.Any("error", err))
	}
}

// open applies the configured transform and decodes a bundle.
func (e *Engine) open(name string, data []byte) (*archive.Bundle, error) {
	if e.transform != nil {
		plain, err := e.transform.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("bundle %s: decrypt: %w", name, err)
		}
		data = plain
	}
	b, err := archive.Open(data)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", name, err)
	}
	return b, nil
}

// expectedHash returns the published content hash for name: the catalog
// hash when present, otherwise the CRC from the companion manifest. It
// returns the zero Hash when neither is available, including when the
// origin cannot be reached; callers then fall back to any stored copy.
func (e *Engine) expectedHash(ctx context.Context, o origin, name string) manifest.Hash {
	if o.catalog != nil {
		if h, ok := o.catalog.ContentHash(name); ok && !h.IsZero() {
			return h
		}
	}

	u := o.url(name) + manifest.CompanionSuffix
	ch := e.companions.DoChan(u, func() (any, error) {
		// Detached so one caller's cancellation does not fail the others.
		text, err := e.fetcher.FetchText(context.WithoutCancel(ctx), u)
		if err != nil {
			return manifest.Hash(""), err
		}
		crc, ok := manifest.ParseCRC(text)
		if !ok {
			return manifest.Hash(""), nil
		}
		return manifest.CRCHash(crc), nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return ""
	}
	log := e.logger.With(slog.String("bundle", name))
	if r.Err != nil {
		if errors.Is(r.Err, bundlehttp.ErrNotFound) {
			log.Info("no companion manifest; using stored copy if any")
		} else {
			log.Info("companion manifest unavailable", slog.Any("error", r.Err))
		}
		return ""
	}
	h, _ := r.Val.(manifest.Hash)
	if h.IsZero() {
		log.Info("companion manifest has no CRC")
	}
	return h
}
