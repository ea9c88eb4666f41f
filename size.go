package bundle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DownloadSize returns the number of bytes EnsureResident would transfer
// for names and their dependency closures. Bundles that are resident, or
// stored locally with a checksum matching the published hash, are skipped.
// Catalog sizes are used when known; otherwise the origin is probed.
// No bundle is loaded.
func (e *Engine) DownloadSize(ctx context.Context, names []string) (int64, error) {
	o, err := e.snapshot()
	if err != nil {
		return 0, err
	}

	var targets []string
	seen := make(map[string]struct{})
	for _, name := range names {
		resolved, deps := o.closure(name, e.variants)
		for _, n := range append(deps, resolved) {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			targets = append(targets, n)
		}
	}

	var (
		mu    sync.Mutex
		total int64
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, name := range targets {
		if _, resident := e.ledger.Get(name); resident {
			continue
		}
		g.Go(func() error {
			if e.storedFresh(gctx, o, name) {
				return nil
			}
			size, err := e.remoteSize(gctx, o, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("bundle %s: %w", name, err))
				return nil
			}
			total += size
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // per-name errors are collected above
	if err := ctx.Err(); err != nil {
		return total, err
	}
	return total, errors.Join(errs...)
}

// storedFresh reports whether EnsureResident would serve name from the
// local store: its checksum matches the published hash, or no hash is
// published and a copy is recorded.
func (e *Engine) storedFresh(ctx context.Context, o origin, name string) bool {
	if e.store == nil || e.checksums == nil || !e.store.Has(name) {
		return false
	}
	stored, ok := e.checksums.Checksum(name)
	if !ok {
		return false
	}
	expected := e.expectedHash(ctx, o, name)
	return expected.IsZero() || stored == expected.String()
}

func (e *Engine) remoteSize(ctx context.Context, o origin, name string) (int64, error) {
	if o.catalog != nil {
		if size, ok := o.catalog.Size(name); ok && size > 0 {
			return size, nil
		}
	}
	u := o.url(name)
	ch := e.sizes.DoChan(u, func() (any, error) {
		return e.fetcher.ContentLength(context.WithoutCancel(ctx), u)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return 0, r.Err
		}
		size, _ := r.Val.(int64)
		return size, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ClearCache removes every durable bundle copy and persisted checksum.
// Resident bundles are not affected.
func (e *Engine) ClearCache() error {
	if err := e.checkUsable(false); err != nil {
		return err
	}
	var errs []error
	if e.store != nil {
		errs = append(errs, e.store.Clear())
	}
	if e.checksums != nil {
		errs = append(errs, e.checksums.Clear())
	}
	return errors.Join(errs...)
}
