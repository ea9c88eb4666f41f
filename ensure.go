package bundle

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// FileResult is the outcome for one requested file of a batch.
type FileResult struct {
	// Index is the position of the file in the request.
	Index int
	// Name is the name as requested.
	Name string
	// Resolved is the normalized (variant-mapped) name that was loaded.
	Resolved string
	// Err is nil when the file and its dependencies are resident.
	Err error
	// FromCache is set when the file needed no network transfer.
	FromCache bool
}

// Batch tracks an EnsureResident request.
type Batch struct {
	done    chan struct{}
	results []FileResult
	err     error
}

// Done is closed when every file has been processed.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch completes or ctx ends, and returns Err.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns per-file results in request order, or nil while the batch
// is still running.
func (b *Batch) Results() []FileResult {
	select {
	case <-b.done:
		return b.results
	default:
		return nil
	}
}

// Err returns the joined per-file errors, or nil while the batch is running.
func (b *Batch) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

func (b *Batch) finish() {
	errs := make([]error, 0, len(b.results))
	for _, r := range b.results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	b.err = errors.Join(errs...)
	close(b.done)
}

// ensureConfig holds options for EnsureResident.
type ensureConfig struct {
	progress ProgressFunc
}

// EnsureOption configures EnsureResident.
type EnsureOption func(*ensureConfig)

// WithProgress sets a callback for per-file progress events.
func WithProgress(fn ProgressFunc) EnsureOption {
	return func(cfg *ensureConfig) {
		cfg.progress = fn
	}
}

// EnsureResident makes names and their dependency closures resident.
//
// Files are processed in request order. A file's dependencies are acquired
// concurrently with the file itself. Every resident bundle gains one
// reference per successful file that needed it; release them with Release.
//
// A failing file does not stop the batch. A file is reported as failed when
// it or any of its dependencies failed, and the references it acquired are
// dropped again. Concurrent requests for the same bundle share one transfer.
//
// Cancelling ctx abandons the remaining files; a transfer is cancelled once
// no request is waiting on it.
func (e *Engine) EnsureResident(ctx context.Context, names []string, opts ...EnsureOption) *Batch {
	var cfg ensureConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &Batch{
		done:    make(chan struct{}),
		results: make([]FileResult, len(names)),
	}
	for i, name := range names {
		b.results[i] = FileResult{Index: i, Name: name, Resolved: name}
	}

	o, err := e.snapshot()
	if err != nil {
		for i := range b.results {
			b.results[i].Err = err
			newFileProgress(cfg.progress, i, len(names), names[i]).finish(err)
		}
		b.finish()
		return b
	}

	go func() {
		defer b.finish()
		for i, name := range names {
			p := newFileProgress(cfg.progress, i, len(names), name)
			b.results[i] = e.ensureFile(ctx, o, i, name, p)
		}
	}()
	return b
}

// ensureFile acquires one requested name and its dependency closure.
func (e *Engine) ensureFile(ctx context.Context, o origin, index int, name string, p *fileProgress) FileResult {
	res := FileResult{Index: index, Name: name, Resolved: name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		p.finish(err)
		return res
	}

	resolved, deps := o.closure(name, e.variants)
	res.Resolved = resolved
	p.emit(StageResolving, resolved, 0, 0)

	targets := append(append(make([]string, 0, len(deps)+1), deps...), resolved)
	outcomes := make([]flightResult, len(targets))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			fromCache, err := e.acquire(ctx, o, target, p)
			outcomes[i] = flightResult{fromCache: fromCache, err: err}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // outcomes carry per-name errors

	primary := outcomes[len(outcomes)-1]
	res.FromCache = primary.fromCache
	res.Err = primary.err
	if res.Err == nil {
		for i, dep := range deps {
			if err := outcomes[i].err; err != nil {
				res.Err = &DependencyError{Bundle: resolved, Dependency: dep, Err: err}
				break
			}
		}
	}

	if res.Err != nil {
		// Roll back the references this file did obtain.
		for i, target := range targets {
			if outcomes[i].err == nil {
				e.release(target, false)
			}
		}
		e.logger.Debug("ensure failed",
			slog.String("bundle", resolved),
			slog.Any("error", res.Err))
		p.finish(res.Err)
		return res
	}

	e.ledger.RecordDependencies(resolved, deps)
	p.finish(nil)
	return res
}
