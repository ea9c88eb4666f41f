package bundle

import (
	"context"
	"log/slog"
	"sync"
)

// flight is the single in-progress load for one normalized bundle name.
// Subscribers are served in subscription order when the load completes.
type flight struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs []*subscriber
	live int
}

type subscriber struct {
	progress *fileProgress
	done     chan flightResult // buffered; receives exactly one result
	resolved bool
	left     bool
}

type flightResult struct {
	fromCache bool
	err       error
}

// emit fans a progress update out to every live subscriber.
func (f *flight) emit(stage ProgressStage, done, total int64) {
	f.mu.Lock()
	sinks := make([]*fileProgress, 0, len(f.subs))
	for _, s := range f.subs {
		if !s.left && !s.resolved && s.progress != nil {
			sinks = append(sinks, s.progress)
		}
	}
	f.mu.Unlock()
	for _, p := range sinks {
		p.emit(stage, f.name, done, total)
	}
}

// acquire obtains one reference to the normalized bundle name, joining an
// in-flight load or starting one. It reports whether the bundle was served
// without a network transfer.
func (e *Engine) acquire(ctx context.Context, o origin, name string, progress *fileProgress) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false, ErrClosed
	}
	if err := e.ledger.Retain(name); err == nil {
		e.mu.Unlock()
		e.logger.Debug("bundle already resident", slog.String("bundle", name))
		return true, nil
	}
	f, joined := e.flights[name]
	if !joined {
		fctx, cancel := context.WithCancel(e.ctx)
		f = &flight{name: name, ctx: fctx, cancel: cancel}
		e.flights[name] = f
	}
	sub := &subscriber{progress: progress, done: make(chan flightResult, 1)}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.live++
	f.mu.Unlock()
	e.mu.Unlock()

	if joined {
		e.metrics.Coalesced.Inc()
		e.logger.Debug("joined in-flight load", slog.String("bundle", name))
	} else {
		go e.run(o, f)
	}

	select {
	case r := <-sub.done:
		return r.fromCache, r.err
	case <-ctx.Done():
		if e.leave(f, sub) {
			return false, ctx.Err()
		}
		// Resolved concurrently: drop the reference handed to us.
		if r := <-sub.done; r.err == nil {
			e.release(name, false)
		}
		return false, ctx.Err()
	}
}

// leave removes sub from f. It reports false if sub was already resolved.
// When no subscribers remain the load is cancelled and forgotten, so later
// acquisitions start a fresh load.
func (e *Engine) leave(f *flight, sub *subscriber) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.resolved {
		return false
	}
	sub.left = true
	f.live--
	if f.live == 0 {
		f.cancel()
		if e.flights[f.name] == f {
			delete(e.flights, f.name)
		}
		e.logger.Debug("abandoned load", slog.String("bundle", f.name))
	}
	return true
}

// run performs the load for f and resolves its subscribers.
func (e *Engine) run(o origin, f *flight) {
	defer f.cancel()
	b, fromCache, err := e.load(f.ctx, o, f)

	e.mu.Lock()
	if e.flights[f.name] == f {
		delete(e.flights, f.name)
	}
	if e.closed {
		err = ErrClosed
	}
	f.mu.Lock()
	var subs []*subscriber
	for _, s := range f.subs {
		if !s.left {
			s.resolved = true
			subs = append(subs, s)
		}
	}
	f.mu.Unlock()

	if err == nil {
		if len(subs) == 0 {
			_ = b.Close()
		} else {
			_, _, insertErr := e.ledger.Insert(f.name, b)
			if insertErr != nil {
				e.logger.Warn("discard duplicate handle", slog.String("bundle", f.name), slog.Any("error", insertErr))
			}
			for range subs[1:] {
				_ = e.ledger.Retain(f.name) //nolint:errcheck // slot inserted above under e.mu
			}
			e.metrics.Resident.Set(float64(e.ledger.Len()))
		}
	} else if b != nil {
		_ = b.Close()
	}
	e.mu.Unlock()

	for _, s := range subs {
		s.done <- flightResult{fromCache: fromCache, err: err}
	}
}
