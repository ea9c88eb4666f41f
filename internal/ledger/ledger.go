// Package ledger tracks resident bundles and their reference counts.
//
// The ledger is a slot map keyed by bundle name. Each slot owns a handle and
// a reference count; removing a slot closes its handle. A name removed from
// the ledger cannot be released again until it is re-inserted, so handles
// are closed exactly once.
package ledger

import (
	"errors"
	"io"
	"sort"
	"sync"
)

// ErrNotResident is returned by Retain for names with no slot.
var ErrNotResident = errors.New("ledger: not resident")

type slot[H io.Closer] struct {
	handle H
	refs   int
}

// Ledger is safe for concurrent use.
type Ledger[H io.Closer] struct {
	mu    sync.Mutex
	slots map[string]*slot[H]
	deps  map[string][][]string
}

// New creates an empty ledger.
func New[H io.Closer]() *Ledger[H] {
	return &Ledger[H]{
		slots: make(map[string]*slot[H]),
		deps:  make(map[string][][]string),
	}
}

// Get returns the handle for name.
func (l *Ledger[H]) Get(name string) (H, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[name]
	if !ok {
		var zero H
		return zero, false
	}
	return s.handle, true
}

// RefCount returns the reference count for name, or 0 if absent.
func (l *Ledger[H]) RefCount(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[name]; ok {
		return s.refs
	}
	return 0
}

// Insert creates a slot for name with one reference. If a slot already
// exists, its count is incremented, h is closed, and the existing handle is
// returned. The boolean reports whether h was stored.
func (l *Ledger[H]) Insert(name string, h H) (H, bool, error) {
	l.mu.Lock()
	if s, ok := l.slots[name]; ok {
		s.refs++
		existing := s.handle
		l.mu.Unlock()
		return existing, false, h.Close()
	}
	l.slots[name] = &slot[H]{handle: h, refs: 1}
	l.mu.Unlock()
	return h, true, nil
}

// Retain adds a reference to an existing slot.
func (l *Ledger[H]) Retain(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[name]
	if !ok {
		return ErrNotResident
	}
	s.refs++
	return nil
}

// RecordDependencies stores the dependency closure of one acquisition of
// name. Records stack per acquisition, so a closure that changed between
// acquisitions is still released exactly.
func (l *Ledger[H]) RecordDependencies(name string, deps []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deps[name] = append(l.deps[name], append([]string(nil), deps...))
}

// Dependencies returns the most recent dependency record for name.
func (l *Ledger[H]) Dependencies(name string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := l.deps[name]
	if len(records) == 0 {
		return nil
	}
	return append([]string(nil), records[len(records)-1]...)
}

// popDependencies removes and returns the most recent record for name. The
// last record is kept and reused until name leaves the ledger.
func (l *Ledger[H]) popDependencies(name string) []string {
	records := l.deps[name]
	switch len(records) {
	case 0:
		return nil
	case 1:
		return records[0]
	}
	last := records[len(records)-1]
	l.deps[name] = records[:len(records)-1]
	return last
}

// Release drops one reference from name. If andDependencies is set, one
// reference is also dropped from each name in the most recent dependency
// record. Slots reaching
// zero are removed and their handles closed; the dependency record is
// forgotten once name itself is removed. Releasing an absent name is a no-op.
//
// Release returns the names whose slots were removed.
func (l *Ledger[H]) Release(name string, andDependencies bool) ([]string, error) {
	l.mu.Lock()
	s, ok := l.slots[name]
	if !ok {
		l.mu.Unlock()
		return nil, nil
	}

	var closing []H
	var removed []string
	drop := func(n string, s *slot[H]) {
		s.refs--
		if s.refs <= 0 {
			delete(l.slots, n)
			closing = append(closing, s.handle)
			removed = append(removed, n)
		}
	}

	drop(name, s)
	if andDependencies {
		for _, dep := range l.popDependencies(name) {
			if ds, ok := l.slots[dep]; ok {
				drop(dep, ds)
			}
		}
	}
	if _, resident := l.slots[name]; !resident {
		delete(l.deps, name)
	}
	l.mu.Unlock()

	return removed, closeAll(closing)
}

// ReleaseAll removes every slot regardless of reference count.
func (l *Ledger[H]) ReleaseAll() ([]string, error) {
	l.mu.Lock()
	closing := make([]H, 0, len(l.slots))
	removed := make([]string, 0, len(l.slots))
	for name, s := range l.slots {
		closing = append(closing, s.handle)
		removed = append(removed, name)
	}
	l.slots = make(map[string]*slot[H])
	l.deps = make(map[string][][]string)
	l.mu.Unlock()

	sort.Strings(removed)
	return removed, closeAll(closing)
}

// Names returns the sorted names of every resident slot.
func (l *Ledger[H]) Names() []string {
	l.mu.Lock()
	names := make([]string, 0, len(l.slots))
	for name := range l.slots {
		names = append(names, name)
	}
	l.mu.Unlock()
	sort.Strings(names)
	return names
}

// Len returns the number of resident slots.
func (l *Ledger[H]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func closeAll[H io.Closer](handles []H) error {
	var errs []error
	for _, h := range handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
