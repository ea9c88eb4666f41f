package bundle

import (
	"errors"
	"log/slog"
)

// Release drops one reference from each named bundle and from the
// dependencies recorded when it was made resident. Bundles whose count
// reaches zero are unloaded. Names that are not resident are ignored.
func (e *Engine) Release(names ...string) error {
	if err := e.checkUsable(false); err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := e.release(e.normalize(name), true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unload drops one reference from name, and from its recorded dependencies
// when andDependencies is set.
func (e *Engine) Unload(name string, andDependencies bool) error {
	if err := e.checkUsable(false); err != nil {
		return err
	}
	return e.release(e.normalize(name), andDependencies)
}

// ReleaseAll unloads every resident bundle regardless of reference count.
func (e *Engine) ReleaseAll() error {
	if err := e.checkUsable(false); err != nil {
		return err
	}
	removed, err := e.ledger.ReleaseAll()
	e.metrics.Resident.Set(0)
	e.logger.Debug("released all bundles", slog.Int("count", len(removed)))
	return err
}

func (e *Engine) release(name string, andDependencies bool) error {
	removed, err := e.ledger.Release(name, andDependencies)
	e.metrics.Resident.Set(float64(e.ledger.Len()))
	for _, n := range removed {
		e.logger.Debug("bundle unloaded", slog.String("bundle", n))
	}
	return err
}

// Resident reports whether name (after variant mapping) is resident.
func (e *Engine) Resident(name string) bool {
	_, ok := e.ledger.Get(e.normalize(name))
	return ok
}

// RefCount returns the reference count of name, or 0 if not resident.
func (e *Engine) RefCount(name string) int {
	return e.ledger.RefCount(e.normalize(name))
}

// LoadedNames returns the sorted names of every resident bundle.
func (e *Engine) LoadedNames() []string {
	return e.ledger.Names()
}
