// Package cache defines the durable stores used by the bundle engine.
//
// A [Store] keeps the raw bytes of downloaded bundles so that a later run
// can load them without a network transfer. A [ChecksumStore] remembers the
// last content hash observed for each bundle name; the engine compares it
// with the catalog to decide whether a stored copy is stale.
//
// Implementations must be safe for concurrent use. See the disk subpackage
// for filesystem-backed implementations.
package cache

// Store provides name-addressed storage for raw bundle bytes.
//
// Bytes are stored exactly as published (before any decryption).
type Store interface {
	// Get returns the stored bytes for name.
	// Returns nil, false if nothing is stored.
	Get(name string) ([]byte, bool)

	// Has reports whether bytes are stored for name.
	Has(name string) bool

	// Put stores data for name, replacing any previous copy.
	// Replacement is atomic: readers see the old or the new bytes.
	Put(name string, data []byte) error

	// Delete removes the stored copy for name.
	// Implementations should treat missing entries as a no-op.
	Delete(name string) error

	// Clear removes every stored copy.
	Clear() error

	// MaxBytes returns the configured size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current size in bytes.
	SizeBytes() int64

	// Prune removes stored copies until the store is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}

// ChecksumStore persists the last-known content hash per bundle name.
type ChecksumStore interface {
	// Checksum returns the recorded hash for name.
	Checksum(name string) (sum string, ok bool)

	// SetChecksum records sum for name. The write either fully replaces the
	// previous value or leaves it untouched.
	SetChecksum(name, sum string) error

	// Delete forgets the hash for name. Missing entries are a no-op.
	Delete(name string) error

	// Clear forgets every recorded hash.
	Clear() error
}
