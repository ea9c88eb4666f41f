package manifest

import "errors"

var (
	// ErrManifestUnavailable is returned when the catalog cannot be transferred.
	ErrManifestUnavailable = errors.New("manifest: unavailable")

	// ErrManifestMalformed is returned when the catalog cannot be decoded,
	// references an unknown bundle, or contains a dependency cycle.
	ErrManifestMalformed = errors.New("manifest: malformed")

	// ErrChecksumMismatch is returned when content does not match its hash.
	ErrChecksumMismatch = errors.New("manifest: checksum mismatch")
)
