package archive

import "errors"

var (
	// ErrInvalidBundle is returned when bytes are not a well-formed bundle.
	ErrInvalidBundle = errors.New("archive: invalid bundle")

	// ErrUnsupportedVersion is returned for bundles written by a newer format.
	ErrUnsupportedVersion = errors.New("archive: unsupported format version")

	// ErrAssetNotFound is returned when no asset with the requested name and
	// type exists in the bundle.
	ErrAssetNotFound = errors.New("archive: asset not found")

	// ErrHashMismatch is returned when an asset's content does not match its
	// recorded hash.
	ErrHashMismatch = errors.New("archive: hash mismatch")

	// ErrClosed is returned by loads on a closed bundle.
	ErrClosed = errors.New("archive: bundle closed")
)
