package bundle

import (
	"errors"
	"fmt"

	"github.com/meigma/bundle/archive"
	"github.com/meigma/bundle/crypt"
	bundlehttp "github.com/meigma/bundle/http"
	"github.com/meigma/bundle/internal/ledger"
	"github.com/meigma/bundle/manifest"
)

var (
	// ErrNotInitialized is returned when the engine is used before
	// Initialize or InitializeManifest succeeded.
	ErrNotInitialized = errors.New("bundle: engine not initialized")

	// ErrAlreadyInitialized is returned by a second initialization.
	ErrAlreadyInitialized = errors.New("bundle: engine already initialized")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("bundle: engine closed")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("bundle: transport error")

	// ErrBundleNotResident is returned by asset lookups on bundles that are
	// not resident.
	ErrBundleNotResident = errors.New("bundle: bundle not resident")

	// ErrDependencyFailed matches every *DependencyError.
	ErrDependencyFailed = errors.New("bundle: dependency failed")
)

// Errors re-exported from subpackages.
var (
	// ErrNotResident is returned when retaining a bundle with no resident slot.
	ErrNotResident = ledger.ErrNotResident

	// ErrManifestUnavailable is returned when the catalog cannot be transferred.
	ErrManifestUnavailable = manifest.ErrManifestUnavailable

	// ErrManifestMalformed is returned when the catalog is invalid or cyclic.
	ErrManifestMalformed = manifest.ErrManifestMalformed

	// ErrChecksumMismatch is returned when downloaded bytes do not match the
	// published content hash.
	ErrChecksumMismatch = manifest.ErrChecksumMismatch

	// ErrAssetNotFound is returned when a resident bundle has no matching asset.
	ErrAssetNotFound = archive.ErrAssetNotFound

	// ErrNotFound is returned when the origin answers 404.
	ErrNotFound = bundlehttp.ErrNotFound

	// ErrSaltTooShort is returned when a password salt is shorter than 8 bytes.
	ErrSaltTooShort = crypt.ErrSaltTooShort

	// ErrInvalidPadding is returned when decryption produces invalid padding.
	ErrInvalidPadding = crypt.ErrInvalidPadding
)

// TransportError reports a failed bundle transfer.
type TransportError struct {
	Bundle string
	URL    string
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bundle %s: transfer failed: %v", e.Bundle, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// DependencyError reports a bundle that failed because one of its
// transitive dependencies failed.
type DependencyError struct {
	Bundle     string
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("bundle %s: dependency %s failed: %v", e.Bundle, e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Is matches ErrDependencyFailed.
func (e *DependencyError) Is(target error) bool { return target == ErrDependencyFailed }
