// Package manifest resolves bundle catalogs.
//
// A catalog names every published bundle together with its content hash,
// its size, the bundles it depends on, and an optional variant tag. The
// [Manifest] built from a catalog is immutable: it answers dependency,
// hash, size, and variant questions and holds no caching state of its own.
//
// Bundles that are published without a catalog can still carry a change
// token in a companion "<name>.manifest" file; [ParseCRC] extracts it.
package manifest
