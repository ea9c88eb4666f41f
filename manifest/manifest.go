package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// MediaTypeBundle is the media type recorded in bundle descriptors.
const MediaTypeBundle = "application/vnd.meigma.bundle.v1"

// CatalogVersion is the only catalog version this package understands.
const CatalogVersion = 1

// Entry describes one bundle in a catalog.
type Entry struct {
	// Name is the bundle name. Variant bundles are named "<base>.<variant>".
	Name string `json:"name"`

	// Descriptor optionally carries the published blob's digest and size.
	Descriptor *ocispec.Descriptor `json:"descriptor,omitempty"`

	// Hash is an opaque content hash, used when Descriptor has no digest.
	Hash string `json:"hash,omitempty"`

	// CRC is a CRC32 change token, used when no other hash is recorded.
	CRC uint32 `json:"crc,omitempty"`

	// Variant is the variant tag for variant bundles.
	Variant string `json:"variant,omitempty"`

	// Dependencies lists bundle names (or variant bases) this bundle needs.
	Dependencies []string `json:"dependencies,omitempty"`
}

// ContentHash returns the hash that identifies the entry's content.
// Precedence: descriptor digest, opaque hash, CRC.
func (e *Entry) ContentHash() Hash {
	if e.Descriptor != nil && e.Descriptor.Digest != "" {
		return Hash(e.Descriptor.Digest.String())
	}
	if e.Hash != "" {
		return Hash(e.Hash)
	}
	if e.CRC != 0 {
		return CRCHash(e.CRC)
	}
	return ""
}

type catalog struct {
	Version int     `json:"version"`
	Bundles []Entry `json:"bundles"`
}

// Getter retrieves a resource in full.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Manifest is an immutable snapshot of a bundle catalog.
type Manifest struct {
	names      []string
	entries    map[string]Entry
	deps       map[string][]string
	hashes     map[string]Hash
	sizes      map[string]int64
	variants   map[string][]string // base -> variant-qualified names, catalog order
	variantOf  map[string]string   // variant-qualified name -> base
	variantTag map[string]string   // variant-qualified name -> tag
}

// Load fetches and parses the catalog at url.
func Load(ctx context.Context, g Getter, url string) (*Manifest, error) {
	data, err := g.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrManifestUnavailable, url, err)
	}
	return Parse(data)
}

// Parse decodes a JSON catalog.
func Parse(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var c catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %w", ErrManifestMalformed, err)
	}
	if c.Version != CatalogVersion {
		return nil, fmt.Errorf("%w: unsupported catalog version %d", ErrManifestMalformed, c.Version)
	}
	return New(c.Bundles...)
}

// Encode renders entries as a JSON catalog accepted by Parse.
func Encode(entries ...Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.MarshalIndent(catalog{Version: CatalogVersion, Bundles: entries}, "", "  ")
}

// New builds a Manifest from entries, validating names, variants,
// dependency references, and acyclicity.
func New(entries ...Entry) (*Manifest, error) {
	m := &Manifest{
		names:      make([]string, 0, len(entries)),
		entries:    make(map[string]Entry, len(entries)),
		deps:       make(map[string][]string, len(entries)),
		hashes:     make(map[string]Hash, len(entries)),
		sizes:      make(map[string]int64),
		variants:   make(map[string][]string),
		variantOf:  make(map[string]string),
		variantTag: make(map[string]string),
	}

	for i := range entries {
		e := entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrManifestMalformed, i)
		}
		if _, dup := m.entries[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate bundle %q", ErrManifestMalformed, e.Name)
		}
		if e.Variant != "" {
			base, ok := strings.CutSuffix(e.Name, "."+e.Variant)
			if !ok || base == "" {
				return nil, fmt.Errorf("%w: bundle %q does not end in variant %q", ErrManifestMalformed, e.Name, e.Variant)
			}
			m.variants[base] = append(m.variants[base], e.Name)
			m.variantOf[e.Name] = base
			m.variantTag[e.Name] = e.Variant
		}
		e.Dependencies = slices.Clone(e.Dependencies)
		m.names = append(m.names, e.Name)
		m.entries[e.Name] = e
		m.deps[e.Name] = e.Dependencies
		if h := e.ContentHash(); !h.IsZero() {
			m.hashes[e.Name] = h
		}
		if e.Descriptor != nil && e.Descriptor.Size > 0 {
			m.sizes[e.Name] = e.Descriptor.Size
		}
	}

	for _, name := range m.names {
		for _, dep := range m.deps[name] {
			if !m.Contains(dep) {
				return nil, fmt.Errorf("%w: bundle %q depends on unknown bundle %q", ErrManifestMalformed, name, dep)
			}
		}
	}
	if err := m.checkCycles(); err != nil {
		return nil, err
	}
	return m, nil
}

// Names returns every bundle name in catalog order.
func (m *Manifest) Names() []string {
	return slices.Clone(m.names)
}

// Entries returns a copy of every catalog entry in catalog order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, m.entries[name])
	}
	return out
}

// Contains reports whether name is a bundle or a variant base in the catalog.
func (m *Manifest) Contains(name string) bool {
	if _, ok := m.entries[name]; ok {
		return true
	}
	_, ok := m.variants[name]
	return ok
}

// Dependencies returns the direct dependencies of name, in catalog order.
// It returns nil for unknown names and names without dependencies.
func (m *Manifest) Dependencies(name string) []string {
	return slices.Clone(m.deps[name])
}

// ContentHash returns the recorded content hash for name.
func (m *Manifest) ContentHash(name string) (Hash, bool) {
	h, ok := m.hashes[name]
	return h, ok
}

// Size returns the recorded size in bytes for name.
func (m *Manifest) Size(name string) (int64, bool) {
	n, ok := m.sizes[name]
	return n, ok
}

// Variants returns the variant-qualified names registered for base.
func (m *Manifest) Variants(base string) []string {
	return slices.Clone(m.variants[base])
}
