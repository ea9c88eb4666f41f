package archive

import (
	"fmt"
	"strings"
)

// Type identifies the kind of object an asset holds.
type Type string

// Asset types. TypeAny matches every type during lookup.
const (
	TypeAny     Type = ""
	TypeModel   Type = "model"
	TypeScene   Type = "scene"
	TypeTexture Type = "texture"
	TypeAudio   Type = "audio"
	TypeText    Type = "text"
	TypeBlob    Type = "blob"
)

// ParseType parses a type name. The empty string and "any" parse to TypeAny.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(s)); t {
	case TypeAny, TypeModel, TypeScene, TypeTexture, TypeAudio, TypeText, TypeBlob:
		return t, nil
	case "any":
		return TypeAny, nil
	default:
		return "", fmt.Errorf("unknown asset type %q", s)
	}
}

// Matches reports whether an asset of type t satisfies a lookup for want.
func (t Type) Matches(want Type) bool {
	return want == TypeAny || t == want
}

// Compression identifies the compression algorithm used for an asset.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// Asset is a named, typed object stored in a bundle.
type Asset struct {
	Name string
	Type Type
	Data []byte
}

// AssetInfo describes a stored asset without materializing it.
type AssetInfo struct {
	Name        string
	Type        Type
	Compression Compression
	// Size is the uncompressed size in bytes.
	Size uint64
	// StoredSize is the size of the stored (possibly compressed) bytes.
	StoredSize uint64
}
