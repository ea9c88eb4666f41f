package archive

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// MaxAssetSize bounds the uncompressed size of a single asset.
const MaxAssetSize = 1 << 30

// DefaultMinCompressSize is the size below which DefaultSkipCompression
// stores assets uncompressed.
const DefaultMinCompressSize = 256

// SkipCompressionFunc returns true when an asset should be stored uncompressed.
// It is called once per asset and should be inexpensive.
type SkipCompressionFunc func(name string, size int) bool

// DefaultSkipCompression returns a SkipCompressionFunc that skips small assets
// and names with known already-compressed extensions.
func DefaultSkipCompression(minSize int) SkipCompressionFunc {
	return func(name string, size int) bool {
		if minSize > 0 && size < minSize {
			return true
		}
		_, ok := skipCompressionExts[strings.ToLower(path.Ext(name))]
		return ok
	}
}

var skipCompressionExts = map[string]struct{}{
	".7z":   {},
	".aac":  {},
	".avif": {},
	".br":   {},
	".flac": {},
	".gif":  {},
	".gz":   {},
	".jpeg": {},
	".jpg":  {},
	".mp3":  {},
	".mp4":  {},
	".ogg":  {},
	".opus": {},
	".png":  {},
	".webm": {},
	".webp": {},
	".zip":  {},
	".zst":  {},
}

// packConfig holds configuration for bundle creation.
type packConfig struct {
	compression     Compression
	level           zstd.EncoderLevel
	skipCompression []SkipCompressionFunc
}

// PackOption configures bundle creation.
type PackOption func(*packConfig)

// PackWithCompression sets the compression algorithm. Defaults to zstd.
func PackWithCompression(c Compression) PackOption {
	return func(cfg *packConfig) {
		cfg.compression = c
	}
}

// PackWithEncoderLevel sets the zstd encoder level.
func PackWithEncoderLevel(level zstd.EncoderLevel) PackOption {
	return func(cfg *packConfig) {
		cfg.level = level
	}
}

// PackWithSkipCompression adds predicates that decide to store an asset
// uncompressed. If any predicate returns true, compression is skipped.
// Passing no predicates disables the default small-asset rule.
func PackWithSkipCompression(fns ...SkipCompressionFunc) PackOption {
	return func(cfg *packConfig) {
		cfg.skipCompression = fns
	}
}

func shouldSkip(name string, size int, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn != nil && fn(name, size) {
			return true
		}
	}
	return false
}

// Pack encodes assets into a bundle named name.
//
// Asset names must be non-empty and unique within the bundle. Assets with an
// empty type are stored as TypeBlob. Assets that do not shrink under the
// selected algorithm are stored uncompressed.
func Pack(name string, assets []Asset, opts ...PackOption) ([]byte, error) {
	cfg := packConfig{
		compression:     CompressionZstd,
		level:           zstd.SpeedDefault,
		skipCompression: []SkipCompressionFunc{DefaultSkipCompression(DefaultMinCompressSize)},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if name == "" {
		return nil, errors.New("bundle name is empty")
	}

	var enc *zstd.Encoder
	if cfg.compression == CompressionZstd {
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(cfg.level), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		defer enc.Close()
	}

	b := &body{Name: name, Assets: make([]wireAsset, 0, len(assets))}
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if a.Name == "" {
			return nil, errors.New("asset name is empty")
		}
		if _, dup := seen[a.Name]; dup {
			return nil, fmt.Errorf("duplicate asset %q", a.Name)
		}
		seen[a.Name] = struct{}{}
		if len(a.Data) > MaxAssetSize {
			return nil, fmt.Errorf("asset %q exceeds %d bytes", a.Name, MaxAssetSize)
		}
		typ := a.Type
		if typ == TypeAny {
			typ = TypeBlob
		}

		sum := sha256.Sum256(a.Data)
		wa := wireAsset{
			Name:        a.Name,
			Type:        string(typ),
			Compression: uint8(CompressionNone),
			Size:        uint64(len(a.Data)),
			Hash:        sum[:],
			Data:        a.Data,
		}
		if cfg.compression != CompressionNone && !shouldSkip(a.Name, len(a.Data), cfg.skipCompression) {
			stored, err := compress(a.Data, cfg.compression, enc)
			switch {
			case err == nil:
				wa.Compression = uint8(cfg.compression)
				wa.Data = stored
			case errors.Is(err, errIncompressible):
				// stored as-is
			default:
				return nil, fmt.Errorf("compress asset %q: %w", a.Name, err)
			}
		}
		b.Assets = append(b.Assets, wa)
	}
	return encode(b)
}
