package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/bundle/internal/sizing"
)

// errIncompressible signals that compression did not shrink the input.
var errIncompressible = errors.New("incompressible")

// decoderPool manages reusable zstd decoders for asset materialization.
type decoderPool struct {
	pool      sync.Pool
	maxMemory uint64
}

// newDecoderPool creates a pool of zstd decoders.
// If maxMemory is 0, no memory limit is applied to decoders.
func newDecoderPool(maxMemory uint64) *decoderPool {
	p := &decoderPool{maxMemory: maxMemory}
	p.pool.New = func() any {
		dec, err := p.newDecoder(nil)
		if err != nil {
			return nil
		}
		return dec
	}
	return p
}

// get returns a decoder reading from r and a release function.
// If an error is returned, no release function needs to be called.
func (p *decoderPool) get(r io.Reader) (*zstd.Decoder, func(), error) {
	dec, ok := p.pool.Get().(*zstd.Decoder)
	if !ok {
		// Pool's New function failed, try directly
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}
	if err := dec.Reset(r); err != nil {
		dec.Close()
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}
	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.pool.Put(dec)
	}, nil
}

func (p *decoderPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(false),
	}
	if p.maxMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxMemory))
	}
	return zstd.NewReader(r, opts...)
}

// defaultDecoders is shared by every opened bundle.
var defaultDecoders = newDecoderPool(0)

func compress(data []byte, c Compression, enc *zstd.Encoder) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		out := enc.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, errIncompressible
		}
		return out, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if n == 0 || n >= len(data) {
			return nil, errIncompressible
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("unsupported compression %d", c)
	}
}

func decompress(stored []byte, c Compression, size uint64, pool *decoderPool) ([]byte, error) {
	n, err := sizing.ToInt(size, fmt.Errorf("%w: asset size %d overflows", ErrInvalidBundle, size))
	if err != nil {
		return nil, err
	}
	mismatch := func(got int) error {
		return fmt.Errorf("%w: decompressed %d bytes, want %d", ErrInvalidBundle, got, n)
	}

	switch c {
	case CompressionNone:
		if len(stored) != n {
			return nil, fmt.Errorf("%w: stored size %d, want %d", ErrInvalidBundle, len(stored), n)
		}
		out := make([]byte, n)
		copy(out, stored)
		return out, nil
	case CompressionZstd:
		dec, release, err := pool.get(bytes.NewReader(stored))
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer release()
		out, err := sizing.ReadAllWithLimit(dec, n,
			fmt.Errorf("%w: decompressed more than %d bytes", ErrInvalidBundle, n))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != n {
			return nil, mismatch(len(out))
		}
		return out, nil
	case CompressionLZ4:
		out := make([]byte, n)
		got, err := lz4.UncompressBlock(stored, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if got != n {
			return nil, mismatch(got)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported compression %d", ErrInvalidBundle, c)
	}
}
