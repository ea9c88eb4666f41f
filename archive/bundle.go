package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
)

// Bundle is an opened bundle. Assets are materialized on demand.
// A Bundle is safe for concurrent use.
type Bundle struct {
	name   string
	assets []wireAsset
	index  map[string]int
	pool   *decoderPool

	mu     sync.RWMutex
	closed bool
}

// Result is the outcome of an asynchronous load.
type Result struct {
	Asset Asset
	Err   error
}

// Open parses a bundle. The returned Bundle retains data; callers must not
// modify it afterwards.
func Open(data []byte) (*Bundle, error) {
	b, err := decode(data)
	if err != nil {
		return nil, err
	}
	if b.Name == "" {
		return nil, fmt.Errorf("%w: empty bundle name", ErrInvalidBundle)
	}
	index := make(map[string]int, len(b.Assets))
	for i, a := range b.Assets {
		if a.Name == "" {
			return nil, fmt.Errorf("%w: empty asset name", ErrInvalidBundle)
		}
		if _, dup := index[a.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate asset %q", ErrInvalidBundle, a.Name)
		}
		if len(a.Hash) != sha256.Size {
			return nil, fmt.Errorf("%w: asset %q has a malformed hash", ErrInvalidBundle, a.Name)
		}
		if a.Size > MaxAssetSize {
			return nil, fmt.Errorf("%w: asset %q exceeds %d bytes", ErrInvalidBundle, a.Name, MaxAssetSize)
		}
		index[a.Name] = i
	}
	return &Bundle{
		name:   b.Name,
		assets: b.Assets,
		index:  index,
		pool:   defaultDecoders,
	}, nil
}

// Name returns the bundle name recorded at pack time.
func (b *Bundle) Name() string {
	return b.name
}

// AssetNames returns the sorted names of every asset in the bundle.
func (b *Bundle) AssetNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.assets))
	for _, a := range b.assets {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// Assets describes every asset in pack order.
func (b *Bundle) Assets() []AssetInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	infos := make([]AssetInfo, 0, len(b.assets))
	for _, a := range b.assets {
		infos = append(infos, AssetInfo{
			Name:        a.Name,
			Type:        Type(a.Type),
			Compression: Compression(a.Compression),
			Size:        a.Size,
			StoredSize:  uint64(len(a.Data)),
		})
	}
	return infos
}

// Contains reports whether the bundle holds an asset named name.
func (b *Bundle) Contains(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.index[name]
	return ok
}

// Load materializes the asset named name. The asset's stored type must match
// typ unless typ is TypeAny.
func (b *Bundle) Load(name string, typ Type) (Asset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return Asset{}, ErrClosed
	}

	i, ok := b.index[name]
	if !ok || !Type(b.assets[i].Type).Matches(typ) {
		return Asset{}, fmt.Errorf("%w: %s (%s) in %s", ErrAssetNotFound, name, typeLabel(typ), b.name)
	}
	a := b.assets[i]
	data, err := decompress(a.Data, Compression(a.Compression), a.Size, b.pool)
	if err != nil {
		return Asset{}, fmt.Errorf("load asset %q: %w", name, err)
	}
	sum := sha256.Sum256(data)
	if !bytes.Equal(sum[:], a.Hash) {
		return Asset{}, fmt.Errorf("%w: asset %q", ErrHashMismatch, name)
	}
	return Asset{Name: a.Name, Type: Type(a.Type), Data: data}, nil
}

// LoadAsync materializes an asset in the background. The returned channel
// receives exactly one Result and is then closed. If ctx ends first, the
// Result carries the context error.
func (b *Bundle) LoadAsync(ctx context.Context, name string, typ Type) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		if err := ctx.Err(); err != nil {
			ch <- Result{Err: err}
			return
		}
		done := make(chan Result, 1)
		go func() {
			asset, err := b.Load(name, typ)
			done <- Result{Asset: asset, Err: err}
		}()
		select {
		case r := <-done:
			ch <- r
		case <-ctx.Done():
			ch <- Result{Err: ctx.Err()}
		}
	}()
	return ch
}

// Close releases the bundle. Loads after Close fail with ErrClosed.
// Close waits for in-progress loads and is safe to call more than once.
func (b *Bundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.assets = nil
	b.index = nil
	return nil
}

func typeLabel(t Type) string {
	if t == TypeAny {
		return "any"
	}
	return string(t)
}
