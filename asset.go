package bundle

import (
	"context"
	"errors"
	"fmt"

	"github.com/meigma/bundle/archive"
)

// GetAsset returns an asset from a resident bundle.
//
// It fails with ErrBundleNotResident when the bundle is not resident and
// ErrAssetNotFound when the bundle has no asset of that name and type.
func (e *Engine) GetAsset(bundleName, assetName string, typ archive.Type) (archive.Asset, error) {
	b, err := e.resident(bundleName)
	if err != nil {
		return archive.Asset{}, err
	}
	asset, err := b.Load(assetName, typ)
	return asset, mapClosed(bundleName, err)
}

// AssetRequest is a pending asynchronous asset lookup.
type AssetRequest struct {
	done  chan struct{}
	asset archive.Asset
	err   error
}

// Done is closed when the lookup has completed.
func (r *AssetRequest) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the lookup completes or ctx ends.
func (r *AssetRequest) Wait(ctx context.Context) (archive.Asset, error) {
	select {
	case <-r.done:
		return r.asset, r.err
	case <-ctx.Done():
		return archive.Asset{}, ctx.Err()
	}
}

// GetAssetAsync materializes an asset in the background. The request
// completes exactly once, with the asset or an error.
func (e *Engine) GetAssetAsync(ctx context.Context, bundleName, assetName string, typ archive.Type) *AssetRequest {
	r := &AssetRequest{done: make(chan struct{})}
	b, err := e.resident(bundleName)
	if err != nil {
		r.err = err
		close(r.done)
		return r
	}
	go func() {
		defer close(r.done)
		res := <-b.LoadAsync(ctx, assetName, typ)
		r.asset, r.err = res.Asset, mapClosed(bundleName, res.Err)
	}()
	return r
}

// Contains reports whether a resident bundle holds an asset named assetName.
func (e *Engine) Contains(bundleName, assetName string) bool {
	b, err := e.resident(bundleName)
	if err != nil {
		return false
	}
	return b.Contains(assetName)
}

func (e *Engine) resident(bundleName string) (*archive.Bundle, error) {
	if err := e.checkUsable(true); err != nil {
		return nil, err
	}
	name := e.normalize(bundleName)
	b, ok := e.ledger.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBundleNotResident, name)
	}
	return b, nil
}

// mapClosed reports a bundle released during a lookup as not resident.
func mapClosed(bundleName string, err error) error {
	if errors.Is(err, archive.ErrClosed) {
		return fmt.Errorf("%w: %s", ErrBundleNotResident, bundleName)
	}
	return err
}
