// Package archive implements the bundle container format.
//
// A bundle is a single binary blob holding named, typed assets. Each asset
// is compressed independently (zstd, lz4, or stored) and carries the SHA-256
// of its uncompressed bytes, so assets are verified when they are loaded.
//
// Bundles are produced with [Pack] and read with [Open]:
//
//	data, err := archive.Pack("characters/hero", []archive.Asset{
//		{Name: "hero", Type: archive.TypeModel, Data: model},
//		{Name: "hero_diffuse", Type: archive.TypeTexture, Data: texture},
//	})
//
//	b, err := archive.Open(data)
//	asset, err := b.Load("hero", archive.TypeModel)
//
// Layout: the 4-byte magic "MBND", one version byte, then a CBOR body
// encoded with Core Deterministic Encoding.
package archive
