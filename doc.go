// Package bundle loads content bundles from an HTTP origin and keeps them
// resident in memory with reference counts.
//
// A bundle is a named blob holding typed assets (see the [archive]
// subpackage). Bundles may depend on other bundles and may come in variants
// ("chars.hd", "chars.sd") selected by preference order. The [Engine]
// resolves names through the catalog, acquires each bundle's dependency
// closure, coalesces concurrent requests into one transfer per bundle, and
// serves assets from resident bundles.
//
// # Quick Start
//
//	e, err := bundle.New(
//	    bundle.WithCacheDir("/var/cache/bundles"),
//	    bundle.WithVariants("hd", "sd"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer e.Close()
//
//	if err := e.InitializeManifest(ctx, "https://cdn.example.com/bundles/", "catalog.json"); err != nil {
//	    return err
//	}
//
//	batch := e.EnsureResident(ctx, []string{"characters/unitychan_std"},
//	    bundle.WithProgress(func(ev bundle.ProgressEvent) {
//	        fmt.Printf("%d/%d %s %.0f%%\n", ev.FileIndex+1, ev.FilesTotal, ev.Name, ev.Fraction()*100)
//	    }),
//	)
//	if err := batch.Wait(ctx); err != nil {
//	    return err
//	}
//	model, err := e.GetAsset("characters/unitychan_std", "unitychan", archive.TypeModel)
//
// # Change detection
//
// With [WithCacheDir] the engine keeps the raw bytes of every bundle it
// fetched together with the content hash published for it. A later
// acquisition compares the stored hash with the current one: equal hashes
// are served from disk, different hashes purge the local copy and fetch
// again. Hashes come from the catalog; origins without a catalog publish a
// companion "<name>.manifest" file with a "CRC: <n>" line.
//
// # Encryption
//
// [WithPassword] decrypts bundles with AES-256-CBC using a key derived from
// a password and salt (see the [crypt] subpackage). Local copies are stored
// as published, encrypted.
package bundle
