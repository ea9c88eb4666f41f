package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/meigma/bundle"
)

func newClearCacheCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove every cached bundle and checksum",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if a.cfg.CacheDir == "" {
				return errors.New("cache directory is required (--cache-dir or BUNDLECTL_CACHE_DIR)")
			}
			e, err := bundle.New(bundle.WithLogger(a.logger), bundle.WithCacheDir(a.cfg.CacheDir))
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.ClearCache(); err != nil {
				return err
			}
			a.logger.Info("cache cleared", "dir", a.cfg.CacheDir)
			return nil
		},
	}
}
