package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/bundle"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   appName,
		Short: "Fetch, cache, and inspect asset bundles",
		Long: `bundlectl loads asset bundles from an HTTP origin the same way an
application using the bundle package does: dependency closures, change
detection against the local cache, and optional decryption.

Settings come from flags, BUNDLECTL_* environment variables (for example
BUNDLECTL_BASE_URL), and a YAML config file, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/bundlectl/config.yaml)")
	f.String("base-url", "", "origin URL bundles are served from")
	f.String("manifest", "", "catalog file under the base URL; empty reads per-bundle companion manifests")
	f.String("cache-dir", "", "directory for durable bundle copies; empty disables the disk cache")
	f.StringSlice("variants", nil, "accepted variant tags in preference order")
	f.String("password", "", "password for encrypted bundles")
	f.String("salt", "", "salt for encrypted bundles (at least 8 bytes)")
	f.Int("concurrency", bundle.DefaultConcurrency, "concurrent transfers per file")
	f.Bool("no-cache-bust", false, "do not append a cache-busting query to bundle URLs")
	f.BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newEnsureCmd(a),
		newSizeCmd(a),
		newGetCmd(a),
		newPackCmd(a),
		newEncryptCmd(a),
		newDecryptCmd(a),
		newClearCacheCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.v, cmd.Root().PersistentFlags(), a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	return nil
}

// newLogger returns a slog logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix: appName,
		Level:  level,
	})
	return slog.New(handler)
}

// engineOptions translates the configuration into engine options.
func (a *app) engineOptions() []bundle.Option {
	opts := []bundle.Option{
		bundle.WithLogger(a.logger),
		bundle.WithConcurrency(a.cfg.Concurrency),
		bundle.WithCacheBusting(!a.cfg.NoCacheBust),
	}
	if len(a.cfg.Variants) > 0 {
		opts = append(opts, bundle.WithVariants(a.cfg.Variants...))
	}
	if a.cfg.CacheDir != "" {
		opts = append(opts, bundle.WithCacheDir(a.cfg.CacheDir))
	}
	if a.cfg.Password != "" {
		opts = append(opts, bundle.WithPassword(a.cfg.Password, a.cfg.Salt))
	}
	return opts
}

// engine builds an Engine and points it at the configured origin.
// The caller must Close it.
func (a *app) engine(ctx context.Context) (*bundle.Engine, error) {
	if a.cfg.BaseURL == "" {
		return nil, errors.New("base URL is required (--base-url or BUNDLECTL_BASE_URL)")
	}
	e, err := bundle.New(a.engineOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	if a.cfg.Manifest != "" {
		err = e.InitializeManifest(ctx, a.cfg.BaseURL, a.cfg.Manifest)
	} else {
		err = e.Initialize(ctx, a.cfg.BaseURL)
	}
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return e, nil
}
