package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/meigma/bundle/archive"
	"github.com/meigma/bundle/manifest"
)

// extTypes maps file extensions to asset types for pack.
var extTypes = map[string]archive.Type{
	".fbx":   archive.TypeModel,
	".obj":   archive.TypeModel,
	".gltf":  archive.TypeModel,
	".glb":   archive.TypeModel,
	".unity": archive.TypeScene,
	".scene": archive.TypeScene,
	".png":   archive.TypeTexture,
	".jpg":   archive.TypeTexture,
	".jpeg":  archive.TypeTexture,
	".ktx2":  archive.TypeTexture,
	".wav":   archive.TypeAudio,
	".ogg":   archive.TypeAudio,
	".mp3":   archive.TypeAudio,
	".txt":   archive.TypeText,
	".json":  archive.TypeText,
	".yaml":  archive.TypeText,
	".yml":   archive.TypeText,
}

func typeForFile(path string) archive.Type {
	if t, ok := extTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return archive.TypeBlob
}

func newPackCmd(a *app) *cobra.Command {
	var (
		name        string
		out         string
		compression string
		level       string
		typeName    string
		companion   bool
	)
	cmd := &cobra.Command{
		Use:   "pack --out FILE FILE...",
		Short: "Pack files into a bundle",
		Long: `pack writes the given files into a bundle. Each asset is named after its
file's base name, and its type is taken from --type or inferred from the
file extension. With --companion, a "<out>.manifest" file carrying the
bundle's CRC is written next to it for change detection.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			if name == "" {
				name = filepath.Base(out)
			}
			opts, err := packOptions(compression, level)
			if err != nil {
				return err
			}
			var override archive.Type
			if typeName != "" {
				if override, err = archive.ParseType(typeName); err != nil {
					return err
				}
			}

			assets := make([]archive.Asset, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read asset: %w", err)
				}
				typ := override
				if typ == archive.TypeAny {
					typ = typeForFile(path)
				}
				assets = append(assets, archive.Asset{Name: filepath.Base(path), Type: typ, Data: data})
			}

			data, err := archive.Pack(name, assets, opts...)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec // bundles are published files
				return fmt.Errorf("write bundle: %w", err)
			}
			if companion {
				text, err := manifest.FormatCompanion(data)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out+manifest.CompanionSuffix, text, 0o644); err != nil { //nolint:gosec // published file
					return fmt.Errorf("write companion: %w", err)
				}
			}
			a.logger.Info("bundle packed",
				"bundle", name,
				"assets", len(assets),
				"size", humanize.IBytes(uint64(len(data))))
			fmt.Fprintln(cmd.OutOrStdout(), manifest.DigestHash(data))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "bundle name recorded in the archive (default: base name of --out)")
	f.StringVarP(&out, "out", "o", "", "output bundle file")
	f.StringVar(&compression, "compression", "zstd", "asset compression (zstd, lz4, none)")
	f.StringVar(&level, "level", "default", "zstd encoder level (fastest, default, better, best)")
	f.StringVar(&typeName, "type", "", "asset type for every file (default: inferred from extension)")
	f.BoolVar(&companion, "companion", false, "write a companion manifest next to the bundle")
	return cmd
}

func packOptions(compression, level string) ([]archive.PackOption, error) {
	c, err := archive.ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	opts := []archive.PackOption{archive.PackWithCompression(c)}
	if c == archive.CompressionZstd {
		ok, lvl := zstd.EncoderLevelFromString(level)
		if !ok {
			return nil, fmt.Errorf("unknown zstd level %q", level)
		}
		opts = append(opts, archive.PackWithEncoderLevel(lvl))
	}
	return opts, nil
}
