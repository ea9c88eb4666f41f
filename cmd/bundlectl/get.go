package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/bundle/archive"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		typeName string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "get BUNDLE ASSET",
		Short: "Load a bundle and write one of its assets",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := archive.ParseType(typeName)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := a.engine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			batch := e.EnsureResident(ctx, args[:1])
			if err := batch.Wait(ctx); err != nil {
				return err
			}
			asset, err := e.GetAsset(args[0], args[1], typ)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(asset.Data)
				return err
			}
			if err := os.WriteFile(out, asset.Data, 0o644); err != nil { //nolint:gosec // asset output is not sensitive
				return fmt.Errorf("write %s: %w", out, err)
			}
			a.logger.Info("asset written", "asset", asset.Name, "type", asset.Type, "path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "any", "required asset type (model, scene, texture, audio, text, blob, any)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
