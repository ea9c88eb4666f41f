package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSizeCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "size NAME...",
		Short: "Report how many bytes ensure would download",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := e.DownloadSize(cmd.Context(), args)
			if err != nil {
				return err
			}
			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), humanize.IBytes(uint64(n))) //nolint:gosec // n is non-negative
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "bytes", false, "print the size in bytes")
	return cmd
}
