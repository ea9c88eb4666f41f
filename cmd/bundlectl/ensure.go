package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meigma/bundle"
)

func newEnsureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure NAME...",
		Short: "Make bundles and their dependencies resident",
		Long: `ensure loads each named bundle and its dependency closure, reporting
one line per file. Bundles whose cached copy matches the published hash are
read from the cache directory. The command fails if any file fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.engine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			progress := func(ev bundle.ProgressEvent) {
				if ev.Done {
					return
				}
				a.logger.Debug("progress",
					slog.Int("file", ev.FileIndex),
					slog.String("stage", ev.Stage.String()),
					slog.String("bundle", ev.Name),
					slog.Int64("bytes_done", ev.BytesDone),
					slog.Int64("bytes_total", ev.BytesTotal))
			}
			batch := e.EnsureResident(ctx, args, bundle.WithProgress(progress))
			if err := batch.Wait(ctx); err != nil && batch.Results() == nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range batch.Results() {
				switch {
				case r.Err != nil:
					failed++
					fmt.Fprintf(out, "FAIL\t%s\t%v\n", r.Name, r.Err)
				case r.FromCache:
					fmt.Fprintf(out, "CACHED\t%s\n", r.Resolved)
				default:
					fmt.Fprintf(out, "OK\t%s\n", r.Resolved)
				}
			}
			for _, name := range e.LoadedNames() {
				a.logger.Debug("resident", slog.String("bundle", name), slog.Int("refs", e.RefCount(name)))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}
