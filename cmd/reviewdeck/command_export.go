package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reviewdeck/internal/store"
	"reviewdeck/internal/types"
)

func addExport(topLevel *cobra.Command, w commandWiring, root *rootOptions) {
	out := ""
	cmd := &cobra.Command{
		Use:   "export [games|reviews]",
		Short: "Download a job family's export into the local archive or a file.",
		Example: `
reviewdeck export reviews
reviewdeck export games --out ./games.csv
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFromArgs(args)
			if err != nil {
				return err
			}
			e, err := root.env(w)
			if err != nil {
				return err
			}
			return exportKind(cmd.Context(), e, kind, out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write to this file instead of the export archive.")
	topLevel.AddCommand(cmd)
}

func exportKind(ctx context.Context, e *env, kind types.JobKind, out string) error {
	download, err := e.api.Export(ctx, kind)
	if err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}
	if download == nil {
		return errors.New("empty export")
	}
	name := store.SanitizeFilename(download.Filename, "export.csv")
	path := strings.TrimSpace(out)
	if path != "" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(path, download.Data, 0o644); err != nil {
			return err
		}
	} else {
		dir, err := e.wiring.exportsDir()
		if err != nil {
			return err
		}
		archive, err := store.NewExportArchive(dir)
		if err != nil {
			return err
		}
		path, err = archive.Save(string(kind), name, download.Data)
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(e.wiring.stdout, "%s (%d bytes)\n", path, len(download.Data))
	return nil
}
