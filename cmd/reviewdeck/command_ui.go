package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reviewdeck/internal/app"
	"reviewdeck/internal/config"
	"reviewdeck/internal/logging"
	"reviewdeck/internal/store"
	"reviewdeck/internal/types"
)

type uiOptions struct {
	core       config.CoreConfig
	ui         config.UIConfig
	api        app.API
	stderr     io.Writer
	openStore  func() (store.KVStore, error)
	exportsDir func() (string, error)
}

func addUI(topLevel *cobra.Command, w commandWiring, root *rootOptions) {
	tab := ""
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Run the terminal UI.",
		Example: `
reviewdeck ui
reviewdeck ui --tab analyzer --server http://127.0.0.1:8000
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := root.env(w)
			if err != nil {
				return err
			}
			uiCfg, err := w.loadUI()
			if err != nil {
				return err
			}
			if tab != "" {
				if _, ok := types.ParseScreen(tab); !ok {
					return fmt.Errorf("unknown tab %q", tab)
				}
				uiCfg.Tabs.Initial = tab
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()
			return w.runUI(ctx, uiOptions{
				core:       e.core,
				ui:         uiCfg,
				api:        e.api,
				stderr:     w.stderr,
				openStore:  w.openStore,
				exportsDir: w.exportsDir,
			})
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "Tab to open first: scraper, analyzer, providers or review.")
	topLevel.AddCommand(cmd)
}

// runTerminalUI owns the process resources of a UI session. The log goes to
// a file because the renderer owns stdout.
func runTerminalUI(ctx context.Context, opts uiOptions) error {
	logger := logging.Nop()
	if path, err := opts.core.LogPath(); err == nil {
		fileLogger, closeLog, err := logging.OpenFile(path, logging.ParseLevel(opts.core.LogLevel()))
		if err != nil {
			fmt.Fprintf(opts.stderr, "ui logging disabled: %v\n", err)
		} else {
			logger = fileLogger
			defer closeLog()
		}
	}

	kv, err := opts.openStore()
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer kv.Close()

	var archive *store.ExportArchive
	if dir, err := opts.exportsDir(); err == nil {
		archive, err = store.NewExportArchive(dir)
		if err != nil {
			logger.Warn("export archive unavailable", logging.F("error", err))
		}
	}

	logger.Info("ui starting", logging.F("server", opts.core.ServerURL()), logging.F("store", kv.Backend()))
	err = app.Run(ctx, app.Options{
		API:     opts.api,
		Store:   kv,
		Archive: archive,
		Core:    opts.core,
		UI:      opts.ui,
		Logger:  logger,
	})
	logger.Info("ui stopped", logging.F("error", err))
	return err
}

