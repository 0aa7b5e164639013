package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reviewdeck/internal/app"
	"reviewdeck/internal/client"
	"reviewdeck/internal/config"
	"reviewdeck/internal/logging"
	"reviewdeck/internal/store"
)

type clientFactory func(core config.CoreConfig) (app.API, error)

type commandWiring struct {
	stdout     io.Writer
	stderr     io.Writer
	newClient  clientFactory
	loadCore   func() (config.CoreConfig, error)
	loadUI     func() (config.UIConfig, error)
	openStore  func() (store.KVStore, error)
	exportsDir func() (string, error)
	runUI      func(ctx context.Context, opts uiOptions) error
	version    string
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:     stdout,
		stderr:     stderr,
		newClient:  newBackendClient,
		loadCore:   config.LoadCoreConfig,
		loadUI:     config.LoadUIConfig,
		openStore:  openDefaultStore,
		exportsDir: config.ExportsDir,
		runUI:      runTerminalUI,
		version:    buildVersion(),
	}
}

func newBackendClient(core config.CoreConfig) (app.API, error) {
	return client.New(core.ServerURL(), core.RequestTimeout()), nil
}

func openDefaultStore() (store.KVStore, error) {
	path, err := config.StorePath()
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	server   string
	logLevel string
}

// env bundles what a subcommand needs once flags are parsed.
type env struct {
	wiring commandWiring
	core   config.CoreConfig
	api    app.API
	logger logging.Logger
}

func (o *rootOptions) env(w commandWiring) (*env, error) {
	core, err := w.loadCore()
	if err != nil {
		return nil, err
	}
	if server := strings.TrimSpace(o.server); server != "" {
		core.Server.URL = server
	}
	api, err := w.newClient(core)
	if err != nil {
		return nil, err
	}
	return &env{
		wiring: w,
		core:   core,
		api:    api,
		logger: logging.New(w.stderr, logging.ParseLevel(o.logLevel)),
	}, nil
}

func newRootCommand(w commandWiring) *cobra.Command {
	opts := &rootOptions{logLevel: "warn"}
	cmd := &cobra.Command{
		Use:           "reviewdeck",
		Short:         "Configure, run and watch review scraping and analysis jobs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.SetOut(w.stdout)
	cmd.SetErr(w.stderr)
	cmd.PersistentFlags().StringVar(&opts.server, "server", "", "Backend base URL (overrides config).")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level for command diagnostics on stderr.")

	addUI(cmd, w, opts)
	addStatus(cmd, w, opts)
	addRun(cmd, w, opts)
	addJobs(cmd, w, opts)
	addSettings(cmd, w, opts)
	addExport(cmd, w, opts)
	addVersion(cmd, w)
	return cmd
}
