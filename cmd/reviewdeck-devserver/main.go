package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reviewdeck/internal/devserver"
	"reviewdeck/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "reviewdeck-devserver error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	addr := "127.0.0.1:8000"
	items := 20
	step := 500 * time.Millisecond
	level := "info"
	cmd := &cobra.Command{
		Use:   "reviewdeck-devserver",
		Short: "Run an in-memory review backend with simulated jobs.",
		Example: `
reviewdeck-devserver --addr 127.0.0.1:8000 --step 200ms
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			logger := logging.New(cmd.ErrOrStderr(), logging.ParseLevel(level))
			srv := devserver.New(devserver.Options{
				ItemsPerJob: items,
				Step:        step,
				Logger:      logger,
			})
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", addr, "Address to listen on.")
	cmd.Flags().IntVar(&items, "items", items, "Items processed per simulated job.")
	cmd.Flags().DurationVar(&step, "step", step, "Simulated time per item.")
	cmd.Flags().StringVar(&level, "log-level", level, "Log level: debug, info, warn or error.")
	return cmd
}
