package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"reviewdeck/internal/teaexec"
	"reviewdeck/internal/telemetry"
	"reviewdeck/internal/types"
)

type statusOptions struct {
	watch    bool
	interval time.Duration
	count    int
	output   string
}

type statusRow struct {
	Kind   types.JobKind         `json:"kind"`
	Status *types.StatusSnapshot `json:"status,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func addStatus(topLevel *cobra.Command, w commandWiring, root *rootOptions) {
	opts := &statusOptions{output: "table"}
	cmd := &cobra.Command{
		Use:   "status [games|reviews]",
		Short: "Show the backend status of job families.",
		Example: `
reviewdeck status
reviewdeck status reviews --watch --interval 1s
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(opts.output); err != nil {
				return err
			}
			kinds, err := kindsFromArgs(args)
			if err != nil {
				return err
			}
			e, err := root.env(w)
			if err != nil {
				return err
			}
			if opts.watch {
				if len(args) == 0 {
					return errors.New("--watch needs a job kind")
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return watchStatus(ctx, e, kinds[0], opts)
			}
			return printStatus(cmd.Context(), e, kinds, opts.output)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep polling and print a line per update.")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Poll interval while watching (default: configured active interval).")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Stop watching after this many updates (0 = until interrupted).")
	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "Output format. One of 'table', 'json' or 'yaml'.")
	topLevel.AddCommand(cmd)
}

func printStatus(ctx context.Context, e *env, kinds []types.JobKind, output string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rows := make([]statusRow, 0, len(kinds))
	failed := 0
	for _, kind := range kinds {
		status, err := e.api.Status(ctx, kind)
		row := statusRow{Kind: kind, Status: status}
		if err != nil {
			row.Error = err.Error()
			failed++
		}
		rows = append(rows, row)
	}
	out := e.wiring.stdout
	if output != "table" {
		if err := writeStructured(out, output, rows); err != nil {
			return err
		}
	} else {
		tbl := newTable("KIND", "STATE", "CURRENT", "ITEM", "OVERALL", "ETA")
		for _, row := range rows {
			if row.Status == nil {
				tbl.AddRow(row.Kind, red("unreachable"), "-", "-", "-", row.Error)
				continue
			}
			s := row.Status
			state := faint("idle")
			if s.IsRunning {
				state = yellow("running")
			}
			tbl.AddRow(row.Kind, state,
				progressCell(s.CurrentProgress),
				shortID(s.CurrentItem),
				progressCell(s.GlobalProgress),
				types.FormatETA(s.GlobalProgress.ETA()),
			)
		}
		fmt.Fprintln(out, tbl)
	}
	if failed == len(rows) {
		return fmt.Errorf("backend unreachable at %s", e.core.ServerURL())
	}
	return nil
}

func progressCell(p types.Progress) string {
	if p.Total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d%% (%d/%d)", p.Percent(), p.Scraped, p.Total)
}

// watchStatus drives the same poller the UI uses until interrupted or count
// updates were printed.
func watchStatus(ctx context.Context, e *env, kind types.JobKind, opts *statusOptions) error {
	poller, err := telemetry.New(telemetry.Options{
		Kind:       kind,
		API:        e.api,
		WindowSize: e.core.TelemetryWindowSize(),
		Timeout:    e.core.RequestTimeout(),
		Logger:     e.logger,
	})
	if err != nil {
		return err
	}
	interval := opts.interval
	if interval <= 0 {
		interval, _ = e.core.TelemetryIntervals()
	}
	seen := 0
	done := func() bool { return opts.count > 0 && seen >= opts.count }
	update := func(msg tea.Msg) tea.Cmd {
		if updated, ok := msg.(telemetry.UpdatedMsg); ok {
			seen++
			writeStatusLine(e.wiring.stdout, kind, poller.Snapshot(), updated.Err)
			if done() {
				poller.Stop()
			}
			return nil
		}
		_, cmd := poller.Update(msg)
		return cmd
	}
	err = teaexec.Run(ctx, poller.Start(interval, interval), update, done)
	poller.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func writeStatusLine(out io.Writer, kind types.JobKind, snap telemetry.Snapshot, err error) {
	stamp := snap.LastPolledAt.Format("15:04:05")
	if err != nil {
		fmt.Fprintf(out, "%s %s %s %v\n", stamp, kind, red("error"), err)
		return
	}
	state := "idle"
	if snap.Status.IsRunning {
		state = "running"
	}
	fmt.Fprintf(out, "%s %s %s current=%d%% overall=%d%% rate=%.1f/min eta=%s item=%s\n",
		stamp, kind, state,
		snap.CurrentPercent, snap.GlobalPercent,
		snap.Rate,
		types.FormatETA(snap.Status.GlobalProgress.ETA()),
		shortID(snap.Status.CurrentItem),
	)
}
