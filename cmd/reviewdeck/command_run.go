package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"reviewdeck/internal/logging"
	"reviewdeck/internal/persist"
	"reviewdeck/internal/scheduler"
	"reviewdeck/internal/teaexec"
	"reviewdeck/internal/types"
)

type runOptions struct {
	destination string
	report      bool
}

func addRun(topLevel *cobra.Command, w commandWiring, root *rootOptions) {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [games|reviews]",
		Short: "Run every enabled provider/model target in sequence and wait for the results.",
		Example: `
reviewdeck run games --destination reviews.csv
reviewdeck run reviews --destination analysis.csv --report
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
			destination := strings.TrimSpace(opts.destination)
			if destination == "" {
				destination = e.core.Destination()
			}
			if destination == "" {
				return scheduler.ErrNoDestination
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runJobs(ctx, e, kind, destination, opts.report)
		},
	}
	cmd.Flags().StringVarP(&opts.destination, "destination", "d", "", "Destination passed to every job (default: configured destination).")
	cmd.Flags().BoolVar(&opts.report, "report", false, "Print the markdown run report instead of a table.")
	topLevel.AddCommand(cmd)
}

// runJobs loads the saved settings of kind's screen and drives the
// scheduler headlessly. An interrupt cancels the run softly.
func runJobs(ctx context.Context, e *env, kind types.JobKind, destination string, report bool) error {
	scope := string(screenForKind(kind))
	remote, err := persist.NewRemoteTarget(e.api, scope)
	if err != nil {
		return err
	}
	loadCtx, cancel := context.WithTimeout(ctx, e.core.RequestTimeout())
	settings, found, err := remote.Load(loadCtx)
	cancel()
	switch {
	case err != nil:
		e.logger.Warn("settings load failed, using defaults", logging.F("scope", scope), logging.F("error", err))
		settings = types.DefaultSettings()
	case !found:
		settings = types.DefaultSettings()
	}

	sched, err := scheduler.New(scheduler.Options{
		Kind:           kind,
		Jobs:           e.api,
		Providers:      e.api,
		Saver:          remote,
		PollInterval:   e.core.SchedulerPollInterval(),
		JobTimeout:     e.core.JobTimeout(),
		RequestTimeout: e.core.RequestTimeout(),
		Logger:         e.logger,
	})
	if err != nil {
		return err
	}

	out := e.wiring.stdout
	var (
		finished *scheduler.FinishedMsg
		runErr   error
		total    int
		lastLine string
	)
	update := func(msg tea.Msg) tea.Cmd {
		switch msg := msg.(type) {
		case scheduler.ProvidersMsg:
			if msg.Err != nil {
				runErr = fmt.Errorf("fetch providers: %w", msg.Err)
				return nil
			}
			tree := msg.Tree
			if !msg.Found {
				tree = nil
			}
			cmd, err := sched.Run(scheduler.RunRequest{Destination: destination, Settings: settings, Providers: tree})
			if err != nil {
				runErr = err
				return nil
			}
			total = len(tree.EnabledTargets())
			fmt.Fprintf(out, "Run started: %d target(s), destination %s\n", total, destination)
			return cmd
		case scheduler.ProgressMsg:
			if line := progressLine(msg, total); line != lastLine {
				lastLine = line
				fmt.Fprintln(out, line)
			}
			return nil
		case scheduler.FinishedMsg:
			finished = &msg
			return nil
		}
		_, cmd := sched.Update(msg)
		return cmd
	}
	done := func() bool { return finished != nil || runErr != nil }

	err = teaexec.Run(ctx, sched.FetchProviderTree(), update, done)
	if errors.Is(err, context.Canceled) && sched.Running() {
		if msg, ok := teaexec.Exec(sched.Cancel()).(scheduler.FinishedMsg); ok {
			finished = &msg
		}
	} else if err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if finished == nil {
		return errors.New("run ended without a result")
	}
	return printOutcomes(e, kind, *finished, report)
}

func progressLine(msg scheduler.ProgressMsg, total int) string {
	line := fmt.Sprintf("[%d/%d] %s", msg.Index+1, total, msg.Target.Label())
	if msg.Current == nil {
		return line + " starting"
	}
	job := msg.Current
	return fmt.Sprintf("%s %s %s", line, job.Status, progressCell(job.Progress()))
}

func printOutcomes(e *env, kind types.JobKind, msg scheduler.FinishedMsg, report bool) error {
	out := e.wiring.stdout
	if msg.SaveErr != nil {
		fmt.Fprintf(e.wiring.stderr, "warning: settings were not saved before the run: %v\n", msg.SaveErr)
	}
	if report {
		fmt.Fprint(out, scheduler.Report(kind, msg.Outcomes))
	} else {
		tbl := newTable("#", "TARGET", "STATUS", "JOB", "PROCESSED", "ELAPSED", "NOTE")
		for i, outcome := range msg.Outcomes {
			processed := "-"
			if outcome.Job != nil {
				processed = fmt.Sprintf("%d/%d", outcome.Job.Processed, outcome.Job.Total)
			}
			elapsed := "-"
			if outcome.Elapsed > 0 {
				elapsed = outcome.Elapsed.Round(time.Second).String()
			}
			tbl.AddRow(i+1, outcome.Target.Label(), colorStatus(string(outcome.Status)), shortID(outcome.JobID), processed, elapsed, outcome.Message())
		}
		fmt.Fprintln(out, tbl)
	}
	summary := scheduler.Summarize(msg.Outcomes)
	if msg.Cancelled {
		fmt.Fprintf(out, "Run cancelled: %s\n", summary)
		return nil
	}
	if !summary.Succeeded() {
		return fmt.Errorf("run finished with failures: %s", summary)
	}
	fmt.Fprintf(out, "Run finished: %s\n", summary)
	return nil
}
