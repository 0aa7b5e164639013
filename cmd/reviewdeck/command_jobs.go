package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reviewdeck/internal/types"
)

func addJobs(topLevel *cobra.Command, w commandWiring, root *rootOptions) {
	output := "table"
	cmd := &cobra.Command{
		Use:   "jobs [games|reviews]",
		Short: "List backend jobs.",
		Example: `
reviewdeck jobs
reviewdeck jobs reviews -o yaml
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
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
			return listJobs(cmd.Context(), e, kinds, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output format. One of 'table', 'json' or 'yaml'.")
	topLevel.AddCommand(cmd)
}

type kindJobs struct {
	Kind types.JobKind     `json:"kind"`
	Jobs []types.JobRecord `json:"jobs"`
}

func listJobs(ctx context.Context, e *env, kinds []types.JobKind, output string) error {
	all := make([]kindJobs, 0, len(kinds))
	for _, kind := range kinds {
		jobs, err := e.api.ListJobs(ctx, kind)
		if err != nil {
			return fmt.Errorf("list %s jobs: %w", kind, err)
		}
		all = append(all, kindJobs{Kind: kind, Jobs: jobs})
	}
	if output != "table" {
		return writeStructured(e.wiring.stdout, output, all)
	}
	tbl := newTable("KIND", "ID", "STATUS", "TARGET", "PROGRESS", "CREATED", "ERROR")
	for _, group := range all {
		for _, job := range group.Jobs {
			target := "-"
			if job.Provider != "" || job.Model != "" {
				target = types.RunTarget{Provider: job.Provider, Model: job.Model, ReasoningLevel: job.ReasoningLevel}.Label()
			}
			created := "-"
			if !job.CreatedAt.IsZero() {
				created = job.CreatedAt.Local().Format("2006-01-02 15:04:05")
			}
			tbl.AddRow(group.Kind, job.ID, colorStatus(string(job.Status)), target, progressCell(job.Progress()), created, job.Error)
		}
	}
	fmt.Fprintln(e.wiring.stdout, tbl)
	return nil
}
