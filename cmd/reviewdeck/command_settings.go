package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reviewdeck/internal/persist"
	"reviewdeck/internal/store"
	"reviewdeck/internal/types"
)

func addSettings(topLevel *cobra.Command, w commandWiring, root *rootOptions) {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or reset saved settings.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	output := "yaml"
	get := &cobra.Command{
		Use:   "get [scraper|analyzer|llm_providers]",
		Short: "Print the settings saved on the backend for a scope.",
		Example: `
reviewdeck settings get analyzer
reviewdeck settings get llm_providers -o json
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("unknown output format %q (want json or yaml)", output)
			}
			scope, err := settingsScope(args)
			if err != nil {
				return err
			}
			e, err := root.env(w)
			if err != nil {
				return err
			}
			return getSettings(cmd.Context(), e, scope, output)
		},
	}
	get.Flags().StringVarP(&output, "output", "o", output, "Output format. One of 'yaml' or 'json'.")

	local := false
	reset := &cobra.Command{
		Use:   "reset [scraper|analyzer|llm_providers]",
		Short: "Delete the saved settings of a scope so defaults apply again.",
		Example: `
reviewdeck settings reset scraper --local
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := settingsScope(args)
			if err != nil {
				return err
			}
			e, err := root.env(w)
			if err != nil {
				return err
			}
			return resetSettings(cmd.Context(), e, scope, local)
		},
	}
	reset.Flags().BoolVar(&local, "local", false, "Also clear the local fallback copy.")

	cmd.AddCommand(get, reset)
	topLevel.AddCommand(cmd)
}

func settingsScope(args []string) (string, error) {
	if len(args) == 0 {
		return string(types.ScreenScraper), nil
	}
	raw := strings.ToLower(strings.TrimSpace(args[0]))
	if raw == types.ProvidersScope {
		return raw, nil
	}
	screen, ok := types.ParseScreen(raw)
	if !ok {
		return "", fmt.Errorf("unknown settings scope %q", args[0])
	}
	if _, ok := screen.Kind(); !ok {
		return "", fmt.Errorf("screen %s has no settings of its own", screen)
	}
	return string(screen), nil
}

func getSettings(ctx context.Context, e *env, scope, output string) error {
	if scope == types.ProvidersScope {
		tree, found, err := e.api.GetProviderTree(ctx)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintln(e.wiring.stderr, "no provider configuration saved")
			tree = &types.ProviderTree{}
		}
		return writeStructured(e.wiring.stdout, output, tree)
	}
	settings := types.DefaultSettings()
	found, err := e.api.GetSettings(ctx, scope, settings)
	if err != nil {
		return err
	}
	if !found || settings.IsZero() {
		fmt.Fprintf(e.wiring.stderr, "no saved %s settings, showing defaults\n", scope)
		settings = types.DefaultSettings()
	}
	return writeStructured(e.wiring.stdout, output, settings)
}

func resetSettings(ctx context.Context, e *env, scope string, local bool) error {
	if err := e.api.DeleteSettings(ctx, scope); err != nil {
		return fmt.Errorf("reset %s on backend: %w", scope, err)
	}
	if local && scope != types.ProvidersScope {
		kv, err := e.wiring.openStore()
		if err != nil {
			return err
		}
		defer kv.Close()
		ns, err := store.NewNamespace(kv, scope)
		if err != nil {
			return err
		}
		target, err := persist.NewLocalTarget(ns)
		if err != nil {
			return err
		}
		if err := target.Clear(ctx); err != nil {
			return fmt.Errorf("reset %s locally: %w", scope, err)
		}
	}
	fmt.Fprintf(e.wiring.stdout, "%s settings reset to defaults\n", scope)
	return nil
}
