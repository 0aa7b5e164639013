package main

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"

	"reviewdeck/internal/types"
)

var (
	version = "dev"
	commit  = ""
	date    = "unknown"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

// buildVersion prefers the commit injected at link time, then the VCS
// revision recorded by the toolchain, then a hash of the binary.
func buildVersion() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var modified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			}
		}
		if revision != "" {
			if modified == "true" {
				return revision + "-dirty"
			}
			return revision
		}
	}
	exe, err := os.Executable()
	if err == nil {
		file, err := os.Open(exe)
		if err == nil {
			defer file.Close()
			hasher := sha256.New()
			if _, err := io.Copy(hasher, file); err == nil {
				sum := hasher.Sum(nil)
				return fmt.Sprintf("bin-%x", sum[:6])
			}
		}
	}
	return "none"
}

// kindsFromArgs returns the job kinds named by args, or every kind when none
// is given.
func kindsFromArgs(args []string) ([]types.JobKind, error) {
	if len(args) == 0 {
		return append([]types.JobKind(nil), types.JobKinds...), nil
	}
	kinds := make([]types.JobKind, 0, len(args))
	for _, arg := range args {
		kind, ok := types.ParseJobKind(arg)
		if !ok {
			return nil, fmt.Errorf("unknown job kind %q (want games or reviews)", arg)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func kindFromArgs(args []string) (types.JobKind, error) {
	if len(args) == 0 {
		return types.JobKindGames, nil
	}
	kinds, err := kindsFromArgs(args[:1])
	if err != nil {
		return "", err
	}
	return kinds[0], nil
}

func screenForKind(kind types.JobKind) types.Screen {
	for _, screen := range types.Screens {
		if k, ok := screen.Kind(); ok && k == kind {
			return screen
		}
	}
	return types.ScreenScraper
}

func colorStatus(status string) string {
	switch status {
	case string(types.JobStatusCompleted):
		return green(status)
	case string(types.JobStatusError), "timed_out":
		return red(status)
	case string(types.JobStatusRunning), string(types.JobStatusQueued):
		return yellow(status)
	case string(types.JobStatusCancelled), "skipped":
		return faint(status)
	}
	return status
}

func newTable(header ...any) *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	boldHeader := make([]any, len(header))
	for i, cell := range header {
		boldHeader[i] = bold(cell)
	}
	tbl.AddRow(boldHeader...)
	return tbl
}

func validateOutput(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}

// writeStructured prints v as JSON or YAML. YAML goes through the JSON
// encoding so both formats use the wire field names.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var plain any
		if err := json.Unmarshal(raw, &plain); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plain); err != nil {
			return err
		}
		return enc.Close()
	}
	return validateOutput(format)
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "-"
	}
	return id
}
