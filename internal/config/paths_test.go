package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestPaths(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))

	dataDir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if !strings.HasSuffix(dataDir, ".reviewdeck") {
		t.Fatalf("unexpected data dir: %s", dataDir)
	}

	cases := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{name: "core config", fn: CoreConfigPath, want: "config.toml"},
		{name: "ui config", fn: UIConfigPath, want: "ui.toml"},
		{name: "store", fn: StorePath, want: "state.db"},
		{name: "log", fn: LogPath, want: "ui.log"},
		{name: "exports", fn: ExportsDir, want: "exports"},
	}
	for _, tc := range cases {
		path, err := tc.fn()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if want := filepath.Join(dataDir, tc.want); path != want {
			t.Fatalf("%s: got=%q want=%q", tc.name, path, want)
		}
	}
}
