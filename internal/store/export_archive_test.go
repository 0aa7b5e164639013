package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportArchiveSaveListRead(t *testing.T) {
	base := filepath.Join(t.TempDir(), "exports")
	archive, err := NewExportArchive(base)
	if err != nil {
		t.Fatalf("NewExportArchive: %v", err)
	}
	path, err := archive.Save("reviews", "reviews_570.csv", []byte("id,text\n1,ok\n"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if want := filepath.Join(base, "reviews", "reviews_570.csv"); path != want {
		t.Fatalf("unexpected path: got=%q want=%q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	if _, err := archive.Save("games", "games.csv", []byte("id\n")); err != nil {
		t.Fatalf("save: %v", err)
	}

	keys := archive.List(context.Background(), "reviews")
	if len(keys) != 1 || keys[0] != "reviews/reviews_570.csv" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if all := archive.List(context.Background(), ""); len(all) != 2 {
		t.Fatalf("expected two archived files, got %v", all)
	}
	data, err := archive.Read("reviews", "reviews_570.csv")
	if err != nil || !strings.Contains(string(data), "1,ok") {
		t.Fatalf("unexpected read: %q err=%v", data, err)
	}
}

func TestExportArchiveRejectsTraversal(t *testing.T) {
	base := filepath.Join(t.TempDir(), "exports")
	archive, err := NewExportArchive(base)
	if err != nil {
		t.Fatalf("NewExportArchive: %v", err)
	}
	path, err := archive.Save("reviews", "../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(path, base) || filepath.Base(path) != "passwd" {
		t.Fatalf("expected sanitized path inside archive, got %q", path)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.csv":        "report.csv",
		"dir/report.csv":    "report.csv",
		`C:\tmp\report.csv`: "report.csv",
		"":                  "fallback",
		"..":                "fallback",
		"bad\x00name.csv":   "badname.csv",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in, "fallback"); got != want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
