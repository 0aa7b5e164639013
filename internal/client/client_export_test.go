package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"reviewdeck/internal/types"
)

func TestFilenameFromContentDisposition(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{header: `attachment; filename="reviews_570.csv"`, want: "reviews_570.csv"},
		{header: `attachment; filename=games.csv`, want: "games.csv"},
		{header: `attachment; filename*=UTF-8''r%C3%A9sum%C3%A9.csv`, want: "résumé.csv"},
		{header: `attachment; filename="plain.csv"; filename*=UTF-8''fancy.csv`, want: "fancy.csv"},
		{header: `attachment; filename*=ISO-8859-1''latin.csv`, want: "latin.csv"},
		{header: ``, want: "fallback.csv"},
		{header: `attachment`, want: "fallback.csv"},
		{header: `attachment; filename="unterminated`, want: "fallback.csv"},
	}
	for _, tc := range cases {
		if got := FilenameFromContentDisposition(tc.header, "fallback.csv"); got != tc.want {
			t.Fatalf("header %q: got %q want %q", tc.header, got, tc.want)
		}
	}
}

func TestExportUsesHeaderOrFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reviews/export":
			w.Header().Set("Content-Disposition", `attachment; filename="reviews_2024.csv"`)
			w.Header().Set("Content-Type", "text/csv")
			_, _ = io.WriteString(w, "id,text\n")
		case "/games/export":
			_, _ = io.WriteString(w, "id\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestClient(server)
	download, err := c.Export(context.Background(), types.JobKindReviews)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if download.Filename != "reviews_2024.csv" || download.ContentType != "text/csv" || string(download.Data) != "id,text\n" {
		t.Fatalf("unexpected download: %#v", download)
	}

	download, err = c.Export(context.Background(), types.JobKindGames)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if download.Filename != "games_export.csv" {
		t.Fatalf("expected fallback name, got %q", download.Filename)
	}
}
