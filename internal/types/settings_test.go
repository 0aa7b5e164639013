package types

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestEffectiveAppliesEnabledOverrideOnly(t *testing.T) {
	s := DefaultSettings()
	s.Global.MaxReviews = 1000
	s.SetOverride("570", ItemOverride{Enabled: true, MaxReviews: IntPtr(50)})
	s.SetOverride("730", ItemOverride{Enabled: false, MaxReviews: IntPtr(5)})

	if got := s.Effective("570").MaxReviews; got != 50 {
		t.Fatalf("expected override max_reviews 50, got %d", got)
	}
	if got := s.Effective("440").MaxReviews; got != 1000 {
		t.Fatalf("expected global max_reviews 1000 for plain item, got %d", got)
	}
	if got := s.Effective("730").MaxReviews; got != 1000 {
		t.Fatalf("expected disabled override to be ignored, got %d", got)
	}
	if got := s.Effective("570").Language; got != "english" {
		t.Fatalf("expected unset override field to inherit global, got %q", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := DefaultSettings()
	s.SetOverride("570", ItemOverride{Enabled: true, MaxReviews: IntPtr(50)})

	copied := s.Clone()
	*copied.PerItemOverrides["570"].MaxReviews = 7
	copied.Global.MaxReviews = 1

	if *s.PerItemOverrides["570"].MaxReviews != 50 {
		t.Fatalf("expected original override untouched")
	}
	if s.Global.MaxReviews != 1000 {
		t.Fatalf("expected original global untouched")
	}
}

func TestIsZero(t *testing.T) {
	if !(&Settings{}).IsZero() {
		t.Fatalf("expected empty settings to be zero")
	}
	if DefaultSettings().IsZero() {
		t.Fatalf("expected defaults to be non-zero")
	}
	var nilSettings *Settings
	if !nilSettings.IsZero() {
		t.Fatalf("expected nil settings to be zero")
	}
}

func TestPayloadFlattensGlobal(t *testing.T) {
	s := DefaultSettings()
	s.Global.MaxReviews = 25
	payload, err := s.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["max_reviews"] != float64(25) {
		t.Fatalf("expected max_reviews in payload, got %#v", payload["max_reviews"])
	}
	if _, ok := payload["per_item_overrides"]; ok {
		t.Fatalf("expected overrides to be omitted when empty")
	}
}

func TestRateSequence(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	counts := []int{0, 30, 30, 90}
	want := []float64{1800, 0, 3600}

	samples := make([]TelemetrySample, 0, len(counts))
	for i, count := range counts {
		samples = append(samples, TelemetrySample{Timestamp: base.Add(time.Duration(i) * time.Second), CumulativeCount: count})
	}
	for i := 1; i < len(samples); i++ {
		if got := Rate(samples[i-1], samples[i]); got != want[i-1] {
			t.Fatalf("sample %d: expected rate %v, got %v", i, want[i-1], got)
		}
	}
}

func TestRateNeverNegativeOrInvalid(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		prev TelemetrySample
		next TelemetrySample
	}{
		{name: "regression", prev: TelemetrySample{Timestamp: now, CumulativeCount: 90}, next: TelemetrySample{Timestamp: now.Add(time.Second), CumulativeCount: 10}},
		{name: "zero elapsed", prev: TelemetrySample{Timestamp: now, CumulativeCount: 1}, next: TelemetrySample{Timestamp: now, CumulativeCount: 5}},
		{name: "zero elapsed no change", prev: TelemetrySample{Timestamp: now, CumulativeCount: 5}, next: TelemetrySample{Timestamp: now, CumulativeCount: 5}},
		{name: "clock skew", prev: TelemetrySample{Timestamp: now, CumulativeCount: 1}, next: TelemetrySample{Timestamp: now.Add(-time.Second), CumulativeCount: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Rate(tc.prev, tc.next)
			if got < 0 || math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("expected clamped rate, got %v", got)
			}
		})
	}
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		progress Progress
		want     int
	}{
		{Progress{Scraped: 0, Total: 0}, 0},
		{Progress{Scraped: 5, Total: 0}, 0},
		{Progress{Scraped: 1, Total: 3}, 33},
		{Progress{Scraped: 3, Total: 3}, 100},
		{Progress{Scraped: 7, Total: 3}, 100},
	}
	for _, tc := range cases {
		if got := tc.progress.Percent(); got != tc.want {
			t.Fatalf("%+v: expected %d, got %d", tc.progress, tc.want, got)
		}
	}
}

func TestValidateGlobalRejectsInvertedRange(t *testing.T) {
	g := DefaultGlobalSettings()
	g.MinPlaytimeHours = 10
	g.MaxPlaytimeHours = 2
	err := ValidateGlobal(g)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "playtime" {
		t.Fatalf("expected playtime validation error, got %v", err)
	}

	g.MaxPlaytimeHours = 0
	if err := ValidateGlobal(g); err != nil {
		t.Fatalf("expected unbounded upper range to pass, got %v", err)
	}
}

func TestParseCountRejectsNonDigits(t *testing.T) {
	if _, err := ParseCount("max_reviews", "12a"); err == nil {
		t.Fatalf("expected error for non-numeric input")
	}
	if _, err := ParseCount("max_reviews", "-1"); err == nil {
		t.Fatalf("expected error for sign")
	}
	got, err := ParseCount("max_reviews", " 42 ")
	if err != nil || got != 42 {
		t.Fatalf("expected 42, got %d err=%v", got, err)
	}
	got, err = ParseCount("max_reviews", "")
	if err != nil || got != 0 {
		t.Fatalf("expected empty to parse as 0, got %d err=%v", got, err)
	}
}

func TestEnabledTargetsFiltersBothLevelsInOrder(t *testing.T) {
	tree := &ProviderTree{Providers: []ProviderConfig{
		{Name: "openai", Enabled: true, Models: []ProviderModel{
			{Name: "gpt-4o", Enabled: true, ReasoningLevel: "low"},
			{Name: "gpt-4o-mini", Enabled: false},
			{Name: "o3", Enabled: true, ReasoningLevel: "high"},
		}},
		{Name: "anthropic", Enabled: false, Models: []ProviderModel{{Name: "sonnet", Enabled: true}}},
		{Name: "local", Enabled: true, Models: []ProviderModel{{Name: "llama", Enabled: true}}},
	}}

	targets := tree.EnabledTargets()
	want := []string{"openai/gpt-4o (low)", "openai/o3 (high)", "local/llama"}
	if len(targets) != len(want) {
		t.Fatalf("expected %d targets, got %#v", len(want), targets)
	}
	for i, target := range targets {
		if target.Label() != want[i] {
			t.Fatalf("target %d: expected %q, got %q", i, want[i], target.Label())
		}
	}
}

func TestRemoveModel(t *testing.T) {
	tree := &ProviderTree{Providers: []ProviderConfig{
		{Name: "openai", Enabled: true, Models: []ProviderModel{{Name: "a", Enabled: true}, {Name: "b", Enabled: true}}},
	}}
	if !tree.RemoveModel("openai", "a") {
		t.Fatalf("expected model removed")
	}
	if tree.RemoveModel("openai", "missing") {
		t.Fatalf("expected missing model to report false")
	}
	if len(tree.Providers[0].Models) != 1 || tree.Providers[0].Models[0].Name != "b" {
		t.Fatalf("unexpected models: %#v", tree.Providers[0].Models)
	}
}

func TestFormatETA(t *testing.T) {
	if got := FormatETA(0); got != "-" {
		t.Fatalf("expected dash, got %q", got)
	}
	if got := FormatETA(75 * time.Second); got != "1m15s" {
		t.Fatalf("expected 1m15s, got %q", got)
	}
	if got := FormatETA(2*time.Hour + 3*time.Minute); got != "2h03m" {
		t.Fatalf("expected 2h03m, got %q", got)
	}
}

func TestPurchaseTypeValues(t *testing.T) {
	for _, raw := range []string{"all", "steam", "Non_Steam"} {
		g := DefaultGlobalSettings()
		g.PurchaseType = raw
		if err := ValidateGlobal(g); err != nil {
			t.Fatalf("expected %q accepted, got %v", raw, err)
		}
	}
	g := DefaultGlobalSettings()
	g.PurchaseType = "non_steam_purchase"
	var verr *ValidationError
	if err := ValidateGlobal(g); !errors.As(err, &verr) || verr.Field != "purchase_type" {
		t.Fatalf("expected purchase_type rejected, got %v", err)
	}
}
