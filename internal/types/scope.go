package types

import "strings"

// Screen identifies an editable view. It doubles as the remote settings scope
// and the local storage namespace.
type Screen string

const (
	ScreenScraper   Screen = "scraper"
	ScreenAnalyzer  Screen = "analyzer"
	ScreenProviders Screen = "providers"
	ScreenReview    Screen = "review"
)

// ProvidersScope is the remote settings scope holding the ProviderTree.
const ProvidersScope = "llm_providers"

var Screens = []Screen{ScreenScraper, ScreenAnalyzer, ScreenProviders, ScreenReview}

func ParseScreen(raw string) (Screen, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, screen := range Screens {
		if string(screen) == raw {
			return screen, true
		}
	}
	return "", false
}

// Kind returns the job family a screen drives, if any.
func (s Screen) Kind() (JobKind, bool) {
	switch s {
	case ScreenScraper:
		return JobKindGames, true
	case ScreenAnalyzer:
		return JobKindReviews, true
	default:
		return "", false
	}
}

func (s Screen) Title() string {
	switch s {
	case ScreenScraper:
		return "Scraper"
	case ScreenAnalyzer:
		return "Analyzer"
	case ScreenProviders:
		return "Providers"
	case ScreenReview:
		return "Review"
	default:
		return string(s)
	}
}
