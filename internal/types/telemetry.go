package types

import (
	"fmt"
	"math"
	"time"
)

type Progress struct {
	Scraped    int     `json:"scraped"`
	Total      int     `json:"total"`
	ETASeconds float64 `json:"eta_seconds"`
}

// Percent returns min(100, floor(scraped/total*100)); a zero total is 0%.
func (p Progress) Percent() int {
	if p.Total <= 0 || p.Scraped <= 0 {
		return 0
	}
	pct := int(math.Floor(float64(p.Scraped) / float64(p.Total) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

func (p Progress) ETA() time.Duration {
	if p.ETASeconds <= 0 || math.IsNaN(p.ETASeconds) || math.IsInf(p.ETASeconds, 0) {
		return 0
	}
	return time.Duration(p.ETASeconds * float64(time.Second))
}

type StatusSnapshot struct {
	IsRunning       bool     `json:"is_running"`
	CurrentItem     string   `json:"current_item"`
	CurrentProgress Progress `json:"current_progress"`
	GlobalProgress  Progress `json:"global_progress"`
	Logs            []string `json:"logs"`
}

type TelemetrySample struct {
	Timestamp       time.Time `json:"timestamp"`
	CumulativeCount int       `json:"cumulative_count"`
}

// Rate returns items per minute between two samples. The result is never
// negative and never NaN or infinite.
func Rate(prev, next TelemetrySample) float64 {
	elapsed := next.Timestamp.Sub(prev.Timestamp).Seconds()
	rate := float64(next.CumulativeCount-prev.CumulativeCount) / elapsed * 60
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return 0
	}
	return rate
}

func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	secs := int(d.Round(time.Second).Seconds())
	hours := secs / 3600
	mins := (secs % 3600) / 60
	rem := secs % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, mins)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm%02ds", mins, rem)
	}
	return fmt.Sprintf("%ds", rem)
}
