package types

import (
	"fmt"
	"strconv"
	"strings"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ParseCount accepts only non-negative base-10 integers. An empty field
// parses as zero.
func ParseCount(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, &ValidationError{Field: field, Reason: "must contain digits only"}
		}
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: "number is too large"}
	}
	return value, nil
}

func ParseEnum(field, raw string, allowed []string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, option := range allowed {
		if raw == option {
			return raw, nil
		}
	}
	return "", &ValidationError{Field: field, Reason: "must be one of " + strings.Join(allowed, ", ")}
}

// ValidateGlobal checks cross-field constraints. A zero upper bound means
// unbounded.
func ValidateGlobal(g GlobalSettings) error {
	if g.MaxReviews < 0 {
		return &ValidationError{Field: "max_reviews", Reason: "must not be negative"}
	}
	if g.MinPlaytimeHours < 0 || g.MaxPlaytimeHours < 0 {
		return &ValidationError{Field: "playtime", Reason: "must not be negative"}
	}
	if g.MaxPlaytimeHours > 0 && g.MinPlaytimeHours > g.MaxPlaytimeHours {
		return &ValidationError{Field: "playtime", Reason: "lower bound exceeds upper bound"}
	}
	if g.MinHelpfulVotes < 0 {
		return &ValidationError{Field: "min_helpful_votes", Reason: "must not be negative"}
	}
	if _, err := ParseEnum("language", g.Language, Languages); err != nil {
		return err
	}
	if _, err := ParseEnum("review_type", g.ReviewType, ReviewTypes); err != nil {
		return err
	}
	if _, err := ParseEnum("purchase_type", g.PurchaseType, PurchaseTypes); err != nil {
		return err
	}
	return nil
}
