package types

import (
	"encoding/json"
	"sort"
	"strings"
)

type ItemID string

type GlobalSettings struct {
	MaxReviews       int    `json:"max_reviews"`
	MinPlaytimeHours int    `json:"min_playtime_hours"`
	MaxPlaytimeHours int    `json:"max_playtime_hours"`
	Language         string `json:"language"`
	ReviewType       string `json:"review_type"`
	PurchaseType     string `json:"purchase_type"`
	MinHelpfulVotes  int    `json:"min_helpful_votes"`
}

// ItemOverride holds per-item values. Nil fields fall back to the global
// value; the override as a whole only applies while Enabled is set.
type ItemOverride struct {
	Enabled          bool    `json:"enabled"`
	MaxReviews       *int    `json:"max_reviews,omitempty"`
	MinPlaytimeHours *int    `json:"min_playtime_hours,omitempty"`
	MaxPlaytimeHours *int    `json:"max_playtime_hours,omitempty"`
	Language         *string `json:"language,omitempty"`
	ReviewType       *string `json:"review_type,omitempty"`
	PurchaseType     *string `json:"purchase_type,omitempty"`
	MinHelpfulVotes  *int    `json:"min_helpful_votes,omitempty"`
}

type Settings struct {
	Global           GlobalSettings          `json:"global"`
	PerItemOverrides map[ItemID]ItemOverride `json:"per_item_overrides,omitempty"`
}

const (
	defaultMaxReviews   = 1000
	defaultLanguage     = "english"
	defaultReviewType   = "all"
	defaultPurchaseType = "all"
)

var (
	Languages     = []string{"all", "english", "schinese", "russian", "spanish", "german", "french", "brazilian"}
	ReviewTypes   = []string{"all", "positive", "negative"}
	PurchaseTypes = []string{"all", "steam", "non_steam"}
)

func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		MaxReviews:   defaultMaxReviews,
		Language:     defaultLanguage,
		ReviewType:   defaultReviewType,
		PurchaseType: defaultPurchaseType,
	}
}

func DefaultSettings() *Settings {
	return &Settings{
		Global:           DefaultGlobalSettings(),
		PerItemOverrides: map[ItemID]ItemOverride{},
	}
}

// IsZero reports whether s carries no saved values at all, which is how an
// empty remote object decodes.
func (s *Settings) IsZero() bool {
	if s == nil {
		return true
	}
	return s.Global == (GlobalSettings{}) && len(s.PerItemOverrides) == 0
}

func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := &Settings{
		Global:           s.Global,
		PerItemOverrides: make(map[ItemID]ItemOverride, len(s.PerItemOverrides)),
	}
	for id, override := range s.PerItemOverrides {
		out.PerItemOverrides[id] = override.clone()
	}
	return out
}

func (s *Settings) Override(id ItemID) (ItemOverride, bool) {
	if s == nil || s.PerItemOverrides == nil {
		return ItemOverride{}, false
	}
	override, ok := s.PerItemOverrides[id]
	return override, ok
}

func (s *Settings) SetOverride(id ItemID, override ItemOverride) {
	if s == nil {
		return
	}
	id = ItemID(strings.TrimSpace(string(id)))
	if id == "" {
		return
	}
	if s.PerItemOverrides == nil {
		s.PerItemOverrides = map[ItemID]ItemOverride{}
	}
	s.PerItemOverrides[id] = override
}

func (s *Settings) RemoveOverride(id ItemID) {
	if s == nil || s.PerItemOverrides == nil {
		return
	}
	delete(s.PerItemOverrides, id)
}

// ItemIDs returns the ids that carry an override, sorted.
func (s *Settings) ItemIDs() []ItemID {
	if s == nil {
		return nil
	}
	ids := make([]ItemID, 0, len(s.PerItemOverrides))
	for id := range s.PerItemOverrides {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Effective returns the settings that apply to one item.
func (s *Settings) Effective(id ItemID) GlobalSettings {
	if s == nil {
		return DefaultGlobalSettings()
	}
	out := s.Global
	override, ok := s.Override(id)
	if !ok || !override.Enabled {
		return out
	}
	if override.MaxReviews != nil {
		out.MaxReviews = *override.MaxReviews
	}
	if override.MinPlaytimeHours != nil {
		out.MinPlaytimeHours = *override.MinPlaytimeHours
	}
	if override.MaxPlaytimeHours != nil {
		out.MaxPlaytimeHours = *override.MaxPlaytimeHours
	}
	if override.Language != nil {
		out.Language = *override.Language
	}
	if override.ReviewType != nil {
		out.ReviewType = *override.ReviewType
	}
	if override.PurchaseType != nil {
		out.PurchaseType = *override.PurchaseType
	}
	if override.MinHelpfulVotes != nil {
		out.MinHelpfulVotes = *override.MinHelpfulVotes
	}
	return out
}

// Payload flattens the settings into the JSON object the job endpoints
// accept. Callers add target fields on top.
func (s *Settings) Payload() (map[string]any, error) {
	if s == nil {
		s = DefaultSettings()
	}
	data, err := json.Marshal(s.Global)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if len(s.PerItemOverrides) > 0 {
		payload["per_item_overrides"] = s.PerItemOverrides
	}
	return payload, nil
}

func (o ItemOverride) clone() ItemOverride {
	out := ItemOverride{Enabled: o.Enabled}
	out.MaxReviews = cloneInt(o.MaxReviews)
	out.MinPlaytimeHours = cloneInt(o.MinPlaytimeHours)
	out.MaxPlaytimeHours = cloneInt(o.MaxPlaytimeHours)
	out.MinHelpfulVotes = cloneInt(o.MinHelpfulVotes)
	out.Language = cloneString(o.Language)
	out.ReviewType = cloneString(o.ReviewType)
	out.PurchaseType = cloneString(o.PurchaseType)
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func IntPtr(v int) *int {
	return &v
}

func StringPtr(v string) *string {
	return &v
}
