package app

import (
	"fmt"
	"strconv"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/types"
)

type fieldKind int

const (
	fieldCount fieldKind = iota
	fieldEnum
)

type formField struct {
	key     string
	label   string
	kind    fieldKind
	options []string
}

var formFields = []formField{
	{key: "max_reviews", label: "Max reviews", kind: fieldCount},
	{key: "min_playtime_hours", label: "Min playtime (h)", kind: fieldCount},
	{key: "max_playtime_hours", label: "Max playtime (h)", kind: fieldCount},
	{key: "language", label: "Language", kind: fieldEnum, options: types.Languages},
	{key: "review_type", label: "Review type", kind: fieldEnum, options: types.ReviewTypes},
	{key: "purchase_type", label: "Purchase type", kind: fieldEnum, options: types.PurchaseTypes},
	{key: "min_helpful_votes", label: "Min helpful votes", kind: fieldCount},
}

type inputMode int

const (
	inputNone inputMode = iota
	inputField
	inputItem
	inputDestination
)

// settingsForm edits either the global settings or the override of one
// item. Edits are validated here; only accepted candidates leave the form.
type settingsForm struct {
	cursor int
	mode   inputMode
	input  textinput.Model
	item   types.ItemID
	err    string
}

func newSettingsForm() *settingsForm {
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 64
	input.SetWidth(24)
	return &settingsForm{input: input}
}

func (f *settingsForm) Editing() bool {
	return f != nil && f.mode != inputNone
}

func (f *settingsForm) Field() formField {
	return formFields[f.cursor]
}

func (f *settingsForm) Move(delta int) {
	f.cursor = (f.cursor + delta + len(formFields)) % len(formFields)
	f.err = ""
}

// Begin starts text entry seeded with value.
func (f *settingsForm) Begin(mode inputMode, value string) tea.Cmd {
	f.mode = mode
	f.err = ""
	f.input.SetValue(value)
	f.input.CursorEnd()
	return f.input.Focus()
}

func (f *settingsForm) End() {
	f.mode = inputNone
	f.input.Blur()
	f.input.SetValue("")
}

func (f *settingsForm) UpdateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

func (f *settingsForm) Value() string {
	return f.input.Value()
}

// fieldValue returns the raw value shown for key in the form's scope and
// whether it comes from an override.
func fieldValue(settings *types.Settings, item types.ItemID, key string) (string, bool) {
	effective := settings.Effective(item)
	value := globalField(effective, key)
	if item == "" {
		return globalField(settings.Global, key), false
	}
	override, ok := settings.Override(item)
	if !ok {
		return value, false
	}
	return value, override.Enabled && overrideSet(override, key)
}

func globalField(g types.GlobalSettings, key string) string {
	switch key {
	case "max_reviews":
		return strconv.Itoa(g.MaxReviews)
	case "min_playtime_hours":
		return strconv.Itoa(g.MinPlaytimeHours)
	case "max_playtime_hours":
		return strconv.Itoa(g.MaxPlaytimeHours)
	case "language":
		return g.Language
	case "review_type":
		return g.ReviewType
	case "purchase_type":
		return g.PurchaseType
	case "min_helpful_votes":
		return strconv.Itoa(g.MinHelpfulVotes)
	}
	return ""
}

func overrideSet(o types.ItemOverride, key string) bool {
	switch key {
	case "max_reviews":
		return o.MaxReviews != nil
	case "min_playtime_hours":
		return o.MinPlaytimeHours != nil
	case "max_playtime_hours":
		return o.MaxPlaytimeHours != nil
	case "language":
		return o.Language != nil
	case "review_type":
		return o.ReviewType != nil
	case "purchase_type":
		return o.PurchaseType != nil
	case "min_helpful_votes":
		return o.MinHelpfulVotes != nil
	}
	return false
}

func lookupField(key string) (formField, bool) {
	for _, field := range formFields {
		if field.key == key {
			return field, true
		}
	}
	return formField{}, false
}

// applyEdit returns a copy of settings with key set to raw in the given
// scope. The settings passed in are never modified; a rejected edit returns
// a *types.ValidationError.
func applyEdit(settings *types.Settings, item types.ItemID, key, raw string) (*types.Settings, error) {
	field, ok := lookupField(key)
	if !ok {
		return nil, fmt.Errorf("unknown field %q", key)
	}
	var (
		count int
		enum  string
		err   error
	)
	if field.kind == fieldCount {
		count, err = types.ParseCount(key, raw)
	} else {
		enum, err = types.ParseEnum(key, raw, field.options)
	}
	if err != nil {
		return nil, err
	}
	candidate := settings.Clone()
	if candidate == nil {
		candidate = types.DefaultSettings()
	}
	if item == "" {
		setGlobalField(&candidate.Global, key, count, enum)
		if err := types.ValidateGlobal(candidate.Global); err != nil {
			return nil, err
		}
		return candidate, nil
	}
	override, exists := candidate.Override(item)
	if !exists {
		override.Enabled = true
	}
	setOverrideField(&override, key, count, enum)
	candidate.SetOverride(item, override)
	probe := candidate.Clone()
	forced := override
	forced.Enabled = true
	probe.SetOverride(item, forced)
	if err := types.ValidateGlobal(probe.Effective(item)); err != nil {
		return nil, err
	}
	return candidate, nil
}

func setGlobalField(g *types.GlobalSettings, key string, count int, enum string) {
	switch key {
	case "max_reviews":
		g.MaxReviews = count
	case "min_playtime_hours":
		g.MinPlaytimeHours = count
	case "max_playtime_hours":
		g.MaxPlaytimeHours = count
	case "language":
		g.Language = enum
	case "review_type":
		g.ReviewType = enum
	case "purchase_type":
		g.PurchaseType = enum
	case "min_helpful_votes":
		g.MinHelpfulVotes = count
	}
}

func setOverrideField(o *types.ItemOverride, key string, count int, enum string) {
	switch key {
	case "max_reviews":
		o.MaxReviews = types.IntPtr(count)
	case "min_playtime_hours":
		o.MinPlaytimeHours = types.IntPtr(count)
	case "max_playtime_hours":
		o.MaxPlaytimeHours = types.IntPtr(count)
	case "language":
		o.Language = types.StringPtr(enum)
	case "review_type":
		o.ReviewType = types.StringPtr(enum)
	case "purchase_type":
		o.PurchaseType = types.StringPtr(enum)
	case "min_helpful_votes":
		o.MinHelpfulVotes = types.IntPtr(count)
	}
}

// cycleOption returns the option after (or before) current.
func cycleOption(options []string, current string, delta int) string {
	if len(options) == 0 {
		return current
	}
	idx := 0
	for i, option := range options {
		if option == current {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(options)) % len(options)
	return options[idx]
}

// toggleOverride flips the enabled flag of item's override, creating an
// empty enabled override when none exists.
func toggleOverride(settings *types.Settings, item types.ItemID) *types.Settings {
	candidate := settings.Clone()
	if candidate == nil {
		candidate = types.DefaultSettings()
	}
	override, ok := candidate.Override(item)
	if !ok {
		override = types.ItemOverride{}
	}
	override.Enabled = !override.Enabled
	candidate.SetOverride(item, override)
	return candidate
}

func (f *settingsForm) View(settings *types.Settings, width int, loaded bool) string {
	if !loaded || settings == nil {
		return statusStyle.Render("Loading settings…")
	}
	scope := "global"
	if f.item != "" {
		scope = "item " + string(f.item)
		if override, ok := settings.Override(f.item); ok && override.Enabled {
			scope += " " + enabledMarkStyle.Render("[override on]")
		} else {
			scope += " " + disabledStyle.Render("[override off]")
		}
	}
	lines := []string{labelStyle.Render("Scope: ") + valueStyle.Render(scope)}
	labelWidth := 20
	for i, field := range formFields {
		label := fitPlain(field.label, labelWidth)
		value, overridden := fieldValue(settings, f.item, field.key)
		var rendered string
		switch {
		case i == f.cursor && f.mode == inputField:
			rendered = f.input.View()
		case field.kind == fieldEnum:
			rendered = "‹ " + value + " ›"
		default:
			rendered = value
		}
		if overridden {
			rendered = overrideValueStyle.Render(rendered)
		} else {
			rendered = valueStyle.Render(rendered)
		}
		line := "  " + labelStyle.Render(label) + " " + rendered
		if i == f.cursor {
			line = selectedStyle.Render("›") + " " + labelStyle.Render(label) + " " + rendered
		}
		lines = append(lines, truncateToWidth(line, width))
	}
	switch f.mode {
	case inputItem:
		lines = append(lines, labelStyle.Render("Item id: ")+f.input.View())
	case inputDestination:
		lines = append(lines, labelStyle.Render("Destination: ")+f.input.View())
	}
	if strings.TrimSpace(f.err) != "" {
		lines = append(lines, fieldErrorStyle.Render(truncateToWidth(f.err, width)))
	}
	return strings.Join(lines, "\n")
}
