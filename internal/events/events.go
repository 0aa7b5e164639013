// Package events defines the typed messages components use to talk to each
// other through the Bubble Tea update loop.
package events

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
)

// ComponentID uniquely identifies a component instance emitting events.
type ComponentID string

// DeleteModelRequestMsg is emitted by a model card when the user asks to
// delete it. The providers page consumes it to open a confirmation.
type DeleteModelRequestMsg struct {
	Component ComponentID
	GroupKey  string
	ItemKey   string
}

// Describe renders the request in a human-friendly format for logs.
func (m DeleteModelRequestMsg) Describe() string {
	return fmt.Sprintf(`group:%q item:%q`, m.GroupKey, m.ItemKey)
}

// RequestDeleteModel returns a command emitting DeleteModelRequestMsg.
func RequestDeleteModel(component ComponentID, groupKey, itemKey string) tea.Cmd {
	return func() tea.Msg {
		return DeleteModelRequestMsg{Component: component, GroupKey: groupKey, ItemKey: itemKey}
	}
}

// SettingsEditedMsg is emitted when an editor commits a validated change.
type SettingsEditedMsg struct {
	Component ComponentID
	Field     string
}

// Describe renders the edit in a human-friendly format for logs.
func (m SettingsEditedMsg) Describe() string {
	return fmt.Sprintf(`component:%q field:%q`, m.Component, m.Field)
}
