package app

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/logging"
	"reviewdeck/internal/store"
	"reviewdeck/internal/types"
)

const (
	appNamespace    = "app"
	uiStateTimeout  = 2 * time.Second
	exitSaveTimeout = 1500 * time.Millisecond
)

type screenUIState struct {
	destination string
	item        types.ItemID
}

type uiStateLoadedMsg struct {
	tab     types.Screen
	screens map[types.Screen]screenUIState
}

// loadUIStateCmd reads the last active tab and per-screen UI keys from the
// local store. Missing keys are not errors.
func (m *Model) loadUIStateCmd() tea.Cmd {
	appNS := m.appNS
	logger := m.logger
	namespaces := map[types.Screen]*store.Namespace{}
	for screen, s := range m.jobs {
		namespaces[screen] = s.ns
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), uiStateTimeout)
		defer cancel()
		msg := uiStateLoadedMsg{screens: map[types.Screen]screenUIState{}}
		if raw, ok, err := appNS.GetString(ctx, store.KeyActiveTab); err != nil {
			logger.Warn("ui state load failed", logging.F("key", store.KeyActiveTab), logging.F("error", err))
		} else if ok {
			if tab, valid := types.ParseScreen(raw); valid {
				msg.tab = tab
			}
		}
		for screen, ns := range namespaces {
			var state screenUIState
			if dest, ok, err := ns.GetString(ctx, store.KeyDestination); err == nil && ok {
				state.destination = dest
			}
			if item, ok, err := ns.GetString(ctx, store.KeySelectedItem); err == nil && ok {
				state.item = types.ItemID(item)
			}
			msg.screens[screen] = state
		}
		return msg
	}
}

func (m *Model) applyUIState(msg uiStateLoadedMsg) tea.Cmd {
	for screen, state := range msg.screens {
		s := m.jobs[screen]
		if s == nil {
			continue
		}
		if state.destination != "" {
			s.destination = state.destination
		}
		s.form.item = state.item
	}
	if msg.tab == "" || msg.tab == m.active {
		return nil
	}
	return m.switchTo(msg.tab)
}

// putUICmd writes one UI key in the background; failures are only logged.
func putUICmd(ns *store.Namespace, logger logging.Logger, key, value string) tea.Cmd {
	if ns == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), uiStateTimeout)
		defer cancel()
		var err error
		if value == "" {
			err = ns.Delete(ctx, key)
		} else {
			err = ns.PutString(ctx, key, value)
		}
		if err != nil {
			logger.Warn("ui state save failed", logging.F("screen", ns.Screen()), logging.F("key", key), logging.F("error", err))
		}
		return nil
	}
}
