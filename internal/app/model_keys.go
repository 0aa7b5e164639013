package app

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"reviewdeck/internal/events"
	"reviewdeck/internal/guard"
	"reviewdeck/internal/logging"
	"reviewdeck/internal/notify"
	"reviewdeck/internal/store"
	"reviewdeck/internal/types"
)

func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	if m.confirm.IsOpen() {
		_, res := m.confirm.HandleKey(msg)
		if !res.done {
			return nil
		}
		return m.resolveConfirm(res)
	}
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}
	if s := m.activeJob(); s != nil && s.form.Editing() {
		return m.handleInputKey(s, msg)
	}
	switch key {
	case "q":
		return m.quit()
	case "tab":
		return m.requestNavigate(m.neighbor(1))
	case "shift+tab":
		return m.requestNavigate(m.neighbor(-1))
	case "1", "2", "3", "4":
		idx := int(key[0] - '1')
		if idx < len(types.Screens) {
			return m.requestNavigate(types.Screens[idx])
		}
		return nil
	}
	switch m.active {
	case types.ScreenProviders:
		return m.handleProvidersKey(key)
	case types.ScreenReview:
		return m.review.Update(msg)
	}
	if s := m.activeJob(); s != nil {
		return m.handleJobKey(s, msg)
	}
	return nil
}

func (m *Model) handleInputKey(s *jobScreen, msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		s.form.End()
		s.form.err = ""
		return nil
	case "enter":
		return m.submitInput(s)
	}
	return s.form.UpdateInput(msg)
}

func (m *Model) submitInput(s *jobScreen) tea.Cmd {
	value := strings.TrimSpace(s.form.Value())
	switch s.form.mode {
	case inputField:
		cmd, ok := m.commitEdit(s, s.form.Field().key, value)
		if !ok {
			return nil
		}
		s.form.End()
		return cmd
	case inputItem:
		s.form.End()
		s.form.item = types.ItemID(value)
		return putUICmd(s.ns, m.logger, store.KeySelectedItem, value)
	case inputDestination:
		s.form.End()
		s.destination = value
		return putUICmd(s.ns, m.logger, store.KeyDestination, value)
	}
	s.form.End()
	return nil
}

func (m *Model) handleJobKey(s *jobScreen, msg tea.KeyPressMsg) tea.Cmd {
	key := msg.String()
	switch key {
	case "r":
		return m.startRun(s)
	case "c":
		return m.cancelRun(s)
	case "x":
		return m.startExport(s)
	case "y":
		return m.copyFromScreen(s)
	case "d":
		return s.form.Begin(inputDestination, s.destination)
	case "pgup":
		s.logs.PageUp()
		s.followLogs = false
		return nil
	case "pgdown":
		s.logs.PageDown()
		s.followLogs = s.logs.AtBottom()
		return nil
	case "end", "G":
		s.logs.GotoBottom()
		s.followLogs = true
		return nil
	}
	if !s.loaded {
		return nil
	}
	field := s.form.Field()
	current, _ := fieldValue(s.settings, s.form.item, field.key)
	switch key {
	case "up", "k":
		s.form.Move(-1)
	case "down", "j":
		s.form.Move(1)
	case "enter":
		if field.kind == fieldCount {
			return s.form.Begin(inputField, current)
		}
		cmd, _ := m.commitEdit(s, field.key, cycleOption(field.options, current, 1))
		return cmd
	case "right", "l", "space":
		if field.kind == fieldEnum {
			cmd, _ := m.commitEdit(s, field.key, cycleOption(field.options, current, 1))
			return cmd
		}
	case "left", "h":
		if field.kind == fieldEnum {
			cmd, _ := m.commitEdit(s, field.key, cycleOption(field.options, current, -1))
			return cmd
		}
	case "i":
		return s.form.Begin(inputItem, string(s.form.item))
	case "g":
		if s.form.item == "" {
			return nil
		}
		s.form.item = ""
		return putUICmd(s.ns, m.logger, store.KeySelectedItem, "")
	case "e":
		if s.form.item == "" {
			m.toasts.Notify(notify.LevelInfo, "", "Select an item with i first")
			return nil
		}
		return m.commitSettings(s, toggleOverride(s.settings, s.form.item), "override_enabled")
	case "s":
		return s.coord.SaveNow(s.settings, true)
	case "R":
		m.confirm.Open(confirmPurposeReset, "Reset settings",
			"Reset "+s.screen.Title()+" settings to defaults everywhere?", "Reset", "Cancel")
	}
	return nil
}

func (m *Model) handleProvidersKey(key string) tea.Cmd {
	p := m.providers
	switch key {
	case "up", "k":
		p.move(-1)
	case "down", "j":
		p.move(1)
	case "space", "enter":
		tree, ok := p.toggle()
		if !ok {
			return nil
		}
		return p.save(m.api, tree, m.core.RequestTimeout())
	case "d", "delete":
		return p.requestDelete()
	case "r":
		return p.load(m.api, m.core.RequestTimeout())
	}
	return nil
}

func (m *Model) resolveConfirm(res confirmResult) tea.Cmd {
	purpose := m.confirm.Purpose()
	m.confirm.Close()
	switch purpose {
	case confirmPurposeUnsaved:
		choice := guard.ChoiceCancel
		if !res.cancelled {
			choice = guard.Choice(res.choice)
		}
		if choice == guard.ChoiceSave {
			if s := m.jobs[m.owner]; s != nil {
				s.coord.CancelPending()
				m.guard.Register(s.guardHandlers(s.settings.Clone()))
			}
		}
		return m.guard.Resolve(choice)
	case confirmPurposeDeleteModel:
		tree, ok := m.providers.resolveDelete(!res.cancelled && res.choice == 0)
		if !ok {
			return nil
		}
		return m.providers.save(m.api, tree, m.core.RequestTimeout())
	case confirmPurposeReset:
		if res.cancelled || res.choice != 0 {
			return nil
		}
		if s := m.activeJob(); s != nil {
			s.form.End()
			return s.coord.Reset()
		}
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.confirm.IsOpen() {
		if _, ok := msg.(tea.MouseClickMsg); !ok {
			return nil
		}
		// Dialog rows are offset by the header and toast lines.
		mouse := msg.Mouse()
		mouse.Y -= 2
		shifted := tea.MouseClickMsg(mouse)
		_, res := m.confirm.HandleMouse(shifted, m.width, max(1, m.height-3))
		if !res.done {
			return nil
		}
		return m.resolveConfirm(res)
	}
	if _, ok := msg.(tea.MouseWheelMsg); !ok {
		return nil
	}
	switch m.active {
	case types.ScreenReview:
		return m.review.Update(msg)
	case types.ScreenScraper, types.ScreenAnalyzer:
		s := m.activeJob()
		var cmd tea.Cmd
		s.logs, cmd = s.logs.Update(msg)
		s.followLogs = s.logs.AtBottom()
		return cmd
	}
	return nil
}

func (m *Model) onDeleteRequest(msg events.DeleteModelRequestMsg) tea.Cmd {
	if m.active != types.ScreenProviders || m.confirm.IsOpen() {
		m.logger.Debug("delete request ignored", logging.F("event", msg.Describe()))
		return nil
	}
	if !m.providers.acceptDelete(msg) {
		m.logger.Debug("delete request already pending", logging.F("event", msg.Describe()))
		return nil
	}
	m.confirm.Open(confirmPurposeDeleteModel, "Delete model",
		fmt.Sprintf("Remove %s from %s?", msg.ItemKey, msg.GroupKey), "Delete", "Cancel")
	return nil
}

func (m *Model) onProvidersSaved(msg providersSavedMsg) tea.Cmd {
	if msg.err != nil {
		m.toasts.Notify(notify.LevelError, "providers:save", "Could not save providers: "+msg.err.Error())
		return m.providers.load(m.api, m.core.RequestTimeout())
	}
	if msg.seq == m.providers.seq {
		m.toasts.Notify(notify.LevelSuccess, "providers:saved", "Providers saved")
	}
	return nil
}
