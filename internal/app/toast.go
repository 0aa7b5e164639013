package app

import (
	"strconv"

	"charm.land/lipgloss/v2"

	"reviewdeck/internal/notify"
)

// toastLine renders the newest active toast right-aligned. Older toasts stay
// queued in the center until they expire.
func toastLine(center *notify.Center, width int) string {
	if center == nil || width <= 0 {
		return ""
	}
	toast, ok := center.Latest()
	if !ok {
		return ""
	}
	text := truncateToWidth(toast.Message, max(1, width-4))
	if extra := center.Len() - 1; extra > 0 && width > 12 {
		text = truncateToWidth(toast.Message, max(1, width-10))
		text += " (+" + strconv.Itoa(extra) + ")"
	}
	pill := toastStyle(toast.Level).Render(" " + text + " ")
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, pill)
}

func toastStyle(level notify.Level) lipgloss.Style {
	switch level {
	case notify.LevelWarning:
		return toastWarningStyle
	case notify.LevelError:
		return toastErrorStyle
	default:
		return toastInfoStyle
	}
}
