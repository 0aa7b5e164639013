package app

import "charm.land/lipgloss/v2"

var (
	headerStyle              = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	helpStyle                = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle              = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activityStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Bold(true)
	tabStyle                 = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1)
	tabActiveStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("63")).Bold(true).Padding(0, 1)
	tabDirtyMarkStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	selectedStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("236"))
	dividerStyle             = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	labelStyle               = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle               = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	overrideValueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("180")).Bold(true)
	disabledStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Faint(true)
	enabledMarkStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("70")).Bold(true)
	fieldErrorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	logLineStyle             = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	menuDropStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("235"))
	contextMenuHeaderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("251")).Background(lipgloss.Color("235")).Bold(true)
	confirmDialogBorderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("208"))
	outcomeOKStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	outcomeBadStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	toastInfoStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("29")).Bold(true)
	toastWarningStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("136")).Bold(true)
	toastErrorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Bold(true)
)
