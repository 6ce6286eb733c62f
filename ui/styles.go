package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ftahirops/xraid/model"
)

var (
	// Colors
	colorRed     = lipgloss.Color("#FF5555")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorMagenta = lipgloss.Color("#FF79C6")
	colorOrange  = lipgloss.Color("#FFB86C")
	colorWhite   = lipgloss.Color("#F8F8F2")
	colorGray    = lipgloss.Color("#6272A4")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	dangerPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorRed).
				Padding(0, 1)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	valueStyle  = lipgloss.NewStyle().Foreground(colorWhite)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	critStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	headerStyle = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(colorGray)
	dimStyle    = lipgloss.NewStyle().Foreground(colorGray)
	orangeStyle = lipgloss.NewStyle().Foreground(colorOrange)
)

func outcomeColor(s model.OutcomeStatus) lipgloss.Style {
	switch s {
	case model.OutcomeOK:
		return okStyle
	case model.OutcomeRecovered:
		return warnStyle
	case model.OutcomeFailed, model.OutcomeManual:
		return critStyle
	case model.OutcomeIgnored, model.OutcomeSkipped:
		return dimStyle
	default:
		return valueStyle
	}
}

func healthColor(state string) lipgloss.Style {
	switch state {
	case "ONLINE", "active", "clean":
		return okStyle
	case "DEGRADED", "recovering", "resyncing", "inactive":
		return warnStyle
	case "FAULTED", "UNAVAIL", "OFFLINE", "REMOVED", "SUSPENDED":
		return critStyle
	default:
		return orangeStyle
	}
}

func classColor(c model.CacheClass) lipgloss.Style {
	switch c {
	case model.CacheClassNVMe:
		return okStyle
	case model.CacheClassSSD:
		return valueStyle
	default:
		return warnStyle
	}
}

func pctColor(pct float64) lipgloss.Style {
	switch {
	case pct < 34:
		return critStyle
	case pct < 60:
		return warnStyle
	default:
		return okStyle
	}
}
