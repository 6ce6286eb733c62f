package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const colKey = 16

type kv struct {
	Key string
	Val string
}

// styledPad pads a styled string to the given visual width using spaces.
// Unlike fmt.Sprintf("%-Xs"), this accounts for ANSI escape codes.
func styledPad(styled string, width int) string {
	visW := lipgloss.Width(styled)
	if visW >= width {
		return styled
	}
	return styled + strings.Repeat(" ", width-visW)
}

// boxTop renders the top border of a rounded box.
func boxTop(innerW int) string {
	return " " + dimStyle.Render("╭"+strings.Repeat("─", innerW+2)+"╮")
}

// boxBot renders the bottom border of a rounded box.
func boxBot(innerW int) string {
	return " " + dimStyle.Render("╰"+strings.Repeat("─", innerW+2)+"╯")
}

// boxRow renders one content line inside a box, padded to innerW.
func boxRow(content string, innerW int) string {
	pad := innerW - lipgloss.Width(content)
	if pad < 0 {
		pad = 0
	}
	return " " + dimStyle.Render("│") + " " + content + strings.Repeat(" ", pad) + " " + dimStyle.Render("│")
}

// renderKVBox renders key-value pairs inside a bordered box sized to fit.
func renderKVBox(details []kv) string {
	innerW := 0
	rows := make([]string, 0, len(details))
	for _, d := range details {
		content := fmt.Sprintf("%s %s", styledPad(dimStyle.Render(d.Key+":"), colKey), d.Val)
		if w := lipgloss.Width(content); w > innerW {
			innerW = w
		}
		rows = append(rows, content)
	}
	var sb strings.Builder
	sb.WriteString(boxTop(innerW) + "\n")
	for _, r := range rows {
		sb.WriteString(boxRow(r, innerW) + "\n")
	}
	sb.WriteString(boxBot(innerW) + "\n")
	return sb.String()
}

// bar renders a percentage bar of given width.
func bar(pct float64, width int) string {
	if width < 1 {
		width = 10
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	return pctColor(pct).Render(strings.Repeat("█", filled) + strings.Repeat("░", width-filled))
}

// newTable returns a table in the house style.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func section(title string) string {
	return titleStyle.Render(title) + "\n"
}

func warnings(list []string) string {
	var sb strings.Builder
	for _, w := range list {
		sb.WriteString(" " + warnStyle.Render("! ") + w + "\n")
	}
	return sb.String()
}
