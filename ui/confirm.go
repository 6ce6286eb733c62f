package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// confirmModel is a yes/no prompt for a destructive action. Typing the full
// word "yes" is required; a single "y" is not enough.
type confirmModel struct {
	title    string
	details  []string
	input    string
	done     bool
	accepted bool
}

func newConfirmModel(title string, details []string) confirmModel {
	return confirmModel{title: title, details: details}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.done = true
		return m, tea.Quit
	case tea.KeyEnter:
		m.done = true
		m.accepted = strings.EqualFold(strings.TrimSpace(m.input), "yes")
		return m, tea.Quit
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyRunes:
		m.input += string(key.Runes)
	}
	return m, nil
}

func (m confirmModel) View() string {
	var sb strings.Builder
	body := []string{critStyle.Render(m.title), ""}
	for _, d := range m.details {
		body = append(body, " "+valueStyle.Render(d))
	}
	sb.WriteString(dangerPanelStyle.Render(strings.Join(body, "\n")) + "\n")
	if m.done {
		answer := critStyle.Render("declined")
		if m.accepted {
			answer = okStyle.Render("confirmed")
		}
		sb.WriteString(answer + "\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("Type %s to continue: %s", warnStyle.Render("yes"), m.input) + "█\n")
	sb.WriteString(helpStyle.Render("enter submit · esc cancel") + "\n")
	return sb.String()
}

// Prompt asks the operator on a terminal. It satisfies engine.Confirmer.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

// Confirm shows title and details and waits for an answer.
func (p Prompt) Confirm(title string, details []string) (bool, error) {
	in, out := p.In, p.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	final, err := tea.NewProgram(newConfirmModel(title, details), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	m, ok := final.(confirmModel)
	return ok && m.accepted, nil
}

// Panel frames body in the standard panel border.
func Panel(body string) string {
	return panelStyle.Render(strings.TrimRight(body, "\n"))
}
