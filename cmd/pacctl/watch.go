package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hubertat/pacball/machine"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type inputsMsg struct {
	inputs machine.Inputs
	at     time.Time
}

type streamErrMsg struct {
	err error
}

// watchModel renders every snapshot the controller pushes. read blocks
// until the next one arrives.
type watchModel struct {
	url      string
	read     func() (machine.Inputs, error)
	inputs   machine.Inputs
	received int
	lastAt   time.Time
	err      error
}

func newWatchModel(url string, read func() (machine.Inputs, error)) watchModel {
	return watchModel{url: url, read: read}
}

func (m watchModel) readNext() tea.Msg {
	in, err := m.read()
	if err != nil {
		return streamErrMsg{err: err}
	}
	return inputsMsg{inputs: in, at: time.Now()}
}

func (m watchModel) Init() tea.Cmd {
	return m.readNext
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case inputsMsg:
		m.inputs = msg.inputs
		m.lastAt = msg.at
		m.received++
		return m, m.readNext
	case streamErrMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("pacball inputs @ "+m.url) + "\n\n")

	state := m.inputs.Map()
	for _, f := range machine.InputFields() {
		mark, style := "○", inactiveStyle
		if state[f.Name] {
			mark, style = "●", activeStyle
		}
		b.WriteString(style.Render(fmt.Sprintf(" %s %s", mark, f.Name)) + "\n")
	}

	b.WriteString("\n")
	if m.received > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("%d snapshots, last at %s", m.received, m.lastAt.Format("15:04:05.000"))) + "\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("stream closed: "+m.err.Error()) + "\n")
	}
	b.WriteString(helpStyle.Render("q: quit") + "\n")

	return b.String()
}
