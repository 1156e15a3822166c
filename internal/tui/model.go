// Package tui renders a live dashboard of a layer-stack negotiation:
// Forward Open, an Execute PCCC exchange, and Forward Close, each
// shown as a step that transitions from pending to running to
// success/error. It knows nothing about ab2cip/ab2pccc directly —
// cmd/ab2ctl supplies the steps as plain closures, so the dashboard
// never imports the protocol packages itself.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// StepStatus is where a single Step currently sits in its lifecycle.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepDone
	StepFailed
)

// Step is one unit of work the dashboard displays: a label and the
// function that performs it. Run is called once, inside the tea.Cmd
// the model returns when the step becomes current (bubbletea runs it
// off the Update loop).
type Step struct {
	Label string
	Run   func() error
}

type stepResultMsg struct {
	index int
	err   error
}

// Model drives Steps in order, one at a time, rendering each one's
// status with the package Theme/Styles.
type Model struct {
	steps   []Step
	status  []StepStatus
	errs    []error
	current int
	styles  Styles
	done    bool
}

// NewModel builds a Model that will run steps in order when started.
func NewModel(steps []Step) *Model {
	return &Model{
		steps:  steps,
		status: make([]StepStatus, len(steps)),
		errs:   make([]error, len(steps)),
		styles: DefaultStyles,
	}
}

// Run starts the bubbletea program and blocks until the step sequence
// finishes or the user quits. It returns the first error encountered,
// if any, as ab2ctl's process exit code depends on it.
func Run(steps []Step) error {
	m := NewModel(steps)
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: run program: %w", err)
	}
	fm, ok := final.(*Model)
	if !ok {
		return nil
	}
	for _, e := range fm.errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if len(m.steps) == 0 {
		return tea.Quit
	}
	return m.runStep(0)
}

func (m *Model) runStep(i int) tea.Cmd {
	m.status[i] = StepRunning
	step := m.steps[i]
	return func() tea.Msg {
		return stepResultMsg{index: i, err: step.Run()}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil

	case stepResultMsg:
		if msg.err != nil {
			m.status[msg.index] = StepFailed
			m.errs[msg.index] = msg.err
			m.done = true
			return m, tea.Quit
		}
		m.status[msg.index] = StepDone
		m.current = msg.index + 1
		if m.current >= len(m.steps) {
			m.done = true
			return m, tea.Quit
		}
		return m, m.runStep(m.current)
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("ab2ctl — layer stack negotiation"))
	b.WriteString("\n\n")
	for i, step := range m.steps {
		icon := StatusIcon(statusName(m.status[i]), m.styles)
		line := fmt.Sprintf("%s %s", icon, step.Label)
		if m.status[i] == StepFailed {
			line += "  " + m.styles.Error.Render(m.errs[i].Error())
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.done {
		b.WriteString("\n")
		b.WriteString(m.styles.Dim.Render("press q to exit"))
	}
	return b.String()
}

func statusName(s StepStatus) string {
	switch s {
	case StepRunning:
		return "running"
	case StepDone:
		return "success"
	case StepFailed:
		return "error"
	default:
		return "pending"
	}
}
