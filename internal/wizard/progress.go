package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/migration"
)

// RunFunc runs an alteration.
type RunFunc func() (*engine.Result, error)

type statusMsg struct{ status *migration.Status }

type runDoneMsg struct {
	result *engine.Result
	err    error
}

// ProgressModel runs an alteration and shows each statement as it
// completes. Status updates arrive through Callback.
type ProgressModel struct {
	run     RunFunc
	updates chan *migration.Status
	spinner spinner.Model
	status  *migration.Status
	result  *engine.Result
	err     error
	done    bool
}

// NewProgressModel creates a progress model for run.
func NewProgressModel(run RunFunc) *ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = highlightStyle
	return &ProgressModel{
		run:     run,
		updates: make(chan *migration.Status, 64),
		spinner: s,
	}
}

// Callback returns the StatusCallback that feeds the model. Updates
// arriving faster than the screen redraws are dropped; the final one is
// carried by the result.
func (m *ProgressModel) Callback() migration.StatusCallback {
	return func(status *migration.Status) {
		cp := *status
		select {
		case m.updates <- &cp:
		default:
		}
	}
}

func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start(), m.wait())
}

func (m *ProgressModel) start() tea.Cmd {
	return func() tea.Msg {
		result, err := m.run()
		return runDoneMsg{result: result, err: err}
	}
}

func (m *ProgressModel) wait() tea.Cmd {
	return func() tea.Msg {
		return statusMsg{status: <-m.updates}
	}
}

func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		if m.done {
			return m, nil
		}
		m.status = msg.status
		return m, m.wait()

	case runDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		if msg.result != nil && msg.result.Status != nil {
			m.status = msg.result.Status
		}
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Applying Alteration"))
	b.WriteString("\n\n")

	if m.status != nil {
		o := m.status.Overall
		b.WriteString(fmt.Sprintf("  %d/%d statements (%.0f%%)\n", o.Done, o.Total, o.PercentComplete))
		for _, stmt := range m.status.Executed {
			b.WriteString(successStyle.Render("  ok  ") + stmt + "\n")
		}
		if m.status.Failed != "" {
			b.WriteString(errStyle.Render("  err ") + m.status.Failed + "\n")
		}
	}

	switch {
	case !m.done:
		b.WriteString(fmt.Sprintf("\n  %s Running...\n", m.spinner.View()))
	case m.err != nil:
		b.WriteString("\n" + errStyle.Render("  "+m.err.Error()) + "\n")
	default:
		b.WriteString("\n" + successStyle.Render("  Done.") + "\n")
	}
	return b.String()
}

// Result returns the outcome once the run has finished.
func (m *ProgressModel) Result() (*engine.Result, error) {
	return m.result, m.err
}

// Done returns true when the run has finished.
func (m *ProgressModel) Done() bool {
	return m.done
}
