package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/engine"
)

// ReviewModel shows a plan's statements and asks for confirmation. A
// plan that drops columns or indexes must be confirmed by typing the
// table name.
type ReviewModel struct {
	plan      *engine.Plan
	drops     []string
	input     textinput.Model
	showAll   bool
	mismatch  bool
	confirmed bool
	done      bool
	cancelled bool
	width     int
	height    int
}

// NewReviewModel creates a review model for plan.
func NewReviewModel(plan *engine.Plan) ReviewModel {
	ti := textinput.New()
	ti.Placeholder = plan.Table
	ti.CharLimit = 128
	ti.Width = 40
	m := ReviewModel{
		plan:   plan,
		drops:  destructive(plan),
		input:  ti,
		width:  100,
		height: 24,
	}
	if len(m.drops) > 0 {
		m.input.Focus()
	}
	return m
}

// destructive lists the columns and indexes plan removes.
func destructive(plan *engine.Plan) []string {
	var out []string
	if plan.Fields != nil {
		for _, op := range plan.Fields.Ops {
			if op.Kind == dialect.OpDrop {
				out = append(out, "column "+op.Name)
			}
		}
	}
	if plan.Indexes != nil {
		for _, op := range plan.Indexes.Indexes {
			if op.Kind == dialect.OpDrop {
				out = append(out, "index "+op.Index.Name)
			}
		}
	}
	return out
}

func (m ReviewModel) Init() tea.Cmd {
	if len(m.drops) > 0 {
		return textinput.Blink
	}
	return nil
}

func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if len(m.drops) > 0 && strings.TrimSpace(m.input.Value()) != m.plan.Table {
				m.mismatch = true
				return m, nil
			}
			m.done = true
			m.confirmed = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.done = true
			m.cancelled = true
			return m, tea.Quit
		case "tab":
			m.showAll = !m.showAll
			return m, nil
		}
		if len(m.drops) == 0 {
			if msg.String() == "q" {
				m.done = true
				m.cancelled = true
				return m, tea.Quit
			}
			return m, nil
		}
	}

	if len(m.drops) > 0 {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.mismatch = false
		return m, cmd
	}
	return m, nil
}

func (m ReviewModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Review Alteration"))
	b.WriteString("\n\n")

	p := m.plan
	b.WriteString(fmt.Sprintf("  Table:    %s", p.Table))
	if p.Final != "" && p.Final != p.Table {
		b.WriteString(fmt.Sprintf(" -> %s", p.Final))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Dialect:  %s\n", p.Dialect))
	b.WriteString(fmt.Sprintf("  Mode:     %s\n", p.Mode))
	if p.Mode == engine.ModeRebuild {
		b.WriteString(dimStyle.Render("  The table is copied into a shadow table and swapped in."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(highlightStyle.Render(fmt.Sprintf("  Statements (%d)", len(p.Statements))))
	b.WriteString("\n")
	limit := m.height - 16
	if limit < 5 {
		limit = 5
	}
	for i, stmt := range p.Statements {
		if !m.showAll && i >= limit {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ... (%d more, tab to show all)\n", len(p.Statements)-limit)))
			break
		}
		b.WriteString(fmt.Sprintf("  %3d  %s\n", i+1, stmt))
	}

	for _, w := range p.Warnings {
		b.WriteString(warnStyle.Render("  ! " + w))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if len(m.drops) > 0 {
		b.WriteString(errStyle.Render("  This alteration removes: " + strings.Join(m.drops, ", ")))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  Type %s to confirm: %s\n", highlightStyle.Render(p.Table), m.input.View()))
		if m.mismatch {
			b.WriteString(errStyle.Render("  Name does not match."))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  enter: apply  tab: show all  esc: cancel"))
	} else {
		b.WriteString(dimStyle.Render("  enter: apply  tab: show all  q: cancel"))
	}

	return b.String()
}

// Done returns true when the model is finished.
func (m ReviewModel) Done() bool {
	return m.done
}

// Cancelled returns true if the user cancelled.
func (m ReviewModel) Cancelled() bool {
	return m.cancelled
}

// Confirmed returns true if the user confirmed the alteration.
func (m ReviewModel) Confirmed() bool {
	return m.confirmed
}
