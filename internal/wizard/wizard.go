// Package wizard holds the interactive terminal prompts of the CLI.
package wizard

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tablewright/tablewright/internal/engine"
)

// Confirm shows plan and returns whether the user approved it.
func Confirm(plan *engine.Plan) (bool, error) {
	final, err := tea.NewProgram(NewReviewModel(plan)).Run()
	if err != nil {
		return false, fmt.Errorf("review prompt: %w", err)
	}
	m, ok := final.(ReviewModel)
	if !ok {
		return false, fmt.Errorf("review prompt: unexpected model %T", final)
	}
	return m.Confirmed(), nil
}

// RunWithProgress runs an alteration while rendering its progress. The
// model's Callback must be wired to the engine before run starts
// executing statements.
func RunWithProgress(m *ProgressModel) (*engine.Result, error) {
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return nil, fmt.Errorf("progress display: %w", err)
	}
	return m.Result()
}
