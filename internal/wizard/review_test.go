package wizard

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/diff"
	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/migration"
)

func addPlan() *engine.Plan {
	return &engine.Plan{
		Dialect:    "mysql",
		Table:      "users",
		Final:      "users",
		Mode:       engine.ModeDirect,
		Fields:     &diff.FieldPlan{Ops: []dialect.FieldOp{{Kind: dialect.OpAdd, Name: "age"}}},
		Statements: []string{"ALTER TABLE `users` ADD `age` int NULL"},
	}
}

func dropPlan() *engine.Plan {
	p := addPlan()
	p.Fields.Ops = append(p.Fields.Ops, dialect.FieldOp{Kind: dialect.OpDrop, Name: "legacy"})
	p.Statements = []string{"ALTER TABLE `users` ADD `age` int NULL, DROP `legacy`"}
	return p
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m ReviewModel, keys ...string) ReviewModel {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(ReviewModel)
	}
	return m
}

func TestReviewModel_Confirm(t *testing.T) {
	m := NewReviewModel(addPlan())
	if m.Done() || m.Confirmed() {
		t.Fatal("should not be done initially")
	}
	m = press(m, "enter")
	if !m.Done() || !m.Confirmed() || m.Cancelled() {
		t.Errorf("enter: done=%v confirmed=%v cancelled=%v", m.Done(), m.Confirmed(), m.Cancelled())
	}
}

func TestReviewModel_Cancel(t *testing.T) {
	for _, k := range []string{"q", "esc"} {
		t.Run(k, func(t *testing.T) {
			m := press(NewReviewModel(addPlan()), k)
			if !m.Cancelled() || m.Confirmed() {
				t.Errorf("%s should cancel", k)
			}
		})
	}
}

func TestReviewModel_DestructiveNeedsTableName(t *testing.T) {
	m := NewReviewModel(dropPlan())
	if len(m.drops) != 1 || m.drops[0] != "column legacy" {
		t.Fatalf("drops = %v", m.drops)
	}

	m = press(m, "enter")
	if m.Done() || !m.mismatch {
		t.Error("enter without the table name should not confirm")
	}

	// q is text here, not cancel.
	m = press(m, "q")
	if m.Cancelled() {
		t.Error("q should be typed into the prompt")
	}
	m = press(m, "esc")
	if !m.Cancelled() {
		t.Error("esc should cancel")
	}

	m = press(NewReviewModel(dropPlan()), "u", "s", "e", "r", "s", "enter")
	if !m.Confirmed() {
		t.Error("typing the table name should confirm")
	}
}

func TestReviewModel_View(t *testing.T) {
	p := dropPlan()
	p.Mode = engine.ModeRebuild
	p.Final = "members"
	p.Warnings = []string{"inbound foreign key orders.user_id"}
	view := NewReviewModel(p).View()
	for _, want := range []string{"users -> members", "rebuild", "shadow table", "DROP `legacy`", "inbound foreign key", "column legacy"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestReviewModel_ShowAll(t *testing.T) {
	p := addPlan()
	p.Statements = make([]string, 30)
	for i := range p.Statements {
		p.Statements[i] = "CREATE INDEX ix ON t (c)"
	}
	m := NewReviewModel(p)
	if !strings.Contains(m.View(), "more, tab to show all") {
		t.Error("long plans should be truncated")
	}
	m = press(m, "tab")
	if strings.Contains(m.View(), "more, tab to show all") {
		t.Error("tab should show every statement")
	}
}

func TestProgressModel(t *testing.T) {
	want := &engine.Result{Plan: addPlan(), Status: &migration.Status{
		Phase:    migration.PhaseCompleted,
		Executed: []string{"ALTER TABLE `users` ADD `age` int NULL"},
		Overall:  migration.ProgressInfo{Done: 1, Total: 1, PercentComplete: 100},
	}}
	m := NewProgressModel(func() (*engine.Result, error) { return want, nil })

	m.Callback()(&migration.Status{Phase: migration.PhaseRunning, Overall: migration.ProgressInfo{Total: 1}})
	msg := m.wait()()
	next, cmd := m.Update(msg)
	m = next.(*ProgressModel)
	if cmd == nil || m.status.Phase != migration.PhaseRunning {
		t.Errorf("status update not applied: %+v", m.status)
	}
	if !strings.Contains(m.View(), "Running") {
		t.Error("view should show the spinner while running")
	}

	next, _ = m.Update(m.start()())
	m = next.(*ProgressModel)
	got, err := m.Result()
	if !m.Done() || err != nil || got != want {
		t.Errorf("result = %v, %v", got, err)
	}
	if view := m.View(); !strings.Contains(view, "1/1 statements") || !strings.Contains(view, "Done.") {
		t.Errorf("view = %q", view)
	}
}

func TestProgressModel_Failure(t *testing.T) {
	boom := errors.New("duplicate column")
	m := NewProgressModel(func() (*engine.Result, error) {
		return &engine.Result{Status: &migration.Status{Phase: migration.PhaseFailed, Failed: "ALTER TABLE t ADD a int"}}, boom
	})
	next, _ := m.Update(m.start()())
	m = next.(*ProgressModel)
	if _, err := m.Result(); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	view := m.View()
	if !strings.Contains(view, "duplicate column") || !strings.Contains(view, "ALTER TABLE t ADD a int") {
		t.Errorf("view = %q", view)
	}
}
