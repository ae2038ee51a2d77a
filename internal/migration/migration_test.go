package migration

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/drivers"
)

var statements = []string{
	"ALTER TABLE t ADD a int",
	"ALTER TABLE t ADD b int",
	"ALTER TABLE t ADD c int",
}

func TestDriver_Run_Success(t *testing.T) {
	mc := &conn.MockConn{}
	var callbacks int
	status, err := NewDriver(mc, nil).Run(context.Background(), statements, func(s *Status) {
		callbacks++
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Phase != PhaseCompleted {
		t.Errorf("phase = %q, want completed", status.Phase)
	}
	if len(status.Executed) != 3 || len(mc.Executed) != 3 {
		t.Errorf("executed = %v", status.Executed)
	}
	if status.Overall.PercentComplete != 100 {
		t.Errorf("percent = %v", status.Overall.PercentComplete)
	}
	if callbacks != 5 {
		t.Errorf("callbacks = %d, want 5", callbacks)
	}
	if mc.Begun != 0 {
		t.Error("Run must not open a transaction")
	}
}

func TestDriver_Run_FirstStatementFails(t *testing.T) {
	mc := &conn.MockConn{FailOn: map[string]error{"ADD a": errors.New(`near "ADD": syntax error`)}}
	status, err := NewDriver(mc, nil).Run(context.Background(), statements, nil)

	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecError, got %v", err)
	}
	var partial *PartialAlterFailureError
	if errors.As(err, &partial) {
		t.Error("nothing ran, so the failure is not partial")
	}
	if execErr.Kind != drivers.SyntaxRejected {
		t.Errorf("kind = %q", execErr.Kind)
	}
	if status.Phase != PhaseFailed || len(status.Remaining) != 3 || status.Failed != statements[0] {
		t.Errorf("status = %+v", status)
	}
}

func TestDriver_Run_PartialFailure(t *testing.T) {
	native := errors.New("Duplicate entry '1' for key 'uq'")
	mc := &conn.MockConn{FailOn: map[string]error{"ADD b": native}}
	status, err := NewDriver(mc, nil).Run(context.Background(), statements, nil)

	var partial *PartialAlterFailureError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialAlterFailureError, got %v", err)
	}
	if len(partial.Executed) != 1 || len(partial.Remaining) != 2 || partial.Remaining[0] != statements[1] {
		t.Errorf("partial = %+v", partial)
	}
	if !errors.Is(err, native) {
		t.Error("native error should be reachable with errors.Is")
	}
	if Kind(err) != drivers.ConstraintViolation {
		t.Errorf("kind = %q", Kind(err))
	}
	if status.Phase != PhasePartialFailure {
		t.Errorf("phase = %q", status.Phase)
	}
	if len(mc.Executed) != 1 {
		t.Errorf("statements after the failure must not run: %v", mc.Executed)
	}
}

func TestDriver_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mc := &conn.MockConn{}
	status, err := NewDriver(mc, nil).Run(ctx, statements, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(mc.Executed) != 0 || status.Phase != PhaseFailed {
		t.Errorf("status = %+v", status)
	}
}

func TestDriver_RunTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		mc := &conn.MockConn{}
		status, err := NewDriver(mc, nil).RunTx(context.Background(), statements, nil)
		if err != nil {
			t.Fatal(err)
		}
		if status.Phase != PhaseCompleted || mc.Committed != 1 || mc.RolledBack != 0 {
			t.Errorf("status = %+v, committed=%d", status, mc.Committed)
		}
	})

	t.Run("rollback", func(t *testing.T) {
		mc := &conn.MockConn{FailOn: map[string]error{"ADD c": errors.New("boom")}}
		status, err := NewDriver(mc, nil).RunTx(context.Background(), statements, nil)
		var execErr *ExecError
		if !errors.As(err, &execErr) || execErr.Statement != statements[2] {
			t.Fatalf("expected ExecError on third statement, got %v", err)
		}
		var partial *PartialAlterFailureError
		if errors.As(err, &partial) {
			t.Error("a rolled back run is never partial")
		}
		if status.Phase != PhaseRolledBack || mc.RolledBack != 1 || mc.Committed != 0 {
			t.Errorf("status = %+v", status)
		}
		if len(status.Executed) != 0 || len(status.Remaining) != 3 {
			t.Errorf("executed=%v remaining=%v", status.Executed, status.Remaining)
		}
	})

	t.Run("check passes", func(t *testing.T) {
		mc := &conn.MockConn{}
		status, err := NewDriver(mc, nil).RunTx(context.Background(), statements, nil, Check{Name: "fk", Query: "PRAGMA foreign_key_check"})
		if err != nil || status.Phase != PhaseCompleted || mc.Committed != 1 {
			t.Fatalf("status = %+v, err = %v", status, err)
		}
		if len(mc.Queries) != 1 || mc.Queries[0] != "PRAGMA foreign_key_check" {
			t.Errorf("queries = %v", mc.Queries)
		}
	})

	t.Run("check finds rows", func(t *testing.T) {
		mc := &conn.MockConn{QueryFunc: func(string, []interface{}) ([]conn.Row, error) {
			return []conn.Row{{"table": "child"}, {"table": "child"}}, nil
		}}
		status, err := NewDriver(mc, nil).RunTx(context.Background(), statements, nil, Check{Name: "fk", Query: "PRAGMA foreign_key_check"})
		var failed *CheckFailedError
		if !errors.As(err, &failed) || failed.Rows != 2 {
			t.Fatalf("expected CheckFailedError with 2 rows, got %v", err)
		}
		if Kind(err) != drivers.ConstraintViolation {
			t.Errorf("kind = %q", Kind(err))
		}
		if status.Phase != PhaseRolledBack || status.Failed != "PRAGMA foreign_key_check" || mc.Committed != 0 || mc.RolledBack != 1 {
			t.Errorf("status = %+v", status)
		}
	})

	t.Run("cancelled with failing rollback", func(t *testing.T) {
		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		mc := &conn.MockConn{RollbackErr: errors.New("connection reset")}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		status, err := NewDriver(mc, logger).RunTx(ctx, statements, func(s *Status) {
			if s.Overall.Done == 1 {
				cancel()
			}
		})
		if !errors.Is(err, context.Canceled) || status.Phase != PhaseRolledBack {
			t.Fatalf("status = %+v, err = %v", status, err)
		}
		if !strings.Contains(logs.String(), "rollback failed") || !strings.Contains(logs.String(), "connection reset") {
			t.Errorf("rollback error not logged: %s", logs.String())
		}
	})

	t.Run("begin fails", func(t *testing.T) {
		mc := &conn.MockConn{BeginErr: errors.New("locked")}
		status, err := NewDriver(mc, nil).RunTx(context.Background(), statements, nil)
		if err == nil || status.Phase != PhaseFailed {
			t.Errorf("status = %+v, err = %v", status, err)
		}
	})
}

func TestMonitor(t *testing.T) {
	var seen []string
	m := NewMonitor(nil, func(s *Status) { seen = append(seen, s.Phase) }, nil)
	if m.Last() != nil {
		t.Error("expected no status before a run")
	}

	mc := &conn.MockConn{}
	if _, err := NewDriver(mc, nil).Run(context.Background(), statements[:1], m.Callback()); err != nil {
		t.Fatal(err)
	}
	last := m.Last()
	if last == nil || last.Phase != PhaseCompleted || len(last.Executed) != 1 {
		t.Errorf("last = %+v", last)
	}
	if len(seen) != 3 || seen[0] != PhaseRunning || seen[2] != PhaseCompleted {
		t.Errorf("seen = %v", seen)
	}

	last.Executed[0] = "changed"
	if m.Last().Executed[0] == "changed" {
		t.Error("Last must return a copy")
	}
}
