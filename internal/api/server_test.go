package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	_ "modernc.org/sqlite"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/discovery"
	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/report"
	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/validation"
)

var fixture = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name varchar(40), email varchar(190) NOT NULL DEFAULT 'none')`,
	`INSERT INTO users (name, email) VALUES ('a', 'a@x'), ('b', 'b@x')`,
}

// testServer creates a Server whose engine runs on a temp SQLite database.
func testServer(t *testing.T, opts ...Option) (*Server, *engine.Engine) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.db")
	c, err := conn.Open(context.Background(), "sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range fixture {
		if _, err := c.Exec(context.Background(), stmt); err != nil {
			t.Fatal(err)
		}
	}
	c.Close()

	cfg := &config.Config{Version: 1, Connection: config.ConnectionConfig{Dialect: "sqlite", Database: path}}
	cfg.Alter.VerifyRowCounts = true
	eng := engine.New(cfg, nil).WithOpener(func(ctx context.Context, cfg config.ConnectionConfig) (conn.Conn, error) {
		return conn.Open(ctx, "sqlite", cfg.Database)
	})
	return New(eng, nil, 0, opts...), eng
}

// serveMux creates an http.ServeMux with the server's routes registered.
func serveMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func widened(t *testing.T, eng *engine.Engine) schema.Table {
	t.Helper()
	current, err := eng.Describe(context.Background(), "users")
	if err != nil {
		t.Fatal(err)
	}
	desired := *current
	desired.Fields = append([]schema.Field(nil), current.Fields...)
	desired.Fields[2].Default = schema.Ptr("unknown")
	return desired
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer(t)
	w := do(t, serveMux(s), "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp HealthResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "ok" || resp.Busy {
		t.Errorf("resp = %+v", resp)
	}
}

func TestDescribe(t *testing.T) {
	s, _ := testServer(t)
	mux := serveMux(s)

	w := do(t, mux, "GET", "/api/tables/users", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var table schema.Table
	json.NewDecoder(w.Body).Decode(&table)
	if table.Name != "users" || len(table.Fields) != 3 {
		t.Errorf("table = %+v", table)
	}

	if w := do(t, mux, "GET", "/api/tables/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing table status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestPlan(t *testing.T) {
	s, eng := testServer(t)
	w := do(t, serveMux(s), "POST", "/api/plan", PlanRequest{Table: widened(t, eng)})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	var plan engine.Plan
	json.NewDecoder(w.Body).Decode(&plan)
	if plan.Mode != engine.ModeRebuild || len(plan.Statements) == 0 {
		t.Errorf("plan = %+v", plan)
	}
	if eng.Status() != nil {
		t.Error("planning must not run anything")
	}
}

func TestPlan_BadRequests(t *testing.T) {
	s, _ := testServer(t)
	mux := serveMux(s)
	tests := []struct {
		name string
		path string
		body any
	}{
		{"plan malformed", "/api/plan", "{not json"},
		{"plan invalid table", "/api/plan", PlanRequest{Table: schema.Table{Fields: []schema.Field{{Name: "a", Type: "int"}}}}},
		{"apply malformed", "/api/apply", "{"},
		{"alter missing table", "/api/alter", engine.AlterTableRequest{}},
		{"indexes missing ops", "/api/indexes", IndexesRequest{Table: "users"}},
		{"verify missing table", "/api/verify", VerifyRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, mux, "POST", tt.path, tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d: %s", w.Code, http.StatusBadRequest, w.Body)
			}
		})
	}
}

func TestApply_StatusReportMetrics(t *testing.T) {
	s, eng := testServer(t)
	mux := serveMux(s)

	if w := do(t, mux, "GET", "/api/status", nil); w.Code != http.StatusNotFound {
		t.Errorf("status before run = %d", w.Code)
	}
	if w := do(t, mux, "GET", "/api/report", nil); w.Code != http.StatusNotFound {
		t.Errorf("report before run = %d", w.Code)
	}

	w := do(t, mux, "POST", "/api/apply", PlanRequest{Table: widened(t, eng)})
	if w.Code != http.StatusOK {
		t.Fatalf("apply status = %d: %s", w.Code, w.Body)
	}
	var resp RunResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error != "" || resp.Result == nil || resp.Result.Validation == nil || resp.Result.Validation.Status != "PASS" {
		t.Errorf("resp = %+v", resp)
	}

	if w := do(t, mux, "GET", "/api/status", nil); w.Code != http.StatusOK {
		t.Errorf("status after run = %d", w.Code)
	}
	w = do(t, mux, "GET", "/api/report", nil)
	var rpt report.AlterationReport
	json.NewDecoder(w.Body).Decode(&rpt)
	if rpt.Table != "users" || rpt.Mode != engine.ModeRebuild || rpt.Execution.Phase != "completed" {
		t.Errorf("report = %+v", rpt)
	}

	if got := testutil.ToFloat64(s.metrics.alterations.WithLabelValues(engine.ModeRebuild, "completed")); got != 1 {
		t.Errorf("alterations counter = %v, want 1", got)
	}
	w = do(t, mux, "GET", "/metrics", nil)
	if !strings.Contains(w.Body.String(), "tablewright_alterations_total") {
		t.Error("metrics endpoint missing alteration counter")
	}

	// Reapplying the same shape changes nothing.
	w = do(t, mux, "POST", "/api/apply", PlanRequest{Table: widened(t, eng)})
	json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusOK || !resp.Result.Plan.Empty() {
		t.Errorf("second apply = %d %+v", w.Code, resp.Result.Plan)
	}
}

func TestAlter_RenameTable(t *testing.T) {
	s, eng := testServer(t)
	w := do(t, serveMux(s), "POST", "/api/alter", engine.AlterTableRequest{Table: "users", NewName: "members"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if _, err := eng.Describe(context.Background(), "members"); err != nil {
		t.Errorf("renamed table: %v", err)
	}
}

func TestDropTable(t *testing.T) {
	s, eng := testServer(t)
	mux := serveMux(s)

	w := do(t, mux, "DELETE", "/api/tables/users?dry_run=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dry run status = %d: %s", w.Code, w.Body)
	}
	var plan engine.Plan
	json.NewDecoder(w.Body).Decode(&plan)
	if plan.Mode != engine.ModeDrop || len(plan.Statements) != 1 || plan.Statements[0] != `DROP TABLE "users"` {
		t.Errorf("plan = %+v", plan)
	}
	if _, err := eng.Describe(context.Background(), "users"); err != nil {
		t.Fatalf("dry run dropped the table: %v", err)
	}

	w = do(t, mux, "DELETE", "/api/tables/users", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("drop status = %d: %s", w.Code, w.Body)
	}
	if _, err := eng.Describe(context.Background(), "users"); err == nil {
		t.Error("users still exists after drop")
	}
	if w := do(t, mux, "DELETE", "/api/tables/users", nil); w.Code != http.StatusNotFound {
		t.Errorf("second drop status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestVerify(t *testing.T) {
	s, _ := testServer(t)
	mux := serveMux(s)
	tests := []struct {
		expected int64
		want     string
	}{
		{2, "PASS"},
		{5, "FAIL"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.expected), func(t *testing.T) {
			w := do(t, mux, "POST", "/api/verify", VerifyRequest{Table: "users", Expected: tt.expected})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body)
			}
			var r validation.Result
			json.NewDecoder(w.Body).Decode(&r)
			if r.Status != tt.want {
				t.Errorf("status = %s, want %s", r.Status, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{engine.ErrBusy, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", engine.ErrBusy), http.StatusConflict},
		{&discovery.TableNotFoundError{Table: "t"}, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestCORS_DevMode(t *testing.T) {
	s, _ := testServer(t, WithDevMode(true))
	w := do(t, s.Handler(), "OPTIONS", "/api/plan", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	s, _ = testServer(t)
	w = do(t, s.Handler(), "GET", "/api/health", nil)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS header set outside dev mode")
	}
}
