package engine

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/discovery"
	"github.com/tablewright/tablewright/internal/migration"
	"github.com/tablewright/tablewright/internal/rebuild"
	"github.com/tablewright/tablewright/internal/schema"
)

var usersFixture = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name varchar(40), email varchar(190) NOT NULL DEFAULT 'none')`,
	`CREATE INDEX users_email_idx ON users (email)`,
	`INSERT INTO users (name, email) VALUES ('a', 'a@x'), ('b', 'b@x'), ('c', 'c@x')`,
}

func sqlitePath(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	c, err := conn.Open(context.Background(), "sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	for _, stmt := range stmts {
		if _, err := c.Exec(context.Background(), stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	return path
}

func sqliteSession(t *testing.T, stmts ...string) *Session {
	t.Helper()
	c, err := conn.Open(context.Background(), "sqlite", sqlitePath(t, stmts...))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	s, err := NewSession(c, dialect.NewSQLite(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func count(t *testing.T, c conn.Conn, query string) int64 {
	t.Helper()
	rows, err := c.Query(context.Background(), query)
	if err != nil {
		t.Fatal(err)
	}
	return rows[0].Int("n")
}

func TestPlan_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := sqliteSession(t, usersFixture...)
	current, err := s.Describe(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}

	plan, err := s.Plan(ctx, current, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Empty() || plan.Mode != ModeNone {
		t.Errorf("plan = %+v", plan.Statements)
	}

	result, err := s.Run(ctx, plan)
	if err != nil || result.Status != nil {
		t.Errorf("running an empty plan: %+v, %v", result, err)
	}
}

func TestApply_SQLiteRenameRebuild(t *testing.T) {
	ctx := context.Background()
	s := sqliteSession(t, usersFixture...)
	s.Verify = true

	current, err := s.Describe(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	desired := *current
	desired.Fields = append([]schema.Field(nil), current.Fields...)
	desired.Fields[1] = schema.Field{Name: "label", Original: "name", Type: "varchar", Length: "80", Nullable: true}

	plan, err := s.Plan(ctx, &desired, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != ModeRebuild || plan.Rebuild == nil {
		t.Fatalf("mode = %s", plan.Mode)
	}
	if len(plan.Fields.Ops) != 1 || plan.Fields.Ops[0].String() != "MODIFY name AS label" {
		t.Errorf("ops = %v", plan.Fields.Ops)
	}

	result, err := s.Run(ctx, plan)
	if err != nil {
		t.Fatalf("Run: %v\n%s", err, strings.Join(plan.Statements, "\n"))
	}
	if result.Status.Phase != migration.PhaseCompleted {
		t.Errorf("phase = %s", result.Status.Phase)
	}
	if result.Validation == nil || result.Validation.Status != "PASS" {
		t.Errorf("validation = %+v", result.Validation)
	}

	after, err := s.Describe(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(after.FieldNames(), ","); got != "id,label,email" {
		t.Errorf("fields = %s", got)
	}
	if n := count(t, s.Conn, `SELECT COUNT(*) AS n FROM users WHERE label = 'b'`); n != 1 {
		t.Error("renamed column lost its data")
	}

	again, err := s.Plan(ctx, after, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !again.Empty() {
		t.Errorf("second plan = %v", again.Statements)
	}
}

func TestApply_SQLiteAppendInPlace(t *testing.T) {
	ctx := context.Background()
	s := sqliteSession(t, usersFixture...)
	current, err := s.Describe(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	desired := *current
	desired.Fields = append(append([]schema.Field(nil), current.Fields...), schema.Field{Name: "age", Type: "integer", Nullable: true})

	result, err := s.Apply(ctx, &desired, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Plan.Mode != ModeDirect || len(result.Plan.Statements) != 1 ||
		!strings.HasPrefix(result.Plan.Statements[0], `ALTER TABLE "users" ADD "age"`) {
		t.Errorf("plan = %s %v", result.Plan.Mode, result.Plan.Statements)
	}
	if len(result.Executed()) != 1 || len(result.Remaining()) != 0 {
		t.Errorf("executed = %v remaining = %v", result.Executed(), result.Remaining())
	}
	after, _ := s.Describe(ctx, "users")
	if after.Field("age") == nil {
		t.Error("age not added")
	}
}

func TestApply_Create(t *testing.T) {
	ctx := context.Background()
	s := sqliteSession(t)
	desired := &schema.Table{
		Name: "audit",
		Fields: []schema.Field{
			{Name: "id", Type: "integer", AutoIncrement: true},
			{Name: "event", Type: "text"},
		},
		Indexes: []schema.Index{{Kind: schema.IndexPrimary, Columns: schema.Columns("id")}},
	}
	result, err := s.Apply(ctx, desired, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Plan.Mode != ModeCreate || !result.Plan.Fields.Create {
		t.Errorf("mode = %s", result.Plan.Mode)
	}
	if n := count(t, s.Conn, `SELECT COUNT(*) AS n FROM sqlite_master WHERE type = 'table' AND name = 'audit'`); n != 1 {
		t.Error("table not created")
	}
}

func TestAlterTable_SQLiteFallsBackToRebuild(t *testing.T) {
	ctx := context.Background()
	s := sqliteSession(t, usersFixture...)

	result, err := s.AlterTable(ctx, AlterTableRequest{
		Table:  "users",
		Fields: []dialect.FieldOp{{Kind: dialect.OpRename, Name: "name", Field: schema.Field{Name: "full_name"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Plan.Mode != ModeRebuild {
		t.Errorf("mode = %s", result.Plan.Mode)
	}
	after, _ := s.Describe(ctx, "users")
	if got := strings.Join(after.FieldNames(), ","); got != "id,full_name,email" {
		t.Errorf("fields = %s", got)
	}
	if f := after.Field("full_name"); f == nil || f.Length != "40" {
		t.Errorf("a bare rename keeps the definition: %+v", f)
	}
	if len(after.Indexes) != 2 {
		t.Errorf("indexes = %+v", after.Indexes)
	}
}

func TestAlterIndexes_SQLite(t *testing.T) {
	ctx := context.Background()
	s := sqliteSession(t, usersFixture...)

	result, err := s.AlterIndexes(ctx, "users", []dialect.IndexOp{
		{Kind: dialect.OpDrop, Index: schema.Index{Name: "users_email_idx", Kind: schema.IndexPlain, Columns: schema.Columns("email")}},
		{Kind: dialect.OpAdd, Index: schema.Index{Kind: schema.IndexUnique, Columns: schema.Columns("email")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Plan.Mode != ModeDirect {
		t.Errorf("mode = %s", result.Plan.Mode)
	}
	_, err = s.Conn.Exec(ctx, `INSERT INTO users (name, email) VALUES ('d', 'a@x')`)
	if err == nil {
		t.Error("unique index not enforced")
	}
}

func TestAlterIndexes_SQLitePrimaryRebuilds(t *testing.T) {
	ctx := context.Background()
	s := sqliteSession(t,
		`CREATE TABLE tags (name text NOT NULL, kind text NOT NULL)`,
		`INSERT INTO tags VALUES ('a', 'x'), ('b', 'x')`,
	)
	plan, err := s.PlanAlterIndexes(ctx, "tags", []dialect.IndexOp{
		{Kind: dialect.OpAdd, Index: schema.Index{Kind: schema.IndexPrimary, Columns: schema.Columns("name", "kind")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != ModeRebuild {
		t.Fatalf("mode = %s", plan.Mode)
	}
	if _, err := s.Run(ctx, plan); err != nil {
		t.Fatal(err)
	}
	after, _ := s.Describe(ctx, "tags")
	if pk := after.PrimaryKey(); pk == nil || len(pk.Columns) != 2 {
		t.Errorf("indexes = %+v", after.Indexes)
	}
}

func mysqlUsers() *schema.Table {
	return &schema.Table{
		Name: "users",
		Fields: []schema.Field{
			{Name: "id", Type: "int", AutoIncrement: true},
			{Name: "name", Type: "varchar", Length: "40", Nullable: true},
		},
		Indexes: []schema.Index{
			{Name: "PRIMARY", Kind: schema.IndexPrimary, Columns: schema.Columns("id")},
			{Name: "users_name_idx", Kind: schema.IndexPlain, Columns: schema.Columns("name")},
		},
	}
}

func mockSession(mc *conn.MockConn, tables ...*schema.Table) *Session {
	r := &discovery.MockReader{DialectName: "mysql", Tables: map[string]*schema.Table{}}
	for _, t := range tables {
		r.Tables[t.Name] = t
	}
	return &Session{Conn: mc, Dialect: dialect.NewMySQL(), Reader: r}
}

func TestPlan_MySQLRenameAndWiden(t *testing.T) {
	mc := &conn.MockConn{}
	s := mockSession(mc, mysqlUsers())
	desired := mysqlUsers()
	desired.Fields[1] = schema.Field{Name: "label", Original: "name", Type: "varchar", Length: "80", Nullable: true}
	desired.Indexes[1].Columns = schema.Columns("label")

	plan, err := s.Plan(context.Background(), desired, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != ModeDirect {
		t.Fatalf("mode = %s", plan.Mode)
	}
	var alter string
	for _, stmt := range plan.Statements {
		if strings.Contains(stmt, "CHANGE") {
			alter = stmt
		}
	}
	if alter != "ALTER TABLE `users` CHANGE `name` `label` varchar(80) NULL" {
		t.Errorf("statements = %q", plan.Statements)
	}
	if len(mc.Executed) != 0 {
		t.Error("Plan must not execute anything")
	}
}

func TestRun_MySQLPartialFailure(t *testing.T) {
	mc := &conn.MockConn{FailOn: map[string]error{"CHANGE": errors.New("Duplicate entry 'x' for key 'uq'")}}
	s := mockSession(mc, mysqlUsers())
	desired := mysqlUsers()
	desired.Fields[1] = schema.Field{Name: "label", Original: "name", Type: "varchar", Length: "80", Nullable: true}
	desired.Indexes = desired.Indexes[:1]

	result, err := s.Apply(context.Background(), desired, PlanOptions{})
	var partial *migration.PartialAlterFailureError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialAlterFailureError, got %v", err)
	}
	if !result.Partial || result.Aborted {
		t.Errorf("result = %+v", result)
	}
	if len(result.Executed()) != 1 || len(result.Remaining()) != 1 {
		t.Errorf("executed = %v remaining = %v", result.Executed(), result.Remaining())
	}
	if mc.Begun != 0 {
		t.Error("direct alterations run without a transaction")
	}
}

func TestPlan_Errors(t *testing.T) {
	s := mockSession(&conn.MockConn{}, mysqlUsers())

	desired := mysqlUsers()
	desired.Fields[1].Original = "missing"
	if _, err := s.Plan(context.Background(), desired, PlanOptions{}); err == nil {
		t.Error("expected error for unknown original column")
	}

	desired = mysqlUsers()
	desired.Fields[1].Length = "10,,2"
	if _, err := s.Plan(context.Background(), desired, PlanOptions{}); err == nil {
		t.Error("expected type syntax error")
	}

	boom := errors.New("catalog unavailable")
	s.Reader.(*discovery.MockReader).Err = boom
	if _, err := s.Plan(context.Background(), mysqlUsers(), PlanOptions{}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestPlan_RenameTable(t *testing.T) {
	s := mockSession(&conn.MockConn{}, mysqlUsers())
	desired := mysqlUsers()
	desired.Name = "members"
	plan, err := s.Plan(context.Background(), desired, PlanOptions{From: "users"})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Table != "users" || plan.Final != "members" {
		t.Errorf("plan = %s -> %s", plan.Table, plan.Final)
	}
	if !reflect.DeepEqual(plan.Statements, []string{"ALTER TABLE `users` RENAME TO `members`"}) {
		t.Errorf("statements = %q", plan.Statements)
	}
}

func TestCompleteOps(t *testing.T) {
	ops, err := completeOps(mysqlUsers(), []dialect.FieldOp{
		{Kind: dialect.OpRename, Name: "name", Field: schema.Field{Name: "label"}},
		{Kind: dialect.OpAdd, Name: "age", Field: schema.Field{Type: "int"}},
		{Kind: dialect.OpDrop, Name: "id"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ops[0].Field.Type != "varchar" || ops[0].Field.Name != "label" || ops[0].Previous == nil {
		t.Errorf("rename = %+v", ops[0])
	}
	if ops[1].Field.Name != "age" {
		t.Errorf("add = %+v", ops[1])
	}
	if _, err := completeOps(mysqlUsers(), []dialect.FieldOp{{Kind: dialect.OpDrop, Name: "nope"}}); err == nil {
		t.Error("expected error for unknown column")
	}
}

func testEngine(t *testing.T, stmts ...string) *Engine {
	t.Helper()
	path := sqlitePath(t, stmts...)
	cfg := &config.Config{Version: 1, Connection: config.ConnectionConfig{Dialect: "sqlite", Database: path}}
	cfg.Alter.VerifyRowCounts = true
	return New(cfg, nil).WithOpener(func(ctx context.Context, cfg config.ConnectionConfig) (conn.Conn, error) {
		return conn.Open(ctx, "sqlite", cfg.Database)
	})
}

func TestEngine_Apply(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t, usersFixture...)

	current, err := e.Describe(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	desired := *current
	desired.Fields = append([]schema.Field(nil), current.Fields...)
	desired.Fields[2].Default = schema.Ptr("unknown")

	if e.Status() != nil || e.LastReport() != nil {
		t.Error("expected no status before a run")
	}
	result, err := e.Apply(ctx, &desired, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Plan.Mode != ModeRebuild {
		t.Errorf("mode = %s", result.Plan.Mode)
	}
	if !strings.Contains(result.Plan.Rebuild.Shadow, rebuild.DefaultShadowInfix) {
		t.Errorf("shadow = %s", result.Plan.Rebuild.Shadow)
	}
	if st := e.Status(); st == nil || st.Phase != migration.PhaseCompleted {
		t.Errorf("status = %+v", st)
	}
	r := e.LastReport()
	if r == nil || !r.Succeeded() || r.Mode != ModeRebuild || r.Validation == nil {
		t.Errorf("report = %+v", r)
	}

	plan, err := e.Plan(ctx, &desired, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Empty() {
		t.Errorf("second plan = %v", plan.Statements)
	}
}

func TestEngine_VerifyRowCount(t *testing.T) {
	e := testEngine(t, usersFixture...)
	r, err := e.VerifyRowCount(context.Background(), "users", 3)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != "PASS" {
		t.Errorf("status = %s", r.Status)
	}
}

func TestEngine_Busy(t *testing.T) {
	e := testEngine(t, usersFixture...)
	e.mu.Lock()
	if !e.Busy() {
		t.Error("expected busy")
	}
	if _, err := e.Apply(context.Background(), mysqlUsers(), PlanOptions{}); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v", err)
	}
	e.mu.Unlock()
	if e.Busy() {
		t.Error("expected idle")
	}
}

func TestEngine_NoConfig(t *testing.T) {
	if _, err := New(nil, nil).Open(context.Background()); err == nil {
		t.Error("expected error without configuration")
	}
}

func TestEngine_PlanAlterIndexes(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t, usersFixture...)
	plan, err := e.PlanAlterIndexes(ctx, "users", []dialect.IndexOp{
		{Kind: dialect.OpAdd, Index: schema.Index{Name: "users_name_idx", Kind: schema.IndexPlain, Columns: []schema.IndexColumn{{Name: "name"}}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != ModeDirect || len(plan.Statements) != 1 || !strings.Contains(plan.Statements[0], "users_name_idx") {
		t.Errorf("plan = %s %v", plan.Mode, plan.Statements)
	}
	if e.Status() != nil {
		t.Error("planning must not run anything")
	}

	plan, err = e.PlanAlterTable(ctx, AlterTableRequest{Table: "users", NewName: "members"})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Statements) != 1 || !strings.Contains(plan.Statements[0], "RENAME TO") {
		t.Errorf("rename plan = %v", plan.Statements)
	}
}

func mysqlOrders() *schema.Table {
	return &schema.Table{
		Name: "orders",
		Fields: []schema.Field{
			{Name: "id", Type: "int", AutoIncrement: true},
			{Name: "user_id", Type: "int"},
		},
		Indexes: []schema.Index{
			{Name: "PRIMARY", Kind: schema.IndexPrimary, Columns: schema.Columns("id")},
			{Name: "orders_user_idx", Kind: schema.IndexPlain, Columns: schema.Columns("user_id")},
		},
		ForeignKeys: []schema.ForeignKey{
			{Name: "orders_user_fk", Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}},
		},
	}
}

func TestPlan_MySQLDropsForeignKeyBeforeItsIndex(t *testing.T) {
	s := mockSession(&conn.MockConn{}, mysqlOrders())
	desired := mysqlOrders()
	desired.Indexes = desired.Indexes[:1]
	desired.ForeignKeys = []schema.ForeignKey{}

	plan, err := s.Plan(context.Background(), desired, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"ALTER TABLE `orders` DROP FOREIGN KEY `orders_user_fk`",
		"ALTER TABLE `orders` DROP INDEX `orders_user_idx`",
	}
	if !reflect.DeepEqual(plan.Statements, want) {
		t.Errorf("statements = %q\nwant %q", plan.Statements, want)
	}
}

func TestPlan_MySQLReplacesForeignKeyAndIndex(t *testing.T) {
	s := mockSession(&conn.MockConn{}, mysqlOrders())
	desired := mysqlOrders()
	desired.Indexes[1] = schema.Index{Name: "orders_user2_idx", Kind: schema.IndexPlain, Columns: schema.Columns("user_id", "id")}
	desired.ForeignKeys[0].Name = "orders_user2_fk"

	plan, err := s.Plan(context.Background(), desired, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Statements) != 4 {
		t.Fatalf("statements = %q", plan.Statements)
	}
	order := []string{"DROP FOREIGN KEY `orders_user_fk`", "DROP INDEX `orders_user_idx`", "ADD CONSTRAINT `orders_user2_fk`", "orders_user2_idx"}
	for i, want := range order {
		if !strings.Contains(plan.Statements[i], want) {
			t.Errorf("statement %d = %q, want it to contain %q", i, plan.Statements[i], want)
		}
	}
}

func TestDropTable_SQLite(t *testing.T) {
	ctx := context.Background()
	s := sqliteSession(t, append(usersFixture,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id))`,
	)...)

	plan, err := s.PlanDropTable(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != ModeDrop || len(plan.Statements) != 1 || plan.Statements[0] != `DROP TABLE "users"` {
		t.Errorf("plan = %s %q", plan.Mode, plan.Statements)
	}
	if len(plan.Warnings) != 1 || !strings.Contains(plan.Warnings[0], "posts(user_id)") {
		t.Errorf("warnings = %v", plan.Warnings)
	}

	if _, err := s.DropTable(ctx, "users"); err != nil {
		t.Fatal(err)
	}
	var nf *discovery.TableNotFoundError
	if _, err := s.Describe(ctx, "users"); !errors.As(err, &nf) {
		t.Errorf("users still exists: %v", err)
	}
	if _, err := s.DropTable(ctx, "users"); !errors.As(err, &nf) {
		t.Errorf("dropping a missing table: err = %v", err)
	}
}

func TestEngine_DropTable(t *testing.T) {
	ctx := context.Background()
	e := testEngine(t, usersFixture...)
	result, err := e.DropTable(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	if result.Plan.Mode != ModeDrop {
		t.Errorf("mode = %s", result.Plan.Mode)
	}
	if r := e.LastReport(); r == nil || !r.Succeeded() || r.Mode != ModeDrop {
		t.Errorf("report = %+v", r)
	}
}

func TestPlan_SQLiteChecks(t *testing.T) {
	ctx := context.Background()
	s := sqliteSession(t, `CREATE TABLE item (id INTEGER PRIMARY KEY, price INTEGER)`, `INSERT INTO item (price) VALUES (3)`)
	current, err := s.Describe(ctx, "item")
	if err != nil {
		t.Fatal(err)
	}
	if current.Checks != nil {
		t.Fatalf("checks = %+v", current.Checks)
	}

	desired := *current
	desired.Checks = []schema.Check{{Name: "ck_price", Expression: "price > 0"}}
	result, err := s.Apply(ctx, &desired, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Plan.Mode != ModeRebuild {
		t.Errorf("mode = %s", result.Plan.Mode)
	}
	after, err := s.Describe(ctx, "item")
	if err != nil {
		t.Fatal(err)
	}
	if len(after.Checks) != 1 || after.Checks[0].Name != "ck_price" || after.Checks[0].Expression != "price > 0" {
		t.Errorf("checks = %+v", after.Checks)
	}
	if _, err := s.Conn.Exec(ctx, `INSERT INTO item (price) VALUES (0)`); err == nil {
		t.Error("check constraint not enforced")
	}

	plan, err := s.Plan(ctx, after, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Empty() {
		t.Errorf("second plan = %q", plan.Statements)
	}
}

func TestPlan_ChecksUnsupportedInPlace(t *testing.T) {
	s := mockSession(&conn.MockConn{}, mysqlUsers())
	desired := mysqlUsers()
	desired.Checks = []schema.Check{{Expression: "id > 0"}}
	var uf *dialect.UnsupportedFeatureError
	if _, err := s.Plan(context.Background(), desired, PlanOptions{}); !errors.As(err, &uf) {
		t.Errorf("err = %v, want UnsupportedFeatureError", err)
	}
}
