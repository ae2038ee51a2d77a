//go:build integration

package integration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/drivers"
	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/migration"
	"github.com/tablewright/tablewright/internal/schema"
)

func countRows(t *testing.T, cfg *config.Config, table string) int64 {
	t.Helper()
	c := seed(t, cfg)
	rows, err := c.Query(context.Background(), "SELECT COUNT(*) AS n FROM "+table)
	if err != nil {
		t.Fatal(err)
	}
	return rows[0].Int("n")
}

func TestMySQL_RenameWidenAndReorder(t *testing.T) {
	cfg := mysqlConfig(t)
	seed(t, cfg,
		"CREATE TABLE users (id int NOT NULL AUTO_INCREMENT, name varchar(40) NULL, email varchar(190) NOT NULL DEFAULT 'none', PRIMARY KEY (id), KEY users_email_idx (email))",
		"INSERT INTO users (name, email) VALUES ('a', 'a@x'), ('b', 'b@x')",
	)
	ctx := context.Background()
	e := newEngine(cfg)

	current, err := e.Describe(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	desired := *current
	desired.Fields = []schema.Field{
		current.Fields[0],
		current.Fields[2],
		{Name: "label", Original: "name", Type: "varchar", Length: "80", Nullable: true},
	}

	plan, err := e.Plan(ctx, &desired, engine.PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Mode != engine.ModeDirect {
		t.Fatalf("mode = %s, statements = %v", plan.Mode, plan.Statements)
	}
	if !strings.Contains(strings.Join(plan.Statements, ";"), "CHANGE `name` `label` varchar(80)") {
		t.Errorf("statements = %v", plan.Statements)
	}

	if _, err := e.Apply(ctx, &desired, engine.PlanOptions{}); err != nil {
		t.Fatal(err)
	}
	after, err := e.Describe(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range after.Fields {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "id,email,label" {
		t.Errorf("columns = %v", names)
	}
	if n := countRows(t, cfg, "users"); n != 2 {
		t.Errorf("rows = %d", n)
	}

	again, err := e.Plan(ctx, after, engine.PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !again.Empty() {
		t.Errorf("second plan = %v", again.Statements)
	}
}

func TestMySQL_PartialFailure(t *testing.T) {
	cfg := mysqlConfig(t)
	seed(t, cfg,
		"CREATE TABLE dup (id int NOT NULL, code varchar(10) NOT NULL, PRIMARY KEY (id))",
		"INSERT INTO dup VALUES (1, 'x'), (2, 'x')",
	)
	ctx := context.Background()
	e := newEngine(cfg)

	result, err := e.AlterIndexes(ctx, "dup", []dialect.IndexOp{
		{Kind: dialect.OpAdd, Index: schema.Index{Name: "dup_code_uq", Kind: schema.IndexUnique, Columns: []schema.IndexColumn{{Name: "code"}}}},
	})
	if err == nil {
		t.Fatal("expected duplicate entry to be rejected")
	}
	if kind := migration.Kind(err); kind != drivers.ConstraintViolation {
		t.Errorf("kind = %s (%v)", kind, err)
	}
	if result == nil || len(result.Remaining()) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestPostgres_RebuildFreeAlter(t *testing.T) {
	cfg := postgresConfig(t)
	seed(t, cfg,
		`CREATE TABLE accounts (id serial PRIMARY KEY, balance numeric(10,2) NOT NULL DEFAULT 0, note varchar(20))`,
		`INSERT INTO accounts (balance, note) VALUES (10.50, 'a'), (20, 'b')`,
	)
	ctx := context.Background()
	e := newEngine(cfg)

	current, err := e.Describe(ctx, "accounts")
	if err != nil {
		t.Fatal(err)
	}
	desired := *current
	desired.Fields = append([]schema.Field(nil), current.Fields...)
	desired.Fields[2].Length = "200"
	desired.Fields = append(desired.Fields, schema.Field{Name: "opened_at", Type: "timestamp", Nullable: true})

	result, err := e.Apply(ctx, &desired, engine.PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Plan.Mode != engine.ModeDirect {
		t.Errorf("mode = %s", result.Plan.Mode)
	}
	after, err := e.Describe(ctx, "accounts")
	if err != nil {
		t.Fatal(err)
	}
	if len(after.Fields) != 4 || after.Fields[2].Length != "200" {
		t.Errorf("fields = %+v", after.Fields)
	}
}

func TestPostgres_TransactionalRollback(t *testing.T) {
	cfg := postgresConfig(t)
	c := seed(t, cfg, `CREATE TABLE t (id int PRIMARY KEY)`)
	ctx := context.Background()

	d := migration.NewDriver(c, nil)
	_, err := d.RunTx(ctx, []string{
		`ALTER TABLE "t" ADD "a" int`,
		`ALTER TABLE "t" ADD "a" int`,
	}, nil)
	var execErr *migration.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v", err)
	}

	current, err := newEngine(cfg).Describe(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(current.Fields) != 1 {
		t.Errorf("rollback left %d columns", len(current.Fields))
	}
}
