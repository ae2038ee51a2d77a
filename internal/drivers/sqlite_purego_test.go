//go:build !cgo_sqlite

package drivers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tablewright/tablewright/internal/config"
)

func TestClassify_RealSQLite(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, config.ConnectionConfig{Dialect: "sqlite", Database: filepath.Join(t.TempDir(), "t.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if _, err := c.Exec(ctx, `CREATE TABLE t (a integer NOT NULL UNIQUE)`); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Exec(ctx, `INSERT INTO t (a) VALUES (1)`); err != nil {
		t.Fatal(err)
	}

	_, err = c.Exec(ctx, `INSERT INTO t (a) VALUES (1)`)
	if got := Classify(err); got != ConstraintViolation {
		t.Errorf("duplicate insert: Classify = %q (%v)", got, err)
	}

	_, err = c.Exec(ctx, `ALTER TABLE t ADDD b integer`)
	if got := Classify(err); got != SyntaxRejected {
		t.Errorf("bad syntax: Classify = %q (%v)", got, err)
	}
}
