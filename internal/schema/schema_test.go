package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleSchema() *Schema {
	return &Schema{
		Dialect:  "sqlite",
		Database: "app",
		Tables: []Table{
			{
				Name: "users",
				Fields: []Field{
					{Name: "id", Type: "integer", AutoIncrement: true},
					{Name: "name", Type: "varchar", Length: "255"},
					{Name: "email", Type: "varchar", Length: "255", Nullable: true, Default: Ptr("NULL")},
				},
				Indexes: []Index{
					{Kind: IndexPrimary, Columns: Columns("id")},
					{Name: "users_email", Kind: IndexUnique, Columns: Columns("email")},
				},
			},
			{
				Name: "posts",
				Fields: []Field{
					{Name: "id", Type: "integer"},
					{Name: "user_id", Type: "integer"},
				},
				ForeignKeys: []ForeignKey{
					{Name: "fk_posts_user", Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}, OnDelete: "CASCADE"},
				},
				Triggers: []Trigger{
					{Name: "posts_touch", Timing: "AFTER", Event: "INSERT", Statement: "CREATE TRIGGER posts_touch AFTER INSERT ON posts BEGIN SELECT 1; END"},
				},
			},
		},
	}
}

func TestWriteAndLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "schema.yaml")

	s := sampleSchema()
	if err := s.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	loaded, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if loaded.Dialect != "sqlite" {
		t.Errorf("dialect = %q, want sqlite", loaded.Dialect)
	}
	if len(loaded.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(loaded.Tables))
	}

	users := loaded.Table("users")
	if users == nil {
		t.Fatal("users table missing")
	}
	email := users.Field("email")
	if email == nil || !email.IsNullDefault() {
		t.Errorf("email default not preserved: %+v", email)
	}
	if pk := users.PrimaryKey(); pk == nil || pk.ColumnNames()[0] != "id" {
		t.Errorf("primary key not preserved: %+v", pk)
	}

	posts := loaded.Table("posts")
	if got := posts.ForeignKeys[0].OnDelete; got != "CASCADE" {
		t.Errorf("on_delete = %q, want CASCADE", got)
	}
	if len(posts.Triggers) != 1 {
		t.Errorf("expected trigger preserved")
	}
}

func TestLoadYAMLRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	content := `dialect: mysql
tables:
  - name: t
    fields:
      - name: id
        type: int
    indexes:
      - kind: PRIMARY
        columns: [{name: id}]
      - kind: PRIMARY
        columns: [{name: id}]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadYAML(path)
	if !errors.Is(err, ErrMultiplePrimary) {
		t.Fatalf("expected ErrMultiplePrimary, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		wantErr string
	}{
		{
			name:  "valid",
			table: sampleSchema().Tables[0],
		},
		{
			name:    "missing type",
			table:   Table{Name: "t", Fields: []Field{{Name: "a"}}},
			wantErr: "Type",
		},
		{
			name:    "bad index kind",
			table:   Table{Name: "t", Fields: []Field{{Name: "a", Type: "int"}}, Indexes: []Index{{Name: "x", Kind: "SPATIALISH", Columns: Columns("a")}}},
			wantErr: "oneof",
		},
		{
			name: "fk column count",
			table: Table{Name: "t", Fields: []Field{{Name: "a", Type: "int"}}, ForeignKeys: []ForeignKey{
				{Name: "fk", Columns: []string{"a"}, RefTable: "u", RefColumns: []string{"x", "y"}},
			}},
			wantErr: "1 source columns and 2 target columns",
		},
		{
			name: "bad fk action",
			table: Table{Name: "t", Fields: []Field{{Name: "a", Type: "int"}}, ForeignKeys: []ForeignKey{
				{Name: "fk", Columns: []string{"a"}, RefTable: "u", RefColumns: []string{"x"}, OnDelete: "EXPLODE"},
			}},
			wantErr: "OnDelete",
		},
		{
			name: "set null action",
			table: Table{Name: "t", Fields: []Field{{Name: "a", Type: "int"}}, ForeignKeys: []ForeignKey{
				{Name: "fk", Columns: []string{"a"}, RefTable: "u", RefColumns: []string{"x"}, OnDelete: "SET NULL"},
			}},
		},
		{
			name:    "duplicate field",
			table:   Table{Name: "t", Fields: []Field{{Name: "a", Type: "int"}, {Name: "A", Type: "int"}}},
			wantErr: "duplicate field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	got := sampleSchema().Summary()
	want := "Found 2 tables, 5 columns, 2 indexes, 1 foreign keys, 1 triggers"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestIndexCovers(t *testing.T) {
	ix := Index{Name: "x", Kind: IndexPlain, Columns: Columns("a", "b")}
	if !ix.Covers(map[string]bool{"a": true, "b": true, "c": true}) {
		t.Error("expected index to be covered")
	}
	if ix.Covers(map[string]bool{"a": true}) {
		t.Error("expected index not covered when b is missing")
	}
}
