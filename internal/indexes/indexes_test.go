package indexes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/schema"
)

func opStrings(ops []dialect.IndexOp) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = string(op.Kind) + " " + op.Index.Name
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var currentIndexes = []schema.Index{
	{Kind: schema.IndexPrimary, Columns: schema.Columns("id")},
	{Name: "idx_name", Kind: schema.IndexPlain, Columns: schema.Columns("name")},
	{Name: "uq_email", Kind: schema.IndexUnique, Columns: schema.Columns("email")},
}

func TestReconcileIndexes_Unchanged(t *testing.T) {
	if ops := ReconcileIndexes(currentIndexes, currentIndexes, nil); len(ops) != 0 {
		t.Errorf("expected no ops, got %v", opStrings(ops))
	}

	// A PRIMARY matches by kind whatever the engine calls it.
	desired := append([]schema.Index(nil), currentIndexes...)
	desired[0].Name = "users_pkey"
	if ops := ReconcileIndexes(currentIndexes, desired, nil); len(ops) != 0 {
		t.Errorf("expected no ops, got %v", opStrings(ops))
	}
}

func TestReconcileIndexes_Changes(t *testing.T) {
	tests := []struct {
		name    string
		desired []schema.Index
		drops   []string
		want    []string
	}{
		{
			name: "added",
			desired: append(append([]schema.Index(nil), currentIndexes...),
				schema.Index{Name: "idx_created", Kind: schema.IndexPlain, Columns: schema.Columns("created")}),
			want: []string{"ADD idx_created"},
		},
		{
			name:    "removed",
			desired: currentIndexes[:2],
			want:    []string{"DROP uq_email"},
		},
		{
			name: "column order",
			desired: []schema.Index{
				currentIndexes[0],
				{Name: "idx_name", Kind: schema.IndexPlain, Columns: schema.Columns("name", "email")},
				currentIndexes[2],
			},
			want: []string{"DROP idx_name", "ADD idx_name"},
		},
		{
			name: "kind",
			desired: []schema.Index{
				currentIndexes[0],
				{Name: "idx_name", Kind: schema.IndexUnique, Columns: schema.Columns("name")},
				currentIndexes[2],
			},
			want: []string{"DROP idx_name", "ADD idx_name"},
		},
		{
			name: "sort direction",
			desired: []schema.Index{
				currentIndexes[0],
				{Name: "idx_name", Kind: schema.IndexPlain, Columns: []schema.IndexColumn{{Name: "name", Desc: true}}},
				currentIndexes[2],
			},
			want: []string{"DROP idx_name", "ADD idx_name"},
		},
		{
			name: "prefix length",
			desired: []schema.Index{
				currentIndexes[0],
				{Name: "idx_name", Kind: schema.IndexPlain, Columns: []schema.IndexColumn{{Name: "name", Length: schema.Ptr(10)}}},
				currentIndexes[2],
			},
			want: []string{"DROP idx_name", "ADD idx_name"},
		},
		{
			name:    "primary kept without explicit drop",
			desired: currentIndexes[1:],
			want:    nil,
		},
		{
			name:    "primary dropped explicitly",
			desired: currentIndexes[1:],
			drops:   []string{"primary"},
			want:    []string{"DROP "},
		},
		{
			name: "primary replaced",
			desired: []schema.Index{
				{Kind: schema.IndexPrimary, Columns: schema.Columns("id", "tenant")},
				currentIndexes[1],
				currentIndexes[2],
			},
			want: []string{"DROP ", "ADD "},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := opStrings(ReconcileIndexes(currentIndexes, tt.desired, tt.drops))
			if !sameStrings(got, tt.want) {
				t.Errorf("ops = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReconcileIndexes_UnnamedMatchesByContent(t *testing.T) {
	current := []schema.Index{{Kind: schema.IndexUnique, Columns: schema.Columns("code")}}
	desired := []schema.Index{{Name: "uq_code", Kind: schema.IndexUnique, Columns: schema.Columns("code")}}
	if ops := ReconcileIndexes(current, desired, nil); len(ops) != 0 {
		t.Errorf("expected inline unique to match, got %v", opStrings(ops))
	}

	desired[0].Columns = schema.Columns("code", "region")
	if ops := ReconcileIndexes(current, desired, nil); !sameStrings(opStrings(ops), []string{"DROP ", "ADD uq_code"}) {
		t.Errorf("ops = %v", opStrings(ops))
	}
}

func TestReconcileForeignKeys(t *testing.T) {
	base := schema.ForeignKey{Name: "fk_order_user", Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}}
	tests := []struct {
		name    string
		current []schema.ForeignKey
		desired []schema.ForeignKey
		want    []string
	}{
		{"same", []schema.ForeignKey{base}, []schema.ForeignKey{base}, nil},
		{"action equivalence", []schema.ForeignKey{base}, []schema.ForeignKey{withDelete(base, "NO ACTION")}, nil},
		{"restrict equivalence", []schema.ForeignKey{withDelete(base, "RESTRICT")}, []schema.ForeignKey{base}, nil},
		{"action changed", []schema.ForeignKey{base}, []schema.ForeignKey{withDelete(base, "CASCADE")}, []string{"DROP fk_order_user", "ADD fk_order_user"}},
		{"new", nil, []schema.ForeignKey{base}, []string{"ADD fk_order_user"}},
		{"removed", []schema.ForeignKey{base}, nil, []string{"DROP fk_order_user"}},
		{"target changed", []schema.ForeignKey{base}, []schema.ForeignKey{{Name: "fk_order_user", Columns: []string{"user_id"}, RefTable: "accounts", RefColumns: []string{"id"}}}, []string{"DROP fk_order_user", "ADD fk_order_user"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := ReconcileForeignKeys(tt.current, tt.desired)
			got := make([]string, len(ops))
			for i, op := range ops {
				got[i] = string(op.Kind) + " " + op.ForeignKey.Name
			}
			if !sameStrings(got, tt.want) {
				t.Errorf("ops = %v, want %v", got, tt.want)
			}
		})
	}
}

func withDelete(fk schema.ForeignKey, action string) schema.ForeignKey {
	fk.OnDelete = action
	return fk
}

func quote(s string) string { return `"` + s + `"` }

func TestCarry(t *testing.T) {
	ixs := []schema.Index{
		{Name: "idx_name", Kind: schema.IndexPlain, Columns: schema.Columns("name")},
		{Name: "idx_gone", Kind: schema.IndexPlain, Columns: schema.Columns("gone", "name")},
	}
	r := Reshape{
		Renames: map[string]string{"name": "label"},
		Kept:    map[string]bool{"id": true, "name": true},
		Dropped: map[string]bool{"gone": true},
		Quote:   quote,
	}
	got := Carry(ixs, r)
	if len(got) != 1 || got[0].Columns[0].Name != "label" {
		t.Fatalf("Carry = %+v", got)
	}
	if ixs[0].Columns[0].Name != "name" {
		t.Error("Carry must not modify its input")
	}

	fks := []schema.ForeignKey{
		{Name: "fk_a", Columns: []string{"name"}, RefTable: "t", RefColumns: []string{"name"}},
		{Name: "fk_b", Columns: []string{"gone"}, RefTable: "t", RefColumns: []string{"x"}},
	}
	carried := CarryForeignKeys(fks, r)
	if len(carried) != 1 || carried[0].Columns[0] != "label" || carried[0].RefColumns[0] != "name" {
		t.Errorf("CarryForeignKeys = %+v", carried)
	}
}

func TestCarry_ExpressionsAndPredicates(t *testing.T) {
	r := Reshape{
		Renames: map[string]string{"email": "mail"},
		Kept:    map[string]bool{"id": true, "email": true, "deleted": true},
		Dropped: map[string]bool{"junk": true},
		Quote:   quote,
	}
	ixs := []schema.Index{
		{Name: "e_lower", Kind: schema.IndexPlain, Columns: []schema.IndexColumn{{Expression: "lower(email)"}}},
		{Name: "p_live", Kind: schema.IndexUnique, Columns: schema.Columns("email"), Where: "deleted = 0"},
		{Name: "j_expr", Kind: schema.IndexPlain, Columns: []schema.IndexColumn{{Expression: "junk + 1"}}},
		{Name: "j_where", Kind: schema.IndexPlain, Columns: schema.Columns("id"), Where: "junk IS NULL"},
	}
	got := Carry(ixs, r)
	if len(got) != 2 {
		t.Fatalf("Carry = %+v", got)
	}
	if got[0].Columns[0].Expression != `lower("mail")` {
		t.Errorf("expression = %q", got[0].Columns[0].Expression)
	}
	if got[1].Columns[0].Name != "mail" || got[1].Where != "deleted = 0" {
		t.Errorf("partial index = %+v", got[1])
	}

	kept, lost := CarryChecks([]schema.Check{
		{Name: "ck_mail", Expression: "length(email) > 3 AND email <> 'email'"},
		{Expression: "junk >= 0"},
	}, r)
	if len(kept) != 1 || kept[0].Expression != `length("mail") > 3 AND "mail" <> 'email'` {
		t.Errorf("kept = %+v", kept)
	}
	if len(lost) != 1 || lost[0].Expression != "junk >= 0" {
		t.Errorf("lost = %+v", lost)
	}
}

func TestEqual_ExpressionsAndPredicates(t *testing.T) {
	base := schema.Index{Kind: schema.IndexUnique, Columns: []schema.IndexColumn{{Expression: "lower(email)"}}, Where: "deleted = 0"}
	tests := []struct {
		name  string
		other schema.Index
		want  bool
	}{
		{"same modulo spacing and case", schema.Index{Kind: schema.IndexUnique, Columns: []schema.IndexColumn{{Expression: "LOWER( email )"}}, Where: "deleted=0"}, true},
		{"predicate differs", schema.Index{Kind: schema.IndexUnique, Columns: []schema.IndexColumn{{Expression: "lower(email)"}}, Where: "deleted = 1"}, false},
		{"no predicate", schema.Index{Kind: schema.IndexUnique, Columns: []schema.IndexColumn{{Expression: "lower(email)"}}}, false},
		{"expression differs", schema.Index{Kind: schema.IndexUnique, Columns: []schema.IndexColumn{{Expression: "upper(email)"}}, Where: "deleted = 0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(base, tt.other); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSameChecks(t *testing.T) {
	a := []schema.Check{{Name: "ck", Expression: "price > 0"}}
	if !SameChecks(a, []schema.Check{{Name: "CK", Expression: "PRICE>0"}}) {
		t.Error("expected equal checks")
	}
	if SameChecks(a, []schema.Check{{Name: "ck", Expression: "price >= 0"}}) || SameChecks(a, nil) {
		t.Error("expected different checks")
	}
}

func TestReconcile_Explanations(t *testing.T) {
	current := &schema.Table{Name: "users", Indexes: currentIndexes}
	desired := &schema.Table{Name: "users", Indexes: currentIndexes[:2]}
	p := Reconcile(current, desired, nil)
	if len(p.Indexes) != 1 || len(p.Explanations) != 1 || p.Explanations[0] != "DROP UNIQUE uq_email(email)" {
		t.Errorf("plan = %+v", p)
	}
	if p.Empty() {
		t.Error("plan should not be empty")
	}
}

func TestWriteAndLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "ops.yaml")
	p := &Plan{
		Table:   "users",
		Indexes: []dialect.IndexOp{{Kind: dialect.OpAdd, Index: schema.Index{Name: "idx_x", Kind: schema.IndexPlain, Columns: schema.Columns("x")}}},
	}
	if err := p.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	loaded, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if loaded.Table != "users" || len(loaded.Indexes) != 1 || loaded.Indexes[0].Index.Name != "idx_x" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoadYAML_HandWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.yaml")
	content := `table: users
indexes:
  - kind: drop
    index:
      name: idx_old
      kind: index
      columns: [{name: a}]
  - kind: add
    index:
      kind: unique
      columns: [{name: email}]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if p.Indexes[0].Kind != dialect.OpDrop || p.Indexes[1].Index.Kind != schema.IndexUnique {
		t.Errorf("plan = %+v", p.Indexes)
	}

	if err := os.WriteFile(path, []byte("table: users\nindexes:\n  - kind: rename\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadYAML(path); err == nil {
		t.Error("expected error for unknown op kind")
	}
}

func TestLoadYAML_NotFound(t *testing.T) {
	if _, err := LoadYAML("/nonexistent/ops.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
