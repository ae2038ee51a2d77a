package dialect

import (
	"fmt"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// SQLite renders SQLite DDL. Only appending columns and renaming the table
// are possible in place; every other change goes through a rebuild.
type SQLite struct {
	base
}

var _ Dialect = (*SQLite)(nil)

// NewSQLite returns the SQLite-like dialect.
func NewSQLite() *SQLite {
	return &SQLite{base{
		name: "sqlite",
		caps: Capabilities{
			PositionalColumns: true,
			TransactionalDDL:  true,
			ColumnCollation:   true,
		},
		catalog:    typemap.DefaultSQLite(),
		quoteOpen:  `"`,
		quoteClose: `"`,
		escape:     doubleQuotes,
	}}
}

func (d *SQLite) ColumnDefinition(f schema.Field) (string, error) {
	typ, err := d.RenderType(f)
	if err != nil {
		return "", err
	}
	if f.AutoIncrement {
		// AUTOINCREMENT is only accepted on an INTEGER PRIMARY KEY.
		typ = "integer"
	}
	s := d.Quote(f.Name) + " " + typ + d.collateClause(f, false) + nullClause(f) + d.defaultClause(f)
	if f.AutoIncrement {
		s += " PRIMARY KEY AUTOINCREMENT"
	}
	return s, nil
}

func (d *SQLite) AlterTable(req AlterTable) ([]string, error) {
	if len(req.ForeignKeys) > 0 || len(req.Extra) > 0 || req.Partitioning != nil {
		return nil, ErrRebuildRequired
	}
	if req.Engine != "" || req.Collation != "" {
		return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "table options"}
	}
	for _, op := range req.Fields {
		if op.Kind != OpAdd || !addableInPlace(op.Field) {
			return nil, ErrRebuildRequired
		}
	}

	var stmts []string
	for _, op := range req.Fields {
		def, err := d.ColumnDefinition(op.Field)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, "ALTER TABLE "+d.Quote(req.Table)+" ADD "+def)
	}
	if req.Renames() {
		stmts = append(stmts, d.RenameTable(req.Table, req.NewName))
	}
	if req.AutoIncrement != nil {
		stmts = append(stmts, d.SequenceStatements(req.FinalName(), *req.AutoIncrement)...)
	}
	return stmts, nil
}

// addableInPlace reports whether ALTER TABLE ADD COLUMN accepts the field:
// no key constraint, and a constant default when NOT NULL.
func addableInPlace(f schema.Field) bool {
	if f.AutoIncrement {
		return false
	}
	if f.Default != nil {
		v := strings.ToUpper(strings.TrimSpace(*f.Default))
		if strings.HasPrefix(v, "CURRENT_") || strings.HasPrefix(v, "(") {
			return false
		}
	}
	return f.Nullable || (f.Default != nil && !f.IsNullDefault())
}

// SequenceStatements sets the AUTOINCREMENT counter so the next generated
// value is next.
func (d *SQLite) SequenceStatements(table string, next int64) []string {
	name := d.QuoteString(table)
	seq := next - 1
	return []string{
		fmt.Sprintf("UPDATE sqlite_sequence SET seq = %d WHERE name = %s", seq, name),
		fmt.Sprintf("INSERT INTO sqlite_sequence (name, seq) SELECT %s, %d WHERE NOT EXISTS (SELECT 1 FROM sqlite_sequence WHERE name = %s)", name, seq, name),
	}
}

// ForeignKeyCheck renders the pragma listing rows of table that violate
// its foreign keys.
func (d *SQLite) ForeignKeyCheck(table string) string {
	return "PRAGMA foreign_key_check(" + d.Quote(table) + ")"
}

// inlinePrimary reports whether the table's primary key is carried by an
// AUTOINCREMENT column definition.
func inlinePrimary(t schema.Table) bool {
	pk := t.PrimaryKey()
	if pk == nil || len(pk.Columns) != 1 {
		return false
	}
	f := t.Field(pk.Columns[0].Name)
	return f != nil && f.AutoIncrement
}

// CreateTable renders the table with its primary key and foreign keys
// inline; other indexes follow as CREATE INDEX so they keep their names.
func (d *SQLite) CreateTable(t schema.Table) ([]string, error) {
	var defs []string
	for _, f := range t.Fields {
		def, err := d.ColumnDefinition(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if pk := t.PrimaryKey(); pk != nil && !inlinePrimary(t) {
		defs = append(defs, "PRIMARY KEY "+d.indexColumns(pk.Columns, false, false))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, d.constraintClause(fk, true))
	}
	defs = append(defs, d.checkClauses(t.Checks)...)

	stmts := []string{"CREATE TABLE " + d.Quote(t.Name) + " (\n  " + strings.Join(defs, ",\n  ") + "\n)"}
	for _, ix := range t.Indexes {
		switch ix.Kind {
		case schema.IndexPrimary:
		case schema.IndexFulltext:
			return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "FULLTEXT indexes"}
		default:
			stmts = append(stmts, d.CreateIndex(t.Name, ix))
		}
	}
	return stmts, nil
}

// CreateIndex renders CREATE [UNIQUE] INDEX, with the key expressions
// and WHERE predicate of the index verbatim.
func (d *SQLite) CreateIndex(table string, ix schema.Index) string {
	unique := ""
	if ix.Kind == schema.IndexUnique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s %s", unique, d.Quote(IndexName(table, ix)), d.Quote(table), d.indexColumns(ix.Columns, false, true))
	if ix.Where != "" {
		stmt += " WHERE " + ix.Where
	}
	return stmt
}

// AlterIndexes handles secondary indexes; any PRIMARY change needs a rebuild.
func (d *SQLite) AlterIndexes(table string, ops []IndexOp) ([]string, error) {
	for _, op := range ops {
		if op.Index.Kind == schema.IndexPrimary {
			return nil, ErrRebuildRequired
		}
		if op.Index.Kind == schema.IndexFulltext {
			return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "FULLTEXT indexes"}
		}
	}
	drops, adds := splitIndexOps(ops)
	var stmts []string
	for i := len(drops) - 1; i >= 0; i-- {
		stmts = append(stmts, "DROP INDEX "+d.Quote(drops[i].Name))
	}
	for _, ix := range adds {
		stmts = append(stmts, d.CreateIndex(table, ix))
	}
	return stmts, nil
}
