package dialect

import (
	"fmt"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// Postgres renders PostgreSQL DDL. Renames are standalone statements that
// run before the multi-clause ALTER TABLE; comments are COMMENT ON
// statements that run after it.
type Postgres struct {
	base
}

var _ Dialect = (*Postgres)(nil)

// NewPostgres returns the Postgres-like dialect.
func NewPostgres() *Postgres {
	return &Postgres{base{
		name: "postgresql",
		caps: Capabilities{
			InPlaceAlter:     true,
			MultiClauseAlter: true,
			TransactionalDDL: true,
			ColumnComments:   true,
			ColumnCollation:  true,
		},
		catalog:    typemap.DefaultPostgres(),
		quoteOpen:  `"`,
		quoteClose: `"`,
		escape:     doubleQuotes,
	}}
}

var serialTypes = map[string]string{
	"smallint": "smallserial",
	"integer":  "serial",
	"bigint":   "bigserial",
}

// columnType renders the type, substituting the serial pseudo-type for
// auto-increment integer columns.
func (d *Postgres) columnType(f schema.Field) (string, error) {
	if f.AutoIncrement {
		t, err := d.catalog.ParseType(f.Type, f.Length)
		if err != nil {
			return "", err
		}
		if serial, ok := serialTypes[t.Base]; ok {
			return serial, nil
		}
		if strings.HasSuffix(t.Base, "serial") {
			return t.Base, nil
		}
	}
	return d.RenderType(f)
}

func (d *Postgres) ColumnDefinition(f schema.Field) (string, error) {
	typ, err := d.columnType(f)
	if err != nil {
		return "", err
	}
	s := d.Quote(f.Name) + " " + typ + d.collateClause(f, true) + nullClause(f)
	if !f.AutoIncrement {
		s += d.defaultClause(f)
	}
	return s, nil
}

func (d *Postgres) AlterTable(req AlterTable) ([]string, error) {
	var stmts []string
	table := req.Table
	if req.Renames() {
		stmts = append(stmts, d.RenameTable(req.Table, req.NewName))
		table = req.NewName
	}
	qt := d.Quote(table)

	for _, op := range req.Fields {
		if op.Renamed() {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", qt, d.Quote(op.Name), d.Quote(op.Field.Name)))
		}
	}

	fkDrops, fkAdds := splitForeignKeyOps(req.ForeignKeys)
	var clauses []string
	for _, fk := range fkDrops {
		clauses = append(clauses, "DROP CONSTRAINT "+d.Quote(fk.Name))
	}
	for _, op := range req.Fields {
		switch op.Kind {
		case OpAdd:
			def, err := d.ColumnDefinition(op.Field)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, "ADD "+def)
		case OpDrop:
			clauses = append(clauses, "DROP "+d.Quote(op.Name))
		case OpModify:
			mod, err := d.modifyClauses(op)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, mod...)
		case OpRename:
			// already emitted as RENAME COLUMN
		default:
			return nil, fmt.Errorf("unknown field operation %q", op.Kind)
		}
	}
	for _, fk := range fkAdds {
		clauses = append(clauses, "ADD "+d.constraintClause(fk, true))
	}
	clauses = append(clauses, req.Extra...)
	if len(clauses) > 0 {
		stmts = append(stmts, "ALTER TABLE "+qt+" "+strings.Join(clauses, ", "))
	}

	for _, op := range req.Fields {
		if op.Kind == OpDrop {
			continue
		}
		if c, ok := d.commentChange(op); ok {
			stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", qt, d.Quote(op.Field.Name), c))
		}
	}
	if req.Comment != nil {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON TABLE %s IS %s", qt, d.commentLiteral(*req.Comment)))
	}
	if req.AutoIncrement != nil && req.AutoIncrementColumn != "" {
		stmts = append(stmts, fmt.Sprintf("SELECT setval(pg_get_serial_sequence(%s, %s), %d, false)",
			d.QuoteString(qt), d.QuoteString(req.AutoIncrementColumn), *req.AutoIncrement))
	}
	return stmts, nil
}

// modifyClauses renders the ALTER COLUMN clauses for the attributes that
// changed. Without a previous definition every attribute is restated.
func (d *Postgres) modifyClauses(op FieldOp) ([]string, error) {
	f, prev := op.Field, op.Previous
	col := "ALTER " + d.Quote(f.Name)
	var clauses []string

	typeChanged := prev == nil
	if prev != nil {
		a, err := d.catalog.Signature(*prev)
		if err != nil {
			return nil, err
		}
		b, err := d.catalog.Signature(f)
		if err != nil {
			return nil, err
		}
		typeChanged = a != b || prev.Collation != f.Collation
	}
	if typeChanged {
		typ, err := d.RenderType(f)
		if err != nil {
			return nil, err
		}
		clause := col + " TYPE " + typ + d.collateClause(f, true)
		if prev != nil && d.catalog.Lookup(prev.Type).Family != d.catalog.Lookup(f.Type).Family {
			clause += " USING " + d.Quote(f.Name) + "::" + typ
		}
		clauses = append(clauses, clause)
	}

	if prev == nil || prev.AutoIncrement != f.AutoIncrement {
		switch {
		case f.AutoIncrement:
			clauses = append(clauses, col+" ADD GENERATED BY DEFAULT AS IDENTITY")
		case prev != nil:
			clauses = append(clauses, col+" DROP IDENTITY IF EXISTS")
		}
	}

	if !f.AutoIncrement && (prev == nil || !sameDefault(prev.Default, f.Default) || prev.AutoIncrement) {
		if f.Default == nil {
			clauses = append(clauses, col+" DROP DEFAULT")
		} else {
			clauses = append(clauses, col+" SET"+d.defaultClause(f))
		}
	}

	if prev == nil || prev.Nullable != f.Nullable {
		if f.Nullable {
			clauses = append(clauses, col+" DROP NOT NULL")
		} else {
			clauses = append(clauses, col+" SET NOT NULL")
		}
	}
	return clauses, nil
}

func (d *Postgres) commentChange(op FieldOp) (string, bool) {
	f := op.Field
	switch {
	case op.Previous != nil:
		if op.Previous.Comment == f.Comment {
			return "", false
		}
	case f.Comment == "":
		return "", false
	}
	return d.commentLiteral(f.Comment), true
}

func (d *Postgres) commentLiteral(c string) string {
	if c == "" {
		return "NULL"
	}
	return d.QuoteString(c)
}

func (d *Postgres) CreateTable(t schema.Table) ([]string, error) {
	if err := d.structuralIndexes(t.Indexes); err != nil {
		return nil, err
	}
	var defs, after []string
	for _, f := range t.Fields {
		def, err := d.ColumnDefinition(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	for _, ix := range t.Indexes {
		switch ix.Kind {
		case schema.IndexPrimary, schema.IndexUnique:
			defs = append(defs, d.constraintIndex(ix))
		case schema.IndexFulltext:
			return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "FULLTEXT indexes"}
		default:
			after = append(after, d.createIndex(t.Name, ix))
		}
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, d.constraintClause(fk, true))
	}
	defs = append(defs, d.checkClauses(t.Checks)...)

	qt := d.Quote(t.Name)
	stmts := []string{"CREATE TABLE " + qt + " (\n  " + strings.Join(defs, ",\n  ") + "\n)"}
	stmts = append(stmts, after...)
	for _, f := range t.Fields {
		if f.Comment != "" {
			stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", qt, d.Quote(f.Name), d.QuoteString(f.Comment)))
		}
	}
	if t.Comment != "" {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON TABLE %s IS %s", qt, d.QuoteString(t.Comment)))
	}
	return stmts, nil
}

func (d *Postgres) constraintIndex(ix schema.Index) string {
	kind := "UNIQUE"
	if ix.Kind == schema.IndexPrimary {
		kind = "PRIMARY KEY"
	}
	cols := d.indexColumns(ix.Columns, false, false)
	if ix.Name == "" {
		return kind + " " + cols
	}
	return "CONSTRAINT " + d.Quote(ix.Name) + " " + kind + " " + cols
}

func (d *Postgres) createIndex(table string, ix schema.Index) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s %s", d.Quote(IndexName(table, ix)), d.Quote(table), d.indexColumns(ix.Columns, false, true))
}

func (d *Postgres) AlterIndexes(table string, ops []IndexOp) ([]string, error) {
	drops, adds := splitIndexOps(ops)
	if err := d.structuralIndexes(adds); err != nil {
		return nil, err
	}
	var dropIndexes, clauses, creates []string
	for _, ix := range drops {
		switch ix.Kind {
		case schema.IndexPrimary, schema.IndexUnique:
			if ix.Name == "" {
				return nil, fmt.Errorf("dropping an unnamed %s index on %s", ix.Kind, table)
			}
			clauses = append(clauses, "DROP CONSTRAINT "+d.Quote(ix.Name))
		default:
			dropIndexes = append(dropIndexes, d.Quote(ix.Name))
		}
	}
	for _, ix := range adds {
		switch ix.Kind {
		case schema.IndexPrimary, schema.IndexUnique:
			clauses = append(clauses, "ADD "+d.constraintIndex(ix))
		case schema.IndexFulltext:
			return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "FULLTEXT indexes"}
		default:
			creates = append(creates, d.createIndex(table, ix))
		}
	}

	var stmts []string
	if len(dropIndexes) > 0 {
		stmts = append(stmts, "DROP INDEX "+strings.Join(dropIndexes, ", "))
	}
	if len(clauses) > 0 {
		stmts = append(stmts, "ALTER TABLE "+d.Quote(table)+" "+strings.Join(clauses, ", "))
	}
	return append(stmts, creates...), nil
}

func sameDefault(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
