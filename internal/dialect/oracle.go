package dialect

import (
	"fmt"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// Oracle renders Oracle DDL. Column renames run first, then one ADD (...)
// MODIFY (...) statement, then DROP (...); the table rename runs last.
// Oracle DDL commits implicitly, so nothing here is transactional.
type Oracle struct {
	base
}

var _ Dialect = (*Oracle)(nil)

// NewOracle returns the Oracle dialect.
func NewOracle() *Oracle {
	return &Oracle{base{
		name: "oracle",
		caps: Capabilities{
			InPlaceAlter:     true,
			MultiClauseAlter: true,
			ColumnComments:   true,
		},
		catalog:    typemap.DefaultOracle(),
		quoteOpen:  `"`,
		quoteClose: `"`,
		escape:     doubleQuotes,
	}}
}

func (d *Oracle) ColumnDefinition(f schema.Field) (string, error) {
	typ, err := d.RenderType(f)
	if err != nil {
		return "", err
	}
	s := d.Quote(f.Name) + " " + typ
	if f.AutoIncrement {
		s += " GENERATED BY DEFAULT AS IDENTITY"
	} else {
		s += d.defaultClause(f)
	}
	return s + nullClause(f), nil
}

// modifyDefinition restates a column for MODIFY. Oracle rejects a
// NULL / NOT NULL that matches the current state, so it is only written
// when it changes.
func (d *Oracle) modifyDefinition(op FieldOp) (string, error) {
	f, prev := op.Field, op.Previous
	if prev != nil && prev.AutoIncrement != f.AutoIncrement {
		return "", &UnsupportedFeatureError{Dialect: d.name, Feature: "changing IDENTITY on an existing column"}
	}
	typ, err := d.RenderType(f)
	if err != nil {
		return "", err
	}
	s := d.Quote(f.Name) + " " + typ
	if !f.AutoIncrement {
		switch {
		case f.Default != nil:
			s += d.defaultClause(f)
		case prev == nil || prev.Default != nil:
			s += " DEFAULT NULL"
		}
	}
	if prev == nil || prev.Nullable != f.Nullable {
		s += nullClause(f)
	}
	return s, nil
}

// foreignKey renders a constraint Oracle accepts. Oracle has no ON UPDATE
// and its ON DELETE is limited to CASCADE and SET NULL.
func (d *Oracle) foreignKey(fk schema.ForeignKey) (string, error) {
	switch strings.ToUpper(fk.OnUpdate) {
	case "", "NO ACTION":
	default:
		return "", &UnsupportedFeatureError{Dialect: d.name, Feature: "ON UPDATE " + fk.OnUpdate + " on foreign key " + fk.Name}
	}
	switch strings.ToUpper(fk.OnDelete) {
	case "", "NO ACTION":
		fk.OnDelete = ""
	case "CASCADE", "SET NULL":
	default:
		return "", &UnsupportedFeatureError{Dialect: d.name, Feature: "ON DELETE " + fk.OnDelete + " on foreign key " + fk.Name}
	}
	return d.constraintClause(fk, false), nil
}

func (d *Oracle) AlterTable(req AlterTable) ([]string, error) {
	if req.Partitioning != nil || req.RemovePartitioning || req.Engine != "" || req.Collation != "" {
		return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "table options"}
	}
	var stmts []string
	qt := d.Quote(req.Table)

	fkDrops, fkAdds := splitForeignKeyOps(req.ForeignKeys)
	for _, fk := range fkDrops {
		stmts = append(stmts, "ALTER TABLE "+qt+" DROP CONSTRAINT "+d.Quote(fk.Name))
	}
	for _, op := range req.Fields {
		if op.Renamed() {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", qt, d.Quote(op.Name), d.Quote(op.Field.Name)))
		}
	}

	var adds, mods, drops []string
	for _, op := range req.Fields {
		switch op.Kind {
		case OpAdd:
			def, err := d.ColumnDefinition(op.Field)
			if err != nil {
				return nil, err
			}
			adds = append(adds, def)
		case OpModify:
			def, err := d.modifyDefinition(op)
			if err != nil {
				return nil, err
			}
			mods = append(mods, def)
		case OpDrop:
			drops = append(drops, d.Quote(op.Name))
		case OpRename:
		default:
			return nil, fmt.Errorf("unknown field operation %q", op.Kind)
		}
	}
	var clauses []string
	if len(adds) > 0 {
		clauses = append(clauses, "ADD ("+strings.Join(adds, ", ")+")")
	}
	if len(mods) > 0 {
		clauses = append(clauses, "MODIFY ("+strings.Join(mods, ", ")+")")
	}
	if len(clauses) > 0 {
		stmts = append(stmts, "ALTER TABLE "+qt+" "+strings.Join(clauses, " "))
	}
	if len(drops) > 0 {
		stmts = append(stmts, "ALTER TABLE "+qt+" DROP ("+strings.Join(drops, ", ")+")")
	}

	for _, fk := range fkAdds {
		clause, err := d.foreignKey(fk)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, "ALTER TABLE "+qt+" ADD "+clause)
	}
	for _, extra := range req.Extra {
		stmts = append(stmts, "ALTER TABLE "+qt+" "+extra)
	}
	for _, op := range req.Fields {
		if op.Kind == OpDrop {
			continue
		}
		changed := op.Field.Comment != ""
		if op.Previous != nil {
			changed = op.Previous.Comment != op.Field.Comment
		}
		if changed {
			stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", qt, d.Quote(op.Field.Name), d.QuoteString(op.Field.Comment)))
		}
	}
	if req.Comment != nil {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON TABLE %s IS %s", qt, d.QuoteString(*req.Comment)))
	}
	if req.AutoIncrement != nil && req.AutoIncrementColumn != "" {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s MODIFY %s GENERATED BY DEFAULT AS IDENTITY (START WITH %d)",
			qt, d.Quote(req.AutoIncrementColumn), *req.AutoIncrement))
	}
	if req.Renames() {
		stmts = append(stmts, d.RenameTable(req.Table, req.NewName))
	}
	return stmts, nil
}

func (d *Oracle) constraintIndex(table string, ix schema.Index) string {
	kind := "UNIQUE"
	if ix.Kind == schema.IndexPrimary {
		kind = "PRIMARY KEY"
	}
	return "CONSTRAINT " + d.Quote(IndexName(table, ix)) + " " + kind + " " + d.indexColumns(ix.Columns, false, false)
}

func (d *Oracle) createIndex(table string, ix schema.Index) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s %s", d.Quote(IndexName(table, ix)), d.Quote(table), d.indexColumns(ix.Columns, false, true))
}

func (d *Oracle) CreateTable(t schema.Table) ([]string, error) {
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
			defs = append(defs, d.constraintIndex(t.Name, ix))
		case schema.IndexFulltext:
			return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "FULLTEXT indexes"}
		default:
			after = append(after, d.createIndex(t.Name, ix))
		}
	}
	for _, fk := range t.ForeignKeys {
		clause, err := d.foreignKey(fk)
		if err != nil {
			return nil, err
		}
		defs = append(defs, clause)
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

func (d *Oracle) AlterIndexes(table string, ops []IndexOp) ([]string, error) {
	drops, adds := splitIndexOps(ops)
	if err := d.structuralIndexes(adds); err != nil {
		return nil, err
	}
	qt := d.Quote(table)
	var stmts []string
	for _, ix := range drops {
		switch {
		case ix.Kind == schema.IndexPrimary && ix.Name == "":
			stmts = append(stmts, "ALTER TABLE "+qt+" DROP PRIMARY KEY")
		case ix.Name == "":
			return nil, fmt.Errorf("dropping an unnamed %s index on %s", ix.Kind, table)
		case ix.Kind == schema.IndexPrimary || ix.Kind == schema.IndexUnique:
			stmts = append(stmts, "ALTER TABLE "+qt+" DROP CONSTRAINT "+d.Quote(ix.Name))
		default:
			stmts = append(stmts, "DROP INDEX "+d.Quote(ix.Name))
		}
	}
	for _, ix := range adds {
		switch ix.Kind {
		case schema.IndexPrimary, schema.IndexUnique:
			stmts = append(stmts, "ALTER TABLE "+qt+" ADD "+d.constraintIndex(table, ix))
		case schema.IndexFulltext:
			return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "FULLTEXT indexes"}
		default:
			stmts = append(stmts, d.createIndex(table, ix))
		}
	}
	return stmts, nil
}
