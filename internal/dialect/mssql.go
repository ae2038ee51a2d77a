package dialect

import (
	"fmt"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// MSSQL renders SQL Server DDL. ALTER COLUMN takes one column per
// statement, renames go through sp_rename and defaults are named
// constraints that must be dropped before the column's default or the
// column itself can change.
type MSSQL struct {
	base

	// Schema is the owning schema used for extended properties.
	Schema string
}

var _ Dialect = (*MSSQL)(nil)

// NewMSSQL returns the SQL Server dialect.
func NewMSSQL() *MSSQL {
	return &MSSQL{
		base: base{
			name: "mssql",
			caps: Capabilities{
				InPlaceAlter:     true,
				TransactionalDDL: true,
				ColumnComments:   true,
				ColumnCollation:  true,
			},
			catalog:    typemap.DefaultMSSQL(),
			quoteOpen:  "[",
			quoteClose: "]",
			escape:     doubleQuotes,
		},
		Schema: "dbo",
	}
}

func (d *MSSQL) nstring(s string) string {
	return "N" + d.QuoteString(s)
}

func (d *MSSQL) ColumnDefinition(f schema.Field) (string, error) {
	return d.columnDefinition("", f)
}

// columnDefinition renders a column. With a table name the default becomes
// a named DF_ constraint.
func (d *MSSQL) columnDefinition(table string, f schema.Field) (string, error) {
	typ, err := d.RenderType(f)
	if err != nil {
		return "", err
	}
	s := d.Quote(f.Name) + " " + typ + d.collateClause(f, false)
	if f.AutoIncrement {
		s += " IDENTITY(1,1)"
	}
	s += nullClause(f)
	if !f.AutoIncrement && f.Default != nil {
		if table != "" {
			s += " CONSTRAINT " + d.Quote(defaultConstraintName(table, f.Name))
		}
		s += d.defaultClause(f)
	}
	return s, nil
}

func defaultConstraintName(table, column string) string {
	return "DF_" + table + "_" + column
}

// dropDefault removes whatever default constraint is bound to a column.
func (d *MSSQL) dropDefault(table, column string) string {
	return fmt.Sprintf("DECLARE @df sysname; "+
		"SELECT @df = dc.name FROM sys.default_constraints dc "+
		"JOIN sys.columns c ON c.object_id = dc.parent_object_id AND c.column_id = dc.parent_column_id "+
		"WHERE dc.parent_object_id = OBJECT_ID(%s) AND c.name = %s; "+
		"IF @df IS NOT NULL EXEC(N'ALTER TABLE %s DROP CONSTRAINT ' + QUOTENAME(@df))",
		d.nstring(table), d.nstring(column), doubleQuotes(d.Quote(table)))
}

func (d *MSSQL) AlterTable(req AlterTable) ([]string, error) {
	if req.Partitioning != nil || req.RemovePartitioning || req.Engine != "" || req.Collation != "" {
		return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "table options"}
	}
	var stmts []string
	t := req.Table
	qt := d.Quote(t)

	fkDrops, fkAdds := splitForeignKeyOps(req.ForeignKeys)
	for _, fk := range fkDrops {
		stmts = append(stmts, "ALTER TABLE "+qt+" DROP CONSTRAINT "+d.Quote(fk.Name))
	}

	for _, op := range req.Fields {
		if op.Renamed() {
			stmts = append(stmts, fmt.Sprintf("EXEC sp_rename %s, %s, 'COLUMN'", d.nstring(t+"."+op.Name), d.nstring(op.Field.Name)))
		}
	}

	for _, op := range req.Fields {
		switch op.Kind {
		case OpDrop:
			if op.Previous == nil || op.Previous.Default != nil {
				stmts = append(stmts, d.dropDefault(t, op.Name))
			}
			stmts = append(stmts, "ALTER TABLE "+qt+" DROP COLUMN "+d.Quote(op.Name))
		case OpAdd:
			def, err := d.columnDefinition(t, op.Field)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, "ALTER TABLE "+qt+" ADD "+def)
		case OpModify:
			mod, err := d.modifyStatements(t, op)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, mod...)
		case OpRename:
		default:
			return nil, fmt.Errorf("unknown field operation %q", op.Kind)
		}
	}

	for _, fk := range fkAdds {
		stmts = append(stmts, "ALTER TABLE "+qt+" ADD "+d.constraintClause(fk, true))
	}
	for _, extra := range req.Extra {
		stmts = append(stmts, "ALTER TABLE "+qt+" "+extra)
	}
	for _, op := range req.Fields {
		if op.Kind == OpDrop {
			continue
		}
		if s, ok := d.columnComment(t, op); ok {
			stmts = append(stmts, s)
		}
	}
	if req.Comment != nil {
		stmts = append(stmts, d.tableComment(t, *req.Comment))
	}
	if req.AutoIncrement != nil {
		stmts = append(stmts, fmt.Sprintf("DBCC CHECKIDENT (%s, RESEED, %d)", d.nstring(t), *req.AutoIncrement-1))
	}
	if req.Renames() {
		stmts = append(stmts, d.RenameTable(t, req.NewName))
	}
	return stmts, nil
}

// modifyStatements renders the ALTER COLUMN and default constraint
// statements for one changed column.
func (d *MSSQL) modifyStatements(table string, op FieldOp) ([]string, error) {
	f, prev := op.Field, op.Previous
	if prev != nil && prev.AutoIncrement != f.AutoIncrement {
		return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "changing IDENTITY on an existing column"}
	}
	qt := d.Quote(table)
	var stmts []string

	defaultChanged := prev == nil || !sameDefault(prev.Default, f.Default)
	if defaultChanged && !f.AutoIncrement {
		stmts = append(stmts, d.dropDefault(table, f.Name))
	}

	alter := prev == nil || prev.Nullable != f.Nullable || prev.Collation != f.Collation
	if !alter {
		a, err := d.catalog.Signature(*prev)
		if err != nil {
			return nil, err
		}
		b, err := d.catalog.Signature(f)
		if err != nil {
			return nil, err
		}
		alter = a != b
	}
	if alter {
		typ, err := d.RenderType(f)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, "ALTER TABLE "+qt+" ALTER COLUMN "+d.Quote(f.Name)+" "+typ+d.collateClause(f, false)+nullClause(f))
	}

	if defaultChanged && !f.AutoIncrement && f.Default != nil {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s%s FOR %s",
			qt, d.Quote(defaultConstraintName(table, f.Name)), d.defaultClause(f), d.Quote(f.Name)))
	}
	return stmts, nil
}

// extendedProperty renders an MS_Description call. proc is one of add,
// update or drop; column may be empty for the table itself.
func (d *MSSQL) extendedProperty(proc, table, column, value string) string {
	s := "EXEC sp_" + proc + "extendedproperty @name = N'MS_Description'"
	if proc != "drop" {
		s += ", @value = " + d.nstring(value)
	}
	s += ", @level0type = N'SCHEMA', @level0name = " + d.nstring(d.Schema) +
		", @level1type = N'TABLE', @level1name = " + d.nstring(table)
	if column != "" {
		s += ", @level2type = N'COLUMN', @level2name = " + d.nstring(column)
	}
	return s
}

func (d *MSSQL) columnComment(table string, op FieldOp) (string, bool) {
	f := op.Field
	had := op.Previous != nil && op.Previous.Comment != ""
	switch {
	case op.Previous != nil && op.Previous.Comment == f.Comment:
		return "", false
	case f.Comment == "" && !had:
		return "", false
	case f.Comment == "":
		return d.extendedProperty("drop", table, f.Name, ""), true
	case had:
		return d.extendedProperty("update", table, f.Name, f.Comment), true
	default:
		return d.extendedProperty("add", table, f.Name, f.Comment), true
	}
}

// tableComment replaces the table's description, whether or not one exists.
func (d *MSSQL) tableComment(table, comment string) string {
	exists := fmt.Sprintf("EXISTS (SELECT 1 FROM sys.extended_properties WHERE major_id = OBJECT_ID(%s) AND minor_id = 0 AND name = N'MS_Description')", d.nstring(table))
	if comment == "" {
		return "IF " + exists + " " + d.extendedProperty("drop", table, "", "")
	}
	return "IF " + exists + " " + d.extendedProperty("update", table, "", comment) +
		" ELSE " + d.extendedProperty("add", table, "", comment)
}

func (d *MSSQL) primaryConstraint(table string, ix schema.Index) string {
	return "CONSTRAINT " + d.Quote(IndexName(table, ix)) + " PRIMARY KEY " + d.indexColumns(ix.Columns, false, true)
}

func (d *MSSQL) createIndex(table string, ix schema.Index) string {
	unique := ""
	if ix.Kind == schema.IndexUnique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s %s", unique, d.Quote(IndexName(table, ix)), d.Quote(table), d.indexColumns(ix.Columns, false, true))
}

func (d *MSSQL) CreateTable(t schema.Table) ([]string, error) {
	if err := d.structuralIndexes(t.Indexes); err != nil {
		return nil, err
	}
	var defs, after []string
	for _, f := range t.Fields {
		def, err := d.columnDefinition(t.Name, f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	for _, ix := range t.Indexes {
		switch ix.Kind {
		case schema.IndexPrimary:
			defs = append(defs, d.primaryConstraint(t.Name, ix))
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

	stmts := []string{"CREATE TABLE " + d.Quote(t.Name) + " (\n  " + strings.Join(defs, ",\n  ") + "\n)"}
	stmts = append(stmts, after...)
	for _, f := range t.Fields {
		if f.Comment != "" {
			stmts = append(stmts, d.extendedProperty("add", t.Name, f.Name, f.Comment))
		}
	}
	if t.Comment != "" {
		stmts = append(stmts, d.extendedProperty("add", t.Name, "", t.Comment))
	}
	return stmts, nil
}

func (d *MSSQL) AlterIndexes(table string, ops []IndexOp) ([]string, error) {
	drops, adds := splitIndexOps(ops)
	if err := d.structuralIndexes(adds); err != nil {
		return nil, err
	}
	qt := d.Quote(table)
	var stmts []string
	for _, ix := range drops {
		if ix.Name == "" {
			return nil, fmt.Errorf("dropping an unnamed %s index on %s", ix.Kind, table)
		}
		if ix.Kind == schema.IndexPrimary {
			stmts = append(stmts, "ALTER TABLE "+qt+" DROP CONSTRAINT "+d.Quote(ix.Name))
		} else {
			stmts = append(stmts, "DROP INDEX "+d.Quote(ix.Name)+" ON "+qt)
		}
	}
	for _, ix := range adds {
		switch ix.Kind {
		case schema.IndexPrimary:
			stmts = append(stmts, "ALTER TABLE "+qt+" ADD "+d.primaryConstraint(table, ix))
		case schema.IndexFulltext:
			return nil, &UnsupportedFeatureError{Dialect: d.name, Feature: "FULLTEXT indexes"}
		default:
			stmts = append(stmts, d.createIndex(table, ix))
		}
	}
	return stmts, nil
}

// RenameTable renders sp_rename.
func (d *MSSQL) RenameTable(oldName, newName string) string {
	return fmt.Sprintf("EXEC sp_rename %s, %s", d.nstring(oldName), d.nstring(newName))
}
