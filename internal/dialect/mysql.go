package dialect

import (
	"fmt"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// MySQL covers MySQL and MariaDB. Every change to one table is expressed
// as a single multi-clause ALTER TABLE.
type MySQL struct {
	base
}

var _ Dialect = (*MySQL)(nil)

// NewMySQL returns the MySQL-like dialect.
func NewMySQL() *MySQL {
	return &MySQL{base{
		name: "mysql",
		caps: Capabilities{
			InPlaceAlter:      true,
			PositionalColumns: true,
			PositionalAlter:   true,
			MultiClauseAlter:  true,
			ColumnComments:    true,
			TableOptions:      true,
			Partitioning:      true,
			Unsigned:          true,
			ColumnCollation:   true,
		},
		catalog:    typemap.DefaultMySQL(),
		quoteOpen:  "`",
		quoteClose: "`",
		escape: func(s string) string {
			return doubleQuotes(strings.ReplaceAll(s, `\`, `\\`))
		},
	}}
}

func (d *MySQL) ColumnDefinition(f schema.Field) (string, error) {
	typ, err := d.RenderType(f)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(d.Quote(f.Name) + " " + typ)
	b.WriteString(d.collateClause(f, false))
	b.WriteString(nullClause(f))
	b.WriteString(d.defaultClause(f))
	if f.OnUpdate != "" && onUpdateAllowed(f.Type) {
		b.WriteString(" ON UPDATE " + f.OnUpdate)
	}
	if f.Comment != "" {
		b.WriteString(" COMMENT " + d.QuoteString(f.Comment))
	}
	if f.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	return b.String(), nil
}

// onUpdateAllowed reports whether ON UPDATE applies to the type.
func onUpdateAllowed(typ string) bool {
	t := strings.ToLower(typ)
	return strings.Contains(t, "timestamp") || strings.Contains(t, "datetime")
}

func (d *MySQL) position(op FieldOp) string {
	switch {
	case op.First:
		return " FIRST"
	case op.After != "":
		return " AFTER " + d.Quote(op.After)
	}
	return ""
}

func (d *MySQL) AlterTable(req AlterTable) ([]string, error) {
	var stmts []string
	table := d.Quote(req.Table)

	fkDrops, fkAdds := splitForeignKeyOps(req.ForeignKeys)
	if len(fkDrops) > 0 {
		drops := make([]string, len(fkDrops))
		for i, fk := range fkDrops {
			drops[i] = "DROP FOREIGN KEY " + d.Quote(fk.Name)
		}
		stmts = append(stmts, "ALTER TABLE "+table+" "+strings.Join(drops, ", "))
	}

	var clauses []string
	for _, op := range req.Fields {
		switch op.Kind {
		case OpAdd:
			def, err := d.ColumnDefinition(op.Field)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, "ADD "+def+d.position(op))
		case OpModify, OpRename:
			def, err := d.ColumnDefinition(op.Field)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, "CHANGE "+d.Quote(op.Name)+" "+def+d.position(op))
		case OpDrop:
			clauses = append(clauses, "DROP "+d.Quote(op.Name))
		default:
			return nil, fmt.Errorf("unknown field operation %q", op.Kind)
		}
	}
	for _, fk := range fkAdds {
		clauses = append(clauses, "ADD "+d.constraintClause(fk, true))
	}
	clauses = append(clauses, req.Extra...)
	if req.Renames() {
		clauses = append(clauses, "RENAME TO "+d.Quote(req.NewName))
	}
	if opts := d.tableOptions(req.Comment, req.Engine, req.Collation, req.AutoIncrement); opts != "" {
		clauses = append(clauses, opts)
	}

	partition := ""
	if req.Partitioning != nil {
		partition = d.partitionClause(*req.Partitioning)
	} else if req.RemovePartitioning {
		partition = "REMOVE PARTITIONING"
	}

	if len(clauses) == 0 && partition == "" {
		return stmts, nil
	}
	stmt := "ALTER TABLE " + table
	if len(clauses) > 0 {
		stmt += " " + strings.Join(clauses, ", ")
	}
	if partition != "" {
		stmt += " " + partition
	}
	return append(stmts, stmt), nil
}

func (d *MySQL) tableOptions(comment *string, engine, collation string, autoIncrement *int64) string {
	var opts []string
	if comment != nil {
		opts = append(opts, "COMMENT="+d.QuoteString(*comment))
	}
	if engine != "" {
		if isIdentifier(engine) {
			opts = append(opts, "ENGINE="+engine)
		} else {
			opts = append(opts, "ENGINE="+d.QuoteString(engine))
		}
	}
	if collation != "" {
		opts = append(opts, "COLLATE "+collation)
	}
	if autoIncrement != nil {
		opts = append(opts, fmt.Sprintf("AUTO_INCREMENT=%d", *autoIncrement))
	}
	return strings.Join(opts, " ")
}

func (d *MySQL) partitionClause(p schema.Partitioning) string {
	s := fmt.Sprintf("PARTITION BY %s(%s)", p.Method, p.Expression)
	switch {
	case len(p.Definitions) > 0:
		parts := make([]string, len(p.Definitions))
		for i, def := range p.Definitions {
			parts[i] = "PARTITION " + d.Quote(def.Name) + " VALUES " + partitionValues(p.Method, def.Values)
		}
		s += " (" + strings.Join(parts, ", ") + ")"
	case p.Partitions > 0:
		s += fmt.Sprintf(" PARTITIONS %d", p.Partitions)
	}
	return s
}

func partitionValues(method, values string) string {
	if method == "LIST" {
		return "IN (" + values + ")"
	}
	if strings.EqualFold(strings.TrimSpace(values), "MAXVALUE") {
		return "LESS THAN MAXVALUE"
	}
	return "LESS THAN (" + values + ")"
}

func (d *MySQL) indexDefinition(ix schema.Index, inline bool) string {
	cols := d.indexColumns(ix.Columns, true, true)
	name := d.Quote(ix.Name) + " "
	if ix.Name == "" {
		name = ""
	}
	switch ix.Kind {
	case schema.IndexPrimary:
		return "PRIMARY KEY " + cols
	case schema.IndexUnique:
		if inline {
			return "UNIQUE KEY " + name + cols
		}
		return "UNIQUE " + name + cols
	case schema.IndexFulltext:
		if inline {
			return "FULLTEXT KEY " + name + cols
		}
		return "FULLTEXT INDEX " + name + cols
	default:
		if inline {
			return "KEY " + name + cols
		}
		return "INDEX " + name + cols
	}
}

func (d *MySQL) CreateTable(t schema.Table) ([]string, error) {
	if err := d.structuralIndexes(t.Indexes); err != nil {
		return nil, err
	}
	var defs []string
	for _, f := range t.Fields {
		def, err := d.ColumnDefinition(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	for _, ix := range t.Indexes {
		defs = append(defs, d.indexDefinition(ix, true))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, d.constraintClause(fk, true))
	}
	defs = append(defs, d.checkClauses(t.Checks)...)

	stmt := "CREATE TABLE " + d.Quote(t.Name) + " (\n  " + strings.Join(defs, ",\n  ") + "\n)"
	var comment *string
	if t.Comment != "" {
		comment = &t.Comment
	}
	if opts := d.tableOptions(comment, t.Engine, t.Collation, t.AutoIncrement); opts != "" {
		stmt += " " + opts
	}
	if t.Partitioning != nil {
		stmt += " " + d.partitionClause(*t.Partitioning)
	}
	return []string{stmt}, nil
}

func (d *MySQL) AlterIndexes(table string, ops []IndexOp) ([]string, error) {
	drops, adds := splitIndexOps(ops)
	if err := d.structuralIndexes(adds); err != nil {
		return nil, err
	}
	var clauses []string
	for _, ix := range drops {
		if ix.Kind == schema.IndexPrimary {
			clauses = append(clauses, "DROP PRIMARY KEY")
		} else {
			clauses = append(clauses, "DROP INDEX "+d.Quote(ix.Name))
		}
	}
	for _, ix := range adds {
		clauses = append(clauses, "ADD "+d.indexDefinition(ix, false))
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	return []string{"ALTER TABLE " + d.Quote(table) + " " + strings.Join(clauses, ", ")}, nil
}

// RenameTable renders RENAME TABLE.
func (d *MySQL) RenameTable(oldName, newName string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", d.Quote(oldName), d.Quote(newName))
}
