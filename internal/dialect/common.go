package dialect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// base carries what every dialect shares: identity, capabilities, the
// type catalog and the quoting rules.
type base struct {
	name       string
	caps       Capabilities
	catalog    *typemap.Catalog
	quoteOpen  string
	quoteClose string
	escape     func(string) string
}

func (b *base) Name() string                { return b.name }
func (b *base) Capabilities() Capabilities  { return b.caps }
func (b *base) Catalog() *typemap.Catalog   { return b.catalog }
func (b *base) QuoteString(s string) string { return "'" + b.escape(s) + "'" }

// UseCatalog swaps the type catalog, e.g. to add configured aliases.
func (b *base) UseCatalog(c *typemap.Catalog) {
	if c != nil {
		b.catalog = c
	}
}

func (b *base) Quote(ident string) string {
	return b.quoteOpen + strings.ReplaceAll(ident, b.quoteClose, b.quoteClose+b.quoteClose) + b.quoteClose
}

func (b *base) RenderType(f schema.Field) (string, error) {
	return b.catalog.Render(f)
}

// DropTable renders DROP TABLE.
func (b *base) DropTable(name string) string {
	return "DROP TABLE " + b.Quote(name)
}

func (b *base) RenameTable(oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", b.Quote(oldName), b.Quote(newName))
}

func (b *base) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = b.Quote(n)
	}
	return strings.Join(quoted, ", ")
}

func doubleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

var (
	numericLiteral = regexp.MustCompile(`^[-+]?\d+(\.\d+)?([eE][-+]?\d+)?$`)
	startsLetter   = regexp.MustCompile(`^[A-Za-z_]`)
	identifier     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
	clockKeyword   = regexp.MustCompile(`^(?i:(?:current_timestamp|current_date|current_time|localtimestamp|localtime|sysdate|systimestamp)(?:\(\d*\))?|(?:now|getdate|sysdatetime)\(\))$`)
)

// defaultClause renders " DEFAULT v". Types of the char/binary/text/enum/set
// families always get a string literal; elsewhere numbers, keywords and
// function calls such as CURRENT_TIMESTAMP pass through unquoted. Clock
// keywords and parenthesized expressions are never quoted.
func (b *base) defaultClause(f schema.Field) string {
	if f.Default == nil {
		return ""
	}
	v := strings.TrimSpace(*f.Default)
	switch {
	case strings.EqualFold(v, "NULL"):
		return " DEFAULT NULL"
	case strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")"), clockKeyword.MatchString(v):
		return " DEFAULT " + v
	case typemap.QuotesDefault(f.Type):
		return " DEFAULT " + b.QuoteString(v)
	case numericLiteral.MatchString(v), startsLetter.MatchString(v):
		return " DEFAULT " + v
	default:
		return " DEFAULT " + b.QuoteString(v)
	}
}

func nullClause(f schema.Field) string {
	if f.Nullable {
		return " NULL"
	}
	return " NOT NULL"
}

// indexColumns renders "(a(10), b DESC)". Key expressions are written
// as given.
func (b *base) indexColumns(cols []schema.IndexColumn, withLength, withDesc bool) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		s := b.Quote(c.Name)
		if c.Expression != "" {
			s = c.Expression
		} else if withLength && c.Length != nil {
			s += fmt.Sprintf("(%d)", *c.Length)
		}
		if withDesc && c.Desc {
			s += " DESC"
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// structuralIndexes rejects indexes over expressions or with a WHERE
// predicate, which only the SQLite dialect renders.
func (b *base) structuralIndexes(ixs []schema.Index) error {
	for _, ix := range ixs {
		if !ix.Structural() {
			return &UnsupportedFeatureError{Dialect: b.name, Feature: "expression or partial indexes"}
		}
	}
	return nil
}

// checkClauses renders "[CONSTRAINT name ]CHECK (expr)" per constraint.
func (b *base) checkClauses(checks []schema.Check) []string {
	out := make([]string, 0, len(checks))
	for _, ck := range checks {
		s := "CHECK (" + ck.Expression + ")"
		if ck.Name != "" {
			s = "CONSTRAINT " + b.Quote(ck.Name) + " " + s
		}
		out = append(out, s)
	}
	return out
}

// foreignKeyClause renders " FOREIGN KEY (src) REFERENCES t (dst) ON ...".
func (b *base) foreignKeyClause(fk schema.ForeignKey, onUpdate bool) string {
	ref := b.Quote(fk.RefTable)
	if fk.RefSchema != "" {
		ref = b.Quote(fk.RefSchema) + "." + ref
	}
	s := fmt.Sprintf(" FOREIGN KEY (%s) REFERENCES %s (%s)", b.quoteList(fk.Columns), ref, b.quoteList(fk.RefColumns))
	if fk.OnDelete != "" {
		s += " ON DELETE " + fk.OnDelete
	}
	if onUpdate && fk.OnUpdate != "" {
		s += " ON UPDATE " + fk.OnUpdate
	}
	return s
}

// constraintClause renders "CONSTRAINT name FOREIGN KEY ...".
func (b *base) constraintClause(fk schema.ForeignKey, onUpdate bool) string {
	return "CONSTRAINT " + b.Quote(fk.Name) + b.foreignKeyClause(fk, onUpdate)
}

func (b *base) collateClause(f schema.Field, quoted bool) string {
	if f.Collation == "" || !typemap.Collatable(f.Type) {
		return ""
	}
	if quoted {
		return " COLLATE " + b.Quote(f.Collation)
	}
	return " COLLATE " + f.Collation
}

// IndexName returns the index's name, deriving one from the table and
// columns when it has none.
func IndexName(table string, ix schema.Index) string {
	if ix.Name != "" {
		return ix.Name
	}
	suffix := "idx"
	switch ix.Kind {
	case schema.IndexPrimary:
		suffix = "pkey"
	case schema.IndexUnique:
		suffix = "key"
	}
	return table + "_" + strings.Join(ix.ColumnNames(), "_") + "_" + suffix
}

func splitIndexOps(ops []IndexOp) (drops, adds []schema.Index) {
	for _, op := range ops {
		if op.Kind == OpDrop {
			drops = append(drops, op.Index)
		} else {
			adds = append(adds, op.Index)
		}
	}
	return drops, adds
}

func splitForeignKeyOps(ops []ForeignKeyOp) (drops, adds []schema.ForeignKey) {
	for _, op := range ops {
		if op.Kind == OpDrop {
			drops = append(drops, op.ForeignKey)
		} else {
			adds = append(adds, op.ForeignKey)
		}
	}
	return drops, adds
}

func isIdentifier(s string) bool {
	return identifier.MatchString(s)
}
