package schema

import "strings"

// Schema is a set of table descriptors, either read from a live database
// or loaded from a desired-shape YAML file.
type Schema struct {
	Dialect    string  `yaml:"dialect" json:"dialect"` // mysql, postgresql, sqlite, mssql, oracle
	Database   string  `yaml:"database,omitempty" json:"database,omitempty"`
	SchemaName string  `yaml:"schema_name,omitempty" json:"schema_name,omitempty"`
	Tables     []Table `yaml:"tables" json:"tables" validate:"dive"`
}

// Table describes one table: its ordered columns, indexes, foreign keys,
// triggers and storage options.
type Table struct {
	Name          string        `yaml:"name" json:"name" validate:"required"`
	Engine        string        `yaml:"engine,omitempty" json:"engine,omitempty"`
	Collation     string        `yaml:"collation,omitempty" json:"collation,omitempty"`
	Comment       string        `yaml:"comment,omitempty" json:"comment,omitempty"`
	AutoIncrement *int64        `yaml:"auto_increment,omitempty" json:"auto_increment,omitempty" validate:"omitempty,min=0"`
	Partitioning  *Partitioning `yaml:"partitioning,omitempty" json:"partitioning,omitempty"`
	Fields        []Field       `yaml:"fields" json:"fields" validate:"dive"`
	Indexes       []Index       `yaml:"indexes,omitempty" json:"indexes,omitempty" validate:"dive"`
	ForeignKeys   []ForeignKey  `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty" validate:"dive"`
	Triggers      []Trigger     `yaml:"triggers,omitempty" json:"triggers,omitempty" validate:"dive"`
	// Checks are table CHECK constraints. Nil on a desired shape keeps
	// the current ones.
	Checks []Check `yaml:"checks,omitempty" json:"checks,omitempty" validate:"dive"`
}

// Field describes one column. Original names the existing column a desired
// field corresponds to; empty means the field is new.
type Field struct {
	Name          string  `yaml:"name" json:"name" validate:"required"`
	Original      string  `yaml:"original,omitempty" json:"original,omitempty"`
	Type          string  `yaml:"type" json:"type" validate:"required"`
	Length        string  `yaml:"length,omitempty" json:"length,omitempty"` // raw expression: 10 | 10,2 | 'a','b'
	Unsigned      bool    `yaml:"unsigned,omitempty" json:"unsigned,omitempty"`
	Zerofill      bool    `yaml:"zerofill,omitempty" json:"zerofill,omitempty"`
	Nullable      bool    `yaml:"nullable" json:"nullable"`
	Default       *string `yaml:"default,omitempty" json:"default,omitempty"` // nil: no default; "NULL": DEFAULT NULL
	AutoIncrement bool    `yaml:"auto_increment,omitempty" json:"auto_increment,omitempty"`
	Collation     string  `yaml:"collation,omitempty" json:"collation,omitempty"`
	Comment       string  `yaml:"comment,omitempty" json:"comment,omitempty"`
	OnUpdate      string  `yaml:"on_update,omitempty" json:"on_update,omitempty"`
}

// IndexKind is the kind of an index.
type IndexKind string

const (
	IndexPrimary  IndexKind = "PRIMARY"
	IndexUnique   IndexKind = "UNIQUE"
	IndexPlain    IndexKind = "INDEX"
	IndexFulltext IndexKind = "FULLTEXT"
)

// Index describes an index or key constraint. Where holds the predicate
// of a partial index.
type Index struct {
	Name    string        `yaml:"name,omitempty" json:"name,omitempty"`
	Kind    IndexKind     `yaml:"kind" json:"kind" validate:"required,oneof=PRIMARY UNIQUE INDEX FULLTEXT"`
	Columns []IndexColumn `yaml:"columns" json:"columns" validate:"required,min=1,dive"`
	Where   string        `yaml:"where,omitempty" json:"where,omitempty"`
}

// IndexColumn is one key of an index: a column with an optional prefix
// length, or an expression.
type IndexColumn struct {
	Name       string `yaml:"name,omitempty" json:"name,omitempty" validate:"required_without=Expression"`
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
	Length     *int   `yaml:"length,omitempty" json:"length,omitempty" validate:"omitempty,min=1"`
	Desc       bool   `yaml:"desc,omitempty" json:"desc,omitempty"`
}

// Check is a CHECK constraint. Expression is the condition without the
// surrounding parentheses.
type Check struct {
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Expression string `yaml:"expression" json:"expression" validate:"required"`
}

// ForeignKey describes a foreign key constraint.
type ForeignKey struct {
	Name       string   `yaml:"name" json:"name" validate:"required"`
	Columns    []string `yaml:"columns" json:"columns" validate:"required,min=1"`
	RefSchema  string   `yaml:"ref_schema,omitempty" json:"ref_schema,omitempty"`
	RefTable   string   `yaml:"ref_table" json:"ref_table" validate:"required"`
	RefColumns []string `yaml:"ref_columns" json:"ref_columns" validate:"required,min=1"`
	OnDelete   string   `yaml:"on_delete,omitempty" json:"on_delete,omitempty" validate:"omitempty,oneof=RESTRICT 'NO ACTION' CASCADE 'SET NULL' 'SET DEFAULT'"`
	OnUpdate   string   `yaml:"on_update,omitempty" json:"on_update,omitempty" validate:"omitempty,oneof=RESTRICT 'NO ACTION' CASCADE 'SET NULL' 'SET DEFAULT'"`
}

// Trigger is carried through a table rebuild unchanged except for the
// table it is bound to.
type Trigger struct {
	Name      string `yaml:"name" json:"name" validate:"required"`
	Timing    string `yaml:"timing,omitempty" json:"timing,omitempty"` // BEFORE, AFTER, INSTEAD OF
	Event     string `yaml:"event,omitempty" json:"event,omitempty"`   // INSERT, UPDATE, DELETE
	Statement string `yaml:"statement" json:"statement" validate:"required"`
}

// Partitioning describes MySQL-style table partitioning.
type Partitioning struct {
	Method      string                `yaml:"method" json:"method" validate:"required,oneof=RANGE LIST HASH KEY 'LINEAR HASH' 'LINEAR KEY'"`
	Expression  string                `yaml:"expression" json:"expression" validate:"required"`
	Partitions  int                   `yaml:"partitions,omitempty" json:"partitions,omitempty" validate:"min=0"`
	Definitions []PartitionDefinition `yaml:"definitions,omitempty" json:"definitions,omitempty" validate:"dive"`
}

// PartitionDefinition is one named RANGE or LIST partition.
type PartitionDefinition struct {
	Name   string `yaml:"name" json:"name" validate:"required"`
	Values string `yaml:"values" json:"values" validate:"required"`
}

// Field returns the field with the given name, or nil.
func (t *Table) Field(name string) *Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// FieldNames returns the ordered column names.
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// PrimaryKey returns the table's PRIMARY index, or nil.
func (t *Table) PrimaryKey() *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Kind == IndexPrimary {
			return &t.Indexes[i]
		}
	}
	return nil
}

// ColumnNames returns the ordered column names of the index.
func (ix Index) ColumnNames() []string {
	names := make([]string, len(ix.Columns))
	for i, c := range ix.Columns {
		names[i] = c.Name
	}
	return names
}

// Covers reports whether every plain column of the index is in names.
// Expression keys and the predicate are not considered.
func (ix Index) Covers(names map[string]bool) bool {
	for _, c := range ix.Columns {
		if c.Expression == "" && !names[c.Name] {
			return false
		}
	}
	return true
}

// Structural reports whether the index is keyed on plain columns only
// and has no predicate, the form every dialect can render.
func (ix Index) Structural() bool {
	if ix.Where != "" {
		return false
	}
	for _, c := range ix.Columns {
		if c.Expression != "" {
			return false
		}
	}
	return true
}

// IsNullDefault reports whether the field explicitly defaults to NULL.
func (f Field) IsNullDefault() bool {
	return f.Default != nil && strings.EqualFold(*f.Default, "NULL")
}

// Columns builds index columns from plain names.
func Columns(names ...string) []IndexColumn {
	cols := make([]IndexColumn, len(names))
	for i, n := range names {
		cols[i] = IndexColumn{Name: n}
	}
	return cols
}

// Ptr returns a pointer to v; handy for defaults and prefix lengths.
func Ptr[T any](v T) *T {
	return &v
}
