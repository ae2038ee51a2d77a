// Package discovery reads the current shape of a table from the live
// catalog of each supported dialect.
package discovery

import (
	"context"
	"fmt"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// Reader reads table descriptors from a database catalog.
type Reader interface {
	// Dialect returns the canonical dialect name the reader queries.
	Dialect() string

	// ListColumns returns the table's columns in ordinal order. A table
	// that does not exist has no columns.
	ListColumns(ctx context.Context, table string) ([]schema.Field, error)

	// ListIndexes returns the table's indexes, primary key included.
	ListIndexes(ctx context.Context, table string) ([]schema.Index, error)

	// ListForeignKeys returns the foreign keys declared on the table.
	ListForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error)

	// ListTriggers returns the triggers bound to the table.
	ListTriggers(ctx context.Context, table string) ([]schema.Trigger, error)

	// Describe assembles the full descriptor of the table.
	Describe(ctx context.Context, table string) (*schema.Table, error)
}

// InboundReference is a foreign key on another table that points at the
// table being described.
type InboundReference struct {
	Table      string   `json:"table" yaml:"table"`
	Columns    []string `json:"columns" yaml:"columns"`
	RefColumns []string `json:"ref_columns" yaml:"ref_columns"`
}

// InboundLister is implemented by readers that can list the foreign keys
// of other tables referencing a table.
type InboundLister interface {
	InboundForeignKeys(ctx context.Context, table string) ([]InboundReference, error)
}

// CheckLister is implemented by readers that can describe CHECK
// constraints. Tables read through other readers carry nil Checks.
type CheckLister interface {
	ListChecks(ctx context.Context, table string) ([]schema.Check, error)
}

// TableNotFoundError is returned by Describe when the table has no columns.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s does not exist", e.Table)
}

// New creates the Reader for a dialect. schemaName selects the schema or
// owner to read; empty means the connection's current one.
func New(dialectName string, c conn.Conn, schemaName string) (Reader, error) {
	canonical, err := dialect.Canonical(dialectName)
	if err != nil {
		return nil, err
	}
	cat := typemap.ForDialect(canonical)
	switch canonical {
	case "mysql":
		return &MySQL{reader{conn: c, schema: schemaName, catalog: cat}}, nil
	case "postgresql":
		if schemaName == "" {
			schemaName = "public"
		}
		return &Postgres{reader{conn: c, schema: schemaName, catalog: cat}}, nil
	case "sqlite":
		return &SQLite{reader{conn: c, catalog: cat}}, nil
	case "mssql":
		if schemaName == "" {
			schemaName = "dbo"
		}
		return &MSSQL{reader{conn: c, schema: schemaName, catalog: cat}}, nil
	default:
		return &Oracle{reader{conn: c, schema: schemaName, catalog: cat}}, nil
	}
}

// reader holds what every dialect reader shares.
type reader struct {
	conn    conn.Conn
	schema  string
	catalog *typemap.Catalog
}

// SetCatalog replaces the type catalog used to normalize column types.
func (r *reader) SetCatalog(c *typemap.Catalog) {
	r.catalog = c
}

// describe runs the list operations of r and assembles a table.
func describe(ctx context.Context, r Reader, table string) (*schema.Table, error) {
	fields, err := r.ListColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("discovering columns: %w", err)
	}
	if len(fields) == 0 {
		return nil, &TableNotFoundError{Table: table}
	}
	t := &schema.Table{Name: table, Fields: fields}

	if t.Indexes, err = r.ListIndexes(ctx, table); err != nil {
		return nil, fmt.Errorf("discovering indexes: %w", err)
	}
	if t.ForeignKeys, err = r.ListForeignKeys(ctx, table); err != nil {
		return nil, fmt.Errorf("discovering foreign keys: %w", err)
	}
	if t.Triggers, err = r.ListTriggers(ctx, table); err != nil {
		return nil, fmt.Errorf("discovering triggers: %w", err)
	}
	if cl, ok := r.(CheckLister); ok {
		if t.Checks, err = cl.ListChecks(ctx, table); err != nil {
			return nil, fmt.Errorf("discovering checks: %w", err)
		}
	}
	return t, nil
}

// indexBuilder groups per-column catalog rows into indexes, keeping the
// order in which index names first appear.
type indexBuilder struct {
	order []string
	byKey map[string]*schema.Index
}

func newIndexBuilder() *indexBuilder {
	return &indexBuilder{byKey: make(map[string]*schema.Index)}
}

func (b *indexBuilder) add(name string, kind schema.IndexKind, col schema.IndexColumn) {
	ix, ok := b.byKey[name]
	if !ok {
		ix = &schema.Index{Name: name, Kind: kind}
		b.byKey[name] = ix
		b.order = append(b.order, name)
	}
	ix.Columns = append(ix.Columns, col)
}

func (b *indexBuilder) indexes() []schema.Index {
	out := make([]schema.Index, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.byKey[name])
	}
	return out
}

// foreignKeyBuilder groups per-column catalog rows into foreign keys.
type foreignKeyBuilder struct {
	order  []string
	byName map[string]*schema.ForeignKey
}

func newForeignKeyBuilder() *foreignKeyBuilder {
	return &foreignKeyBuilder{byName: make(map[string]*schema.ForeignKey)}
}

func (b *foreignKeyBuilder) add(name, column, refSchema, refTable, refColumn, onUpdate, onDelete string) {
	fk, ok := b.byName[name]
	if !ok {
		fk = &schema.ForeignKey{
			Name:      name,
			RefSchema: refSchema,
			RefTable:  refTable,
			OnUpdate:  onUpdate,
			OnDelete:  onDelete,
		}
		b.byName[name] = fk
		b.order = append(b.order, name)
	}
	fk.Columns = append(fk.Columns, column)
	fk.RefColumns = append(fk.RefColumns, refColumn)
}

func (b *foreignKeyBuilder) foreignKeys() []schema.ForeignKey {
	out := make([]schema.ForeignKey, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.byName[name])
	}
	return out
}
