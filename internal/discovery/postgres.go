package discovery

import (
	"context"

	"github.com/tablewright/tablewright/internal/schema"
)

// Postgres reads PostgreSQL tables from pg_catalog.
type Postgres struct {
	reader
}

const pgColumnsQuery = `SELECT a.attname AS column_name,
       format_type(a.atttypid, a.atttypmod) AS column_type,
       NOT a.attnotnull AS is_nullable,
       pg_get_expr(d.adbin, d.adrelid) AS column_default,
       a.attidentity <> '' AS is_identity,
       CASE WHEN co.collname <> 'default' THEN co.collname END AS collation_name,
       col_description(c.oid, a.attnum) AS column_comment
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
LEFT JOIN pg_collation co ON co.oid = a.attcollation
WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`

// indoption bit 0 marks a descending column; indoption is zero-based.
const pgIndexesQuery = `SELECT i.relname AS index_name, ix.indisprimary AS is_primary,
       ix.indisunique AS is_unique, a.attname AS column_name,
       (ix.indoption[k.ord - 1] & 1) = 1 AS is_desc
FROM pg_class t
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_index ix ON ix.indrelid = t.oid
JOIN pg_class i ON i.oid = ix.indexrelid
CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = $1 AND t.relname = $2
ORDER BY ix.indisprimary DESC, i.relname, k.ord`

const pgForeignKeysQuery = `SELECT c.conname AS constraint_name, a.attname AS column_name,
       rn.nspname AS ref_schema, rt.relname AS ref_table, ra.attname AS ref_column,
       c.confupdtype AS update_rule, c.confdeltype AS delete_rule
FROM pg_constraint c
JOIN pg_class t ON t.oid = c.conrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_class rt ON rt.oid = c.confrelid
JOIN pg_namespace rn ON rn.oid = rt.relnamespace
CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
JOIN pg_attribute ra ON ra.attrelid = c.confrelid AND ra.attnum = k.refattnum
WHERE c.contype = 'f' AND n.nspname = $1 AND t.relname = $2
ORDER BY c.conname, k.ord`

const pgTriggersQuery = `SELECT tg.tgname AS trigger_name, pg_get_triggerdef(tg.oid) AS definition
FROM pg_trigger tg
JOIN pg_class c ON c.oid = tg.tgrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2 AND NOT tg.tgisinternal
ORDER BY tg.tgname`

const pgTableQuery = `SELECT obj_description(c.oid, 'pg_class') AS table_comment
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2`

func (r *Postgres) Dialect() string { return "postgresql" }

func (r *Postgres) ListColumns(ctx context.Context, table string) ([]schema.Field, error) {
	rows, err := r.conn.Query(ctx, pgColumnsQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	fields := make([]schema.Field, 0, len(rows))
	for _, row := range rows {
		raw := row.NullString("column_default")
		f := schema.Field{
			Name:      row.String("column_name"),
			Nullable:  row.Bool("is_nullable"),
			Collation: row.String("collation_name"),
			Comment:   row.String("column_comment"),
		}
		normalizeType(r.catalog, &f, row.String("column_type"))
		if isSequenceDefault(raw) || row.Bool("is_identity") {
			f.AutoIncrement = true
		} else {
			f.Default = normalizeDefault(raw)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (r *Postgres) ListIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	rows, err := r.conn.Query(ctx, pgIndexesQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	b := newIndexBuilder()
	for _, row := range rows {
		kind := schema.IndexPlain
		switch {
		case row.Bool("is_primary"):
			kind = schema.IndexPrimary
		case row.Bool("is_unique"):
			kind = schema.IndexUnique
		}
		b.add(row.String("index_name"), kind, schema.IndexColumn{
			Name: row.String("column_name"),
			Desc: row.Bool("is_desc"),
		})
	}
	return b.indexes(), nil
}

func (r *Postgres) ListForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := r.conn.Query(ctx, pgForeignKeysQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	b := newForeignKeyBuilder()
	for _, row := range rows {
		refSchema := row.String("ref_schema")
		if refSchema == r.schema {
			refSchema = ""
		}
		b.add(row.String("constraint_name"), row.String("column_name"), refSchema,
			row.String("ref_table"), row.String("ref_column"),
			pgAction(row.String("update_rule")), pgAction(row.String("delete_rule")))
	}
	return b.foreignKeys(), nil
}

// ListTriggers returns each trigger with its full CREATE TRIGGER
// definition as the statement.
func (r *Postgres) ListTriggers(ctx context.Context, table string) ([]schema.Trigger, error) {
	rows, err := r.conn.Query(ctx, pgTriggersQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	triggers := make([]schema.Trigger, 0, len(rows))
	for _, row := range rows {
		def := row.String("definition")
		timing, event := parseTrigger(def)
		triggers = append(triggers, schema.Trigger{
			Name:      row.String("trigger_name"),
			Timing:    timing,
			Event:     event,
			Statement: def,
		})
	}
	return triggers, nil
}

func (r *Postgres) Describe(ctx context.Context, table string) (*schema.Table, error) {
	t, err := describe(ctx, r, table)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, pgTableQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		t.Comment = rows[0].String("table_comment")
	}
	return t, nil
}

func (r *Postgres) queries(table string) []boundQuery {
	args := []interface{}{r.schema, table}
	return []boundQuery{
		{"columns", pgColumnsQuery, args},
		{"indexes", pgIndexesQuery, args},
		{"foreign keys", pgForeignKeysQuery, args},
		{"triggers", pgTriggersQuery, args},
		{"table comment", pgTableQuery, args},
	}
}
