package discovery

import (
	"context"
	"strconv"
	"strings"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/schema"
)

// MSSQL reads SQL Server tables from the sys catalog views.
type MSSQL struct {
	reader
}

const mssqlObject = "OBJECT_ID(QUOTENAME(@p1) + '.' + QUOTENAME(@p2))"

const mssqlColumnsQuery = `SELECT c.name AS column_name, t.name AS type_name, c.max_length AS max_length,
       c.precision AS num_precision, c.scale AS num_scale, c.is_nullable AS is_nullable,
       c.is_identity AS is_identity, c.collation_name AS collation_name,
       OBJECT_DEFINITION(c.default_object_id) AS column_default,
       CAST(ep.value AS nvarchar(4000)) AS column_comment
FROM sys.columns c
JOIN sys.types t ON t.user_type_id = c.user_type_id
LEFT JOIN sys.extended_properties ep
  ON ep.class = 1 AND ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.name = 'MS_Description'
WHERE c.object_id = ` + mssqlObject + `
ORDER BY c.column_id`

const mssqlIndexesQuery = `SELECT i.name AS index_name, i.is_primary_key AS is_primary, i.is_unique AS is_unique,
       c.name AS column_name, ic.is_descending_key AS is_desc
FROM sys.indexes i
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE i.object_id = ` + mssqlObject + ` AND ic.key_ordinal > 0
ORDER BY i.is_primary_key DESC, i.name, ic.key_ordinal`

const mssqlForeignKeysQuery = `SELECT f.name AS constraint_name,
       COL_NAME(fc.parent_object_id, fc.parent_column_id) AS column_name,
       OBJECT_SCHEMA_NAME(f.referenced_object_id) AS ref_schema,
       OBJECT_NAME(f.referenced_object_id) AS ref_table,
       COL_NAME(fc.referenced_object_id, fc.referenced_column_id) AS ref_column,
       f.update_referential_action_desc AS update_rule,
       f.delete_referential_action_desc AS delete_rule
FROM sys.foreign_keys f
JOIN sys.foreign_key_columns fc ON fc.constraint_object_id = f.object_id
WHERE f.parent_object_id = ` + mssqlObject + `
ORDER BY f.name, fc.constraint_column_id`

const mssqlTriggersQuery = `SELECT t.name AS trigger_name, t.is_instead_of_trigger AS is_instead_of,
       OBJECT_DEFINITION(t.object_id) AS definition
FROM sys.triggers t
WHERE t.parent_id = ` + mssqlObject + `
ORDER BY t.name`

const mssqlTableQuery = `SELECT CAST(ep.value AS nvarchar(4000)) AS table_comment
FROM sys.extended_properties ep
WHERE ep.class = 1 AND ep.major_id = ` + mssqlObject + ` AND ep.minor_id = 0 AND ep.name = 'MS_Description'`

func (r *MSSQL) Dialect() string { return "mssql" }

func (r *MSSQL) ListColumns(ctx context.Context, table string) ([]schema.Field, error) {
	rows, err := r.conn.Query(ctx, mssqlColumnsQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	fields := make([]schema.Field, 0, len(rows))
	for _, row := range rows {
		f := schema.Field{
			Name:          row.String("column_name"),
			Nullable:      row.Bool("is_nullable"),
			AutoIncrement: row.Bool("is_identity"),
			Collation:     row.String("collation_name"),
			Comment:       row.String("column_comment"),
			Default:       normalizeDefault(row.NullString("column_default")),
		}
		typeName := strings.ToLower(row.String("type_name"))
		raw := typeName
		if l := mssqlLength(typeName, row); l != "" {
			raw += "(" + l + ")"
		}
		normalizeType(r.catalog, &f, raw)
		fields = append(fields, f)
	}
	return fields, nil
}

// mssqlLength derives the declared length from sys.columns. max_length is
// in bytes, so national character types report half of it.
func mssqlLength(typeName string, row conn.Row) string {
	maxLen := row.Int("max_length")
	switch typeName {
	case "char", "varchar", "binary", "varbinary":
		if maxLen == -1 {
			return "max"
		}
		return strconv.FormatInt(maxLen, 10)
	case "nchar", "nvarchar":
		if maxLen == -1 {
			return "max"
		}
		return strconv.FormatInt(maxLen/2, 10)
	case "decimal", "numeric":
		return strconv.FormatInt(row.Int("num_precision"), 10) + "," + strconv.FormatInt(row.Int("num_scale"), 10)
	case "datetime2", "datetimeoffset", "time":
		if s := row.Int("num_scale"); s != 7 {
			return strconv.FormatInt(s, 10)
		}
	}
	return ""
}

func (r *MSSQL) ListIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	rows, err := r.conn.Query(ctx, mssqlIndexesQuery, r.schema, table)
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

func (r *MSSQL) ListForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := r.conn.Query(ctx, mssqlForeignKeysQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	b := newForeignKeyBuilder()
	for _, row := range rows {
		refSchema := row.String("ref_schema")
		if strings.EqualFold(refSchema, r.schema) {
			refSchema = ""
		}
		b.add(row.String("constraint_name"), row.String("column_name"), refSchema,
			row.String("ref_table"), row.String("ref_column"),
			referentialAction(row.String("update_rule")), referentialAction(row.String("delete_rule")))
	}
	return b.foreignKeys(), nil
}

func (r *MSSQL) ListTriggers(ctx context.Context, table string) ([]schema.Trigger, error) {
	rows, err := r.conn.Query(ctx, mssqlTriggersQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	triggers := make([]schema.Trigger, 0, len(rows))
	for _, row := range rows {
		timing := "AFTER"
		if row.Bool("is_instead_of") {
			timing = "INSTEAD OF"
		}
		triggers = append(triggers, schema.Trigger{
			Name:      row.String("trigger_name"),
			Timing:    timing,
			Statement: row.String("definition"),
		})
	}
	return triggers, nil
}

func (r *MSSQL) Describe(ctx context.Context, table string) (*schema.Table, error) {
	t, err := describe(ctx, r, table)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, mssqlTableQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		t.Comment = rows[0].String("table_comment")
	}
	return t, nil
}

func (r *MSSQL) queries(table string) []boundQuery {
	args := []interface{}{r.schema, table}
	return []boundQuery{
		{"columns", mssqlColumnsQuery, args},
		{"indexes", mssqlIndexesQuery, args},
		{"foreign keys", mssqlForeignKeysQuery, args},
		{"triggers", mssqlTriggersQuery, args},
		{"table comment", mssqlTableQuery, args},
	}
}
