package discovery

import (
	"context"
	"regexp"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
)

// MySQL reads MySQL and MariaDB tables from information_schema. An empty
// schema means the connection's current database.
type MySQL struct {
	reader
}

const mysqlSchema = "COALESCE(NULLIF(?, ''), DATABASE())"

const mysqlColumnsQuery = `SELECT COLUMN_NAME AS column_name, COLUMN_TYPE AS column_type,
       IS_NULLABLE AS is_nullable, COLUMN_DEFAULT AS column_default, EXTRA AS extra,
       COLLATION_NAME AS collation_name, COLUMN_COMMENT AS column_comment
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ` + mysqlSchema + ` AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

const mysqlIndexesQuery = `SELECT INDEX_NAME AS index_name, NON_UNIQUE AS non_unique,
       COLUMN_NAME AS column_name, SUB_PART AS sub_part, COLLATION AS collation,
       INDEX_TYPE AS index_type
FROM information_schema.STATISTICS
WHERE TABLE_SCHEMA = ` + mysqlSchema + ` AND TABLE_NAME = ?
ORDER BY INDEX_NAME = 'PRIMARY' DESC, INDEX_NAME, SEQ_IN_INDEX`

const mysqlForeignKeysQuery = `SELECT k.CONSTRAINT_NAME AS constraint_name, k.COLUMN_NAME AS column_name,
       k.TABLE_SCHEMA AS table_schema, k.REFERENCED_TABLE_SCHEMA AS ref_schema,
       k.REFERENCED_TABLE_NAME AS ref_table, k.REFERENCED_COLUMN_NAME AS ref_column,
       r.UPDATE_RULE AS update_rule, r.DELETE_RULE AS delete_rule
FROM information_schema.KEY_COLUMN_USAGE k
JOIN information_schema.REFERENTIAL_CONSTRAINTS r
  ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA
 AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
 AND r.TABLE_NAME = k.TABLE_NAME
WHERE k.TABLE_SCHEMA = ` + mysqlSchema + ` AND k.TABLE_NAME = ?
  AND k.REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY k.CONSTRAINT_NAME, k.ORDINAL_POSITION`

const mysqlTriggersQuery = `SELECT TRIGGER_NAME AS trigger_name, ACTION_TIMING AS action_timing,
       EVENT_MANIPULATION AS event_manipulation, ACTION_STATEMENT AS action_statement
FROM information_schema.TRIGGERS
WHERE EVENT_OBJECT_SCHEMA = ` + mysqlSchema + ` AND EVENT_OBJECT_TABLE = ?
ORDER BY ACTION_ORDER`

const mysqlTableQuery = `SELECT ENGINE AS engine, TABLE_COLLATION AS table_collation,
       TABLE_COMMENT AS table_comment, AUTO_INCREMENT AS auto_increment
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ` + mysqlSchema + ` AND TABLE_NAME = ?`

var mysqlOnUpdate = regexp.MustCompile(`(?i)on update ([a-z_]+(?:\(\d*\))?)`)

func (r *MySQL) Dialect() string { return "mysql" }

func (r *MySQL) ListColumns(ctx context.Context, table string) ([]schema.Field, error) {
	rows, err := r.conn.Query(ctx, mysqlColumnsQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	fields := make([]schema.Field, 0, len(rows))
	for _, row := range rows {
		extra := row.String("extra")
		f := schema.Field{
			Name:          row.String("column_name"),
			Nullable:      row.Bool("is_nullable"),
			Default:       normalizeDefault(row.NullString("column_default")),
			AutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
			Collation:     row.String("collation_name"),
			Comment:       row.String("column_comment"),
		}
		normalizeType(r.catalog, &f, row.String("column_type"))
		if m := mysqlOnUpdate.FindStringSubmatch(extra); m != nil {
			f.OnUpdate = strings.ToUpper(strings.TrimSuffix(m[1], "()"))
		}
		if f.Default != nil && strings.EqualFold(*f.Default, "current_timestamp()") {
			f.Default = schema.Ptr("CURRENT_TIMESTAMP")
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (r *MySQL) ListIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	rows, err := r.conn.Query(ctx, mysqlIndexesQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	b := newIndexBuilder()
	for _, row := range rows {
		name := row.String("index_name")
		kind := schema.IndexPlain
		switch {
		case name == "PRIMARY":
			kind = schema.IndexPrimary
		case strings.EqualFold(row.String("index_type"), "FULLTEXT"):
			kind = schema.IndexFulltext
		case !row.Bool("non_unique"):
			kind = schema.IndexUnique
		}
		col := schema.IndexColumn{
			Name: row.String("column_name"),
			Desc: row.String("collation") == "D",
		}
		if n := row.Int("sub_part"); n > 0 {
			col.Length = schema.Ptr(int(n))
		}
		b.add(name, kind, col)
	}
	indexes := b.indexes()
	for i := range indexes {
		if indexes[i].Kind == schema.IndexPrimary {
			indexes[i].Name = ""
		}
	}
	return indexes, nil
}

func (r *MySQL) ListForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := r.conn.Query(ctx, mysqlForeignKeysQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	b := newForeignKeyBuilder()
	for _, row := range rows {
		refSchema := row.String("ref_schema")
		if refSchema == row.String("table_schema") {
			refSchema = ""
		}
		b.add(row.String("constraint_name"), row.String("column_name"), refSchema,
			row.String("ref_table"), row.String("ref_column"),
			referentialAction(row.String("update_rule")), referentialAction(row.String("delete_rule")))
	}
	return b.foreignKeys(), nil
}

func (r *MySQL) ListTriggers(ctx context.Context, table string) ([]schema.Trigger, error) {
	rows, err := r.conn.Query(ctx, mysqlTriggersQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	triggers := make([]schema.Trigger, 0, len(rows))
	for _, row := range rows {
		triggers = append(triggers, schema.Trigger{
			Name:      row.String("trigger_name"),
			Timing:    strings.ToUpper(row.String("action_timing")),
			Event:     strings.ToUpper(row.String("event_manipulation")),
			Statement: row.String("action_statement"),
		})
	}
	return triggers, nil
}

// Describe reads the table and its engine, collation, comment and next
// auto-increment value.
func (r *MySQL) Describe(ctx context.Context, table string) (*schema.Table, error) {
	t, err := describe(ctx, r, table)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, mysqlTableQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		row := rows[0]
		t.Engine = row.String("engine")
		t.Collation = row.String("table_collation")
		t.Comment = row.String("table_comment")
		if row["auto_increment"] != nil {
			t.AutoIncrement = schema.Ptr(row.Int("auto_increment"))
		}
	}
	return t, nil
}

func (r *MySQL) queries(table string) []boundQuery {
	args := []interface{}{r.schema, table}
	return []boundQuery{
		{"columns", mysqlColumnsQuery, args},
		{"indexes", mysqlIndexesQuery, args},
		{"foreign keys", mysqlForeignKeysQuery, args},
		{"triggers", mysqlTriggersQuery, args},
		{"table options", mysqlTableQuery, args},
	}
}
