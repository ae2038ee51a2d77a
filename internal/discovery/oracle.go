package discovery

import (
	"context"
	"strconv"
	"strings"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/schema"
)

// Oracle reads Oracle tables from the ALL_* dictionary views. An empty
// schema means the session's current schema. Oracle treats an empty bind
// as NULL, which the owner expression relies on.
type Oracle struct {
	reader
}

const oracleOwner = "NVL(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))"

const oracleColumnsQuery = `SELECT c.column_name, c.data_type, c.data_length, c.char_length,
       c.data_precision, c.data_scale, c.nullable, c.data_default, c.identity_column,
       cc.comments AS column_comment
FROM all_tab_columns c
LEFT JOIN all_col_comments cc
  ON cc.owner = c.owner AND cc.table_name = c.table_name AND cc.column_name = c.column_name
WHERE c.owner = ` + oracleOwner + ` AND c.table_name = :2
ORDER BY c.column_id`

const oracleIndexesQuery = `SELECT i.index_name, i.uniqueness, c.constraint_type, c.constraint_name,
       ic.column_name, ic.descend
FROM all_indexes i
JOIN all_ind_columns ic ON ic.index_owner = i.owner AND ic.index_name = i.index_name
LEFT JOIN all_constraints c
  ON c.owner = i.table_owner AND c.index_name = i.index_name AND c.constraint_type IN ('P', 'U')
WHERE i.table_owner = ` + oracleOwner + ` AND i.table_name = :2 AND i.index_type <> 'LOB'
ORDER BY CASE c.constraint_type WHEN 'P' THEN 0 ELSE 1 END, i.index_name, ic.column_position`

const oracleForeignKeysQuery = `SELECT c.constraint_name, cc.column_name, r.owner AS ref_schema,
       c.owner AS table_schema, r.table_name AS ref_table, rc.column_name AS ref_column,
       c.delete_rule
FROM all_constraints c
JOIN all_cons_columns cc ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
JOIN all_constraints r ON r.owner = c.r_owner AND r.constraint_name = c.r_constraint_name
JOIN all_cons_columns rc
  ON rc.owner = r.owner AND rc.constraint_name = r.constraint_name AND rc.position = cc.position
WHERE c.constraint_type = 'R' AND c.owner = ` + oracleOwner + ` AND c.table_name = :2
ORDER BY c.constraint_name, cc.position`

const oracleTriggersQuery = `SELECT trigger_name, trigger_type, triggering_event, trigger_body
FROM all_triggers
WHERE table_owner = ` + oracleOwner + ` AND table_name = :2
ORDER BY trigger_name`

const oracleTableQuery = `SELECT comments AS table_comment
FROM all_tab_comments
WHERE owner = ` + oracleOwner + ` AND table_name = :2`

func (r *Oracle) Dialect() string { return "oracle" }

func (r *Oracle) ListColumns(ctx context.Context, table string) ([]schema.Field, error) {
	rows, err := r.conn.Query(ctx, oracleColumnsQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	fields := make([]schema.Field, 0, len(rows))
	for _, row := range rows {
		f := schema.Field{
			Name:          row.String("column_name"),
			Nullable:      row.Bool("nullable"),
			AutoIncrement: row.Bool("identity_column"),
			Comment:       row.String("column_comment"),
		}
		if !f.AutoIncrement {
			f.Default = normalizeDefault(row.NullString("data_default"))
		}
		raw := strings.ToLower(row.String("data_type"))
		if !strings.Contains(raw, "(") {
			if l := oracleLength(raw, row); l != "" {
				raw += "(" + l + ")"
			}
		}
		normalizeType(r.catalog, &f, raw)
		fields = append(fields, f)
	}
	return fields, nil
}

// oracleLength derives the declared length. NUMBER without precision is
// unconstrained and has none; a zero scale is left out.
func oracleLength(dataType string, row conn.Row) string {
	switch dataType {
	case "varchar2", "nvarchar2", "char", "nchar":
		if n := row.Int("char_length"); n > 0 {
			return strconv.FormatInt(n, 10)
		}
		return strconv.FormatInt(row.Int("data_length"), 10)
	case "raw":
		return strconv.FormatInt(row.Int("data_length"), 10)
	case "number":
		if row["data_precision"] == nil {
			return ""
		}
		p := strconv.FormatInt(row.Int("data_precision"), 10)
		if s := row.Int("data_scale"); s != 0 {
			return p + "," + strconv.FormatInt(s, 10)
		}
		return p
	case "float":
		if row["data_precision"] != nil {
			return strconv.FormatInt(row.Int("data_precision"), 10)
		}
	}
	return ""
}

// ListIndexes leaves out function-based indexes; descending Oracle index
// columns are backed by hidden SYS_NC columns and fall into that group.
func (r *Oracle) ListIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	rows, err := r.conn.Query(ctx, oracleIndexesQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	b := newIndexBuilder()
	functional := make(map[string]bool)
	for _, row := range rows {
		name := row.String("index_name")
		kind := schema.IndexPlain
		switch {
		case row.String("constraint_type") == "P":
			kind = schema.IndexPrimary
		case row.String("constraint_type") == "U", row.String("uniqueness") == "UNIQUE":
			kind = schema.IndexUnique
		}
		column := row.String("column_name")
		if strings.HasPrefix(column, "SYS_NC") {
			functional[name] = true
		}
		b.add(name, kind, schema.IndexColumn{Name: column, Desc: row.String("descend") == "DESC"})
	}
	var indexes []schema.Index
	for _, ix := range b.indexes() {
		if !functional[ix.Name] {
			indexes = append(indexes, ix)
		}
	}
	return indexes, nil
}

// ListForeignKeys reports no update rule: Oracle has no ON UPDATE.
func (r *Oracle) ListForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := r.conn.Query(ctx, oracleForeignKeysQuery, r.schema, table)
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
			"", referentialAction(row.String("delete_rule")))
	}
	return b.foreignKeys(), nil
}

func (r *Oracle) ListTriggers(ctx context.Context, table string) ([]schema.Trigger, error) {
	rows, err := r.conn.Query(ctx, oracleTriggersQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	triggers := make([]schema.Trigger, 0, len(rows))
	for _, row := range rows {
		// trigger_type reads "BEFORE EACH ROW", "AFTER STATEMENT", "INSTEAD OF".
		timing := strings.ToUpper(row.String("trigger_type"))
		switch {
		case strings.HasPrefix(timing, "INSTEAD OF"):
			timing = "INSTEAD OF"
		case strings.HasPrefix(timing, "BEFORE"):
			timing = "BEFORE"
		case strings.HasPrefix(timing, "AFTER"):
			timing = "AFTER"
		}
		triggers = append(triggers, schema.Trigger{
			Name:      row.String("trigger_name"),
			Timing:    timing,
			Event:     strings.ToUpper(strings.TrimSpace(row.String("triggering_event"))),
			Statement: row.String("trigger_body"),
		})
	}
	return triggers, nil
}

func (r *Oracle) Describe(ctx context.Context, table string) (*schema.Table, error) {
	t, err := describe(ctx, r, table)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, oracleTableQuery, r.schema, table)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		t.Comment = rows[0].String("table_comment")
	}
	return t, nil
}

func (r *Oracle) queries(table string) []boundQuery {
	args := []interface{}{r.schema, table}
	return []boundQuery{
		{"columns", oracleColumnsQuery, args},
		{"indexes", oracleIndexesQuery, args},
		{"foreign keys", oracleForeignKeysQuery, args},
		{"triggers", oracleTriggersQuery, args},
		{"table comment", oracleTableQuery, args},
	}
}
