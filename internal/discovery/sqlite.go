package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/schema"
)

// SQLite reads SQLite tables through the table-valued pragma functions and
// the CREATE statements kept in sqlite_master. Collations and constraint
// names are only available from the latter.
type SQLite struct {
	reader
}

var (
	_ InboundLister = (*SQLite)(nil)
	_ CheckLister   = (*SQLite)(nil)
)

const sqliteColumnsQuery = `SELECT cid, name, type, "notnull" AS not_null, dflt_value, pk
FROM pragma_table_info(?)
ORDER BY cid`

const sqliteTableSQLQuery = `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`

const sqliteIndexSQLQuery = `SELECT sql FROM sqlite_master WHERE type = 'index' AND name = ?`

const sqliteIndexListQuery = `SELECT name, "unique" AS is_unique, origin
FROM pragma_index_list(?)
ORDER BY name`

const sqliteIndexColumnsQuery = `SELECT name, "desc" AS is_desc
FROM pragma_index_xinfo(?)
WHERE key = 1
ORDER BY seqno`

const sqliteForeignKeysQuery = `SELECT id, seq, "table" AS ref_table, "from" AS column_name,
       "to" AS ref_column, on_update, on_delete
FROM pragma_foreign_key_list(?)
ORDER BY id, seq`

const sqliteTriggersQuery = `SELECT name, sql FROM sqlite_master
WHERE type = 'trigger' AND tbl_name = ?
ORDER BY name`

const sqliteInboundQuery = `SELECT m.name AS table_name, f.id AS id, f."from" AS column_name,
       f."to" AS ref_column
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) f
WHERE m.type = 'table' AND m.name <> ? AND f."table" = ? COLLATE NOCASE
ORDER BY m.name, f.id, f.seq`

const sqliteHasSequenceQuery = `SELECT COUNT(*) AS n FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'`

const sqliteSequenceQuery = `SELECT seq FROM sqlite_sequence WHERE name = ?`

var (
	sqliteCollate      = regexp.MustCompile(`(?i)\bCOLLATE\s+("[^"]+"|\w+)`)
	sqliteAutoinc      = regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`)
	sqliteNamedFK      = regexp.MustCompile(`(?is)^CONSTRAINT\s+(` + sqlName + `)\s+FOREIGN\s+KEY\s*\(([^)]*)\)`)
	sqliteInlineFK     = regexp.MustCompile(`(?is)\bCONSTRAINT\s+(` + sqlName + `)\s+REFERENCES\b`)
	sqliteTableKeyword = regexp.MustCompile(`(?i)^(CONSTRAINT|PRIMARY|UNIQUE|CHECK|FOREIGN)\b`)
	sqliteCheck        = regexp.MustCompile(`(?is)(?:\bCONSTRAINT\s+(` + sqlName + `)\s+)?\bCHECK\s*\(`)
	sqliteSortOrder    = regexp.MustCompile(`(?i)\s+(ASC|DESC)$`)
	sqliteWhere        = regexp.MustCompile(`(?is)^WHERE\s+(.+)$`)
)

func (r *SQLite) Dialect() string { return "sqlite" }

// columnDef is what the CREATE TABLE text adds to pragma_table_info.
type columnDef struct {
	collation string
	autoinc   bool
	fkName    string
}

// tableSQL returns the CREATE TABLE statement of the table, or "".
func (r *SQLite) tableSQL(ctx context.Context, table string) (string, error) {
	rows, err := r.conn.Query(ctx, sqliteTableSQLQuery, table)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].String("sql"), nil
}

func (r *SQLite) ListColumns(ctx context.Context, table string) ([]schema.Field, error) {
	rows, err := r.conn.Query(ctx, sqliteColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	createSQL, err := r.tableSQL(ctx, table)
	if err != nil {
		return nil, err
	}
	defs, _, _ := parseCreateTable(createSQL)

	pkCount := 0
	for _, row := range rows {
		if row.Int("pk") > 0 {
			pkCount++
		}
	}

	fields := make([]schema.Field, 0, len(rows))
	for _, row := range rows {
		name := row.String("name")
		pk := row.Int("pk") > 0
		f := schema.Field{
			Name:     name,
			Nullable: !row.Bool("not_null") && !pk,
			Default:  normalizeDefault(row.NullString("dflt_value")),
		}
		normalizeType(r.catalog, &f, row.String("type"))
		def := defs[strings.ToLower(name)]
		f.Collation = def.collation
		f.AutoIncrement = pk && pkCount == 1 && def.autoinc && f.Type == "integer"
		fields = append(fields, f)
	}
	return fields, nil
}

// ListIndexes reports the primary key from pragma_table_info, since a
// rowid table has no index for it. Key expressions and the predicate of
// a partial index come from the CREATE INDEX text; an index whose text
// cannot be matched to its key columns is an error rather than a partial
// description.
func (r *SQLite) ListIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	cols, err := r.conn.Query(ctx, sqliteColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	var pk []string
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Int("pk") < cols[j].Int("pk") })
	for _, row := range cols {
		if row.Int("pk") > 0 {
			pk = append(pk, row.String("name"))
		}
	}
	var indexes []schema.Index
	if len(pk) > 0 {
		indexes = append(indexes, schema.Index{Kind: schema.IndexPrimary, Columns: schema.Columns(pk...)})
	}

	list, err := r.conn.Query(ctx, sqliteIndexListQuery, table)
	if err != nil {
		return nil, err
	}
	for _, row := range list {
		origin := row.String("origin")
		if origin == "pk" {
			continue
		}
		name := row.String("name")
		ixCols, err := r.conn.Query(ctx, sqliteIndexColumnsQuery, name)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", name, err)
		}
		ix := schema.Index{Name: name, Kind: schema.IndexPlain}
		if row.Bool("is_unique") {
			ix.Kind = schema.IndexUnique
		}
		// Automatic indexes back inline UNIQUE constraints; their names
		// are reserved and cannot be reused.
		if origin == "u" {
			ix.Name = ""
		}
		for _, c := range ixCols {
			ix.Columns = append(ix.Columns, schema.IndexColumn{Name: c.String("name"), Desc: c.Bool("is_desc")})
		}
		if origin == "c" {
			if err := r.indexDefinition(ctx, name, &ix, ixCols); err != nil {
				return nil, err
			}
		}
		indexes = append(indexes, ix)
	}
	return indexes, nil
}

// indexDefinition fills key expressions and the WHERE predicate of an
// index created by CREATE INDEX.
func (r *SQLite) indexDefinition(ctx context.Context, name string, ix *schema.Index, ixCols []conn.Row) error {
	rows, err := r.conn.Query(ctx, sqliteIndexSQLQuery, name)
	if err != nil {
		return fmt.Errorf("index %s: %w", name, err)
	}
	if len(rows) == 0 || rows[0]["sql"] == nil {
		return nil
	}
	parts, where, ok := parseIndexSQL(rows[0].String("sql"))
	if !ok || len(parts) != len(ixCols) {
		return fmt.Errorf("index %s: cannot match its definition to %d key columns", name, len(ixCols))
	}
	ix.Where = where
	for i, c := range ixCols {
		if c["name"] == nil {
			ix.Columns[i].Name = ""
			ix.Columns[i].Expression = sqliteSortOrder.ReplaceAllString(strings.TrimSpace(parts[i]), "")
		}
	}
	return nil
}

// ListChecks returns the CHECK constraints of the CREATE TABLE text, both
// table constraints and those written on a column.
func (r *SQLite) ListChecks(ctx context.Context, table string) ([]schema.Check, error) {
	createSQL, err := r.tableSQL(ctx, table)
	if err != nil {
		return nil, err
	}
	_, _, checks := parseCreateTable(createSQL)
	return checks, nil
}

func (r *SQLite) ListForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := r.conn.Query(ctx, sqliteForeignKeysQuery, table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	createSQL, err := r.tableSQL(ctx, table)
	if err != nil {
		return nil, err
	}
	defs, named, _ := parseCreateTable(createSQL)

	var order []int64
	groups := make(map[int64]*schema.ForeignKey)
	for _, row := range rows {
		id := row.Int("id")
		fk, ok := groups[id]
		if !ok {
			fk = &schema.ForeignKey{
				RefTable: row.String("ref_table"),
				OnUpdate: referentialAction(row.String("on_update")),
				OnDelete: referentialAction(row.String("on_delete")),
			}
			groups[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, row.String("column_name"))
		fk.RefColumns = append(fk.RefColumns, row.String("ref_column"))
	}

	fks := make([]schema.ForeignKey, 0, len(order))
	for _, id := range order {
		fk := *groups[id]
		if err := r.resolveImplicitRefs(ctx, &fk); err != nil {
			return nil, err
		}
		key := strings.ToLower(strings.Join(fk.Columns, ","))
		fk.Name = named[key]
		if fk.Name == "" && len(fk.Columns) == 1 {
			fk.Name = defs[key].fkName
		}
		if fk.Name == "" {
			fk.Name = "fk_" + table + "_" + strings.Join(fk.Columns, "_")
		}
		fks = append(fks, fk)
	}
	return fks, nil
}

// resolveImplicitRefs fills the referenced columns of "REFERENCES t"
// clauses that name no columns, which point at the primary key of t.
func (r *SQLite) resolveImplicitRefs(ctx context.Context, fk *schema.ForeignKey) error {
	for _, c := range fk.RefColumns {
		if c != "" {
			return nil
		}
	}
	rows, err := r.conn.Query(ctx, sqliteColumnsQuery, fk.RefTable)
	if err != nil {
		return fmt.Errorf("resolving primary key of %s: %w", fk.RefTable, err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Int("pk") < rows[j].Int("pk") })
	var pk []string
	for _, row := range rows {
		if row.Int("pk") > 0 {
			pk = append(pk, row.String("name"))
		}
	}
	if len(pk) == len(fk.Columns) {
		fk.RefColumns = pk
	}
	return nil
}

// ListTriggers returns each trigger with its CREATE TRIGGER statement.
func (r *SQLite) ListTriggers(ctx context.Context, table string) ([]schema.Trigger, error) {
	rows, err := r.conn.Query(ctx, sqliteTriggersQuery, table)
	if err != nil {
		return nil, err
	}
	triggers := make([]schema.Trigger, 0, len(rows))
	for _, row := range rows {
		def := row.String("sql")
		timing, event := parseTrigger(def)
		triggers = append(triggers, schema.Trigger{
			Name:      row.String("name"),
			Timing:    timing,
			Event:     event,
			Statement: def,
		})
	}
	return triggers, nil
}

// InboundForeignKeys lists foreign keys of other tables referencing table.
func (r *SQLite) InboundForeignKeys(ctx context.Context, table string) ([]InboundReference, error) {
	rows, err := r.conn.Query(ctx, sqliteInboundQuery, table, table)
	if err != nil {
		return nil, err
	}
	var refs []InboundReference
	lastTable, lastID := "", int64(-1)
	for _, row := range rows {
		t, id := row.String("table_name"), row.Int("id")
		if t != lastTable || id != lastID {
			refs = append(refs, InboundReference{Table: t})
			lastTable, lastID = t, id
		}
		ref := &refs[len(refs)-1]
		ref.Columns = append(ref.Columns, row.String("column_name"))
		ref.RefColumns = append(ref.RefColumns, row.String("ref_column"))
	}
	return refs, nil
}

// SequenceValue returns the last value handed out by the table's
// AUTOINCREMENT counter and whether the counter exists.
func (r *SQLite) SequenceValue(ctx context.Context, table string) (int64, bool, error) {
	rows, err := r.conn.Query(ctx, sqliteHasSequenceQuery)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 || rows[0].Int("n") == 0 {
		return 0, false, nil
	}
	rows, err = r.conn.Query(ctx, sqliteSequenceQuery, table)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Int("seq"), true, nil
}

// Describe reads the table; AutoIncrement holds the next counter value.
func (r *SQLite) Describe(ctx context.Context, table string) (*schema.Table, error) {
	t, err := describe(ctx, r, table)
	if err != nil {
		return nil, err
	}
	seq, ok, err := r.SequenceValue(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("reading sequence: %w", err)
	}
	if ok {
		t.AutoIncrement = schema.Ptr(seq + 1)
	}
	return t, nil
}

func (r *SQLite) queries(table string) []boundQuery {
	args := []interface{}{table}
	return []boundQuery{
		{"columns", sqliteColumnsQuery, args},
		{"definition", sqliteTableSQLQuery, args},
		{"indexes", sqliteIndexListQuery, args},
		{"foreign keys", sqliteForeignKeysQuery, args},
		{"triggers", sqliteTriggersQuery, args},
		{"sequence", sqliteSequenceQuery, args},
	}
}

// parseCreateTable splits a CREATE TABLE statement into its definitions.
// It returns per-column details keyed by lower-cased column name, the
// names of table-level foreign keys keyed by their lower-cased column
// list, and the CHECK constraints in order of appearance.
func parseCreateTable(sql string) (map[string]columnDef, map[string]string, []schema.Check) {
	defs := make(map[string]columnDef)
	named := make(map[string]string)
	var checks []schema.Check
	open := strings.IndexByte(sql, '(')
	close := strings.LastIndexByte(sql, ')')
	if open < 0 || close <= open {
		return defs, named, checks
	}
	for _, part := range splitTopLevel(sql[open+1 : close]) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if sqliteTableKeyword.MatchString(part) {
			if m := sqliteNamedFK.FindStringSubmatch(part); m != nil {
				var cols []string
				for _, c := range strings.Split(m[2], ",") {
					cols = append(cols, strings.ToLower(unquoteName(strings.TrimSpace(c))))
				}
				named[strings.Join(cols, ",")] = unquoteName(m[1])
			}
			checks = append(checks, checkClauses(part)...)
			continue
		}
		name, rest := splitName(part)
		def := columnDef{autoinc: sqliteAutoinc.MatchString(rest)}
		if m := sqliteCollate.FindStringSubmatch(rest); m != nil {
			def.collation = unquoteName(m[1])
		}
		if m := sqliteInlineFK.FindStringSubmatch(rest); m != nil {
			def.fkName = unquoteName(m[1])
		}
		defs[strings.ToLower(name)] = def
		checks = append(checks, checkClauses(rest)...)
	}
	return defs, named, checks
}

// checkClauses extracts the [CONSTRAINT name] CHECK (expr) clauses of one
// definition.
func checkClauses(def string) []schema.Check {
	var out []schema.Check
	for _, loc := range sqliteCheck.FindAllStringSubmatchIndex(def, -1) {
		open := loc[1] - 1
		end := matchParen(def, open)
		if end < 0 {
			break
		}
		ck := schema.Check{Expression: strings.TrimSpace(def[open+1 : end])}
		if loc[2] >= 0 {
			ck.Name = unquoteName(def[loc[2]:loc[3]])
		}
		out = append(out, ck)
	}
	return out
}

// matchParen returns the index of the parenthesis closing the one at
// open, skipping quoted text, or -1.
func matchParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote || (quote == '[' && c == ']') {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`' || c == '[':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseIndexSQL splits a CREATE INDEX statement into its key parts and
// the text after WHERE.
func parseIndexSQL(sql string) (parts []string, where string, ok bool) {
	open := -1
	var quote byte
	for i := 0; i < len(sql) && open < 0; i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote || (quote == '[' && c == ']') {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`' || c == '[':
			quote = c
		case c == '(':
			open = i
		}
	}
	if open < 0 {
		return nil, "", false
	}
	end := matchParen(sql, open)
	if end < 0 {
		return nil, "", false
	}
	parts = splitTopLevel(sql[open+1 : end])
	rest := strings.TrimSpace(sql[end+1:])
	if rest != "" {
		m := sqliteWhere.FindStringSubmatch(rest)
		if m == nil {
			return nil, "", false
		}
		where = strings.TrimSpace(m[1])
	}
	return parts, where, true
}

// splitTopLevel splits on commas outside parentheses and quotes.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote || (quote == '[' && c == ']') {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`' || c == '[':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// splitName splits the leading, possibly quoted, identifier off a definition.
func splitName(def string) (name, rest string) {
	if def == "" {
		return "", ""
	}
	var end int
	switch def[0] {
	case '"', '`':
		end = strings.IndexByte(def[1:], def[0]) + 2
	case '[':
		end = strings.IndexByte(def, ']') + 1
	default:
		end = strings.IndexFunc(def, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' })
	}
	if end <= 0 || end > len(def) {
		return unquoteName(def), ""
	}
	return unquoteName(def[:end]), def[end:]
}

func unquoteName(s string) string {
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"':
			return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
		case s[0] == '`' && s[len(s)-1] == '`':
			return s[1 : len(s)-1]
		case s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return s
}
