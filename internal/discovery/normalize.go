package discovery

import (
	"regexp"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// splitType splits a catalog type spelling such as "int(10) unsigned",
// "enum('a','b')" or "timestamp(3) without time zone" into its base name,
// raw length and numeric modifiers.
func splitType(raw string) (base, length string, unsigned, zerofill bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if open := strings.IndexByte(s, '('); open >= 0 {
		if close := strings.LastIndexByte(s, ')'); close > open {
			length = strings.TrimSpace(raw[open+1 : close])
			s = s[:open] + s[close+1:]
		}
	}
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		switch w {
		case "unsigned":
			unsigned = true
		case "zerofill":
			zerofill = true
		default:
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " "), length, unsigned, zerofill
}

// normalizeType resolves a raw catalog type into the field's Type and
// Length in the catalog's normal form, so that a descriptor read back
// after an alteration compares equal to the one used to plan it.
func normalizeType(cat *typemap.Catalog, f *schema.Field, raw string) {
	base, length, unsigned, zerofill := splitType(raw)
	f.Unsigned = f.Unsigned || unsigned
	f.Zerofill = f.Zerofill || zerofill
	t, err := cat.ParseType(base, length)
	if err != nil {
		// Keep the spelling when the catalog cannot parse it.
		f.Type, f.Length = base, length
		return
	}
	f.Type = t.Base
	f.Length = strings.Join(t.Length.Items, ",")
}

var (
	castSuffix = regexp.MustCompile(`^(.*?)::[a-z][a-z0-9_ ]*(\[\])?$`)
	nextval    = regexp.MustCompile(`(?i)^nextval\(`)
)

// normalizeDefault turns a catalog default expression into the unquoted
// form field descriptors carry: string literals lose their quotes, SQL
// Server's wrapping parentheses and PostgreSQL casts are removed. A NULL
// default is reported as no default.
func normalizeDefault(raw *string) *string {
	if raw == nil {
		return nil
	}
	v := strings.TrimSpace(*raw)
	for {
		stripped := stripParens(v)
		if m := castSuffix.FindStringSubmatch(stripped); m != nil {
			stripped = strings.TrimSpace(m[1])
		}
		if stripped == v {
			break
		}
		v = stripped
	}
	if v == "" || strings.EqualFold(v, "NULL") {
		return nil
	}
	if len(v) >= 2 && v[0] == 'N' && v[1] == '\'' {
		v = v[1:]
	}
	if unquoted, ok := unquoteLiteral(v); ok {
		return &unquoted
	}
	return &v
}

// stripParens removes one pair of parentheses enclosing the whole value.
func stripParens(v string) string {
	if len(v) < 2 || v[0] != '(' || v[len(v)-1] != ')' {
		return v
	}
	depth := 0
	inQuote := false
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 && i != len(v)-1 {
				return v
			}
		}
	}
	return strings.TrimSpace(v[1 : len(v)-1])
}

// unquoteLiteral unquotes a single-quoted SQL string literal.
func unquoteLiteral(v string) (string, bool) {
	if len(v) < 2 || v[0] != '\'' || v[len(v)-1] != '\'' {
		return "", false
	}
	inner := v[1 : len(v)-1]
	if strings.Contains(strings.ReplaceAll(inner, "''", ""), "'") {
		return "", false
	}
	return strings.ReplaceAll(inner, "''", "'"), true
}

// isSequenceDefault reports whether a PostgreSQL default draws from a
// sequence, which is how serial columns appear in the catalog.
func isSequenceDefault(raw *string) bool {
	return raw != nil && nextval.MatchString(strings.TrimSpace(*raw))
}

// referentialAction normalizes a catalog action spelling such as
// "NO_ACTION" or "SET NULL". NO ACTION is the engines' implicit default
// and is reported as empty.
func referentialAction(raw string) string {
	a := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(raw, "_", " ")))
	switch a {
	case "", "NO ACTION":
		return ""
	}
	return a
}

// pgAction maps pg_constraint confupdtype / confdeltype codes.
func pgAction(code string) string {
	switch code {
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	default:
		return ""
	}
}
