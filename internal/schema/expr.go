package schema

import (
	"strings"
	"unicode"
)

// exprToken is an identifier found in an SQL expression: its byte span
// in the source and its unquoted name.
type exprToken struct {
	start, end int
	name       string
}

// exprIdentifiers scans an SQL expression for identifiers that may name
// columns. String literals and numbers are skipped, as are words followed
// by "(" (function calls) or "." (qualifiers), and the name after COLLATE.
func exprIdentifiers(expr string) []exprToken {
	var out []exprToken
	afterCollate := false
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == '\'':
			i = skipQuoted(expr, i, '\'')
		case c == '"' || c == '`' || c == '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			end := skipQuoted(expr, i, closer)
			tok := exprToken{start: i, end: end, name: unquoteIdent(expr[i:end])}
			if !afterCollate && !followedBy(expr, end, '(') && !followedBy(expr, end, '.') {
				out = append(out, tok)
			}
			afterCollate = false
			i = end
		case isIdentStart(c):
			end := i + 1
			for end < len(expr) && isIdentPart(expr[end]) {
				end++
			}
			word := expr[i:end]
			switch {
			case strings.EqualFold(word, "COLLATE"):
				afterCollate = true
				i = end
				continue
			case afterCollate, followedBy(expr, end, '('), followedBy(expr, end, '.'):
			default:
				out = append(out, exprToken{start: i, end: end, name: word})
			}
			afterCollate = false
			i = end
		case c >= '0' && c <= '9':
			for i < len(expr) && (isIdentPart(expr[i]) || expr[i] == '.') {
				i++
			}
		default:
			i++
		}
	}
	return out
}

// skipQuoted returns the index just past the quoted run opening at i. A
// doubled closer inside the run is an escaped one.
func skipQuoted(s string, i int, closer byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != closer {
			continue
		}
		if closer != ']' && j+1 < len(s) && s[j+1] == closer {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

func followedBy(s string, i int, c byte) bool {
	for i < len(s) && unicode.IsSpace(rune(s[i])) {
		i++
	}
	return i < len(s) && s[i] == c
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}

func unquoteIdent(s string) string {
	if len(s) < 2 {
		return s
	}
	switch s[0] {
	case '"':
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	case '`':
		return strings.ReplaceAll(s[1:len(s)-1], "``", "`")
	case '[':
		return s[1 : len(s)-1]
	}
	return s
}

// ExprReferences returns which of columns an expression refers to, in
// order of first appearance. Matching ignores case.
func ExprReferences(expr string, columns []string) []string {
	byLower := make(map[string]string, len(columns))
	for _, c := range columns {
		byLower[strings.ToLower(c)] = c
	}
	seen := make(map[string]bool)
	var out []string
	for _, tok := range exprIdentifiers(expr) {
		c, ok := byLower[strings.ToLower(tok.name)]
		if ok && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// RenameInExpr rewrites references to renamed columns. renames maps old
// to new names; quote renders a new name as an identifier.
func RenameInExpr(expr string, renames map[string]string, quote func(string) string) string {
	if len(renames) == 0 {
		return expr
	}
	byLower := make(map[string]string, len(renames))
	for from, to := range renames {
		byLower[strings.ToLower(from)] = to
	}
	var b strings.Builder
	last := 0
	for _, tok := range exprIdentifiers(expr) {
		to, ok := byLower[strings.ToLower(tok.name)]
		if !ok {
			continue
		}
		b.WriteString(expr[last:tok.start])
		b.WriteString(quote(to))
		last = tok.end
	}
	b.WriteString(expr[last:])
	return b.String()
}

// NormalizeExpr returns a comparison form of an expression: whitespace
// outside string literals removed and everything but literals lowered.
func NormalizeExpr(expr string) string {
	var b strings.Builder
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == '\'':
			end := skipQuoted(expr, i, '\'')
			b.WriteString(expr[i:end])
			i = end
		case unicode.IsSpace(rune(c)):
			i++
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + 'a' - 'A')
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
