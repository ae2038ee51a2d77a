package diff

import (
	"strings"

	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// Changed reports whether desired differs from current in anything but
// its name: canonical type, nullability, default, auto-increment,
// on-update, and comment and collation where the dialect stores them. An
// empty desired collation means the table default and matches anything.
func Changed(current, desired schema.Field, caps dialect.Capabilities, cat *typemap.Catalog) (bool, error) {
	a, err := cat.Signature(current)
	if err != nil {
		return false, err
	}
	b, err := cat.Signature(desired)
	if err != nil {
		return false, err
	}
	switch {
	case a != b:
		return true, nil
	case current.Nullable != desired.Nullable:
		return true, nil
	case current.AutoIncrement != desired.AutoIncrement:
		return true, nil
	case !SameDefault(current.Default, desired.Default):
		return true, nil
	case !sameKeyword(current.OnUpdate, desired.OnUpdate):
		return true, nil
	case caps.ColumnComments && current.Comment != desired.Comment:
		return true, nil
	case caps.ColumnCollation && desired.Collation != "" && !strings.EqualFold(current.Collation, desired.Collation):
		return true, nil
	}
	return false, nil
}

// SameDefault compares two defaults. No default and DEFAULT NULL are the
// same; keywords and function calls compare case-insensitively with an
// empty argument list ignored, so CURRENT_TIMESTAMP equals
// current_timestamp(). Literals compare exactly.
func SameDefault(a, b *string) bool {
	if a != nil && strings.EqualFold(strings.TrimSpace(*a), "NULL") {
		a = nil
	}
	if b != nil && strings.EqualFold(strings.TrimSpace(*b), "NULL") {
		b = nil
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	x, y := strings.TrimSpace(*a), strings.TrimSpace(*b)
	if x == y {
		return true
	}
	if isKeyword(x) && isKeyword(y) {
		return sameKeyword(x, y)
	}
	return false
}

func sameKeyword(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(strings.TrimSpace(a), "()"), strings.TrimSuffix(strings.TrimSpace(b), "()"))
}

// isKeyword reports whether v looks like CURRENT_TIMESTAMP or now(): an
// identifier that is either upper case or followed by an empty argument
// list. Bare lower-case words are literals.
func isKeyword(v string) bool {
	call := strings.HasSuffix(v, "()")
	v = strings.TrimSuffix(v, "()")
	if v == "" {
		return false
	}
	for i, r := range v {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return call || v == strings.ToUpper(v)
}
