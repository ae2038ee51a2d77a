package typemap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TypeSyntaxError is returned when a length expression cannot be parsed.
type TypeSyntaxError struct {
	Raw string
}

func (e *TypeSyntaxError) Error() string {
	return fmt.Sprintf("malformed length expression %q", e.Raw)
}

const literalPattern = `\d+|(?i:max)|'(?:''|[^'\\]|\\.)*'`

var (
	lengthPattern  = regexp.MustCompile(`^(` + literalPattern + `)(\s*,\s*(` + literalPattern + `))*$`)
	literalMatcher = regexp.MustCompile(literalPattern)
)

// Length is a parsed length expression: numeric precision and scale, or
// the quoted literals of an enum-like type.
type Length struct {
	Items []string
}

// ParseLength parses the raw length of a column definition. Accepted forms
// are "10", "10,2", "(10, 2)" and "'a','b'". An empty string is a valid,
// empty length.
func ParseLength(raw string) (Length, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Length{}, nil
	}

	open, close := strings.HasPrefix(s, "("), strings.HasSuffix(s, ")")
	if open != close {
		return Length{}, &TypeSyntaxError{Raw: raw}
	}
	if open {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if !lengthPattern.MatchString(s) {
		return Length{}, &TypeSyntaxError{Raw: raw}
	}

	items := literalMatcher.FindAllString(s, -1)
	l := Length{Items: make([]string, len(items))}
	for i, it := range items {
		if strings.EqualFold(it, "max") {
			it = "max"
		}
		l.Items[i] = it
	}

	// Mixing quoted literals with numbers is never a valid length.
	if l.IsEnumLike() {
		for _, it := range l.Items {
			if !strings.HasPrefix(it, "'") {
				return Length{}, &TypeSyntaxError{Raw: raw}
			}
		}
	} else {
		if len(l.Items) > 2 {
			return Length{}, &TypeSyntaxError{Raw: raw}
		}
		for _, it := range l.Items {
			if strings.HasPrefix(it, "'") {
				return Length{}, &TypeSyntaxError{Raw: raw}
			}
		}
	}
	return l, nil
}

// String renders the normal form: parenthesized, comma-joined, no spaces.
func (l Length) String() string {
	if len(l.Items) == 0 {
		return ""
	}
	return "(" + strings.Join(l.Items, ",") + ")"
}

// Empty reports whether no length was given.
func (l Length) Empty() bool {
	return len(l.Items) == 0
}

// IsEnumLike reports whether the length lists quoted literals.
func (l Length) IsEnumLike() bool {
	return len(l.Items) > 0 && strings.HasPrefix(l.Items[0], "'")
}

// Precision returns the first numeric item.
func (l Length) Precision() (int, bool) {
	return l.number(0)
}

// Scale returns the second numeric item.
func (l Length) Scale() (int, bool) {
	return l.number(1)
}

// Literals returns the unquoted values of an enum-like length.
func (l Length) Literals() []string {
	if !l.IsEnumLike() {
		return nil
	}
	out := make([]string, len(l.Items))
	for i, it := range l.Items {
		inner := it[1 : len(it)-1]
		inner = strings.ReplaceAll(inner, "''", "'")
		inner = strings.ReplaceAll(inner, `\'`, "'")
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		out[i] = inner
	}
	return out
}

func (l Length) number(i int) (int, bool) {
	if l.IsEnumLike() || len(l.Items) <= i {
		return 0, false
	}
	n, err := strconv.Atoi(l.Items[i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NormalizeLength parses raw and returns its normal form.
func NormalizeLength(raw string) (string, error) {
	l, err := ParseLength(raw)
	if err != nil {
		return "", err
	}
	return l.String(), nil
}
