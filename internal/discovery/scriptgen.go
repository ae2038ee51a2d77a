package discovery

import (
	"fmt"
	"regexp"
	"strings"
)

// boundQuery is one catalog query with its arguments.
type boundQuery struct {
	Label string
	SQL   string
	Args  []interface{}
}

// queryLister is implemented by every dialect reader.
type queryLister interface {
	queries(table string) []boundQuery
}

// ScriptGenerator renders the catalog queries a Reader runs for a table
// as a standalone SQL script, for hosts the tool cannot reach directly.
type ScriptGenerator struct {
	Reader Reader
	Table  string
}

var placeholder = regexp.MustCompile(`\$\d+|@p\d+|:\d+|\?`)

// GenerateScript returns the script with every argument inlined.
func (sg *ScriptGenerator) GenerateScript() (string, error) {
	ql, ok := sg.Reader.(queryLister)
	if !ok {
		return "", fmt.Errorf("reader %T cannot render a discovery script", sg.Reader)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "-- tablewright catalog queries (%s): %s\n", sg.Reader.Dialect(), sg.Table)
	for _, q := range ql.queries(sg.Table) {
		fmt.Fprintf(&b, "\n-- %s\n%s;\n", q.Label, bind(q.SQL, q.Args))
	}
	return b.String(), nil
}

// bind substitutes placeholders with string literals. Numbered
// placeholders pick their argument; "?" consumes arguments in order.
func bind(query string, args []interface{}) string {
	next := 0
	return placeholder.ReplaceAllStringFunc(query, func(p string) string {
		i := next
		switch {
		case p == "?":
			next++
		case strings.HasPrefix(p, "$"), strings.HasPrefix(p, ":"):
			fmt.Sscanf(p[1:], "%d", &i)
			i--
		case strings.HasPrefix(p, "@p"):
			fmt.Sscanf(p[2:], "%d", &i)
			i--
		}
		if i < 0 || i >= len(args) {
			return p
		}
		return "'" + strings.ReplaceAll(fmt.Sprint(args[i]), "'", "''") + "'"
	})
}
