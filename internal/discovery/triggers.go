package discovery

import (
	"fmt"
	"regexp"
	"strings"
)

const sqlName = "(?:\"[^\"]*\"|`[^`]*`|\\[[^\\]]*\\]|[^\\s(]+)"

// triggerHeader matches CREATE TRIGGER definitions as SQLite and
// pg_get_triggerdef report them. Groups: timing, event, event suffix
// (UPDATE OF ..., OR ...), start and end of the target table name.
var triggerHeader = regexp.MustCompile(`(?is)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?(?:CONSTRAINT\s+)?(?:TEMP(?:ORARY)?\s+)?TRIGGER\s+(?:IF\s+NOT\s+EXISTS\s+)?` +
	sqlName + `\s+(?:(BEFORE|AFTER|INSTEAD\s+OF)\s+)?(INSERT|UPDATE|DELETE|TRUNCATE)\b(.*?)\s+ON\s+(` + sqlName + `)`)

// RetargetTrigger rewrites a CREATE TRIGGER definition so that it is bound
// to table. quote renders the table identifier.
func RetargetTrigger(definition, table string, quote func(string) string) (string, error) {
	loc := triggerHeader.FindStringSubmatchIndex(definition)
	if loc == nil {
		return "", fmt.Errorf("unrecognized trigger definition: %.60s", strings.TrimSpace(definition))
	}
	start, end := loc[8], loc[9]
	return definition[:start] + quote(table) + definition[end:], nil
}

// parseTrigger extracts timing and event from a definition. SQLite
// defaults an omitted timing to BEFORE.
func parseTrigger(definition string) (timing, event string) {
	m := triggerHeader.FindStringSubmatch(definition)
	if m == nil {
		return "", ""
	}
	timing = strings.ToUpper(strings.Join(strings.Fields(m[1]), " "))
	if timing == "" {
		timing = "BEFORE"
	}
	event = strings.ToUpper(m[2])
	if suffix := strings.TrimSpace(m[3]); suffix != "" {
		event += " " + strings.Join(strings.Fields(suffix), " ")
	}
	return timing, event
}
