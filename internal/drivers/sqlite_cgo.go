//go:build cgo_sqlite

package drivers

import (
	"errors"
	"net/url"
	"sort"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// sqliteDriver is mattn/go-sqlite3, used when built with -tags cgo_sqlite.
// Requires CGO_ENABLED=1.
const sqliteDriver = "sqlite3"

// sqliteDSN renders connection options as underscore-prefixed DSN
// parameters, e.g. foreign_keys: "1" becomes _foreign_keys=1.
func sqliteDSN(path string, opts map[string]string) string {
	if len(opts) == 0 {
		return path
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := url.Values{}
	for _, k := range keys {
		q.Set("_"+k, opts[k])
	}
	return "file:" + path + "?" + q.Encode()
}

// See: https://www.sqlite.org/rescode.html
func classifySQLite(err error) (ErrorKind, bool) {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint, sqlite3.ErrMismatch:
		return ConstraintViolation, true
	case sqlite3.ErrError:
		if strings.Contains(strings.ToLower(sqliteErr.Error()), "constraint") {
			return ConstraintViolation, true
		}
		return SyntaxRejected, true
	default:
		return Unknown, true
	}
}
