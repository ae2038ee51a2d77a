//go:build !cgo_sqlite

package drivers

import (
	"errors"
	"net/url"
	"sort"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteDriver is the pure Go modernc.org/sqlite driver. Build with
// -tags cgo_sqlite to use mattn/go-sqlite3 instead.
const sqliteDriver = "sqlite"

// sqliteDSN renders connection options as _pragma parameters, e.g.
// foreign_keys: "1" becomes _pragma=foreign_keys(1).
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
		q.Add("_pragma", k+"("+opts[k]+")")
	}
	return "file:" + path + "?" + q.Encode()
}

func classifySQLite(err error) (ErrorKind, bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_MISMATCH:
		return ConstraintViolation, true
	case sqlite3.SQLITE_ERROR:
		if strings.Contains(strings.ToLower(sqliteErr.Error()), "constraint") {
			return ConstraintViolation, true
		}
		return SyntaxRejected, true
	default:
		return Unknown, true
	}
}
