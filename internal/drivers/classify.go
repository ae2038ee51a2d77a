package drivers

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sijms/go-ora/v2/network"
)

// ErrorKind classifies why the engine rejected a statement.
type ErrorKind string

const (
	// SyntaxRejected means the engine refused the statement itself:
	// a parse error, an unknown object, a duplicate name.
	SyntaxRejected ErrorKind = "syntax_rejected"
	// ConstraintViolation means existing data broke a constraint the
	// statement tried to establish or rely on.
	ConstraintViolation ErrorKind = "constraint_violation"
	Unknown             ErrorKind = "unknown"
)

// Classify maps a native driver error to an ErrorKind. The native error
// is never altered.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPostgres(pgErr.Code)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return classifyMySQL(myErr.Number)
	}

	if kind, ok := classifySQLite(err); ok {
		return kind
	}

	var msErr interface{ SQLErrorNumber() int32 }
	if errors.As(err, &msErr) {
		return classifyMSSQL(msErr.SQLErrorNumber())
	}

	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return classifyOracle(oraErr.ErrCode)
	}

	return classifyMessage(err.Error())
}

// classifyPostgres uses SQLSTATE classes: 23 integrity, 42 syntax or
// access rule violation.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
func classifyPostgres(code string) ErrorKind {
	switch {
	case strings.HasPrefix(code, "23"):
		return ConstraintViolation
	case strings.HasPrefix(code, "42"):
		return SyntaxRejected
	default:
		return Unknown
	}
}

// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
func classifyMySQL(number uint16) ErrorKind {
	switch number {
	case 1062, // ER_DUP_ENTRY
		1451, 1452, // ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
		1048, 1364, // ER_BAD_NULL_ERROR, ER_NO_DEFAULT_FOR_FIELD
		1138,       // ER_INVALID_USE_OF_NULL
		1265, 1366, // ER_WARN_DATA_TRUNCATED, ER_TRUNCATED_WRONG_VALUE_FOR_FIELD
		1406,       // ER_DATA_TOO_LONG
		1264, 1690, // ER_WARN_DATA_OUT_OF_RANGE, ER_DATA_OUT_OF_RANGE
		3819: // ER_CHECK_CONSTRAINT_VIOLATED
		return ConstraintViolation
	case 1064, // ER_PARSE_ERROR
		1054, // ER_BAD_FIELD_ERROR
		1146, // ER_NO_SUCH_TABLE
		1060, // ER_DUP_FIELDNAME
		1061, // ER_DUP_KEYNAME
		1050, // ER_TABLE_EXISTS_ERROR
		1091, // ER_CANT_DROP_FIELD_OR_KEY
		1067, // ER_INVALID_DEFAULT
		1075, // ER_WRONG_AUTO_KEY
		1170: // ER_BLOB_KEY_WITHOUT_LENGTH
		return SyntaxRejected
	default:
		return Unknown
	}
}

// See: https://learn.microsoft.com/sql/relational-databases/errors-events/database-engine-events-and-errors
func classifyMSSQL(number int32) ErrorKind {
	switch number {
	case 2627, 2601, // unique / duplicate key
		547,  // constraint conflict (foreign key, check)
		515,  // cannot insert NULL
		1505, // CREATE UNIQUE INDEX found duplicates
		8152, 2628: // string or binary data would be truncated
		return ConstraintViolation
	case 102, 156, 170, // incorrect syntax
		207,  // invalid column name
		208,  // invalid object name
		2705, // column names must be unique
		4902, // cannot find the object
		4922, // ALTER COLUMN failed because objects depend on it
		5074, // object is dependent on column
		15248: // sp_rename: parameter is incorrect
		return SyntaxRejected
	default:
		return Unknown
	}
}

// See: https://docs.oracle.com/en/database/oracle/oracle-database/19/errmg/
func classifyOracle(code int) ErrorKind {
	switch code {
	case 1, // ORA-00001 unique constraint violated
		1400, 1407, // cannot insert / update to NULL
		2290, 2293, // check constraint violated / cannot validate
		2291, 2292, // integrity constraint violated
		2296,       // cannot enable: null values found
		2298, 2299, // cannot validate: parent keys not found / duplicate keys
		1758,       // table must be empty to add mandatory column
		1439, 1440, // column to be modified must be empty
		12899: // value too large for column
		return ConstraintViolation
	case 955, // name already used by an existing object
		1430,       // column being added already exists
		1442, 1451, // column already NOT NULL / NULL
		2260, // table can have only one primary key
		2443: // cannot drop constraint: nonexistent
		return SyntaxRejected
	}
	if code >= 900 && code < 1000 { // ORA-009xx: invalid SQL, identifiers, tables
		return SyntaxRejected
	}
	return Unknown
}

// classifyMessage is the fallback for drivers whose errors carry no code.
func classifyMessage(msg string) ErrorKind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "syntax error"), strings.Contains(m, "no such table"),
		strings.Contains(m, "no such column"), strings.Contains(m, "duplicate column"),
		strings.Contains(m, "already exists"):
		return SyntaxRejected
	case strings.Contains(m, "constraint"), strings.Contains(m, "duplicate"),
		strings.Contains(m, "not null"), strings.Contains(m, "foreign key"):
		return ConstraintViolation
	default:
		return Unknown
	}
}
