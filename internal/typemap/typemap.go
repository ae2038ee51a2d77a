package typemap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
)

// Family groups column types that share rendering rules.
type Family string

const (
	FamilyNumeric Family = "numeric"
	FamilyString  Family = "string"
	FamilyDate    Family = "date"
	FamilyBinary  Family = "binary"
	FamilyEnum    Family = "enum"
	FamilyOther   Family = "other"
)

// TypeInfo describes one base type of a dialect. MaxLength is zero when
// the engine imposes no useful limit.
type TypeInfo struct {
	Family    Family
	MaxLength int
}

// Catalog is the type vocabulary of one dialect.
type Catalog struct {
	Dialect  string
	Unsigned bool // UNSIGNED / ZEROFILL are accepted on numeric types

	types   map[string]TypeInfo
	aliases map[string]string
}

// Type is a base type with its parsed length.
type Type struct {
	Base   string
	Length Length
	Info   TypeInfo
}

// String renders the type in normal form.
func (t Type) String() string {
	return t.Base + t.Length.String()
}

// ForDialect returns the catalog for a dialect name. Unknown names get a
// catalog that classifies types by name only.
func ForDialect(dialect string) *Catalog {
	switch dialect {
	case "mysql":
		return DefaultMySQL()
	case "postgresql":
		return DefaultPostgres()
	case "sqlite":
		return DefaultSQLite()
	case "mssql":
		return DefaultMSSQL()
	case "oracle":
		return DefaultOracle()
	default:
		return &Catalog{Dialect: dialect, types: map[string]TypeInfo{}, aliases: map[string]string{}}
	}
}

// DefaultMySQL returns the MySQL / MariaDB catalog.
func DefaultMySQL() *Catalog {
	return &Catalog{
		Dialect:  "mysql",
		Unsigned: true,
		types: map[string]TypeInfo{
			"tinyint": {FamilyNumeric, 3}, "smallint": {FamilyNumeric, 5}, "mediumint": {FamilyNumeric, 8},
			"int": {FamilyNumeric, 10}, "bigint": {FamilyNumeric, 20}, "decimal": {FamilyNumeric, 66},
			"float": {FamilyNumeric, 12}, "double": {FamilyNumeric, 21},
			"date": {FamilyDate, 10}, "datetime": {FamilyDate, 19}, "timestamp": {FamilyDate, 19},
			"time": {FamilyDate, 10}, "year": {FamilyDate, 4},
			"char": {FamilyString, 255}, "varchar": {FamilyString, 65535}, "tinytext": {FamilyString, 255},
			"text": {FamilyString, 65535}, "mediumtext": {FamilyString, 16777215}, "longtext": {FamilyString, 0},
			"enum": {FamilyEnum, 65535}, "set": {FamilyEnum, 64},
			"bit": {FamilyBinary, 20}, "binary": {FamilyBinary, 255}, "varbinary": {FamilyBinary, 65535},
			"tinyblob": {FamilyBinary, 255}, "blob": {FamilyBinary, 65535}, "mediumblob": {FamilyBinary, 16777215},
			"longblob": {FamilyBinary, 0},
			"json": {FamilyOther, 0}, "geometry": {FamilyOther, 0}, "point": {FamilyOther, 0},
			"linestring": {FamilyOther, 0}, "polygon": {FamilyOther, 0},
		},
		aliases: map[string]string{
			"clob":              "longtext",
			"boolean":           "tinyint(1)",
			"bool":              "tinyint(1)",
			"integer":           "int",
			"numeric":           "decimal",
			"double precision":  "double",
			"character varying": "varchar",
		},
	}
}

// DefaultPostgres returns the PostgreSQL catalog.
func DefaultPostgres() *Catalog {
	return &Catalog{
		Dialect: "postgresql",
		types: map[string]TypeInfo{
			"smallint": {FamilyNumeric, 5}, "integer": {FamilyNumeric, 10}, "bigint": {FamilyNumeric, 19},
			"boolean": {FamilyNumeric, 1}, "numeric": {FamilyNumeric, 0}, "real": {FamilyNumeric, 7},
			"double precision": {FamilyNumeric, 16}, "money": {FamilyNumeric, 20},
			"smallserial": {FamilyNumeric, 5}, "serial": {FamilyNumeric, 10}, "bigserial": {FamilyNumeric, 19},
			"date": {FamilyDate, 13}, "time": {FamilyDate, 17}, "timestamp": {FamilyDate, 20},
			"timestamp with time zone": {FamilyDate, 21}, "time with time zone": {FamilyDate, 21},
			"interval": {FamilyDate, 0},
			"character": {FamilyString, 0}, "character varying": {FamilyString, 0}, "text": {FamilyString, 0},
			"tsquery": {FamilyString, 0}, "tsvector": {FamilyString, 0}, "uuid": {FamilyString, 0},
			"xml": {FamilyString, 0}, "bytea": {FamilyBinary, 0}, "bit": {FamilyBinary, 0},
			"bit varying": {FamilyBinary, 0},
			"json": {FamilyOther, 0}, "jsonb": {FamilyOther, 0}, "inet": {FamilyOther, 0},
			"cidr": {FamilyOther, 0}, "macaddr": {FamilyOther, 0},
		},
		aliases: map[string]string{
			"clob":                        "text",
			"blob":                        "bytea",
			"varbinary":                   "bytea",
			"float":                       "real",
			"double":                      "double precision",
			"int":                         "integer",
			"int2":                        "smallint",
			"int4":                        "integer",
			"int8":                        "bigint",
			"bool":                        "boolean",
			"varchar":                     "character varying",
			"char":                        "character",
			"bpchar":                      "character",
			"decimal":                     "numeric",
			"datetime":                    "timestamp",
			"timestamp without time zone": "timestamp",
			"timestamptz":                 "timestamp with time zone",
			"time without time zone":      "time",
		},
	}
}

// DefaultSQLite returns the SQLite catalog. SQLite keeps declared type
// names verbatim, so only the portable LOB name is aliased.
func DefaultSQLite() *Catalog {
	return &Catalog{
		Dialect: "sqlite",
		types: map[string]TypeInfo{
			"integer": {FamilyNumeric, 0}, "real": {FamilyNumeric, 0}, "numeric": {FamilyNumeric, 0},
			"text": {FamilyString, 0}, "blob": {FamilyBinary, 0},
		},
		aliases: map[string]string{
			"clob": "text",
		},
	}
}

// DefaultMSSQL returns the SQL Server catalog.
func DefaultMSSQL() *Catalog {
	return &Catalog{
		Dialect: "mssql",
		types: map[string]TypeInfo{
			"tinyint": {FamilyNumeric, 3}, "smallint": {FamilyNumeric, 5}, "int": {FamilyNumeric, 10},
			"bigint": {FamilyNumeric, 20}, "bit": {FamilyNumeric, 1}, "decimal": {FamilyNumeric, 0},
			"numeric": {FamilyNumeric, 0}, "real": {FamilyNumeric, 12}, "float": {FamilyNumeric, 53},
			"smallmoney": {FamilyNumeric, 10}, "money": {FamilyNumeric, 20},
			"date": {FamilyDate, 10}, "smalldatetime": {FamilyDate, 19}, "datetime": {FamilyDate, 19},
			"datetime2": {FamilyDate, 19}, "time": {FamilyDate, 8}, "datetimeoffset": {FamilyDate, 10},
			"char": {FamilyString, 8000}, "varchar": {FamilyString, 8000}, "text": {FamilyString, 2147483647},
			"nchar": {FamilyString, 4000}, "nvarchar": {FamilyString, 4000}, "ntext": {FamilyString, 1073741823},
			"binary": {FamilyBinary, 8000}, "varbinary": {FamilyBinary, 8000}, "image": {FamilyBinary, 2147483647},
			"uniqueidentifier": {FamilyOther, 0}, "xml": {FamilyOther, 0},
		},
		aliases: map[string]string{
			"boolean":   "bit",
			"clob":      "ntext",
			"blob":      "image",
			"timestamp": "datetime2(0)",
			"double":    "float",
			"integer":   "int",
		},
	}
}

// DefaultOracle returns the Oracle catalog.
func DefaultOracle() *Catalog {
	return &Catalog{
		Dialect: "oracle",
		types: map[string]TypeInfo{
			"number": {FamilyNumeric, 38}, "float": {FamilyNumeric, 126},
			"binary_float": {FamilyNumeric, 0}, "binary_double": {FamilyNumeric, 0},
			"date": {FamilyDate, 10}, "timestamp": {FamilyDate, 29},
			"interval year": {FamilyDate, 12}, "interval day": {FamilyDate, 28},
			"char": {FamilyString, 2000}, "varchar2": {FamilyString, 4000}, "nchar": {FamilyString, 2000},
			"nvarchar2": {FamilyString, 4000}, "clob": {FamilyString, 4294967295}, "nclob": {FamilyString, 4294967295},
			"raw": {FamilyBinary, 2000}, "long raw": {FamilyBinary, 2147483648}, "blob": {FamilyBinary, 4294967295},
			"bfile": {FamilyBinary, 4294967296}, "long": {FamilyString, 0},
		},
		aliases: map[string]string{
			"varchar":  "varchar2",
			"text":     "clob",
			"boolean":  "number(1)",
			"double":   "binary_double",
			"integer":  "number(38)",
			"int":      "number(38)",
			"bigint":   "number(19)",
			"smallint": "number(5)",
			"decimal":  "number",
			"numeric":  "number",
		},
	}
}

// WithAliases returns a copy of the catalog with extra aliases layered on top.
func (c *Catalog) WithAliases(extra map[string]string) *Catalog {
	out := &Catalog{Dialect: c.Dialect, Unsigned: c.Unsigned, types: c.types, aliases: make(map[string]string, len(c.aliases)+len(extra))}
	for k, v := range c.aliases {
		out.aliases[k] = v
	}
	for k, v := range extra {
		out.aliases[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

// Types returns the sorted base type names of the catalog.
func (c *Catalog) Types() []string {
	names := make([]string, 0, len(c.types))
	for n := range c.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns type information for a base name, classifying unknown
// names by their spelling.
func (c *Catalog) Lookup(base string) TypeInfo {
	base = strings.ToLower(strings.TrimSpace(base))
	if info, ok := c.types[base]; ok {
		return info
	}
	switch {
	case IsNumeric(base):
		return TypeInfo{Family: FamilyNumeric}
	case base == "enum" || base == "set":
		return TypeInfo{Family: FamilyEnum}
	case strings.Contains(base, "char") || strings.Contains(base, "text") || strings.Contains(base, "clob"):
		return TypeInfo{Family: FamilyString}
	case strings.Contains(base, "binary") || strings.Contains(base, "blob"):
		return TypeInfo{Family: FamilyBinary}
	case strings.Contains(base, "date") || strings.Contains(base, "time"):
		return TypeInfo{Family: FamilyDate}
	}
	return TypeInfo{Family: FamilyOther}
}

// ParseType resolves aliases and parses the length of a base type.
func (c *Catalog) ParseType(base, rawLength string) (Type, error) {
	l, err := ParseLength(rawLength)
	if err != nil {
		return Type{}, err
	}

	name := strings.ToLower(strings.TrimSpace(base))
	if target, ok := c.aliases[name]; ok {
		name = target
		if i := strings.IndexByte(target, '('); i >= 0 {
			name = target[:i]
			if l.Empty() {
				if l, err = ParseLength(target[i:]); err != nil {
					return Type{}, err
				}
			}
		}
	}
	return Type{Base: name, Length: l, Info: c.Lookup(name)}, nil
}

// Signature returns a comparable rendering of a field's type, used to
// decide whether two descriptors describe the same column type.
func (c *Catalog) Signature(f schema.Field) (string, error) {
	t, err := c.ParseType(f.Type, f.Length)
	if err != nil {
		return "", err
	}
	sig := t.String()
	if c.Unsigned && t.Info.Family == FamilyNumeric {
		if f.Unsigned {
			sig += " unsigned"
		}
		if f.Zerofill {
			sig += " zerofill"
		}
	}
	return sig, nil
}

// Render produces the column type for a DDL statement: base type, normal
// form length, then UNSIGNED / ZEROFILL where the dialect supports them.
func (c *Catalog) Render(f schema.Field) (string, error) {
	t, err := c.ParseType(f.Type, f.Length)
	if err != nil {
		return "", fmt.Errorf("field %s: %w", f.Name, err)
	}
	out := t.String()
	if c.Unsigned && t.Info.Family == FamilyNumeric {
		if f.Unsigned {
			out += " unsigned"
		}
		if f.Zerofill {
			out += " zerofill"
		}
	}
	return out, nil
}

// IsNumeric reports whether a type name denotes a numeric type: any name
// containing int (but not point or interval), numeric, real, float,
// double, decimal or money.
func IsNumeric(base string) bool {
	base = strings.ToLower(base)
	for _, w := range []string{"numeric", "real", "float", "double", "decimal", "money", "number"} {
		if strings.Contains(base, w) {
			return true
		}
	}
	for i := 0; ; {
		j := strings.Index(base[i:], "int")
		if j < 0 {
			return false
		}
		at := i + j
		before := at > 0 && base[at-1] == 'o'
		after := strings.HasPrefix(base[at+3:], "er")
		if !before && !after {
			return true
		}
		i = at + 3
	}
}

// Collatable reports whether a COLLATE clause applies to the type.
func Collatable(base string) bool {
	base = strings.ToLower(base)
	for _, w := range []string{"char", "text", "enum", "set"} {
		if strings.Contains(base, w) {
			return true
		}
	}
	return false
}

// QuotesDefault reports whether a default value for the type is written
// as a string literal regardless of its spelling.
func QuotesDefault(base string) bool {
	base = strings.ToLower(base)
	for _, w := range []string{"char", "binary", "text", "enum", "set"} {
		if strings.Contains(base, w) {
			return true
		}
	}
	return false
}
