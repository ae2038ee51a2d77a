package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// Capabilities describes what a dialect can express without a rebuild.
type Capabilities struct {
	InPlaceAlter      bool // ALTER TABLE can modify and drop columns
	PositionalColumns bool // column order is part of the table definition
	PositionalAlter   bool // ALTER TABLE accepts FIRST / AFTER
	MultiClauseAlter  bool // one ALTER TABLE statement may carry several clauses
	TransactionalDDL  bool // DDL statements can be rolled back
	ColumnComments    bool
	TableOptions      bool // ENGINE / COLLATE / COMMENT= table clauses
	Partitioning      bool
	Unsigned          bool
	ColumnCollation   bool
}

// Dialect renders planned operations as DDL for one backend variant.
type Dialect interface {
	Name() string
	Capabilities() Capabilities
	Catalog() *typemap.Catalog

	Quote(ident string) string
	QuoteString(s string) string

	// RenderType renders the column type of a field.
	RenderType(f schema.Field) (string, error)
	// ColumnDefinition renders a full column definition for CREATE / ADD.
	ColumnDefinition(f schema.Field) (string, error)

	// AlterTable renders field, foreign key and table option changes.
	// ErrRebuildRequired means the change cannot be expressed in place.
	AlterTable(req AlterTable) ([]string, error)
	// CreateTable renders a table and its indexes from scratch.
	CreateTable(t schema.Table) ([]string, error)
	// AlterIndexes renders index additions and removals for a table.
	AlterIndexes(table string, ops []IndexOp) ([]string, error)
	// RenameTable renders a table rename.
	RenameTable(oldName, newName string) string
	// DropTable renders the removal of a table.
	DropTable(name string) string
}

// OpKind is the kind of a planned operation.
type OpKind string

const (
	OpAdd    OpKind = "ADD"
	OpModify OpKind = "MODIFY"
	OpRename OpKind = "RENAME"
	OpDrop   OpKind = "DROP"
)

// FieldOp is one planned column change. Name is the column's current name
// for MODIFY, RENAME and DROP, and the new column's name for ADD.
type FieldOp struct {
	Kind     OpKind        `json:"kind" yaml:"kind"`
	Name     string        `json:"name" yaml:"name"`
	Field    schema.Field  `json:"field,omitempty" yaml:"field,omitempty"`
	Previous *schema.Field `json:"previous,omitempty" yaml:"previous,omitempty"`
	First    bool          `json:"first,omitempty" yaml:"first,omitempty"`
	After    string        `json:"after,omitempty" yaml:"after,omitempty"`
}

// Renamed reports whether the op changes the column's name.
func (op FieldOp) Renamed() bool {
	return (op.Kind == OpModify || op.Kind == OpRename) && op.Field.Name != "" && op.Field.Name != op.Name
}

// Positioned reports whether the op carries a position anchor.
func (op FieldOp) Positioned() bool {
	return op.First || op.After != ""
}

func (op FieldOp) String() string {
	switch op.Kind {
	case OpAdd:
		return fmt.Sprintf("ADD %s", op.Name)
	case OpDrop:
		return fmt.Sprintf("DROP %s", op.Name)
	case OpRename:
		return fmt.Sprintf("RENAME %s TO %s", op.Name, op.Field.Name)
	default:
		if op.Renamed() {
			return fmt.Sprintf("MODIFY %s AS %s", op.Name, op.Field.Name)
		}
		return fmt.Sprintf("MODIFY %s", op.Name)
	}
}

// IndexOp adds or drops one index.
type IndexOp struct {
	Kind  OpKind       `json:"kind" yaml:"kind"`
	Index schema.Index `json:"index" yaml:"index"`
}

// ForeignKeyOp adds or drops one foreign key.
type ForeignKeyOp struct {
	Kind       OpKind            `json:"kind" yaml:"kind"`
	ForeignKey schema.ForeignKey `json:"foreign_key" yaml:"foreign_key"`
}

// AlterTable is a rendered-once description of a table alteration. Empty
// option fields mean "unchanged".
type AlterTable struct {
	Table               string
	NewName             string
	Fields              []FieldOp
	ForeignKeys         []ForeignKeyOp
	Extra               []string // raw clauses appended verbatim
	Comment             *string
	Engine              string
	Collation           string
	AutoIncrement       *int64
	AutoIncrementColumn string
	Partitioning        *schema.Partitioning
	RemovePartitioning  bool
}

// FinalName returns the table's name after the alteration.
func (a AlterTable) FinalName() string {
	if a.NewName != "" {
		return a.NewName
	}
	return a.Table
}

// Renames reports whether the alteration renames the table.
func (a AlterTable) Renames() bool {
	return a.NewName != "" && a.NewName != a.Table
}

// Empty reports whether the alteration changes nothing.
func (a AlterTable) Empty() bool {
	return len(a.Fields) == 0 && len(a.ForeignKeys) == 0 && len(a.Extra) == 0 &&
		a.Comment == nil && a.Engine == "" && a.Collation == "" && a.AutoIncrement == nil &&
		a.Partitioning == nil && !a.RemovePartitioning && !a.Renames()
}

// ErrRebuildRequired is returned when a change has no in-place form.
var ErrRebuildRequired = errors.New("alteration requires a table rebuild")

// UnsupportedDialectError is returned for an unknown dialect name.
type UnsupportedDialectError struct {
	Name string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("unsupported dialect: %s (supported: mysql, postgresql, sqlite, mssql, oracle)", e.Name)
}

// UnsupportedFeatureError is returned when a dialect cannot express a request.
type UnsupportedFeatureError struct {
	Dialect string
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Dialect, e.Feature)
}

// Canonical maps the accepted spellings of a dialect name to its canonical name.
func Canonical(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql", "mariadb":
		return "mysql", nil
	case "postgresql", "postgres", "pgsql", "pg":
		return "postgresql", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "mssql", "sqlserver", "sqlsrv":
		return "mssql", nil
	case "oracle", "oci":
		return "oracle", nil
	default:
		return "", &UnsupportedDialectError{Name: name}
	}
}

// New returns the dialect for a name.
func New(name string) (Dialect, error) {
	canonical, err := Canonical(name)
	if err != nil {
		return nil, err
	}
	switch canonical {
	case "mysql":
		return NewMySQL(), nil
	case "postgresql":
		return NewPostgres(), nil
	case "sqlite":
		return NewSQLite(), nil
	case "mssql":
		return NewMSSQL(), nil
	default:
		return NewOracle(), nil
	}
}
