package querysql

import (
	"fmt"
	"strings"
)

// Dialect renders the literal parts of a lookup query for one remote store.
type Dialect interface {
	// Name identifies the dialect in configuration.
	Name() string
	// QuoteString returns s as an escaped string literal.
	QuoteString(s string) string
	// QuoteIdent returns a column or table name as it must appear in a query.
	QuoteIdent(name string) string
	// Bool returns the literal for b.
	Bool(b bool) string
	// NullComparison returns the condition matching rows where field is unset.
	NullComparison(field string) string
}

// Dialect names accepted by DialectByName.
const (
	DialectBackslash = "backslash"
	DialectSQLite    = "sqlite"
)

// BackslashDialect is the remote store's native query language: string
// literals are single-quoted with backslash and quote escaped by a
// backslash, identifiers are bare and null is compared with "= null".
type BackslashDialect struct{}

var backslashEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func (BackslashDialect) Name() string                  { return DialectBackslash }
func (BackslashDialect) QuoteString(s string) string   { return "'" + backslashEscaper.Replace(s) + "'" }
func (BackslashDialect) QuoteIdent(name string) string { return name }
func (BackslashDialect) NullComparison(field string) string {
	return field + " = null"
}

func (BackslashDialect) Bool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// SQLiteDialect renders queries executable by the SQLite reference store.
// Quotes are doubled (SQLite has no backslash escapes) and identifiers are
// double-quoted so record type names never collide with keywords.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return DialectSQLite }

func (SQLiteDialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (SQLiteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLiteDialect) NullComparison(field string) string {
	return field + " IS NULL"
}

func (SQLiteDialect) Bool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// DialectByName returns the dialect registered under name. An empty name
// selects the backslash dialect.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "", DialectBackslash:
		return BackslashDialect{}, nil
	case DialectSQLite:
		return SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("unknown query dialect %q", name)
	}
}
