package database

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Dialect captures the SQL differences between supported storage backends.
type Dialect interface {
	Name() string
	// DriverName is the database/sql driver to open.
	DriverName() string
	// Placeholder returns the n-th (1-based) bind parameter marker.
	Placeholder(n int) string
	Quote(ident string) string
	ColumnType(f Field) (string, error)
	// Rebind rewrites '?' markers into the dialect's placeholder style.
	Rebind(query string) string
}

// DialectFor resolves a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite, "sqlite":
		return sqliteDialect{}, nil
	case DriverPostgres, "postgresql", "pgx":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func varchar(f Field) string {
	size := f.Size
	if size <= 0 {
		size = 255
	}
	return "VARCHAR(" + strconv.Itoa(size) + ")"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string               { return "sqlite" }
func (sqliteDialect) DriverName() string         { return DriverSQLite }
func (sqliteDialect) Placeholder(int) string     { return "?" }
func (sqliteDialect) Quote(ident string) string  { return `"` + ident + `"` }
func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) ColumnType(f Field) (string, error) {
	switch f.Type {
	case Identifier:
		// go-sqlite3 has no native uuid; stored in canonical text form.
		return "TEXT", nil
	case Text, Enum:
		return varchar(f), nil
	case Integer:
		return "INTEGER", nil
	case Boolean:
		return "BOOLEAN", nil
	case Timestamp:
		return "TIMESTAMP", nil
	case Real:
		return "REAL", nil
	default:
		return "", fmt.Errorf("field %s: unsupported type %s", f.Name, f.Type)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string              { return "postgres" }
func (postgresDialect) DriverName() string        { return "pgx" }
func (postgresDialect) Placeholder(n int) string  { return "$" + strconv.Itoa(n) }
func (postgresDialect) Quote(ident string) string { return `"` + ident + `"` }

func (postgresDialect) ColumnType(f Field) (string, error) {
	switch f.Type {
	case Identifier:
		return "UUID", nil
	case Text, Enum:
		return varchar(f), nil
	case Integer:
		return "INTEGER", nil
	case Boolean:
		return "BOOLEAN", nil
	case Timestamp:
		return "TIMESTAMP", nil
	case Real:
		return "REAL", nil
	default:
		return "", fmt.Errorf("field %s: unsupported type %s", f.Name, f.Type)
	}
}

func (d postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteString(d.Placeholder(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
