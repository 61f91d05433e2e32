package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FieldType is the semantic type of an entity field. Dialects map it to a column type.
type FieldType int

const (
	Identifier FieldType = iota + 1
	Text
	Integer
	Boolean
	Timestamp
	Enum
	Real
)

func (t FieldType) String() string {
	switch t {
	case Identifier:
		return "identifier"
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Boolean:
		return "boolean"
	case Timestamp:
		return "timestamp"
	case Enum:
		return "enum"
	case Real:
		return "real"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field describes one column of an entity.
type Field struct {
	Name string
	Type FieldType
	// Identifier marks the primary key. Exactly one field per schema carries it.
	Identifier bool
	// HasDefault fields are nullable in the derived DDL; the rest are NOT NULL.
	HasDefault bool
	// Immutable fields are left out of updates that do not list fields explicitly.
	Immutable  bool
	Unique     bool
	References string // e.g. "users(id)"
	Size       int    // VARCHAR length for Text and Enum, 255 when zero
}

// Schema is the static descriptor of an entity: its table and ordered fields.
type Schema struct {
	Table  string
	Fields []Field
}

// Record is implemented by every persistable entity. Values and pointers are
// returned in the order of Schema().Fields.
type Record interface {
	Schema() *Schema
	Identifier() any
	FieldValues() []any
	FieldPointers() []any
}

// Defaulter lets a record fill server-assigned values (ids, timestamps) before insert.
type Defaulter interface {
	ApplyDefaults(now time.Time)
}

var (
	ErrNoIdentifier   = errors.New("schema has no identifier field")
	ErrUnknownField   = errors.New("unknown field")
	ErrDuplicateField = errors.New("duplicate field")
)

// Validate checks the descriptor invariants the engine relies on.
func (s *Schema) Validate() error {
	if s == nil || s.Table == "" {
		return fmt.Errorf("schema: empty table name")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	ids := 0
	for _, f := range s.Fields {
		if f.Name == "" || !isIdent(f.Name) {
			return fmt.Errorf("schema %s: invalid field name %q", s.Table, f.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("schema %s: %w %q", s.Table, ErrDuplicateField, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Identifier {
			ids++
		}
	}
	if ids == 0 {
		return fmt.Errorf("schema %s: %w", s.Table, ErrNoIdentifier)
	}
	if ids > 1 {
		return fmt.Errorf("schema %s: more than one identifier field", s.Table)
	}
	return nil
}

// IdentifierField returns the primary key descriptor.
func (s *Schema) IdentifierField() (Field, bool) {
	for _, f := range s.Fields {
		if f.Identifier {
			return f, true
		}
	}
	return Field{}, false
}

// Index returns the position of the named field or -1.
func (s *Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns field names in descriptor order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// MutableFields returns the fields a default update replaces.
func (s *Schema) MutableFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Identifier || f.Immutable {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// DeriveSchema renders the CREATE TABLE statement for the schema in the given dialect.
func DeriveSchema(d Dialect, s *Schema) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	columns := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		colType, err := d.ColumnType(f)
		if err != nil {
			return "", fmt.Errorf("schema %s: %w", s.Table, err)
		}

		def := d.Quote(f.Name) + " " + colType
		switch {
		case f.Identifier:
			def += " PRIMARY KEY"
		case !f.HasDefault:
			def += " NOT NULL"
		}
		if f.Unique && !f.Identifier {
			def += " UNIQUE"
		}
		if f.References != "" {
			ref, err := quoteReference(d, f.References)
			if err != nil {
				return "", fmt.Errorf("schema %s field %s: %w", s.Table, f.Name, err)
			}
			def += " REFERENCES " + ref
		}
		columns = append(columns, def)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.Quote(s.Table), strings.Join(columns, ",\n\t")), nil
}

// quoteReference turns "users(id)" into a dialect-quoted reference.
func quoteReference(d Dialect, ref string) (string, error) {
	open := strings.IndexByte(ref, '(')
	if open <= 0 || !strings.HasSuffix(ref, ")") {
		return "", fmt.Errorf("malformed reference %q", ref)
	}
	table, col := ref[:open], ref[open+1:len(ref)-1]
	if !isIdent(table) || !isIdent(col) {
		return "", fmt.Errorf("malformed reference %q", ref)
	}
	return fmt.Sprintf("%s(%s)", d.Quote(table), d.Quote(col)), nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
