package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Query selects records by conjunctive equality filters. A nil filter value
// matches NULL. Rows come back in storage order unless OrderBy is set.
type Query struct {
	Filters map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

// RecordPtr constrains generic reads to pointer types implementing Record.
type RecordPtr[T any] interface {
	*T
	Record
}

// Create inserts every field of rec and reloads the stored row into it.
func (e *Engine) Create(ctx context.Context, rec Record) error {
	s := rec.Schema()
	if err := s.Validate(); err != nil {
		return persistErr("create", s.Table, err)
	}
	if d, ok := rec.(Defaulter); ok {
		d.ApplyDefaults(time.Now())
	}

	cols := e.quotedColumns(s)
	marks := make([]string, len(cols))
	for i := range marks {
		marks[i] = "?"
	}
	insert := e.dialect.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		e.dialect.Quote(s.Table), strings.Join(cols, ", "), strings.Join(marks, ", ")))

	return e.withTx(ctx, "create", s.Table, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert, bindValues(rec.FieldValues())...); err != nil {
			return err
		}
		return e.reload(ctx, tx, rec)
	})
}

// Update replaces the listed fields (default: all mutable fields) of the row
// matching rec's identifier and reloads the stored row into rec.
func (e *Engine) Update(ctx context.Context, rec Record, fields ...string) error {
	s := rec.Schema()
	if err := s.Validate(); err != nil {
		return persistErr("update", s.Table, err)
	}
	idField, _ := s.IdentifierField()

	if len(fields) == 0 {
		fields = s.MutableFields()
	}
	values := rec.FieldValues()
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	seen := make(map[string]struct{}, len(fields))
	for _, name := range fields {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		idx := s.Index(name)
		if idx < 0 {
			return persistErr("update", s.Table, fmt.Errorf("%w %q", ErrUnknownField, name))
		}
		if s.Fields[idx].Identifier {
			return persistErr("update", s.Table, fmt.Errorf("identifier %q cannot be updated", name))
		}
		sets = append(sets, e.dialect.Quote(name)+" = ?")
		args = append(args, values[idx])
	}
	if len(sets) == 0 {
		return persistErr("update", s.Table, errors.New("no fields to update"))
	}
	args = append(args, rec.Identifier())

	update := e.dialect.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		e.dialect.Quote(s.Table), strings.Join(sets, ", "), e.dialect.Quote(idField.Name)))

	return e.withTx(ctx, "update", s.Table, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, update, bindValues(args)...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s = %v", ErrRecordNotFound, idField.Name, rec.Identifier())
		}
		return e.reload(ctx, tx, rec)
	})
}

// Delete removes the row with the given identifier and reports whether one was removed.
func (e *Engine) Delete(ctx context.Context, s *Schema, id any) (bool, error) {
	if err := s.Validate(); err != nil {
		return false, persistErr("delete", s.Table, err)
	}
	idField, _ := s.IdentifierField()
	stmt := e.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		e.dialect.Quote(s.Table), e.dialect.Quote(idField.Name)))

	var removed bool
	err := e.withTx(ctx, "delete", s.Table, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stmt, bindValues([]any{id})...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

// ReadMany returns the records of T's table matching q.
func ReadMany[T any, P RecordPtr[T]](ctx context.Context, e *Engine, q Query) ([]T, error) {
	return Select[T, P](ctx, e, "", nil, q)
}

// ReadByID returns the record with the given identifier, or nil when absent.
func ReadByID[T any, P RecordPtr[T]](ctx context.Context, e *Engine, id any) (*T, error) {
	s := P(new(T)).Schema()
	idField, ok := s.IdentifierField()
	if !ok {
		return nil, persistErr("read", s.Table, ErrNoIdentifier)
	}
	out, err := ReadMany[T, P](ctx, e, Query{Filters: map[string]any{idField.Name: id}, Limit: 1})
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

// Select is ReadMany with an extra raw WHERE fragment using '?' markers, for
// predicates the equality filter model cannot express (ranges, IN, <>).
func Select[T any, P RecordPtr[T]](ctx context.Context, e *Engine, where string, args []any, q Query) ([]T, error) {
	s := P(new(T)).Schema()
	if err := s.Validate(); err != nil {
		return nil, persistErr("read", s.Table, err)
	}

	conds, condArgs, err := e.filterConditions(s, q.Filters)
	if err != nil {
		return nil, persistErr("read", s.Table, err)
	}
	if where != "" {
		conds = append(conds, "("+where+")")
		condArgs = append(condArgs, args...)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(e.quotedColumns(s), ", "), e.dialect.Quote(s.Table))
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if q.OrderBy != "" {
		if s.Index(q.OrderBy) < 0 {
			return nil, persistErr("read", s.Table, fmt.Errorf("order by: %w %q", ErrUnknownField, q.OrderBy))
		}
		b.WriteString(" ORDER BY " + e.dialect.Quote(q.OrderBy))
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	query := e.dialect.Rebind(b.String())

	var out []T
	err = e.withTx(ctx, "read", s.Table, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, bindValues(condArgs)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var v T
			if err := rows.Scan(P(&v).FieldPointers()...); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RawQuery runs an arbitrary parametrized statement ('?' markers) and returns
// rows as column->value maps. Byte slices are returned as strings.
func (e *Engine) RawQuery(ctx context.Context, stmt string, params ...any) ([]map[string]any, error) {
	query := e.dialect.Rebind(stmt)
	var result []map[string]any
	err := e.withTx(ctx, "raw_query", "", func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, bindValues(params)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			values := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			row := make(map[string]any, len(columns))
			for i, col := range columns {
				if b, ok := values[i].([]byte); ok {
					row[col] = string(b)
					continue
				}
				row[col] = values[i]
			}
			result = append(result, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) reload(ctx context.Context, tx *sql.Tx, rec Record) error {
	s := rec.Schema()
	idField, _ := s.IdentifierField()
	query := e.dialect.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(e.quotedColumns(s), ", "), e.dialect.Quote(s.Table), e.dialect.Quote(idField.Name)))
	if err := tx.QueryRowContext(ctx, query, bindValues([]any{rec.Identifier()})...).Scan(rec.FieldPointers()...); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

func (e *Engine) quotedColumns(s *Schema) []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = e.dialect.Quote(f.Name)
	}
	return cols
}

// filterConditions renders filters in sorted key order so statements are stable.
func (e *Engine) filterConditions(s *Schema, filters map[string]any) ([]string, []any, error) {
	if len(filters) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		if s.Index(k) < 0 {
			return nil, nil, fmt.Errorf("filter: %w %q", ErrUnknownField, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		v := filters[k]
		if v == nil {
			conds = append(conds, e.dialect.Quote(k)+" IS NULL")
			continue
		}
		conds = append(conds, e.dialect.Quote(k)+" = ?")
		args = append(args, v)
	}
	return conds, args, nil
}

// bindValues normalizes time values to UTC microseconds so that both dialects
// store and compare them identically.
func bindValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case time.Time:
			out[i] = normalizeTime(t)
		case *time.Time:
			if t == nil {
				out[i] = nil
			} else {
				out[i] = normalizeTime(*t)
			}
		default:
			out[i] = v
		}
	}
	return out
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
