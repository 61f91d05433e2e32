package export

import (
	"context"
	"io"
)

// Querier runs parametrized statements with '?' markers. *database.Engine implements it.
type Querier interface {
	RawQuery(ctx context.Context, stmt string, params ...any) ([]map[string]any, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to current sheet.
	WriteRow(row []interface{}) error

	// Save writes the Excel file to the writer.
	Save(w io.Writer) error

	Close() error
}
