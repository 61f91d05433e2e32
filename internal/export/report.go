// Package export renders bookings and raw table snapshots as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"tablebook/internal/database"

	"github.com/rs/zerolog"
)

// BookingColumns are the headers of the booking report, in sheet order.
var BookingColumns = []string{
	"booking_id", "booking_start", "duration_minutes", "guest_count", "status",
	"table_number", "location", "user_name", "phone", "email", "notes",
}

const bookingReportQuery = `SELECT b.id AS booking_id, b.booking_start, b.duration_minutes, b.guest_count, b.status,
	t.number AS table_number, t.location, u.name AS user_name, u.phone, u.email, b.notes
FROM bookings b
JOIN tables t ON t.id = b.table_id
JOIN users u ON u.id = b.user_id
WHERE b.booking_start >= ? AND b.booking_start <= ?
ORDER BY b.booking_start`

type Exporter struct {
	querier   Querier
	newWriter func() ExcelWriter
	logger    zerolog.Logger
}

// NewExporter builds an exporter. A nil factory writes UTC timestamps through excelize.
func NewExporter(q Querier, writerFactory func() ExcelWriter, logger *zerolog.Logger) *Exporter {
	if writerFactory == nil {
		writerFactory = func() ExcelWriter { return NewExcelizeWriter(time.UTC) }
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Exporter{
		querier:   q,
		newWriter: writerFactory,
		logger:    l.With().Str("component", "export").Logger(),
	}
}

// BookingReport writes one sheet listing bookings that start within [from, to],
// joined with their table and user, ascending by start.
func (e *Exporter) BookingReport(ctx context.Context, from, to time.Time, w io.Writer) (int, error) {
	rows, err := e.querier.RawQuery(ctx, bookingReportQuery, from, to)
	if err != nil {
		return 0, fmt.Errorf("query bookings: %w", err)
	}

	excel := e.newWriter()
	defer excel.Close()

	if err := excel.AddSheet("Bookings"); err != nil {
		return 0, err
	}
	if err := writeRows(excel, BookingColumns, rows); err != nil {
		return 0, err
	}
	if err := excel.Save(w); err != nil {
		return 0, fmt.Errorf("save excel: %w", err)
	}

	e.logger.Info().Time("from", from).Time("to", to).Int("rows", len(rows)).Msg("Booking report exported")
	return len(rows), nil
}

// Snapshot dumps every column of the given tables, one sheet per table.
// A table that fails to read is logged and skipped.
func (e *Exporter) Snapshot(ctx context.Context, w io.Writer, schemas ...*database.Schema) error {
	excel := e.newWriter()
	defer excel.Close()

	for _, s := range schemas {
		columns := s.ColumnNames()
		rows, err := e.querier.RawQuery(ctx, fmt.Sprintf("SELECT * FROM %q", s.Table))
		if err != nil {
			e.logger.Error().Err(err).Str("table", s.Table).Msg("Failed to get table data")
			continue
		}
		if err := excel.AddSheet(s.Table); err != nil {
			return err
		}
		if err := writeRows(excel, columns, rows); err != nil {
			return err
		}
		e.logger.Debug().Str("table", s.Table).Int("rows", len(rows)).Msg("Exported table")
	}

	if err := excel.Save(w); err != nil {
		return fmt.Errorf("save excel: %w", err)
	}
	return nil
}

func writeRows(excel ExcelWriter, columns []string, rows []map[string]any) error {
	if err := excel.WriteHeader(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		values := make([]interface{}, len(columns))
		for i, col := range columns {
			values[i] = row[col]
		}
		if err := excel.WriteRow(values); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

// ReportFilename names a report covering [from, to], e.g. "bookings_2024-06-01_2024-06-30.xlsx".
func ReportFilename(from, to time.Time) string {
	return fmt.Sprintf("bookings_%s_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
}
