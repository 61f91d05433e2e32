package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/models"
	"tablebook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seededEngine(t *testing.T) (*database.Engine, []*models.Booking) {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	engine, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "export.db")}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	require.NoError(t, engine.EnsureSchema(ctx, false, models.Schemas()...))

	svc := service.New(engine, nil, nil, service.Rules{}, &logger)
	u, err := svc.CreateUser(ctx, "Alice", "+7 900", "alice@example.com")
	require.NoError(t, err)
	tb, err := svc.CreateTable(ctx, 5, 4, models.LocationCorner, true)
	require.NoError(t, err)

	var out []*models.Booking
	for _, day := range []int{1, 2, 10} {
		b, err := svc.CreateBooking(ctx, service.BookingParams{
			UserID: u.ID, TableID: tb.ID, GuestCount: 3, Notes: "anniversary",
			Start: time.Date(2024, 6, day, 19, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		out = append(out, b)
	}
	return engine, out
}

func TestBookingReport(t *testing.T) {
	engine, bookings := seededEngine(t)
	exp := NewExporter(engine, nil, nil)

	var buf bytes.Buffer
	n, err := exp.BookingReport(context.Background(),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 2, 19, 0, 0, 0, time.UTC), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, BookingColumns, rows[0])
	assert.Equal(t, bookings[0].ID.String(), rows[1][0])
	assert.Equal(t, "2024-06-01 19:00", rows[1][1])
	assert.Equal(t, "120", rows[1][2])
	assert.Equal(t, "pending", rows[1][4])
	assert.Equal(t, "5", rows[1][5])
	assert.Equal(t, "corner", rows[1][6])
	assert.Equal(t, "Alice", rows[1][7])
	assert.Equal(t, "anniversary", rows[1][10])
	assert.Equal(t, bookings[1].ID.String(), rows[2][0])
}

func TestSnapshot(t *testing.T) {
	engine, _ := seededEngine(t)
	exp := NewExporter(engine, nil, nil)

	var buf bytes.Buffer
	require.NoError(t, exp.Snapshot(context.Background(), &buf, models.Schemas()...))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"users", "tables", "bookings"}, f.GetSheetList())

	rows, err := f.GetRows("bookings")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, models.BookingSchema().ColumnNames(), rows[0])
}

type failingQuerier struct{}

func (failingQuerier) RawQuery(context.Context, string, ...any) ([]map[string]any, error) {
	return nil, errors.New("storage down")
}

func TestBookingReport_QueryError(t *testing.T) {
	exp := NewExporter(failingQuerier{}, nil, nil)
	var buf bytes.Buffer
	_, err := exp.BookingReport(context.Background(), time.Now(), time.Now(), &buf)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestReportFilename(t *testing.T) {
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "bookings_2024-06-01_2024-06-30.xlsx", ReportFilename(from, from.AddDate(0, 0, 29)))
}
