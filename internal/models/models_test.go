package models

import (
	"testing"
	"time"

	"tablebook/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 6, 1, hour, minute, 0, 0, time.UTC)
}

func TestBooking_OverlapsWith(t *testing.T) {
	existing := Booking{Start: at(19, 0), DurationMinutes: 120}

	tests := []struct {
		name    string
		start   time.Time
		minutes int
		overlap bool
	}{
		{name: "identical interval", start: at(19, 0), minutes: 120, overlap: true},
		{name: "starts inside", start: at(19, 30), minutes: 60, overlap: true},
		{name: "one minute before end", start: at(20, 59), minutes: 60, overlap: true},
		{name: "starts exactly at end", start: at(21, 0), minutes: 60, overlap: false},
		{name: "ends exactly at start", start: at(18, 0), minutes: 60, overlap: false},
		{name: "overlaps the start", start: at(18, 30), minutes: 60, overlap: true},
		{name: "encloses existing", start: at(18, 0), minutes: 240, overlap: true},
		{name: "well before", start: at(12, 0), minutes: 60, overlap: false},
		{name: "well after", start: at(22, 0), minutes: 60, overlap: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := tt.start.Add(time.Duration(tt.minutes) * time.Minute)
			assert.Equal(t, tt.overlap, existing.OverlapsWith(tt.start, end))
		})
	}
}

func TestBooking_End(t *testing.T) {
	b := Booking{Start: at(19, 0), DurationMinutes: 90}
	assert.Equal(t, at(20, 30), b.End())
}

func TestBooking_ApplyDefaults(t *testing.T) {
	now := at(12, 0)

	b := Booking{}
	b.ApplyDefaults(now)
	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, DefaultDurationMinutes, b.DurationMinutes)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, now, b.CreatedAt)
	assert.Equal(t, now, b.UpdatedAt)

	id := uuid.New()
	kept := Booking{ID: id, DurationMinutes: 30, Status: StatusConfirmed}
	kept.ApplyDefaults(now)
	assert.Equal(t, id, kept.ID)
	assert.Equal(t, 30, kept.DurationMinutes)
	assert.Equal(t, StatusConfirmed, kept.Status)
	assert.Len(t, kept.ShortID(), 8)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusConfirmed, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCancelled, true},
		{"unknown", StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}

	assert.True(t, StatusPending.IsActive())
	assert.True(t, StatusConfirmed.IsActive())
	assert.False(t, StatusCancelled.IsActive())
	assert.False(t, BookingStatus("done").Valid())
}

func TestLocation_Valid(t *testing.T) {
	for _, l := range Locations {
		assert.True(t, l.Valid(), l)
	}
	assert.False(t, Location("terrace").Valid())
	assert.False(t, Location("").Valid())
}

func TestSchemas_DeriveDDL(t *testing.T) {
	d, err := database.DialectFor(database.DriverPostgres)
	require.NoError(t, err)

	ddl, err := database.DeriveSchema(d, BookingSchema())
	require.NoError(t, err)
	assert.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "bookings"`)
	assert.Contains(t, ddl, `"id" UUID PRIMARY KEY`)
	assert.Contains(t, ddl, `"user_id" UUID NOT NULL REFERENCES "users"("id")`)
	assert.Contains(t, ddl, `"booking_start" TIMESTAMP NOT NULL`)
	assert.Contains(t, ddl, `"notes" VARCHAR(1024)`)

	ddl, err = database.DeriveSchema(d, UserSchema())
	require.NoError(t, err)
	assert.Contains(t, ddl, `"name" VARCHAR(255) NOT NULL UNIQUE`)

	ddl, err = database.DeriveSchema(d, TableSchema())
	require.NoError(t, err)
	assert.Contains(t, ddl, `"number" INTEGER NOT NULL UNIQUE`)
	assert.Contains(t, ddl, `"is_available" BOOLEAN`)
	assert.NotContains(t, ddl, `"is_available" BOOLEAN NOT NULL`)
}

func TestRecords_ValuesMatchPointers(t *testing.T) {
	records := []database.Record{&User{}, &Table{}, &Booking{}}
	for _, r := range records {
		t.Run(r.Schema().Table, func(t *testing.T) {
			require.NoError(t, r.Schema().Validate())
			assert.Len(t, r.FieldValues(), len(r.Schema().Fields))
			assert.Len(t, r.FieldPointers(), len(r.Schema().Fields))
		})
	}
}
