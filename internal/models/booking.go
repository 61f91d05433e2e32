package models

import (
	"time"

	"tablebook/internal/database"

	"github.com/google/uuid"
)

// DefaultDurationMinutes applies when a booking is created without a duration.
const DefaultDurationMinutes = 120

// Booking reserves one table for one user over [Start, Start+DurationMinutes).
type Booking struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	TableID         uuid.UUID     `json:"table_id"`
	Start           time.Time     `json:"booking_start"`
	GuestCount      int           `json:"guest_count"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status"`
	Notes           string        `json:"notes"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

var bookingSchema = &database.Schema{
	Table: "bookings",
	Fields: []database.Field{
		{Name: "id", Type: database.Identifier, Identifier: true, HasDefault: true},
		{Name: "user_id", Type: database.Identifier, References: "users(id)"},
		{Name: "table_id", Type: database.Identifier, References: "tables(id)"},
		{Name: "booking_start", Type: database.Timestamp},
		{Name: "guest_count", Type: database.Integer},
		{Name: "duration_minutes", Type: database.Integer, HasDefault: true},
		{Name: "status", Type: database.Enum, Size: 32, HasDefault: true},
		{Name: "notes", Type: database.Text, Size: 1024, HasDefault: true},
		{Name: "created_at", Type: database.Timestamp, HasDefault: true, Immutable: true},
		{Name: "updated_at", Type: database.Timestamp, HasDefault: true},
	},
}

// BookingSchema is the storage descriptor of Booking.
func BookingSchema() *database.Schema { return bookingSchema }

func (b *Booking) Schema() *database.Schema { return bookingSchema }
func (b *Booking) Identifier() any          { return b.ID }

func (b *Booking) FieldValues() []any {
	return []any{
		b.ID, b.UserID, b.TableID, b.Start, b.GuestCount,
		b.DurationMinutes, b.Status, b.Notes, b.CreatedAt, b.UpdatedAt,
	}
}

func (b *Booking) FieldPointers() []any {
	return []any{
		&b.ID, &b.UserID, &b.TableID, &b.Start, &b.GuestCount,
		&b.DurationMinutes, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
	}
}

func (b *Booking) ApplyDefaults(now time.Time) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.DurationMinutes == 0 {
		b.DurationMinutes = DefaultDurationMinutes
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
}

// End returns the exclusive end of the booking interval.
func (b *Booking) End() time.Time {
	return b.Start.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// OverlapsWith reports whether the booking intersects [start, end).
// Intervals are half-open: [A, B) and [C, D) overlap iff A < D && C < B,
// so touching endpoints do not conflict.
func (b *Booking) OverlapsWith(start, end time.Time) bool {
	return b.Start.Before(end) && start.Before(b.End())
}

// ShortID is the first eight hex digits of the identifier, used in messages.
func (b *Booking) ShortID() string {
	return b.ID.String()[:8]
}

// Schemas lists every entity descriptor in dependency order.
func Schemas() []*database.Schema {
	return []*database.Schema{userSchema, tableSchema, bookingSchema}
}
