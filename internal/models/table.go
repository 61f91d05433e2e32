package models

import (
	"time"

	"tablebook/internal/database"

	"github.com/google/uuid"
)

// Location is the seating area of a table.
type Location string

const (
	LocationWindow Location = "window"
	LocationCorner Location = "corner"
	LocationCenter Location = "center"
)

// Locations lists every valid location.
var Locations = []Location{LocationWindow, LocationCorner, LocationCenter}

func (l Location) Valid() bool {
	switch l {
	case LocationWindow, LocationCorner, LocationCenter:
		return true
	}
	return false
}

// Table is a bookable resource. Number is globally unique; IsAvailable is a
// resource-level switch independent of bookings.
type Table struct {
	ID          uuid.UUID `json:"id"`
	Number      int       `json:"number"`
	Capacity    int       `json:"capacity"`
	Location    Location  `json:"location"`
	IsAvailable bool      `json:"is_available"`
}

var tableSchema = &database.Schema{
	Table: "tables",
	Fields: []database.Field{
		{Name: "id", Type: database.Identifier, Identifier: true, HasDefault: true},
		{Name: "number", Type: database.Integer, Unique: true},
		{Name: "capacity", Type: database.Integer},
		{Name: "location", Type: database.Enum, Size: 32},
		{Name: "is_available", Type: database.Boolean, HasDefault: true},
	},
}

// TableSchema is the storage descriptor of Table.
func TableSchema() *database.Schema { return tableSchema }

func (t *Table) Schema() *database.Schema { return tableSchema }
func (t *Table) Identifier() any          { return t.ID }

func (t *Table) FieldValues() []any {
	return []any{t.ID, t.Number, t.Capacity, t.Location, t.IsAvailable}
}

func (t *Table) FieldPointers() []any {
	return []any{&t.ID, &t.Number, &t.Capacity, &t.Location, &t.IsAvailable}
}

func (t *Table) ApplyDefaults(_ time.Time) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
}
