package service

import (
	"context"
	"fmt"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/models"

	"github.com/google/uuid"
)

const reasonTimeLayout = "2006-01-02 15:04"

// Availability is the outcome of a conflict check. Conflict is the first
// active booking found overlapping the requested interval.
type Availability struct {
	Available bool
	Reason    string
	Conflict  *models.Booking
}

// CheckAvailability reports whether the table can take a booking over
// [start, start+durationMinutes). Missing or switched-off tables are never
// available. exclude skips one booking, normally the one being moved.
func (s *Service) CheckAvailability(ctx context.Context, tableID uuid.UUID, start time.Time, durationMinutes int, exclude *uuid.UUID) (Availability, error) {
	table, err := s.GetTable(ctx, tableID)
	if err != nil {
		return Availability{}, err
	}
	if table == nil {
		return Availability{Reason: fmt.Sprintf("table %s not found", tableID)}, nil
	}
	if !table.IsAvailable {
		return Availability{Reason: fmt.Sprintf("table #%d is not available for booking", table.Number)}, nil
	}

	active, err := s.activeBookings(ctx, tableID, exclude)
	if err != nil {
		return Availability{}, err
	}

	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	for i := range active {
		b := &active[i]
		if !b.OverlapsWith(start, end) {
			continue
		}
		return Availability{
			Reason: fmt.Sprintf("table #%d is already booked from %s to %s (booking #%s, status: %s)",
				table.Number,
				b.Start.In(start.Location()).Format(reasonTimeLayout),
				b.End().In(start.Location()).Format(reasonTimeLayout),
				b.ShortID(), b.Status),
			Conflict: b,
		}, nil
	}
	return Availability{Available: true}, nil
}

func (s *Service) activeBookings(ctx context.Context, tableID uuid.UUID, exclude *uuid.UUID) ([]models.Booking, error) {
	where := "status IN (?, ?)"
	args := []any{string(models.StatusPending), string(models.StatusConfirmed)}
	if exclude != nil {
		where += " AND id <> ?"
		args = append(args, *exclude)
	}
	return database.Select[models.Booking](ctx, s.engine, where, args, database.Query{
		Filters: map[string]any{"table_id": tableID},
		OrderBy: "booking_start",
	})
}
