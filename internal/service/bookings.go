package service

import (
	"context"
	"errors"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"

	"github.com/google/uuid"
)

// BookingParams describes a new booking. Zero duration and empty status
// take the configured defaults.
type BookingParams struct {
	UserID          uuid.UUID
	TableID         uuid.UUID
	Start           time.Time
	GuestCount      int
	DurationMinutes int
	Status          models.BookingStatus
	Notes           string
	// SkipAvailabilityCheck persists without looking for overlapping bookings.
	SkipAvailabilityCheck bool
}

// UpdateOptions selects the fields UpdateBooking writes. An empty Fields
// list writes every mutable field.
type UpdateOptions struct {
	Fields                []string
	SkipAvailabilityCheck bool
}

// CreateBooking checks the table for overlapping active bookings and
// persists the booking. The check and the insert run under the table lock.
func (s *Service) CreateBooking(ctx context.Context, p BookingParams) (*models.Booking, error) {
	if p.DurationMinutes == 0 {
		p.DurationMinutes = s.Rules().DefaultDurationMinutes
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	if !p.Status.IsActive() {
		return nil, invalid("status", p.Status, "new bookings must be %s or %s", models.StatusPending, models.StatusConfirmed)
	}
	if err := s.validatePolicy(p.GuestCount, p.DurationMinutes); err != nil {
		return nil, err
	}

	release, err := s.lockTable(ctx, p.TableID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checkCapacity(ctx, p.TableID, p.GuestCount); err != nil {
		return nil, err
	}
	if !p.SkipAvailabilityCheck {
		if err := s.ensureAvailable(ctx, p.TableID, p.Start, p.DurationMinutes, nil); err != nil {
			return nil, err
		}
	}

	b := &models.Booking{
		UserID:          p.UserID,
		TableID:         p.TableID,
		Start:           p.Start,
		GuestCount:      p.GuestCount,
		DurationMinutes: p.DurationMinutes,
		Status:          p.Status,
		Notes:           p.Notes,
	}
	if err := s.engine.Create(ctx, b); err != nil {
		return nil, err
	}

	metrics.IncBookingCreated(string(b.Status))
	s.publish(events.BookingCreated, b)
	s.logger.Info().
		Str("booking_id", b.ID.String()).
		Str("table_id", b.TableID.String()).
		Time("start", b.Start).
		Int("duration", b.DurationMinutes).
		Msg("Booking created")
	return b, nil
}

// UpdateBooking writes the selected fields of b. A change of table, start
// or duration is checked again for overlaps, ignoring b itself. The update
// timestamp is always refreshed.
func (s *Service) UpdateBooking(ctx context.Context, b *models.Booking, opts UpdateOptions) (*models.Booking, error) {
	fields := opts.Fields
	prior, err := s.GetBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, &NotFoundError{Entity: "booking", ID: b.ID}
	}

	// Untouched fields keep their stored values.
	next := *prior
	if touches(fields, "table_id") {
		next.TableID = b.TableID
	}
	if touches(fields, "booking_start") {
		next.Start = b.Start
	}
	if touches(fields, "duration_minutes") {
		next.DurationMinutes = b.DurationMinutes
	}
	if touches(fields, "guest_count") {
		next.GuestCount = b.GuestCount
	}
	if touches(fields, "status") {
		next.Status = b.Status
	}

	if !next.Status.Valid() {
		return nil, invalid("status", next.Status, "unknown status")
	}
	if !models.CanTransition(prior.Status, next.Status) {
		return nil, invalid("status", next.Status, "cannot change status from %s to %s", prior.Status, next.Status)
	}
	if err := s.validatePolicy(next.GuestCount, next.DurationMinutes); err != nil {
		return nil, err
	}

	release, err := s.lockTable(ctx, next.TableID)
	if err != nil {
		return nil, err
	}
	defer release()

	if touches(fields, "guest_count") || touches(fields, "table_id") {
		if err := s.checkCapacity(ctx, next.TableID, next.GuestCount); err != nil {
			return nil, err
		}
	}

	moved := next.TableID != prior.TableID ||
		!next.Start.Equal(prior.Start) ||
		next.DurationMinutes != prior.DurationMinutes
	if moved && !opts.SkipAvailabilityCheck && next.Status.IsActive() {
		if err := s.ensureAvailable(ctx, next.TableID, next.Start, next.DurationMinutes, &b.ID); err != nil {
			return nil, err
		}
	}

	b.UpdatedAt = s.now()
	if len(fields) > 0 && !touches(fields, "updated_at") {
		fields = append(append([]string(nil), fields...), "updated_at")
	}
	if err := s.engine.Update(ctx, b, fields...); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "booking", ID: b.ID}
		}
		return nil, err
	}

	if b.Status != prior.Status {
		metrics.IncBookingStatusChanged(string(b.Status))
	}
	s.publish(events.BookingUpdated, b)
	return b, nil
}

// ConfirmBooking moves a booking to confirmed without re-checking overlaps.
// An unknown id yields (nil, nil).
func (s *Service) ConfirmBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil || b == nil {
		return nil, err
	}
	if !models.CanTransition(b.Status, models.StatusConfirmed) {
		return nil, invalid("status", b.Status, "cannot confirm a %s booking", b.Status)
	}
	if b.Status == models.StatusConfirmed {
		return b, nil
	}
	return s.setStatus(ctx, b, models.StatusConfirmed, events.BookingConfirmed)
}

// CancelBooking moves a booking to cancelled, which frees its interval.
// Cancelling a cancelled booking returns it unchanged. An unknown id yields (nil, nil).
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil || b == nil {
		return nil, err
	}
	if b.Status == models.StatusCancelled {
		return b, nil
	}
	return s.setStatus(ctx, b, models.StatusCancelled, events.BookingCancelled)
}

func (s *Service) setStatus(ctx context.Context, b *models.Booking, status models.BookingStatus, eventType string) (*models.Booking, error) {
	from := b.Status
	b.Status = status
	b.UpdatedAt = s.now()
	if err := s.engine.Update(ctx, b, "status", "updated_at"); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	metrics.IncBookingStatusChanged(string(status))
	s.publish(eventType, b)
	s.logger.Info().
		Str("booking_id", b.ID.String()).
		Str("from", string(from)).
		Str("to", string(status)).
		Msg("Booking status changed")
	return b, nil
}

func (s *Service) DeleteBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	removed, err := s.engine.Delete(ctx, models.BookingSchema(), id)
	if err != nil {
		return false, err
	}
	if removed {
		s.publish(events.BookingDeleted, map[string]string{"id": id.String()})
	}
	return removed, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return database.ReadByID[models.Booking](ctx, s.engine, id)
}

func (s *Service) ListBookings(ctx context.Context, filters map[string]any, orderBy string) ([]models.Booking, error) {
	return database.ReadMany[models.Booking](ctx, s.engine, database.Query{Filters: filters, OrderBy: orderBy})
}

func (s *Service) BookingsByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	return s.ListBookings(ctx, map[string]any{"user_id": userID}, "booking_start")
}

func (s *Service) BookingsByTable(ctx context.Context, tableID uuid.UUID) ([]models.Booking, error) {
	return s.ListBookings(ctx, map[string]any{"table_id": tableID}, "booking_start")
}

// BookingsByDateRange returns bookings starting within [from, to], ascending by start.
func (s *Service) BookingsByDateRange(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	return database.Select[models.Booking](ctx, s.engine,
		"booking_start >= ? AND booking_start <= ?", []any{from, to},
		database.Query{OrderBy: "booking_start"})
}

func (s *Service) validatePolicy(guestCount, durationMinutes int) error {
	rules := s.Rules()
	if guestCount <= 0 {
		return invalid("guest_count", guestCount, "must be positive")
	}
	if durationMinutes <= 0 {
		return invalid("duration_minutes", durationMinutes, "must be positive")
	}
	if rules.MaxDurationMinutes > 0 && durationMinutes > rules.MaxDurationMinutes {
		return invalid("duration_minutes", durationMinutes, "must not exceed %d minutes", rules.MaxDurationMinutes)
	}
	return nil
}

func (s *Service) checkCapacity(ctx context.Context, tableID uuid.UUID, guestCount int) error {
	if !s.Rules().EnforceCapacity {
		return nil
	}
	table, err := s.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if table == nil {
		return invalid("table_id", tableID, "table not found")
	}
	if guestCount > table.Capacity {
		return invalid("guest_count", guestCount, "table #%d seats at most %d guests", table.Number, table.Capacity)
	}
	return nil
}

func (s *Service) ensureAvailable(ctx context.Context, tableID uuid.UUID, start time.Time, durationMinutes int, exclude *uuid.UUID) error {
	avail, err := s.CheckAvailability(ctx, tableID, start, durationMinutes, exclude)
	if err != nil {
		return err
	}
	if avail.Available {
		return nil
	}
	if avail.Conflict == nil {
		return &ValidationError{Field: "table_id", Value: tableID, Reason: avail.Reason}
	}
	metrics.IncBookingConflict()
	s.logger.Info().
		Str("table_id", tableID.String()).
		Str("conflict_id", avail.Conflict.ID.String()).
		Msg("Booking rejected: interval conflict")
	return &ValidationError{Field: "booking_start", Value: start, Reason: avail.Reason, Conflict: avail.Conflict}
}
