package service

import (
	"context"
	"errors"

	"tablebook/internal/database"
	"tablebook/internal/models"

	"github.com/google/uuid"
)

// CreateTable persists a table whose number is not taken yet.
func (s *Service) CreateTable(ctx context.Context, number, capacity int, location models.Location, isAvailable bool) (*models.Table, error) {
	t := &models.Table{Number: number, Capacity: capacity, Location: location, IsAvailable: isAvailable}
	if err := validateTable(t, nil); err != nil {
		return nil, err
	}
	if err := s.ensureTableNumberFree(ctx, number, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.engine.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info().Int("number", t.Number).Int("capacity", t.Capacity).Msg("Table created")
	return t, nil
}

// UpdateTable writes the listed fields of t with the same number uniqueness
// rule as CreateTable.
func (s *Service) UpdateTable(ctx context.Context, t *models.Table, fields ...string) (*models.Table, error) {
	if err := validateTable(t, fields); err != nil {
		return nil, err
	}
	if touches(fields, "number") {
		if err := s.ensureTableNumberFree(ctx, t.Number, t.ID); err != nil {
			return nil, err
		}
	}
	if err := s.engine.Update(ctx, t, fields...); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "table", ID: t.ID}
		}
		return nil, err
	}
	return t, nil
}

func validateTable(t *models.Table, fields []string) error {
	if touches(fields, "number") && t.Number <= 0 {
		return invalid("number", t.Number, "must be positive")
	}
	if touches(fields, "capacity") && t.Capacity <= 0 {
		return invalid("capacity", t.Capacity, "must be positive")
	}
	if touches(fields, "location") && !t.Location.Valid() {
		return invalid("location", t.Location, "must be one of %v", models.Locations)
	}
	return nil
}

func (s *Service) ensureTableNumberFree(ctx context.Context, number int, self uuid.UUID) error {
	existing, err := s.GetTableByNumber(ctx, number)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return invalid("number", number, "table #%d already exists", number)
	}
	return nil
}

func (s *Service) GetTable(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	return database.ReadByID[models.Table](ctx, s.engine, id)
}

func (s *Service) GetTableByNumber(ctx context.Context, number int) (*models.Table, error) {
	tables, err := database.ReadMany[models.Table](ctx, s.engine, database.Query{
		Filters: map[string]any{"number": number},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	return firstOrNil(tables), nil
}

func (s *Service) ListTables(ctx context.Context, filters map[string]any, orderBy string) ([]models.Table, error) {
	return database.ReadMany[models.Table](ctx, s.engine, database.Query{Filters: filters, OrderBy: orderBy})
}

func (s *Service) DeleteTable(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.engine.Delete(ctx, models.TableSchema(), id)
}

// AvailableTables lists switched-on tables seating at least minCapacity
// guests, optionally in one location, ordered by number. The capacity bound
// is informational and does not consider existing bookings.
func (s *Service) AvailableTables(ctx context.Context, minCapacity int, location models.Location) ([]models.Table, error) {
	filters := map[string]any{"is_available": true}
	if location != "" {
		filters["location"] = location
	}
	q := database.Query{Filters: filters, OrderBy: "number"}
	if minCapacity > 0 {
		return database.Select[models.Table](ctx, s.engine, "capacity >= ?", []any{minCapacity}, q)
	}
	return database.ReadMany[models.Table](ctx, s.engine, q)
}
