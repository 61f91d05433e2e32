package service

import (
	"context"
	"errors"
	"strings"

	"tablebook/internal/database"
	"tablebook/internal/models"

	"github.com/google/uuid"
)

// CreateUser persists a user whose name is not taken yet.
func (s *Service) CreateUser(ctx context.Context, name, phone, email string) (*models.User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalid("name", name, "must not be empty")
	}
	if err := s.ensureUserNameFree(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}

	u := &models.User{Name: name, Phone: phone, Email: email}
	if err := s.engine.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("name", u.Name).Msg("User created")
	return u, nil
}

// UpdateUser writes the listed fields of u (all mutable fields when none are
// listed). A name change is checked against every other user.
func (s *Service) UpdateUser(ctx context.Context, u *models.User, fields ...string) (*models.User, error) {
	if touches(fields, "name") {
		if strings.TrimSpace(u.Name) == "" {
			return nil, invalid("name", u.Name, "must not be empty")
		}
		if err := s.ensureUserNameFree(ctx, u.Name, u.ID); err != nil {
			return nil, err
		}
	}
	if err := s.engine.Update(ctx, u, fields...); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "user", ID: u.ID}
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) ensureUserNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.GetUserByName(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != self {
		return invalid("name", name, "user %q already exists", name)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return database.ReadByID[models.User](ctx, s.engine, id)
}

func (s *Service) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	users, err := database.ReadMany[models.User](ctx, s.engine, database.Query{
		Filters: map[string]any{"name": name},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	return firstOrNil(users), nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	users, err := database.ReadMany[models.User](ctx, s.engine, database.Query{
		Filters: map[string]any{"email": email},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	return firstOrNil(users), nil
}

func (s *Service) ListUsers(ctx context.Context, filters map[string]any, orderBy string) ([]models.User, error) {
	return database.ReadMany[models.User](ctx, s.engine, database.Query{Filters: filters, OrderBy: orderBy})
}

// DeleteUser removes the user. Users that still own bookings are refused by
// the storage foreign key and surface as a persistence error.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.engine.Delete(ctx, models.UserSchema(), id)
}
