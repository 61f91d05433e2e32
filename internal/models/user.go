package models

import (
	"time"

	"tablebook/internal/database"

	"github.com/google/uuid"
)

// User is a client who reserves tables. Name is globally unique (exact match).
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

var userSchema = &database.Schema{
	Table: "users",
	Fields: []database.Field{
		{Name: "id", Type: database.Identifier, Identifier: true, HasDefault: true},
		{Name: "name", Type: database.Text, Unique: true},
		{Name: "phone", Type: database.Text},
		{Name: "email", Type: database.Text},
		{Name: "created_at", Type: database.Timestamp, HasDefault: true, Immutable: true},
	},
}

// UserSchema is the storage descriptor of User.
func UserSchema() *database.Schema { return userSchema }

func (u *User) Schema() *database.Schema { return userSchema }
func (u *User) Identifier() any          { return u.ID }

func (u *User) FieldValues() []any {
	return []any{u.ID, u.Name, u.Phone, u.Email, u.CreatedAt}
}

func (u *User) FieldPointers() []any {
	return []any{&u.ID, &u.Name, &u.Phone, &u.Email, &u.CreatedAt}
}

func (u *User) ApplyDefaults(now time.Time) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
}
