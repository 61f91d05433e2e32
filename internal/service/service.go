// Package service enforces the reservation rules on top of the storage
// engine: unique user names and table numbers, disjoint active booking
// intervals per table and the forward-only booking status lifecycle.
package service

import (
	"context"
	"sync"
	"time"

	"tablebook/internal/database"
	"tablebook/internal/lock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventPublisher receives booking lifecycle notifications.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Rules are the booking policy knobs.
type Rules struct {
	DefaultDurationMinutes int
	// MaxDurationMinutes caps a booking's length; zero disables the cap.
	MaxDurationMinutes int
	// EnforceCapacity rejects bookings whose guest count exceeds the table capacity.
	EnforceCapacity bool
}

type Service struct {
	engine *database.Engine
	locker lock.Locker
	events EventPublisher
	logger zerolog.Logger

	rulesMu sync.RWMutex
	rules   Rules

	now func() time.Time
}

// New wires the service. A nil locker leaves check-then-write unserialized
// and a nil publisher drops lifecycle events.
func New(engine *database.Engine, locker lock.Locker, events EventPublisher, rules Rules, logger *zerolog.Logger) *Service {
	if locker == nil {
		locker = lock.Noop{}
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Service{
		engine: engine,
		locker: locker,
		events: events,
		rules:  rules.withDefaults(),
		logger: l.With().Str("component", "booking_service").Logger(),
		now:    time.Now,
	}
}

func (r Rules) withDefaults() Rules {
	if r.DefaultDurationMinutes <= 0 {
		r.DefaultDurationMinutes = 120
	}
	return r
}

// SetRules swaps the booking policy for subsequent calls.
func (s *Service) SetRules(r Rules) {
	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()
	s.rules = r.withDefaults()
}

func (s *Service) Rules() Rules {
	s.rulesMu.RLock()
	defer s.rulesMu.RUnlock()
	return s.rules
}

func (s *Service) publish(eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func (s *Service) lockTable(ctx context.Context, tableID uuid.UUID) (func(), error) {
	return s.locker.Lock(ctx, "table:"+tableID.String())
}

// touches reports whether an update with the given field list writes name.
// An empty list writes every mutable field.
func touches(fields []string, name string) bool {
	if len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

func firstOrNil[T any](items []T) *T {
	if len(items) == 0 {
		return nil
	}
	return &items[0]
}
