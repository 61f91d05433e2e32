package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/lock"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExport(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	engine, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "cli.db")}, &logger)
	require.NoError(t, err)
	defer engine.Close()
	require.NoError(t, engine.EnsureSchema(ctx, false, models.Schemas()...))

	out := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, runExport(ctx, engine, "2024-06-01", "2024-06-30", out, &logger))
	assert.FileExists(t, out)

	assert.Error(t, runExport(ctx, engine, "June", "", out, &logger))
	assert.Error(t, runExport(ctx, engine, "2024-06-30", "2024-06-01", out, &logger))
}

func TestNewLocker(t *testing.T) {
	logger := zerolog.Nop()
	cfg := &config.Config{}

	cfg.Booking.Lock = lock.ModeNone
	l, rdb := newLocker(context.Background(), cfg, &logger)
	assert.IsType(t, lock.Noop{}, l)
	assert.Nil(t, rdb)

	cfg.Booking.Lock = lock.ModeLocal
	l, _ = newLocker(context.Background(), cfg, &logger)
	assert.IsType(t, &lock.Local{}, l)
}

func TestRulesFrom(t *testing.T) {
	r := rulesFrom(config.BookingConfig{DefaultDurationMinutes: 90, MaxDurationMinutes: 180, EnforceCapacity: true})
	assert.Equal(t, 90, r.DefaultDurationMinutes)
	assert.Equal(t, 180, r.MaxDurationMinutes)
	assert.True(t, r.EnforceCapacity)
}
