package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/events"
	"tablebook/internal/export"
	"tablebook/internal/lock"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
	"tablebook/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

func main() {
	configFlag := flag.String("config", "", "config file (default $TABLEBOOK_CONFIG or configs/config.yaml)")
	initSchema := flag.Bool("init-schema", false, "create missing tables and exit")
	drop := flag.Bool("drop", false, "drop and recreate all tables before starting")
	exportFrom := flag.String("export-from", "", "write a booking report starting at this date (YYYY-MM-DD) and exit")
	exportTo := flag.String("export-to", "", "last day of the report (defaults to -export-from)")
	exportOut := flag.String("export-out", "", "report file path")
	flag.Parse()

	configPath := config.Path(*configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := database.Open(ctx, cfg.Database, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database error")
	}
	defer engine.Close()

	if err := engine.EnsureSchema(ctx, *drop, models.Schemas()...); err != nil {
		logger.Fatal().Err(err).Msg("schema setup error")
	}
	if *initSchema {
		logger.Info().Msg("Schema ready")
		return
	}

	if *exportFrom != "" {
		if err := runExport(ctx, engine, *exportFrom, *exportTo, *exportOut, &logger); err != nil {
			logger.Fatal().Err(err).Msg("export failed")
		}
		return
	}

	locker, rdb := newLocker(ctx, cfg, &logger)
	if rdb != nil {
		defer rdb.Close()
	}

	bus := events.NewEventBus(&logger)
	for _, et := range []string{
		events.BookingCreated, events.BookingUpdated, events.BookingConfirmed,
		events.BookingCancelled, events.BookingDeleted,
	} {
		bus.Subscribe(et, func(e events.Event) error {
			logger.Debug().Str("type", e.Type).Int64("event_id", e.ID).RawJSON("payload", e.Payload).Msg("Booking event")
			return nil
		})
	}

	svc := service.New(engine, locker, bus, rulesFrom(cfg.Booking), &logger)

	if cfg.Booking.ReloadSeconds > 0 {
		err := config.Watch(ctx, configPath, time.Duration(cfg.Booking.ReloadSeconds)*time.Second,
			func(c *config.Config) {
				svc.SetRules(rulesFrom(c.Booking))
				logger.Info().Interface("rules", svc.Rules()).Msg("Booking rules reloaded")
			},
			func(err error) {
				logger.Warn().Err(err).Msg("Ignoring invalid config change")
			})
		if err != nil {
			logger.Warn().Err(err).Msg("config watch disabled")
		}
	}

	if engine.Dialect().DriverName() == database.DriverSQLite {
		backup := database.NewBackupService(engine, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, engine, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("lock", cfg.Booking.Lock).
		Msg("Table booking service started")
	<-ctx.Done()
	logger.Info().Msg("Shutting down")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func rulesFrom(b config.BookingConfig) service.Rules {
	return service.Rules{
		DefaultDurationMinutes: b.DefaultDurationMinutes,
		MaxDurationMinutes:     b.MaxDurationMinutes,
		EnforceCapacity:        b.EnforceCapacity,
	}
}

// newLocker builds the per-table booking lock. A redis lock falls back to the
// in-process one while the server is unreachable.
func newLocker(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (lock.Locker, *redis.Client) {
	switch cfg.Booking.Lock {
	case lock.ModeNone:
		logger.Warn().Msg("Booking lock disabled: concurrent overlapping bookings are possible")
		return lock.Noop{}, nil
	case lock.ModeRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		rl := lock.NewRedis(rdb, lock.RedisConfig{
			TTL:  cfg.Booking.LockTTL(),
			Wait: cfg.Booking.LockWait(),
		}, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rl.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable at startup, falling back to local lock until it recovers")
		}
		return lock.NewFailover(rl, lock.NewLocal(), logger), rdb
	default:
		return lock.NewLocal(), nil
	}
}

func runExport(ctx context.Context, engine *database.Engine, fromArg, toArg, out string, logger *zerolog.Logger) error {
	from, err := time.ParseInLocation(dateLayout, fromArg, time.Local)
	if err != nil {
		return fmt.Errorf("parse -export-from: %w", err)
	}
	to := from
	if toArg != "" {
		if to, err = time.ParseInLocation(dateLayout, toArg, time.Local); err != nil {
			return fmt.Errorf("parse -export-to: %w", err)
		}
	}
	if to.Before(from) {
		return fmt.Errorf("-export-to %s is before -export-from %s", toArg, fromArg)
	}
	if out == "" {
		out = export.ReportFilename(from, to)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	exp := export.NewExporter(engine, func() export.ExcelWriter { return export.NewExcelizeWriter(time.Local) }, logger)
	// The last day is inclusive up to its final second.
	n, err := exp.BookingReport(ctx, from, to.AddDate(0, 0, 1).Add(-time.Second), f)
	if err != nil {
		return err
	}
	logger.Info().Str("file", out).Int("bookings", n).Msg("Report written")
	return nil
}

func startHealthServer(ctx context.Context, port int, engine *database.Engine, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := engine.Ping(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
