package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by initial status.",
		},
		[]string{"status"},
	)

	bookingStatusChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "booking_status_changed_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"status"},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "booking_conflicts_total",
			Help:      "Count of booking attempts rejected because the table was taken.",
		},
	)

	storageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tablebook",
			Name:      "storage_operation_duration_seconds",
			Help:      "Duration of persistence engine operations.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"op", "table"},
	)

	storageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "storage_errors_total",
			Help:      "Count of failed persistence engine operations.",
		},
		[]string{"op", "table"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingStatusChanged, bookingConflicts, storageDuration, storageErrors)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingStatusChanged(status string) {
	bookingStatusChanged.WithLabelValues(status).Inc()
}

func IncBookingConflict() {
	bookingConflicts.Inc()
}

// ObserveStorageOp records one engine call; table may be empty for raw statements.
func ObserveStorageOp(op, table string, elapsed time.Duration, err error) {
	if table == "" {
		table = "raw"
	}
	storageDuration.WithLabelValues(op, table).Observe(elapsed.Seconds())
	if err != nil {
		storageErrors.WithLabelValues(op, table).Inc()
	}
}
