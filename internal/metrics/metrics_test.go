package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(bookingCreated.WithLabelValues("pending"))
	IncBookingCreated("pending")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingCreated.WithLabelValues("pending")))

	conflicts := testutil.ToFloat64(bookingConflicts)
	IncBookingConflict()
	assert.Equal(t, conflicts+1, testutil.ToFloat64(bookingConflicts))

	changed := testutil.ToFloat64(bookingStatusChanged.WithLabelValues("cancelled"))
	IncBookingStatusChanged("cancelled")
	assert.Equal(t, changed+1, testutil.ToFloat64(bookingStatusChanged.WithLabelValues("cancelled")))
}

func TestObserveStorageOp(t *testing.T) {
	failed := testutil.ToFloat64(storageErrors.WithLabelValues("raw_query", "raw"))
	ObserveStorageOp("raw_query", "", 3*time.Millisecond, errors.New("boom"))
	ObserveStorageOp("raw_query", "", time.Millisecond, nil)
	assert.Equal(t, failed+1, testutil.ToFloat64(storageErrors.WithLabelValues("raw_query", "raw")))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(storageDuration), 1)
}
