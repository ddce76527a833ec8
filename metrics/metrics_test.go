package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		ObserveHTTP("GET", "/api/rooms", 200, 15*time.Millisecond)
		ObserveHTTP("GET", "", 404, time.Millisecond)
		ObserveBookingTx(3 * time.Millisecond)
		AddCompleted(2)
		IncEvent("booking.created", "ok")
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(bookingAttempts.WithLabelValues("error.dateConflict"))
	IncBooking("error.dateConflict")
	IncBooking("error.dateConflict")
	assert.Equal(t, before+2, testutil.ToFloat64(bookingAttempts.WithLabelValues("error.dateConflict")))

	before = testutil.ToFloat64(notifications.WithLabelValues("confirmation", "failed"))
	IncNotification("confirmation", "failed")
	assert.Equal(t, before+1, testutil.ToFloat64(notifications.WithLabelValues("confirmation", "failed")))

	before = testutil.ToFloat64(roomCache.WithLabelValues("hit"))
	IncRoomCache("hit")
	assert.Equal(t, before+1, testutil.ToFloat64(roomCache.WithLabelValues("hit")))

	before = testutil.ToFloat64(cancellations.WithLabelValues("ok"))
	IncCancellation("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(cancellations.WithLabelValues("ok")))
}
