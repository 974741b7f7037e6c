package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salon_bookings_created_total",
		Help: "Bookings accepted by the conflict engine.",
	})

	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salon_booking_conflicts_total",
		Help: "Booking requests rejected because of a slot conflict.",
	})

	BookingsCanceled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salon_bookings_canceled_total",
		Help: "Bookings moved to the deleted state, by source.",
	}, []string{"source"}) // token, worker, sweep

	BookingsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salon_bookings_purged_total",
		Help: "Bookings permanently erased by the maintenance sweep.",
	})

	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salon_sweep_runs_total",
		Help: "Maintenance sweep invocations.",
	}, []string{"status"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salon_notifications_total",
		Help: "Notification deliveries by kind and outcome.",
	}, []string{"kind", "status"})

	WorkerLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salon_worker_logins_total",
		Help: "Worker login attempts by outcome.",
	}, []string{"status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "salon_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "salon_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func RecordCancellation(source string) {
	BookingsCanceled.WithLabelValues(source).Inc()
}

func RecordNotification(kind, status string) {
	NotificationsSent.WithLabelValues(kind, status).Inc()
}

func RecordSweep(expired, purged int64, err error) {
	if err != nil {
		SweepRuns.WithLabelValues("error").Inc()
		return
	}
	SweepRuns.WithLabelValues("ok").Inc()
	BookingsCanceled.WithLabelValues("sweep").Add(float64(expired))
	BookingsPurged.Add(float64(purged))
}
