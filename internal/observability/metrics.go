package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsPosted    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "requests_posted_total", Help: "Ride requests created"})
	RequestsConfirmed = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "requests_confirmed_total", Help: "Ride requests confirmed with a driver"})
	RequestsCancelled = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "requests_cancelled_total", Help: "Ride requests cancelled"})
	RequestsCompleted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "requests_completed_total", Help: "Ride requests completed"})

	LoginsTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "logins_total", Help: "Successful logins"})
	PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "payments_recorded_total", Help: "Payments recorded"})
	DriversConnected = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_marketplace", Name: "drivers_connected", Help: "Drivers with an open websocket session"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_marketplace", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_marketplace",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
