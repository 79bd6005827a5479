package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fd_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fd_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	TicketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fd_tickets_issued_total",
			Help: "Total tickets issued",
		},
	)

	MessagesPosted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fd_chat_messages_posted_total",
			Help: "Total chat messages posted",
		},
	)

	MessagesModerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fd_chat_messages_moderated_total",
			Help: "Total chat messages soft-deleted by moderation",
		},
	)

	AdmissionsDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fd_admissions_denied_total",
			Help: "Total realtime admissions denied",
		},
		[]string{"reason"},
	)

	// Realtime metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fd_realtime_active_connections",
			Help: "Currently active realtime connections",
		},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fd_realtime_broadcasts_total",
			Help: "Total room broadcasts",
		},
		[]string{"kind"},
	)

	ConnectionsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fd_realtime_connections_pruned_total",
			Help: "Connections dropped after a failed send during broadcast",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fd_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
