package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gatekeeper",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "rate",
		Name:      "rejections_total",
		Help:      "Requests rejected by the rate limiter, by route class.",
	}, []string{"class"})

	TokenRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "magiclink",
		Name:      "redemptions_total",
		Help:      "Magic link redemption attempts by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gatekeeper",
		Subsystem: "audit",
		Name:      "dropped_total",
		Help:      "Audit entries dropped because the queue was full.",
	})
)
