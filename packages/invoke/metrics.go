package invoke

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hitlambda",
			Name:      "invocations_total",
			Help:      "Invocations that reached the transport, by verb and status class.",
		},
		[]string{"verb", "class"},
	)

	invocationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hitlambda",
			Name:      "invocation_failures_total",
			Help:      "Invocations that failed before a response was classified.",
		},
		[]string{"verb"},
	)

	invocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hitlambda",
			Name:      "invocation_duration_seconds",
			Help:      "Time from dispatch to a classified response.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"verb"},
	)
)

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
