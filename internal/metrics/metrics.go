package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anomalies_detected_total",
		Help: "Total number of anomalous telemetry records reported",
	}, []string{"method"})

	RecordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_records_processed_total",
		Help: "Total number of telemetry records analysed",
	}, []string{"analysis"})

	AnalysisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_errors_total",
		Help: "Total number of failed analyses",
	}, []string{"analysis", "kind"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Total number of requests rejected by the rate limiter",
	})
)
