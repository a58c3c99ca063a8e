package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fbslo/frooties-contract/pkg/metrics"
)

const namespace = "rpc"

var (
	requestCounter = metrics.NewCounter(
		"requests",
		namespace,
		"number of JSON-RPC requests by method and outcome",
		[]string{"method", "status"},
	)

	requestDuration = metrics.NewHistogramWithBuckets(
		"request_duration_seconds",
		namespace,
		"duration of JSON-RPC requests",
		[]string{"method"},
		prometheus.ExponentialBuckets(0.0005, 4, 8),
	)
)

func observe(method string, err *ErrorObject, took time.Duration) {
	if err != nil && err.Code == ErrCodeMethodNotFound {
		method = "unknown"
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	requestCounter.WithLabelValues(method, status).Inc()
	requestDuration.WithLabelValues(method).Observe(took.Seconds())
}
