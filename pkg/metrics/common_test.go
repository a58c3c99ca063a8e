package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCounter(t *testing.T) {
	counter := NewCounter("test_events", "metrics_test", "events seen by the test", []string{"kind"})
	counter.WithLabelValues("a").Inc()
	counter.WithLabelValues("a").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(counter.WithLabelValues("a")))
	assert.Equal(t, 0.0, testutil.ToFloat64(counter.WithLabelValues("b")))
}

func TestHandler(t *testing.T) {
	gauge := NewGauge("test_height", "metrics_test", "height seen by the test", []string{})
	gauge.WithLabelValues().Set(7)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "frooties_metrics_test_test_height 7")
}
