package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Mark(OutcomeMarked)
	m.Mark(OutcomeMarked)
	m.Mark(OutcomeAlreadyMarked)
	m.StudentRegistered()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.marks.WithLabelValues(OutcomeMarked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.marks.WithLabelValues(OutcomeAlreadyMarked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registered))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Mark(OutcomeMarked)
		m.StudentRegistered()
	})
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/students/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/api/students/a", "/api/students/b", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(reg, "http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per route template and status")
}
