package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mark outcomes reported on attendance_marks_total.
const (
	OutcomeMarked         = "marked"
	OutcomeAlreadyMarked  = "already_marked"
	OutcomeNotFound       = "student_not_found"
	OutcomeNoFaceData     = "no_face_data"
	OutcomeRejected       = "verification_failed"
	OutcomeStorageFailure = "storage_error"
)

// Metrics groups the service collectors. A nil *Metrics is a no-op.
type Metrics struct {
	marks      *prometheus.CounterVec
	registered prometheus.Counter
	duration   *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		marks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_marks_total",
			Help: "Attendance marking attempts by outcome.",
		}, []string{"outcome"}),
		registered: f.NewCounter(prometheus.CounterOpts{
			Name: "students_registered_total",
			Help: "Students successfully registered.",
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) Mark(outcome string) {
	if m == nil {
		return
	}
	m.marks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StudentRegistered() {
	if m == nil {
		return
	}
	m.registered.Inc()
}

// GinMiddleware observes request latency labelled by the matched route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.duration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
