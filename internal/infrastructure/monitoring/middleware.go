package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		// Process request
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, time.Since(start))
	}
}

// Timer measures operation duration
type Timer struct {
	start     time.Time
	metrics   *Metrics
	component string
	op        string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, component, op string) *Timer {
	return &Timer{
		start:     time.Now(),
		metrics:   metrics,
		component: component,
		op:        op,
	}
}

// Stop stops the timer and records the duration and outcome
func (t *Timer) Stop(err error) time.Duration {
	duration := time.Since(t.start)
	t.metrics.RecordOperation(t.component, t.op, duration, err)
	return duration
}
