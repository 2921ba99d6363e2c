package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/itc"
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

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, time.Since(start))
	}
}

// Timer measures server request duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	service itc.ServiceID
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, service itc.ServiceID) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		service: service,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(status string) {
	if t.metrics == nil {
		return
	}
	t.metrics.RecordServerRequest(t.service, status, time.Since(t.start))
}
