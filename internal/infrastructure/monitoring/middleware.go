package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware counting status API requests
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Timer measures one broker call
type Timer struct {
	start   time.Time
	metrics *Metrics
	op      string
}

// NewTimer starts timing a compositor to broker call
func NewTimer(metrics *Metrics, op string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		op:      op,
	}
}

// Stop records the call with its result
func (t *Timer) Stop(result string) {
	t.metrics.RecordIPCCall(t.op, result, time.Since(t.start))
}
