package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordBrokerRequest("request_gpu", "granted", time.Millisecond)
	m.RecordBrokerRequest("request_gpu", "granted", time.Millisecond)
	m.RecordBrokerRequest("request_gpu", "denied", time.Millisecond)
	m.SetBrokerState(4096, true)
	m.IncCascade("unregister")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BrokerRequests.WithLabelValues("request_gpu", "granted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BrokerRequests.WithLabelValues("request_gpu", "denied")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.GPUCommittedMB))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompositorRegistered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cascades.WithLabelValues("unregister")))

	m.SetBrokerState(0, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CompositorRegistered))
}

func TestSetSurfacesReplacesStates(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetSurfaces(map[string]int{"mapped": 3, "created": 1})
	m.SetSurfaces(map[string]int{"mapped": 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Surfaces.WithLabelValues("mapped")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Surfaces))
}

func TestTimerRecordsIPCCall(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	NewTimer(m, "create_surface").Stop("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IPCCalls.WithLabelValues("create_surface", "success")))
}

func TestMiddlewareCountsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/focus", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/focus", nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/focus", "204")))
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
