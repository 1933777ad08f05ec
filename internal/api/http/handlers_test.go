package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/gui/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
	"github.com/GriffinCanCode/AgentOS/gui/internal/render"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDesktop struct {
	snap   desktop.Snapshot
	mobile bool
	frames render.PacingStats
}

func (f *fakeDesktop) Snapshot() desktop.Snapshot     { return f.snap }
func (f *fakeDesktop) Mobile() bool                   { return f.mobile }
func (f *fakeDesktop) FrameStats() render.PacingStats { return f.frames }

func sampleDesktop() *fakeDesktop {
	return &fakeDesktop{
		snap: desktop.Snapshot{
			Surfaces: []desktop.Surface{
				{ID: 1, Owner: 100, Title: "term", State: desktop.StateMapped, Geometry: desktop.Rect{Width: 800, Height: 600}},
				{ID: 2, Owner: 101, Title: "editor", State: desktop.StateCreated, Workspace: desktop.Unassigned},
			},
			ZOrder:     []protocol.SurfaceID{1},
			FocusOrder: []protocol.SurfaceID{1},
			Focused:    1,
			Workspaces: []desktop.Workspace{
				{Index: 0, Name: "main", Active: true, Surfaces: 1},
				{Index: 1, Name: "web"},
			},
			Output: desktop.Rect{Width: 1920, Height: 1080},
		},
		frames: render.PacingStats{Frames: 10, Samples: 9, MeanMS: 16.7},
	}
}

func get(t *testing.T, r http.Handler, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	}
	return w.Code, body
}

func TestEndpoints(t *testing.T) {
	r := NewRouter(Options{Desktop: sampleDesktop()})

	tests := []struct {
		path  string
		check func(t *testing.T, body map[string]any)
	}{
		{"/healthz", func(t *testing.T, body map[string]any) {
			assert.Equal(t, "ok", body["status"])
		}},
		{"/surfaces", func(t *testing.T, body map[string]any) {
			assert.Equal(t, 2.0, body["count"])
			surfaces := body["surfaces"].([]any)
			first := surfaces[0].(map[string]any)
			assert.Equal(t, "term", first["title"])
			assert.Equal(t, "mapped", first["state"])
		}},
		{"/workspaces", func(t *testing.T, body map[string]any) {
			assert.Equal(t, 0.0, body["active"])
			assert.Len(t, body["workspaces"], 2)
		}},
		{"/focus", func(t *testing.T, body map[string]any) {
			assert.Equal(t, 1.0, body["focused"])
			assert.Equal(t, "term", body["surface"].(map[string]any)["title"])
		}},
		{"/device", func(t *testing.T, body map[string]any) {
			assert.Equal(t, false, body["mobile"])
			assert.Equal(t, "desktop", body["type"])
		}},
		{"/frames", func(t *testing.T, body map[string]any) {
			pacing := body["pacing"].(map[string]any)
			assert.Equal(t, 10.0, pacing["frames"])
			assert.Equal(t, 16.7, pacing["mean_ms"])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, r, tt.path)
			require.Equal(t, http.StatusOK, code)
			tt.check(t, body)
		})
	}
}

func TestFocusWithoutFocusedSurface(t *testing.T) {
	d := sampleDesktop()
	d.snap.Focused = 0
	_, body := get(t, NewRouter(Options{Desktop: d}), "/focus")

	assert.Equal(t, 0.0, body["focused"])
	assert.NotContains(t, body, "surface")
}

func TestDeviceMobile(t *testing.T) {
	d := sampleDesktop()
	d.mobile = true
	_, body := get(t, NewRouter(Options{Desktop: d}), "/device")

	assert.Equal(t, true, body["mobile"])
	assert.Equal(t, "mobile", body["type"])
}

func TestStatusAPIIsReadOnly(t *testing.T) {
	r := NewRouter(Options{Desktop: sampleDesktop()})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/surfaces", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	r := NewRouter(Options{Desktop: sampleDesktop(), Gatherer: reg, Metrics: metrics})

	get(t, r, "/surfaces")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gui_status_http_requests_total")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/surfaces", "200")))
}

func TestEventsRouteIsOptional(t *testing.T) {
	code, _ := get(t, NewRouter(Options{Desktop: sampleDesktop()}), "/events")
	assert.Equal(t, http.StatusNotFound, code)

	called := false
	r := NewRouter(Options{Desktop: sampleDesktop(), Events: func(c *gin.Context) {
		called = true
		c.Status(http.StatusNoContent)
	}})
	code, _ = get(t, r, "/events")
	assert.Equal(t, http.StatusNoContent, code)
	assert.True(t, called)
}

func TestRouterTracing(t *testing.T) {
	r := NewRouter(Options{Desktop: sampleDesktop(), Tracer: tracing.New("status", nil)})

	req := httptest.NewRequest(http.MethodGet, "/surfaces", nil)
	req.Header.Set(tracing.HeaderTraceID, "trc_shell")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trc_shell", w.Header().Get(tracing.HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(tracing.HeaderSpanID))
}

func TestRouterRateLimit(t *testing.T) {
	r := NewRouter(Options{
		Desktop:   sampleDesktop(),
		RateLimit: middleware.RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
	})

	code, _ := get(t, r, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, r, "/healthz")
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestServerShutsDownWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), NewRouter(Options{Desktop: sampleDesktop()}), nil)
	hooked := make(chan struct{})
	srv.OnShutdown(func() { close(hooked) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "ok")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	<-hooked
}
