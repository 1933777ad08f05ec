package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, hub *Hub) string {
	t.Helper()
	r := gin.New()
	r.GET("/events", hub.Handler)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func next(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

func sampleSnapshot() desktop.Snapshot {
	return desktop.Snapshot{
		Surfaces: []desktop.Surface{{ID: 7, Owner: 100, Title: "term", Workspace: 0}},
		ZOrder:   []protocol.SurfaceID{7},
		Focused:  7,
		Workspaces: []desktop.Workspace{
			{Index: 0, Name: "main", Active: true, Surfaces: 1},
		},
	}
}

func TestHelloCarriesSnapshot(t *testing.T) {
	hub := NewHub(Options{Snapshot: sampleSnapshot})
	conn := dial(t, serve(t, hub))

	hello := next(t, conn)
	assert.Equal(t, "hello", hello.Type)
	assert.NotEmpty(t, hello.ID)
	assert.Equal(t, protocol.SurfaceID(7), hello.Focused)
	require.NotNil(t, hello.Snapshot)
	assert.Len(t, hello.Snapshot.Surfaces, 1)
	assert.Equal(t, "term", hello.Snapshot.Surfaces[0].Title)
}

func TestObserveSendsOneMessagePerKind(t *testing.T) {
	tests := []struct {
		name   string
		change desktop.Change
		want   []string
	}{
		{
			name:   "focus only",
			change: desktop.Change{FocusFrom: 1, FocusTo: 2},
			want:   []string{"focus"},
		},
		{
			name:   "workspace switch",
			change: desktop.Change{WorkspaceFrom: 0, WorkspaceTo: 1, Hidden: []protocol.SurfaceID{1}, FocusFrom: 1},
			want:   []string{"focus", "workspace", "visibility"},
		},
		{
			name:   "restack",
			change: desktop.Change{Restacked: true},
			want:   []string{"visibility"},
		},
		{
			name:   "nothing visible",
			change: desktop.Change{},
			want:   nil,
		},
	}

	hub := NewHub(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, m := range hub.messages(tt.change, desktop.Snapshot{}) {
				got = append(got, m.Type)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChangesReachSubscribers(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(Options{Metrics: metrics})
	url := serve(t, hub)
	a, b := dial(t, url), dial(t, url)
	next(t, a)
	next(t, b)

	snap := desktop.Snapshot{Focused: 3}
	hub.Observe(desktop.Change{FocusFrom: 0, FocusTo: 3, Shown: []protocol.SurfaceID{3}}, snap)

	for _, conn := range []*websocket.Conn{a, b} {
		focus := next(t, conn)
		assert.Equal(t, "focus", focus.Type)
		assert.Equal(t, protocol.SurfaceID(3), focus.Focused)

		vis := next(t, conn)
		assert.Equal(t, "visibility", vis.Type)
		assert.Equal(t, []protocol.SurfaceID{3}, vis.Shown)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.WSMessages.WithLabelValues("focus")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.WSConnections))
}

func TestSlowSubscriberMissesMessages(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(Options{Metrics: metrics})
	slow := &subscriber{id: "slow", send: make(chan []byte, 1)}
	hub.add(slow)

	change := desktop.Change{FocusFrom: 1, FocusTo: 2}
	hub.Observe(change, desktop.Snapshot{})
	hub.Observe(change, desktop.Snapshot{})

	assert.Len(t, slow.send, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WSMessages.WithLabelValues("focus")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WSMessages.WithLabelValues("dropped")))
}

func TestPing(t *testing.T) {
	hub := NewHub(Options{})
	conn := dial(t, serve(t, hub))
	next(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", next(t, conn).Type)
}

func TestDisconnectRemovesSubscriber(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(Options{Metrics: metrics})
	conn := dial(t, serve(t, hub))
	next(t, conn)
	require.Equal(t, 1, hub.Len())

	conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.WSConnections))
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub(Options{})
	conn := dial(t, serve(t, hub))
	next(t, conn)

	hub.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name   string
		allow  []string
		origin string
		want   bool
	}{
		{"no origin header", nil, "", true},
		{"listed", []string{"http://dash.local"}, "http://dash.local", true},
		{"not listed", []string{"http://dash.local"}, "http://evil.example", false},
		{"wildcard", []string{"*"}, "http://anything", true},
		{"nothing allowed", nil, "http://dash.local", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(Options{AllowOrigins: tt.allow})
			req := httptest.NewRequest(http.MethodGet, "/events", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, hub.checkOrigin(req))
		})
	}
}

func TestChangeDuringSnapshotIsStreamed(t *testing.T) {
	var hub *Hub
	hub = NewHub(Options{Snapshot: func() desktop.Snapshot {
		snap := sampleSnapshot()
		// a focus change published while the snapshot is being taken
		hub.Observe(desktop.Change{FocusFrom: 7, FocusTo: 8}, snap)
		return snap
	}})
	conn := dial(t, serve(t, hub))

	assert.Equal(t, "hello", next(t, conn).Type)
	msg := next(t, conn)
	assert.Equal(t, "focus", msg.Type)
}
