package ws

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/domain/desktop"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Message is one event stream frame
type Message struct {
	Type      string               `json:"type"`
	ID        string               `json:"id,omitempty"`
	Focused   protocol.SurfaceID   `json:"focused"`
	Active    int                  `json:"active"`
	Shown     []protocol.SurfaceID `json:"shown,omitempty"`
	Hidden    []protocol.SurfaceID `json:"hidden,omitempty"`
	Moved     []protocol.SurfaceID `json:"moved,omitempty"`
	Snapshot  *desktop.Snapshot    `json:"snapshot,omitempty"`
	Timestamp int64                `json:"timestamp"`
}

// Options configures a Hub
type Options struct {
	// Snapshot supplies the state sent in the hello message
	Snapshot func() desktop.Snapshot
	// AllowOrigins lists browser origins allowed to connect. "*" allows
	// any; requests without an Origin header are always accepted.
	AllowOrigins []string
	// Queue is the number of messages buffered per subscriber
	Queue   int
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

type subscriber struct {
	id   string
	send chan []byte
}

// Hub fans desktop changes out to WebSocket subscribers
type Hub struct {
	opts     Options
	log      *logging.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader
	now      func() time.Time

	mu   sync.Mutex
	subs map[string]*subscriber

	quit      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a Hub
func NewHub(opts Options) *Hub {
	if opts.Queue <= 0 {
		opts.Queue = 32
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	h := &Hub{
		opts:    opts,
		log:     log.Named("ws"),
		metrics: opts.Metrics,
		now:     time.Now,
		subs:    make(map[string]*subscriber),
		quit:    make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.opts.AllowOrigins, "*") || slices.Contains(h.opts.AllowOrigins, origin)
}

// Len returns the number of connected subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Handlers started afterwards return
// right after the hello message.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

// Observe turns a change into messages and queues them for every
// subscriber. It never blocks.
func (h *Hub) Observe(ch desktop.Change, snap desktop.Snapshot) {
	for _, msg := range h.messages(ch, snap) {
		data, err := sonic.Marshal(msg)
		if err != nil {
			h.log.Error("encode event", zap.String("type", msg.Type), zap.Error(err))
			continue
		}
		h.broadcast(msg.Type, data)
	}
}

func (h *Hub) messages(ch desktop.Change, snap desktop.Snapshot) []Message {
	base := Message{Focused: snap.Focused, Active: snap.Active, Timestamp: h.now().Unix()}
	var out []Message
	if ch.FocusChanged() {
		m := base
		m.Type = "focus"
		out = append(out, m)
	}
	if ch.WorkspaceChanged() {
		m := base
		m.Type = "workspace"
		out = append(out, m)
	}
	if len(ch.Shown) > 0 || len(ch.Hidden) > 0 || len(ch.Moved) > 0 || ch.Restacked {
		m := base
		m.Type = "visibility"
		m.Shown, m.Hidden, m.Moved = ch.Shown, ch.Hidden, ch.Moved
		out = append(out, m)
	}
	return out
}

func (h *Hub) broadcast(msgType string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		select {
		case s.send <- data:
			h.record(msgType)
		default:
			h.record("dropped")
		}
	}
}

func (h *Hub) record(msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(msgType)
	}
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s.id)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnections.Dec()
	}
}

// Handler upgrades the request and streams events until the client goes
// away
func (h *Hub) Handler(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Subscribe before taking the snapshot so no change falls between the
	// two. A change may then appear in both, which subscribers tolerate.
	s := &subscriber{id: uuid.NewString(), send: make(chan []byte, h.opts.Queue)}
	h.add(s)
	defer h.remove(s)

	hello := Message{Type: "hello", ID: s.id, Timestamp: h.now().Unix()}
	if h.opts.Snapshot != nil {
		snap := h.opts.Snapshot()
		hello.Snapshot = &snap
		hello.Focused, hello.Active = snap.Focused, snap.Active
	}
	data, err := sonic.Marshal(hello)
	if err != nil {
		h.log.Error("encode hello", zap.Error(err))
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	h.record("hello")
	h.log.Debug("subscriber connected", zap.String("id", s.id))

	done := make(chan struct{})
	go h.read(conn, s, done)
	h.write(conn, s, done)
}

// read handles client pings and notices when the peer closes
func (h *Hub) read(conn *websocket.Conn, s *subscriber, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var in struct {
			Type string `json:"type"`
		}
		if sonic.Unmarshal(data, &in) != nil || in.Type != "ping" {
			continue
		}
		pong, _ := sonic.Marshal(Message{Type: "pong", Timestamp: h.now().Unix()})
		select {
		case s.send <- pong:
			h.record("pong")
		default:
		}
	}
}

// write is the only goroutine writing to conn
func (h *Hub) write(conn *websocket.Conn, s *subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-h.quit:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case data := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
