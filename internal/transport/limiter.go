package transport

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

const (
	// peerIdle is how long a pid's bucket outlives its last request
	peerIdle = 5 * time.Minute
	// sweepEvery is the number of Allow calls between idle sweeps
	sweepEvery = 1024
)

// Limiter applies an independent token bucket to every caller pid. Buckets
// of pids idle for longer than peerIdle are dropped as Allow runs.
type Limiter struct {
	limit      rate.Limit
	burst      int
	idle       time.Duration
	sweepEvery int
	now        func() time.Time

	mu     sync.Mutex
	peers  map[protocol.PID]*peerLimiter
	sweeps int
}

type peerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a limiter allowing rps requests per second per pid
// with the given burst. A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limit:      limit,
		burst:      burst,
		idle:       peerIdle,
		sweepEvery: sweepEvery,
		now:        time.Now,
		peers:      make(map[protocol.PID]*peerLimiter),
	}
}

// Allow reports whether pid may make one more request now
func (l *Limiter) Allow(pid protocol.PID) bool {
	if l == nil || l.limit == rate.Inf {
		return true
	}

	now := l.now()
	l.mu.Lock()
	p, ok := l.peers[pid]
	if !ok {
		p = &peerLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.peers[pid] = p
	}
	p.lastSeen = now
	if l.sweeps++; l.sweeps >= l.sweepEvery {
		l.sweeps = 0
		l.prune(now)
	}
	l.mu.Unlock()

	return p.limiter.AllowN(now, 1)
}

// prune forgets pids not seen for l.idle. l.mu must be held.
func (l *Limiter) prune(now time.Time) {
	for pid, p := range l.peers {
		if now.Sub(p.lastSeen) > l.idle {
			delete(l.peers, pid)
		}
	}
}

// Len returns the number of tracked pids
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.peers)
}
