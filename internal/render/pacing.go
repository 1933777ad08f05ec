package render

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// PacingStats summarises recent presentation intervals in milliseconds
type PacingStats struct {
	Frames   uint64  `json:"frames"`
	Samples  int     `json:"samples"`
	MeanMS   float64 `json:"mean_ms"`
	StdDevMS float64 `json:"stddev_ms"`
	P95MS    float64 `json:"p95_ms"`
}

// Pacing keeps the intervals between the last presented frames
type Pacing struct {
	mu        sync.Mutex
	intervals []float64
	next      int
	last      time.Time
	frames    uint64
}

// NewPacing keeps up to window intervals
func NewPacing(window int) *Pacing {
	if window < 2 {
		window = 120
	}
	return &Pacing{intervals: make([]float64, 0, window)}
}

// Record notes a frame presented at t
func (p *Pacing) Record(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames++
	if !p.last.IsZero() {
		ms := float64(t.Sub(p.last)) / float64(time.Millisecond)
		if len(p.intervals) < cap(p.intervals) {
			p.intervals = append(p.intervals, ms)
		} else {
			p.intervals[p.next] = ms
			p.next = (p.next + 1) % len(p.intervals)
		}
	}
	p.last = t
}

// Stats computes the current summary
func (p *Pacing) Stats() PacingStats {
	p.mu.Lock()
	sorted := slices.Clone(p.intervals)
	frames := p.frames
	p.mu.Unlock()

	s := PacingStats{Frames: frames, Samples: len(sorted)}
	if len(sorted) == 0 {
		return s
	}
	slices.Sort(sorted)
	s.MeanMS = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		s.StdDevMS = stat.StdDev(sorted, nil)
	}
	s.P95MS = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return s
}
