package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPacingStats(t *testing.T) {
	p := NewPacing(0)
	assert.Equal(t, PacingStats{}, p.Stats())

	t0 := time.Unix(1000, 0)
	p.Record(t0)
	assert.Equal(t, PacingStats{Frames: 1}, p.Stats())

	for _, ms := range []int{16, 32, 50} {
		p.Record(t0.Add(time.Duration(ms) * time.Millisecond))
	}

	s := p.Stats()
	assert.Equal(t, uint64(4), s.Frames)
	assert.Equal(t, 3, s.Samples)
	assert.InDelta(t, 16.667, s.MeanMS, 0.001)
	assert.InDelta(t, 1.155, s.StdDevMS, 0.001)
	assert.InDelta(t, 18.0, s.P95MS, 0.001)
}

func TestPacingWindow(t *testing.T) {
	p := NewPacing(2)
	t0 := time.Unix(1000, 0)
	for _, ms := range []int{0, 10, 30, 60} {
		p.Record(t0.Add(time.Duration(ms) * time.Millisecond))
	}

	s := p.Stats()
	assert.Equal(t, 2, s.Samples)
	assert.InDelta(t, 25.0, s.MeanMS, 0.001)
	assert.InDelta(t, 30.0, s.P95MS, 0.001)
}
