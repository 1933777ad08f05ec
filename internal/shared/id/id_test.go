package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{RequestPrefix, FramePrefix, TracePrefix, SpanPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		parts := strings.Split(id, "_")
		require.Len(t, parts, 2)
		assert.Equal(t, prefix, parts[0])
		assert.Len(t, parts[1], 26)
		assert.True(t, IsValid(id))
		assert.True(t, IsValid(parts[1]))
	}
}

func TestTypedIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewRequestID().String(), "req_"))
	assert.True(t, strings.HasPrefix(NewFrameID().String(), "frm_"))
	assert.True(t, strings.HasPrefix(NewTraceID(), "trc_"))
	assert.True(t, strings.HasPrefix(NewSpanID(), "spn_"))
}

func TestSplit(t *testing.T) {
	bare := NewGenerator().ULID().String()

	tests := []struct {
		name       string
		in         string
		wantPrefix string
		wantErr    error
		invalid    bool
	}{
		{name: "request", in: "req_" + bare, wantPrefix: "req"},
		{name: "bare", in: bare, wantErr: ErrNoPrefix},
		{name: "empty ulid", in: "req_", invalid: true},
		{name: "garbage", in: "not-an-id", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix, u, err := Split(tt.in)
			if tt.invalid {
				assert.Error(t, err)
				assert.False(t, IsValid(tt.in))
				return
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantPrefix, prefix)
			assert.Equal(t, bare, u.String())
			assert.True(t, IsValid(tt.in))
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, id := range []string{"", "invalid", "req_", "1234567890", "zzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		assert.False(t, IsValid(id), id)
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().UnixMilli()
	id := NewRequestID()
	after := time.Now().UnixMilli()

	ts, err := Timestamp(id.String())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ts.UnixMilli(), before)
	assert.LessOrEqual(t, ts.UnixMilli(), after)
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	gen := NewGenerator()
	fixed := time.UnixMilli(1_700_000_000_000)
	gen.now = func() time.Time { return fixed }

	prev := gen.ULID().String()
	for i := 0; i < 100; i++ {
		next := gen.ULID().String()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	ids := make(chan string, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				ids <- gen.ULID().String()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestDefaultGenerator(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func BenchmarkNewRequestID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = NewRequestID()
	}
}
