package broker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

type fakeLister struct {
	live map[protocol.PID]uint64
	err  error
}

func (f fakeLister) Live() (map[protocol.PID]uint64, error) {
	return f.live, f.err
}

func (f fakeLister) StartTime(pid protocol.PID) (uint64, error) {
	start, ok := f.live[pid]
	if !ok {
		return 0, fmt.Errorf("no process %d", pid)
	}
	return start, nil
}

func alive(pids ...protocol.PID) fakeLister {
	live := make(map[protocol.PID]uint64, len(pids))
	for _, pid := range pids {
		live[pid] = 0
	}
	return fakeLister{live: live}
}

// writeStat writes a /proc/<pid>/stat line with the given start time
func writeStat(t *testing.T, root string, pid int, start uint64) {
	t.Helper()
	fields := make([]string, 52)
	for i := range fields {
		fields[i] = "0"
	}
	fields[0] = strconv.Itoa(pid)
	fields[1] = "(client)"
	fields[2] = "S"
	fields[21] = strconv.FormatUint(start, 10)
	path := filepath.Join(root, strconv.Itoa(pid), "stat")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(fields, " ")+"\n"), 0o644))
}

func serve(t *testing.T, b *Broker) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ctx
}

func TestSweepPurgesVanishedHolders(t *testing.T) {
	b := newBroker(t, testLimits, Options{})
	ctx := serve(t, b)

	for _, call := range []Call{
		kernel(protocol.RegisterCompositor{PID: 1}),
		from(1, protocol.RequestGPU{PID: 5}),
		from(1, protocol.RequestGPU{PID: 6}),
	} {
		_, err := b.Submit(ctx, call)
		require.NoError(t, err)
	}

	r := NewReconciler(b, alive(1, 6), 0, nil)
	dead, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []protocol.PID{5}, dead)

	resp, err := b.Submit(ctx, kernel(protocol.HasCapability{PID: 5, Capability: protocol.GPURendering{}}))
	require.NoError(t, err)
	assert.Equal(t, protocol.CapabilityStatus{Held: false}, resp)

	resp, err = b.Submit(ctx, kernel(protocol.HasCapability{PID: 6, Capability: protocol.GPURendering{}}))
	require.NoError(t, err)
	assert.Equal(t, protocol.CapabilityStatus{Held: true}, resp)
}

func TestSweepCompositorDeathCascades(t *testing.T) {
	b := newBroker(t, testLimits, Options{})
	ctx := serve(t, b)

	_, err := b.Submit(ctx, kernel(protocol.RegisterCompositor{PID: 1}))
	require.NoError(t, err)
	_, err = b.Submit(ctx, from(1, protocol.RequestGPU{PID: 6}))
	require.NoError(t, err)

	dead, err := NewReconciler(b, alive(6), 0, nil).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []protocol.PID{1}, dead)

	require.NoError(t, b.Inspect(ctx, func(s *State) {
		assert.Zero(t, s.Table().Len())
	}))
}

func TestSweepPurgesReusedPID(t *testing.T) {
	procs := fakeLister{live: map[protocol.PID]uint64{1: 100, 5: 200, 6: 300}}
	b := newBroker(t, testLimits, Options{Processes: procs})
	ctx := serve(t, b)

	for _, call := range []Call{
		kernel(protocol.RegisterCompositor{PID: 1}),
		from(1, protocol.RequestGPU{PID: 5}),
		from(1, protocol.RequestGPU{PID: 6}),
	} {
		_, err := b.Submit(ctx, call)
		require.NoError(t, err)
	}
	require.NoError(t, b.Inspect(ctx, func(s *State) {
		e, ok := s.Table().Get(5)
		require.True(t, ok)
		assert.Equal(t, uint64(200), e.StartTime)
	}))

	tests := []struct {
		name string
		live map[protocol.PID]uint64
		dead []protocol.PID
	}{
		{"same processes", map[protocol.PID]uint64{1: 100, 5: 200, 6: 300}, nil},
		{"unreadable start time", map[protocol.PID]uint64{1: 100, 5: 0, 6: 300}, nil},
		{"pid 5 reused", map[protocol.PID]uint64{1: 100, 5: 900, 6: 300}, []protocol.PID{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dead, err := NewReconciler(b, fakeLister{live: tt.live}, 0, nil).Sweep(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.dead, dead)
		})
	}

	resp, err := b.Submit(ctx, kernel(protocol.HasCapability{PID: 5, Capability: protocol.GPURendering{}}))
	require.NoError(t, err)
	assert.Equal(t, protocol.CapabilityStatus{Held: false}, resp)

	resp, err = b.Submit(ctx, kernel(protocol.HasCapability{PID: 1, Capability: protocol.Compositor{}}))
	require.NoError(t, err)
	assert.Equal(t, protocol.CapabilityStatus{Held: true}, resp)
}

func TestReusedPIDKeepsFreshEntry(t *testing.T) {
	procs := fakeLister{live: map[protocol.PID]uint64{1: 100, 5: 200}}
	b := newBroker(t, testLimits, Options{Processes: procs})
	ctx := serve(t, b)

	_, err := b.Submit(ctx, kernel(protocol.RegisterCompositor{PID: 1}))
	require.NoError(t, err)
	_, err = b.Submit(ctx, from(1, protocol.RequestGPU{PID: 5}))
	require.NoError(t, err)

	// The old holder exits normally, then its pid comes back with new grants
	// before a stale purge for the old process is applied.
	require.NoError(t, b.Inspect(ctx, func(s *State) {
		b.Exit(5)
		procs.live[5] = 900
		b.Handle(from(1, protocol.RequestGPU{PID: 5}))
	}))
	b.notifyStale(5, 200)

	resp, err := b.Submit(ctx, kernel(protocol.HasCapability{PID: 5, Capability: protocol.GPURendering{}}))
	require.NoError(t, err)
	assert.Equal(t, protocol.CapabilityStatus{Held: true}, resp)
}

// hookLister runs before on every Live call
type hookLister struct {
	fakeLister
	before func()
}

func (h hookLister) Live() (map[protocol.PID]uint64, error) {
	h.before()
	return h.fakeLister.Live()
}

func TestSweepSparesPIDReusedAfterVanishing(t *testing.T) {
	procs := fakeLister{live: map[protocol.PID]uint64{1: 100, 5: 200}}
	b := newBroker(t, testLimits, Options{Processes: procs})
	ctx := serve(t, b)

	_, err := b.Submit(ctx, kernel(protocol.RegisterCompositor{PID: 1}))
	require.NoError(t, err)
	_, err = b.Submit(ctx, from(1, protocol.RequestGPU{PID: 5}))
	require.NoError(t, err)

	// The listing misses pid 5, but by the time the purge is applied a new
	// process under pid 5 has been granted GPU.
	lister := hookLister{
		fakeLister: fakeLister{live: map[protocol.PID]uint64{1: 100}},
		before: func() {
			require.NoError(t, b.Inspect(ctx, func(*State) {
				b.Exit(5)
				procs.live[5] = 900
				b.Handle(from(1, protocol.RequestGPU{PID: 5}))
			}))
		},
	}
	dead, err := NewReconciler(b, lister, 0, nil).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []protocol.PID{5}, dead)

	resp, err := b.Submit(ctx, kernel(protocol.HasCapability{PID: 5, Capability: protocol.GPURendering{}}))
	require.NoError(t, err)
	assert.Equal(t, protocol.CapabilityStatus{Held: true}, resp)
	require.NoError(t, b.Inspect(ctx, func(s *State) {
		e, ok := s.Table().Get(5)
		require.True(t, ok)
		assert.Equal(t, uint64(900), e.StartTime)
	}))
}

func TestSweepSkipsListerWhenTableEmpty(t *testing.T) {
	b := newBroker(t, testLimits, Options{})
	ctx := serve(t, b)

	dead, err := NewReconciler(b, fakeLister{err: errors.New("must not be called")}, 0, nil).Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestSweepListerError(t *testing.T) {
	b := newBroker(t, testLimits, Options{})
	ctx := serve(t, b)
	_, err := b.Submit(ctx, kernel(protocol.RegisterCompositor{PID: 1}))
	require.NoError(t, err)

	_, err = NewReconciler(b, fakeLister{err: errors.New("proc unreadable")}, 0, nil).Sweep(ctx)
	assert.EqualError(t, err, "proc unreadable")
}

func TestProcfsLister(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"1", "42", "self", "sys"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	writeStat(t, root, 42, 4242)

	lister, err := NewProcfsLister(root)
	require.NoError(t, err)

	live, err := lister.Live()
	require.NoError(t, err)
	assert.Equal(t, map[protocol.PID]uint64{1: 0, 42: 4242}, live)

	start, err := lister.StartTime(42)
	require.NoError(t, err)
	assert.Equal(t, uint64(4242), start)

	_, err = lister.StartTime(1)
	assert.Error(t, err)
	_, err = lister.StartTime(7)
	assert.Error(t, err)
}
