package captable

import (
	"errors"
	"sort"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

var (
	ErrCompositorHeld  = errors.New("compositor capability already held")
	ErrGlobalGPULimit  = errors.New("global gpu memory ceiling exceeded")
	ErrProcessGPULimit = errors.New("per-process gpu memory ceiling exceeded")
	ErrSurfaceLimit    = errors.New("surface quota exhausted")
	ErrSurfaceExists   = errors.New("surface already recorded")
)

// Limits are the GPU memory ceilings the table enforces
type Limits struct {
	MaxTotalGPUMemoryMB   uint32
	MaxProcessGPUMemoryMB uint32
}

// Entry is the immutable capability record of one process
type Entry struct {
	PID          protocol.PID
	Capabilities []protocol.Capability
	Surfaces     []protocol.SurfaceID
	// StartTime tells this process apart from a later one reusing its pid.
	// Zero when unknown.
	StartTime uint64
}

// GPUMemory returns the memory committed by the entry's GPU grants
func (e *Entry) GPUMemory() uint64 {
	var total uint64
	for _, c := range e.Capabilities {
		if g, ok := c.(protocol.GPURendering); ok {
			total += uint64(g.MemoryMB)
		}
	}
	return total
}

// SurfaceLimit returns the surface quota summed over the entry's GPU grants
func (e *Entry) SurfaceLimit() uint64 {
	var total uint64
	for _, c := range e.Capabilities {
		if g, ok := c.(protocol.GPURendering); ok {
			total += uint64(g.MaxSurfaces)
		}
	}
	return total
}

func (e *Entry) empty() bool {
	return len(e.Capabilities) == 0 && len(e.Surfaces) == 0
}

func (e *Entry) clone() *Entry {
	next := &Entry{PID: e.PID, StartTime: e.StartTime}
	next.Capabilities = append([]protocol.Capability(nil), e.Capabilities...)
	next.Surfaces = append([]protocol.SurfaceID(nil), e.Surfaces...)
	return next
}

// Table maps processes to their entries
type Table struct {
	limits     Limits
	entries    map[protocol.PID]*Entry
	compositor protocol.PID
	hasComp    bool
	gpuTotal   uint64
}

// New creates an empty table
func New(limits Limits) *Table {
	return &Table{
		limits:  limits,
		entries: make(map[protocol.PID]*Entry),
	}
}

// Limits returns the configured ceilings
func (t *Table) Limits() Limits {
	return t.limits
}

// Get returns the entry for pid
func (t *Table) Get(pid protocol.PID) (*Entry, bool) {
	e, ok := t.entries[pid]
	return e, ok
}

// Len returns the number of processes with an entry
func (t *Table) Len() int {
	return len(t.entries)
}

// Compositor returns the process holding the compositor capability
func (t *Table) Compositor() (protocol.PID, bool) {
	return t.compositor, t.hasComp
}

// GPUCommitted returns the GPU memory committed across all processes
func (t *Table) GPUCommitted() uint64 {
	return t.gpuTotal
}

// ProcessGPU returns the GPU memory committed by pid
func (t *Table) ProcessGPU(pid protocol.PID) uint64 {
	if e, ok := t.entries[pid]; ok {
		return e.GPUMemory()
	}
	return 0
}

// Grant records c for pid. GPU grants and compositor registration are
// checked against the table invariants; a rejected grant leaves the table
// untouched.
func (t *Table) Grant(pid protocol.PID, c protocol.Capability) error {
	switch v := c.(type) {
	case protocol.Compositor:
		if t.hasComp {
			return ErrCompositorHeld
		}
	case protocol.GPURendering:
		mem := uint64(v.MemoryMB)
		if t.gpuTotal+mem > uint64(t.limits.MaxTotalGPUMemoryMB) {
			return ErrGlobalGPULimit
		}
		if t.ProcessGPU(pid)+mem > uint64(t.limits.MaxProcessGPUMemoryMB) {
			return ErrProcessGPULimit
		}
	}

	next := t.entryFor(pid).clone()
	next.Capabilities = append(next.Capabilities, c)
	t.replace(next)
	return nil
}

// Revoke removes every capability of the given kind from pid
func (t *Table) Revoke(pid protocol.PID, kind protocol.CapabilityKind) {
	e, ok := t.entries[pid]
	if !ok {
		return
	}
	next := &Entry{PID: pid, Surfaces: e.Surfaces, StartTime: e.StartTime}
	for _, c := range e.Capabilities {
		if c.Kind() != kind {
			next.Capabilities = append(next.Capabilities, c)
		}
	}
	if kind == protocol.KindGPURendering {
		next.Surfaces = nil
	}
	t.replace(next)
}

// Stamp records the start time of the process holding pid's entry. An
// entry is stamped once; later calls are ignored.
func (t *Table) Stamp(pid protocol.PID, start uint64) {
	e, ok := t.entries[pid]
	if !ok || e.StartTime != 0 || start == 0 {
		return
	}
	next := e.clone()
	next.StartTime = start
	t.replace(next)
}

// RemoveProcess drops pid's entry entirely
func (t *Table) RemoveProcess(pid protocol.PID) (*Entry, bool) {
	e, ok := t.entries[pid]
	if !ok {
		return nil, false
	}
	t.replace(&Entry{PID: pid})
	return e, true
}

// RevokeDerived removes every capability that exists only by virtue of a
// registered compositor: the compositor right itself and all GPU, input,
// display-control and surface-management grants, plus every surface. It
// returns the processes that lost something. The compositor slot is
// cleared.
func (t *Table) RevokeDerived() []protocol.PID {
	pids := t.pids()
	for _, pid := range pids {
		t.replace(&Entry{PID: pid})
	}
	return pids
}

// Holds reports whether pid holds a capability matching query. Compositor,
// SurfaceManagement and GPURendering match by kind; InputDevice matches by
// device, and an exclusive query only matches an exclusive grant;
// DisplayControl matches by connector.
func (t *Table) Holds(pid protocol.PID, query protocol.Capability) bool {
	e, ok := t.entries[pid]
	if !ok || query == nil {
		return false
	}
	for _, c := range e.Capabilities {
		if matches(c, query) {
			return true
		}
	}
	return false
}

func matches(held, query protocol.Capability) bool {
	if held.Kind() != query.Kind() {
		return false
	}
	switch q := query.(type) {
	case protocol.InputDevice:
		h := held.(protocol.InputDevice)
		return h.Device == q.Device && (!q.Exclusive || h.Exclusive)
	case protocol.DisplayControl:
		return held.(protocol.DisplayControl).Connector == q.Connector
	default:
		return true
	}
}

// InputHolders returns every grant on device, keyed by holder
func (t *Table) InputHolders(device protocol.DeviceID) map[protocol.PID]protocol.InputDevice {
	holders := make(map[protocol.PID]protocol.InputDevice)
	for pid, e := range t.entries {
		for _, c := range e.Capabilities {
			if in, ok := c.(protocol.InputDevice); ok && in.Device == device {
				prev, seen := holders[pid]
				if !seen || (in.Exclusive && !prev.Exclusive) {
					holders[pid] = in
				}
			}
		}
	}
	return holders
}

// SurfaceLimit returns pid's surface quota, zero without a GPU grant
func (t *Table) SurfaceLimit(pid protocol.PID) uint64 {
	if e, ok := t.entries[pid]; ok {
		return e.SurfaceLimit()
	}
	return 0
}

// SurfaceCount returns the number of surfaces recorded for pid
func (t *Table) SurfaceCount(pid protocol.PID) int {
	if e, ok := t.entries[pid]; ok {
		return len(e.Surfaces)
	}
	return 0
}

// AddSurface records a surface against pid's GPU surface quota
func (t *Table) AddSurface(pid protocol.PID, id protocol.SurfaceID) error {
	e := t.entryFor(pid)
	for _, s := range e.Surfaces {
		if s == id {
			return ErrSurfaceExists
		}
	}
	if uint64(len(e.Surfaces))+1 > e.SurfaceLimit() {
		return ErrSurfaceLimit
	}
	next := e.clone()
	next.Surfaces = append(next.Surfaces, id)
	t.replace(next)
	return nil
}

// RemoveSurface forgets a surface owned by pid. It reports whether the
// surface was recorded.
func (t *Table) RemoveSurface(pid protocol.PID, id protocol.SurfaceID) bool {
	e, ok := t.entries[pid]
	if !ok {
		return false
	}
	next := &Entry{PID: pid, Capabilities: e.Capabilities, StartTime: e.StartTime}
	found := false
	for _, s := range e.Surfaces {
		if s == id {
			found = true
			continue
		}
		next.Surfaces = append(next.Surfaces, s)
	}
	if !found {
		return false
	}
	t.replace(next)
	return true
}

// OwnsSurface reports whether pid owns surface id
func (t *Table) OwnsSurface(pid protocol.PID, id protocol.SurfaceID) bool {
	e, ok := t.entries[pid]
	if !ok {
		return false
	}
	for _, s := range e.Surfaces {
		if s == id {
			return true
		}
	}
	return false
}

// PIDs returns every process with an entry, ascending
func (t *Table) PIDs() []protocol.PID {
	return t.pids()
}

// Snapshot returns every entry ordered by pid. Entries are shared, not
// copied, since they are immutable.
func (t *Table) Snapshot() []*Entry {
	pids := t.pids()
	out := make([]*Entry, 0, len(pids))
	for _, pid := range pids {
		out = append(out, t.entries[pid])
	}
	return out
}

func (t *Table) pids() []protocol.PID {
	pids := make([]protocol.PID, 0, len(t.entries))
	for pid := range t.entries {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

func (t *Table) entryFor(pid protocol.PID) *Entry {
	if e, ok := t.entries[pid]; ok {
		return e
	}
	return &Entry{PID: pid}
}

// replace installs next as pid's entry and keeps the aggregates in step.
// An empty entry removes the process from the table.
func (t *Table) replace(next *Entry) {
	pid := next.PID
	if prev, ok := t.entries[pid]; ok {
		t.gpuTotal -= prev.GPUMemory()
	}
	if next.empty() {
		delete(t.entries, pid)
	} else {
		t.entries[pid] = next
		t.gpuTotal += next.GPUMemory()
	}

	held := false
	for _, c := range next.Capabilities {
		if c.Kind() == protocol.KindCompositor {
			held = true
			break
		}
	}
	switch {
	case held:
		t.compositor, t.hasComp = pid, true
	case t.hasComp && t.compositor == pid:
		t.compositor, t.hasComp = 0, false
	}
}
