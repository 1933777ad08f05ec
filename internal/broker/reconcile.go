package broker

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/prometheus/procfs"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// ProcessLister reports the processes currently alive, keyed by pid, with
// the start time of each. A start time of zero means it could not be read.
type ProcessLister interface {
	Live() (map[protocol.PID]uint64, error)
}

// ProcessIdentifier reads the start time of one process
type ProcessIdentifier interface {
	StartTime(pid protocol.PID) (uint64, error)
}

// ProcfsLister lists processes from a procfs mount
type ProcfsLister struct {
	fs procfs.FS
}

// NewProcfsLister opens the procfs mounted at root
func NewProcfsLister(root string) (*ProcfsLister, error) {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", root, err)
	}
	return &ProcfsLister{fs: fs}, nil
}

// Live returns every pid with a /proc entry. A process whose stat cannot
// be read is still reported, with start time zero.
func (l *ProcfsLister) Live() (map[protocol.PID]uint64, error) {
	procs, err := l.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	live := make(map[protocol.PID]uint64, len(procs))
	for _, p := range procs {
		var start uint64
		if stat, err := p.Stat(); err == nil {
			start = stat.Starttime
		}
		live[protocol.PID(p.PID)] = start
	}
	return live, nil
}

// StartTime returns the start time of pid, in clock ticks since boot
func (l *ProcfsLister) StartTime(pid protocol.PID) (uint64, error) {
	p, err := l.fs.Proc(int(pid))
	if err != nil {
		return 0, fmt.Errorf("find process %d: %w", pid, err)
	}
	stat, err := p.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat process %d: %w", pid, err)
	}
	return stat.Starttime, nil
}

// Reconciler periodically compares the capability table with the live
// process list and purges holders whose death notification never came.
type Reconciler struct {
	broker   *Broker
	lister   ProcessLister
	interval time.Duration
	log      *logging.Logger
}

// NewReconciler creates a reconciler sweeping every interval
func NewReconciler(b *Broker, lister ProcessLister, interval time.Duration, log *logging.Logger) *Reconciler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Reconciler{
		broker:   b,
		lister:   lister,
		interval: interval,
		log:      log.Named("reconcile"),
	}
}

// Run sweeps until ctx is cancelled. Failed sweeps are logged and retried
// on the next tick.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("reconcile sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass and returns the pids it reported dead
func (r *Reconciler) Sweep(ctx context.Context) ([]protocol.PID, error) {
	holders := make(map[protocol.PID]uint64)
	if err := r.broker.Inspect(ctx, func(s *State) {
		for _, pid := range s.Table().PIDs() {
			e, _ := s.Table().Get(pid)
			holders[pid] = e.StartTime
		}
	}); err != nil {
		return nil, err
	}
	if len(holders) == 0 {
		return nil, nil
	}

	live, err := r.lister.Live()
	if err != nil {
		return nil, err
	}

	var dead []protocol.PID
	for pid, recorded := range holders {
		if pid == protocol.KernelPID {
			continue
		}
		start, ok := live[pid]
		switch {
		case !ok:
			dead = append(dead, pid)
			r.log.Info("holder vanished without exit notification", logging.PID(pid))
			r.broker.notifyStale(pid, recorded)
		case recorded != 0 && start != 0 && start != recorded:
			dead = append(dead, pid)
			r.log.Info("holder pid reused by another process", logging.PID(pid),
				zap.Uint64("recorded_start", recorded),
				zap.Uint64("live_start", start))
			r.broker.notifyStale(pid, recorded)
		}
	}
	slices.Sort(dead)
	return dead, nil
}
