package compositor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// ProcessLister reports the pids currently alive with their start times.
// *broker.ProcfsLister satisfies it.
type ProcessLister interface {
	Live() (map[protocol.PID]uint64, error)
}

// Reap polls lister every interval and reports the exit of every surface
// owner that is no longer alive, until ctx ends. It stands in for exit
// notifications on systems that deliver none to the compositor.
func (c *Compositor) Reap(ctx context.Context, lister ProcessLister, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.reapOnce(lister)
		}
	}
}

func (c *Compositor) reapOnce(lister ProcessLister) []protocol.PID {
	live, err := lister.Live()
	if err != nil {
		c.log.Warn("list processes", zap.Error(err))
		return nil
	}

	var dead []protocol.PID
	seen := make(map[protocol.PID]bool)
	for _, s := range c.Snapshot().Surfaces {
		if seen[s.Owner] {
			continue
		}
		seen[s.Owner] = true
		if _, ok := live[s.Owner]; !ok {
			dead = append(dead, s.Owner)
			c.NotifyExit(s.Owner)
		}
	}
	return dead
}
