package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/GriffinCanCode/AgentOS/gui/internal/audit"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

func (a *app) query(fn func(Querier) error) error {
	q, err := a.dial(a.socket, a.timeout)
	if err != nil {
		return err
	}
	defer q.Close()
	return fn(q)
}

func (a *app) has(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: has <pid> <capability>")
	}
	pid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("bad pid %q", args[0])
	}
	want, err := protocol.ParseCapability(args[1])
	if err != nil {
		return err
	}

	return a.query(func(q Querier) error {
		held, err := q.HasCapability(ctx, protocol.PID(pid), want)
		if err != nil {
			return err
		}
		if !held {
			fmt.Fprintln(a.stdout, "no")
			return exitError{1}
		}
		fmt.Fprintln(a.stdout, "yes")
		return nil
	})
}

func (a *app) deviceType(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: device-type")
	}
	return a.query(func(q Querier) error {
		mobile, err := q.QueryDeviceType(ctx)
		if err != nil {
			return err
		}
		kind := "desktop"
		if mobile {
			kind = "mobile"
		}
		return a.print(map[string]any{"mobile": mobile, "type": kind}, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, kind)
		})
	})
}

func (a *app) audit(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: audit <file>")
	}
	records, err := audit.ReadFile(args[0])
	if err != nil {
		return err
	}
	return a.print(records, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "TIME\tKIND\tCALLER\tSUBJECT\tOUTCOME\tREASON\tDETAIL")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
				r.Time.Format(time.RFC3339), r.Kind, r.Caller, r.Subject, r.Outcome, dash(r.Reason), dash(r.Detail))
		}
	})
}

// capabilityKinds documents the query syntax accepted by has
var capabilityKinds = []struct {
	Kind   string `json:"kind"`
	Syntax string `json:"syntax"`
	About  string `json:"about"`
}{
	{protocol.KindGPURendering.String(), "gpu_rendering[:memory_mb[:surfaces]]", "GPU memory budget and surface quota"},
	{protocol.KindInputDevice.String(), "input_device:<device>[:exclusive]", "access to one input device"},
	{protocol.KindDisplayControl.String(), "display_control:<connector>", "mode setting on one connector"},
	{protocol.KindSurfaceManagement.String(), "surface_management", "manage other clients' surfaces"},
	{protocol.KindCompositor.String(), "compositor", "the singleton compositor right"},
}

func (a *app) list(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: list")
	}
	return a.print(capabilityKinds, func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "KIND\tSYNTAX\tDESCRIPTION")
		for _, k := range capabilityKinds {
			fmt.Fprintf(w, "%s\t%s\t%s\n", k.Kind, k.Syntax, k.About)
		}
	})
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
