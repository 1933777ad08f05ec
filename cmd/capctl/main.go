package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/AgentOS/gui/internal/client"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
	"github.com/GriffinCanCode/AgentOS/gui/internal/transport"
)

// exitError carries a process exit code without an error message
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Querier is the part of the broker API capctl uses
type Querier interface {
	HasCapability(ctx context.Context, pid protocol.PID, want protocol.Capability) (bool, error)
	QueryDeviceType(ctx context.Context) (bool, error)
	Close() error
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	socket  string
	timeout time.Duration
	output  string
	addr    string
	retries int

	dial func(socket string, timeout time.Duration) (Querier, error)
}

func dialBroker(socket string, timeout time.Duration) (Querier, error) {
	conn, err := transport.Dial(socket, protocol.PID(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return client.New(conn, client.Options{Timeout: timeout}), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr, dial: dialBroker}
	err := a.run(ctx, os.Args[1:])
	var exit exitError
	switch {
	case err == nil:
	case errors.As(err, &exit):
		os.Exit(exit.code)
	default:
		fmt.Fprintf(os.Stderr, "capctl: %v\n", err)
		os.Exit(2)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("capctl", pflag.ContinueOnError)
	flags.SetOutput(a.stderr)
	flags.StringVarP(&a.socket, "socket", "s", envOr("BROKER_SOCKET", "/run/gui/broker.sock"), "broker socket")
	flags.DurationVar(&a.timeout, "timeout", client.DefaultTimeout, "broker call timeout")
	flags.StringVarP(&a.output, "output", "o", "", "output format: table, json or yaml")
	flags.StringVar(&a.addr, "addr", "http://"+envOr("STATUS_ADDR", "127.0.0.1:8790"), "status API base URL")
	flags.IntVar(&a.retries, "retries", 3, "status API retries")
	flags.Usage = func() { a.usage(flags) }
	flags.SetInterspersed(false)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	rest := flags.Args()
	if len(rest) == 0 {
		a.usage(flags)
		return exitError{2}
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "has":
		return a.has(ctx, cmdArgs)
	case "device-type":
		return a.deviceType(ctx, cmdArgs)
	case "audit":
		return a.audit(cmdArgs)
	case "status":
		return a.status(ctx, cmdArgs)
	case "list":
		return a.list(cmdArgs)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) usage(flags *pflag.FlagSet) {
	fmt.Fprint(a.stderr, `capctl queries the GUI capability broker.

Usage:
  capctl [flags] has <pid> <capability>   exit 0 when pid holds the capability, 1 otherwise
  capctl [flags] device-type              print mobile or desktop
  capctl [flags] audit <file>             print an audit trail (.gz and .zst are decompressed)
  capctl [flags] status [endpoint]        query the compositor status API (default: surfaces)
  capctl [flags] list                     list capability kinds and their query syntax

Flags:
`)
	fmt.Fprint(a.stderr, flags.FlagUsages())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
