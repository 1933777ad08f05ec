package broker

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/audit"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// ErrStopped is returned by calls that reach a broker whose loop has ended
var ErrStopped = errors.New("broker stopped")

// Display is the kernel display driver
type Display interface {
	SetMode(connector protocol.ConnectorID, mode protocol.DisplayMode) error
}

type noDisplay struct{}

func (noDisplay) SetMode(protocol.ConnectorID, protocol.DisplayMode) error {
	return errors.New("no display driver")
}

// Options wires the broker's collaborators. Zero values get safe defaults.
type Options struct {
	Display Display
	Breaker resilience.Settings
	Audit   audit.Sink
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	Now     func() time.Time
	// Processes stamps new table entries with their holder's start time.
	// Without it pid reuse goes undetected.
	Processes ProcessIdentifier
}

// Broker is the sequential capability request processor. All access to
// its State happens on the goroutine running Serve, one unit of work at a
// time, so no request ever observes another half-applied.
type Broker struct {
	state   *State
	display Display
	breaker *resilience.Breaker
	sink    audit.Sink
	log     *logging.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
	procs   ProcessIdentifier

	work chan func()
	done chan struct{}
}

// New creates a broker over state
func New(state *State, opts Options) *Broker {
	if opts.Display == nil {
		opts.Display = noDisplay{}
	}
	if opts.Audit == nil {
		opts.Audit = audit.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics(prometheus.NewRegistry())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger.Named("broker")

	settings := opts.Breaker
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to resilience.State) {
			log.Warn("display breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		}
	}

	b := &Broker{
		state:   state,
		display: opts.Display,
		breaker: resilience.New("display", settings),
		sink:    opts.Audit,
		log:     log,
		metrics: opts.Metrics,
		now:     opts.Now,
		procs:   opts.Processes,
		work:    make(chan func(), 64),
		done:    make(chan struct{}),
	}
	b.publish()
	return b
}

// Serve runs the broker loop until ctx is cancelled
func (b *Broker) Serve(ctx context.Context) error {
	defer close(b.done)

	b.log.Info("broker loop started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info("broker loop stopped")
			return nil
		case fn := <-b.work:
			fn()
		}
	}
}

// Submit queues call and waits for its response
func (b *Broker) Submit(ctx context.Context, call Call) (protocol.Response, error) {
	reply := make(chan protocol.Response, 1)
	if err := b.enqueue(ctx, func() { reply <- b.Handle(call) }); err != nil {
		return nil, err
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrStopped
	}
}

// NotifyExit queues the death cascade for pid. It carries no response.
func (b *Broker) NotifyExit(pid protocol.PID) {
	_ = b.enqueue(context.Background(), func() { b.Exit(pid) })
}

// notifyStale purges pid's entry if it still carries start, the start time
// of a process seen to be gone. An entry created meanwhile by a new process
// under the same pid survives.
func (b *Broker) notifyStale(pid protocol.PID, start uint64) {
	_ = b.enqueue(context.Background(), func() {
		if e, ok := b.state.table.Get(pid); ok && e.StartTime == start {
			b.Exit(pid)
		}
	})
}

// Inspect runs fn on the broker goroutine with exclusive access to state.
// fn must not retain the state.
func (b *Broker) Inspect(ctx context.Context, fn func(*State)) error {
	finished := make(chan struct{})
	if err := b.enqueue(ctx, func() {
		fn(b.state)
		close(finished)
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrStopped
	}
}

func (b *Broker) enqueue(ctx context.Context, fn func()) error {
	select {
	case b.work <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrStopped
	}
}

// observe logs, audits and counts one decision
func (b *Broker) observe(call Call, subject protocol.PID, resp protocol.Response, detail string, start time.Time) {
	kind := "unknown"
	if call.Request != nil {
		kind = string(call.Request.Kind())
	}
	outcome := string(resp.Kind())

	rec := audit.Record{
		Time:      start,
		RequestID: call.RequestID,
		Caller:    call.Caller,
		Subject:   subject,
		Kind:      kind,
		Outcome:   outcome,
		Detail:    detail,
	}

	fields := []zap.Field{
		logging.RequestID(call.RequestID),
		logging.Caller(call.Caller),
		logging.Subject(subject),
		zap.String("kind", kind),
		zap.String("outcome", outcome),
	}

	switch r := resp.(type) {
	case protocol.Denied:
		rec.Reason = r.String()
		b.log.Info("request denied", append(fields, zap.String("reason", rec.Reason))...)
	case protocol.Granted:
		rec.Detail = r.Capability.String()
		b.log.Debug("request handled", fields...)
	default:
		b.log.Debug("request handled", fields...)
	}

	b.audit(rec)
	b.metrics.RecordBrokerRequest(kind, outcome, b.now().Sub(start))
	b.publish()
}

func (b *Broker) audit(rec audit.Record) {
	if err := b.sink.Record(rec); err != nil {
		b.log.Warn("audit write failed", zap.Error(err))
	}
}

func (b *Broker) publish() {
	_, registered := b.state.table.Compositor()
	b.metrics.SetBrokerState(b.state.table.GPUCommitted(), registered)
}
