package broker

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/audit"
	"github.com/GriffinCanCode/AgentOS/gui/internal/captable"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/gui/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// Call is one request together with the identity of the process that sent
// it. Caller comes from the transport, never from the request body.
type Call struct {
	RequestID string
	Caller    protocol.PID
	Request   protocol.Request
}

func (c Call) trusted() bool {
	return c.Caller == protocol.KernelPID
}

// Handle processes one call to completion and returns its response. It
// must only run on the broker goroutine, or in tests that own the broker.
func (b *Broker) Handle(call Call) protocol.Response {
	start := b.now()
	resp, subject, detail := b.dispatch(call)
	b.stamp(subject)
	b.observe(call, subject, resp, detail, start)
	return resp
}

// stamp records the start time of a pid that just gained an entry
func (b *Broker) stamp(pid protocol.PID) {
	if b.procs == nil || pid == protocol.KernelPID {
		return
	}
	e, ok := b.state.table.Get(pid)
	if !ok || e.StartTime != 0 {
		return
	}
	start, err := b.procs.StartTime(pid)
	if err != nil {
		b.log.Debug("start time unavailable", logging.PID(pid), zap.Error(err))
		return
	}
	b.state.table.Stamp(pid, start)
}

// dispatch is the exhaustive request switch. Every branch returns a
// response permitted by protocol.Allowed.
func (b *Broker) dispatch(call Call) (protocol.Response, protocol.PID, string) {
	switch req := call.Request.(type) {
	case protocol.RequestGPU:
		return b.requestGPU(call, req), req.PID, ""
	case protocol.RequestInputDevice:
		return b.requestInput(call, req), req.PID, ""
	case protocol.CreateSurface:
		return b.createSurface(call, req), req.PID, ""
	case protocol.DestroySurface:
		return b.destroySurface(call, req), req.PID, ""
	case protocol.SetDisplayMode:
		resp, detail := b.setDisplayMode(call, req)
		return resp, call.Caller, detail
	case protocol.QueryDeviceType:
		return protocol.DeviceType{IsMobile: b.state.device.Mobile}, call.Caller, ""
	case protocol.RegisterCompositor:
		return b.registerCompositor(call, req), req.PID, ""
	case protocol.UnregisterCompositor:
		return b.unregisterCompositor(call, req), req.PID, ""
	case protocol.HasCapability:
		return protocol.CapabilityStatus{Held: b.state.table.Holds(req.PID, req.Capability)}, req.PID, ""
	default:
		return protocol.Other(0), call.Caller, fmt.Sprintf("unhandled request %T", call.Request)
	}
}

// requester returns the process whose rights gate a compositor-only
// operation: the caller itself, or the named pid for in-kernel calls.
func requester(call Call, named protocol.PID) protocol.PID {
	if call.trusted() {
		return named
	}
	return call.Caller
}

// actsFor reports whether the caller may act on subject. A process may
// always act on itself; the compositor may act on its clients.
func (b *Broker) actsFor(call Call, subject protocol.PID) bool {
	if call.trusted() || call.Caller == subject {
		return true
	}
	comp, ok := b.state.table.Compositor()
	return ok && comp == call.Caller
}

func (b *Broker) isCompositor(pid protocol.PID) bool {
	comp, ok := b.state.table.Compositor()
	return ok && comp == pid
}

func (b *Broker) requestGPU(call Call, req protocol.RequestGPU) protocol.Response {
	if !b.isCompositor(requester(call, req.PID)) {
		return protocol.Deny(protocol.ReasonUnauthorized)
	}

	limits := req.Limits
	if limits.MemoryMB == 0 {
		limits.MemoryMB = b.state.limits.DefaultGPUMemoryMB
	}
	if limits.MaxSurfaces == 0 {
		limits.MaxSurfaces = b.state.limits.DefaultMaxSurfaces
	}

	grant := protocol.GPURendering{MemoryMB: limits.MemoryMB, MaxSurfaces: limits.MaxSurfaces}
	if err := b.state.table.Grant(req.PID, grant); err != nil {
		return protocol.Deny(protocol.ReasonResourceLimitExceeded)
	}
	return protocol.Granted{Capability: grant}
}

func (b *Broker) requestInput(call Call, req protocol.RequestInputDevice) protocol.Response {
	if !b.isCompositor(requester(call, req.PID)) {
		return protocol.Deny(protocol.ReasonUnauthorized)
	}
	if !b.state.device.hasInput(req.Device) {
		return protocol.Deny(protocol.ReasonDeviceNotFound)
	}

	grant := protocol.InputDevice{Device: req.Device, Exclusive: req.Exclusive}
	if b.state.table.Holds(req.PID, grant) {
		return protocol.Granted{Capability: b.state.table.InputHolders(req.Device)[req.PID]}
	}

	for pid, held := range b.state.table.InputHolders(req.Device) {
		if pid == req.PID {
			continue
		}
		if req.Exclusive || held.Exclusive {
			return protocol.Deny(protocol.ReasonAlreadyHeld)
		}
	}

	if err := b.state.table.Grant(req.PID, grant); err != nil {
		return protocol.Other(1)
	}
	return protocol.Granted{Capability: grant}
}

func (b *Broker) createSurface(call Call, req protocol.CreateSurface) protocol.Response {
	if !b.actsFor(call, req.PID) {
		return protocol.Deny(protocol.ReasonUnauthorized)
	}
	if !b.state.table.Holds(req.PID, protocol.GPURendering{}) {
		return protocol.Deny(protocol.ReasonUnauthorized)
	}
	if !req.Config.Valid() {
		return protocol.Deny(protocol.ReasonInvalidConfig)
	}

	id := b.state.nextSurface
	if err := b.state.table.AddSurface(req.PID, id); err != nil {
		return protocol.Deny(protocol.ReasonResourceLimitExceeded)
	}
	b.state.allocSurface()
	return protocol.Success{Surface: id}
}

// destroySurface never fails. A caller that may not act on the subject
// gets Success with nothing removed.
func (b *Broker) destroySurface(call Call, req protocol.DestroySurface) protocol.Response {
	if b.actsFor(call, req.PID) && b.state.table.OwnsSurface(req.PID, req.Surface) {
		b.state.table.RemoveSurface(req.PID, req.Surface)
	}
	return protocol.Success{}
}

func (b *Broker) setDisplayMode(call Call, req protocol.SetDisplayMode) (protocol.Response, string) {
	comp, ok := b.state.table.Compositor()
	if !ok || (!call.trusted() && call.Caller != comp) {
		return protocol.Deny(protocol.ReasonUnauthorized), ""
	}
	if !req.Mode.Valid() {
		return protocol.Deny(protocol.ReasonInvalidConfig), ""
	}

	err := b.breaker.Do(func() error {
		return b.display.SetMode(req.Connector, req.Mode)
	})
	if err != nil {
		msg := err.Error()
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			msg = "display driver unavailable: " + msg
		}
		b.log.Warn("display mode set failed",
			logging.Connector(req.Connector),
			zap.Stringer("mode", req.Mode),
			zap.Error(err))
		return protocol.Error{Message: msg}, msg
	}

	control := protocol.DisplayControl{Connector: req.Connector}
	if !b.state.table.Holds(comp, control) {
		_ = b.state.table.Grant(comp, control)
	}
	return protocol.Success{}, req.Mode.String()
}

func (b *Broker) registerCompositor(call Call, req protocol.RegisterCompositor) protocol.Response {
	if req.PID == protocol.KernelPID {
		return protocol.Deny(protocol.ReasonUnauthorized)
	}
	if !call.trusted() && call.Caller != req.PID {
		return protocol.Deny(protocol.ReasonUnauthorized)
	}
	if err := b.state.table.Grant(req.PID, protocol.Compositor{}); err != nil {
		if errors.Is(err, captable.ErrCompositorHeld) {
			return protocol.Deny(protocol.ReasonAlreadyHeld)
		}
		return protocol.Other(1)
	}
	if err := b.state.table.Grant(req.PID, protocol.SurfaceManagement{}); err != nil {
		return protocol.Other(1)
	}
	b.log.Info("compositor registered", logging.PID(req.PID))
	return protocol.Success{}
}

func (b *Broker) unregisterCompositor(call Call, req protocol.UnregisterCompositor) protocol.Response {
	if !call.trusted() && call.Caller != req.PID {
		return protocol.Deny(protocol.ReasonUnauthorized)
	}
	if !b.isCompositor(req.PID) {
		return protocol.Deny(protocol.ReasonUnauthorized)
	}
	b.cascade(call.RequestID, req.PID, "unregister")
	return protocol.Success{}
}

// Exit purges a dead process. A dead compositor takes every derived right
// with it; any other process loses its own entry only.
func (b *Broker) Exit(pid protocol.PID) {
	if b.isCompositor(pid) {
		b.cascade("", pid, "compositor_exit")
		return
	}

	prev, ok := b.state.table.RemoveProcess(pid)
	if !ok {
		return
	}
	b.log.Info("process exit revoked capabilities",
		logging.PID(pid),
		zap.Int("capabilities", len(prev.Capabilities)),
		zap.Int("surfaces", len(prev.Surfaces)))
	b.audit(audit.Record{
		Time:    b.now(),
		Caller:  protocol.KernelPID,
		Subject: pid,
		Kind:    "process_exit",
		Outcome: audit.OutcomeExit,
		Detail:  fmt.Sprintf("%d capabilities, %d surfaces", len(prev.Capabilities), len(prev.Surfaces)),
	})
	b.publish()
}

// cascade revokes every compositor-derived right in one step
func (b *Broker) cascade(requestID string, compositor protocol.PID, cause string) {
	affected := b.state.table.RevokeDerived()

	b.metrics.IncCascade(cause)
	b.log.Info("compositor rights cascade",
		zap.String("cause", cause),
		zap.Uint32("compositor", uint32(compositor)),
		zap.Int("processes", len(affected)))

	for _, pid := range affected {
		b.audit(audit.Record{
			Time:      b.now(),
			RequestID: requestID,
			Caller:    compositor,
			Subject:   pid,
			Kind:      cause,
			Outcome:   audit.OutcomeCascade,
		})
	}
	b.publish()
}
