package logging

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// Field constructors for the identifiers that show up in most log lines.
// Keeping the keys in one place lets log queries rely on them.

func PID(pid protocol.PID) zap.Field              { return zap.Uint32("pid", uint32(pid)) }
func Caller(pid protocol.PID) zap.Field           { return zap.Uint32("caller", uint32(pid)) }
func Subject(pid protocol.PID) zap.Field          { return zap.Uint32("subject", uint32(pid)) }
func Surface(id protocol.SurfaceID) zap.Field     { return zap.Uint64("surface", uint64(id)) }
func Device(id protocol.DeviceID) zap.Field       { return zap.Uint32("device", uint32(id)) }
func RequestID(id string) zap.Field               { return zap.String("request_id", id) }
func Connector(id protocol.ConnectorID) zap.Field { return zap.Uint32("connector", uint32(id)) }
