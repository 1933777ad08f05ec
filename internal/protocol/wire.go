package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrMalformed     = errors.New("malformed frame")
	ErrMissingBody   = errors.New("frame has no body")
	ErrDuplicateBody = errors.New("frame has more than one body")
)

// RequestFrame is a Request plus its envelope
type RequestFrame struct {
	RequestID string
	// Caller is the process the sender claims to be. Transports that can
	// observe the peer verify it before the frame reaches the broker.
	Caller  PID
	Request Request
}

// ResponseFrame is a Response plus its envelope
type ResponseFrame struct {
	RequestID string
	Response  Response
}

// Envelope field numbers shared by both frames
const (
	fieldRequestID protowire.Number = 1
	fieldCaller    protowire.Number = 2
)

// Request body field numbers
const (
	fieldRequestGPU protowire.Number = iota + 10
	fieldRequestInputDevice
	fieldCreateSurface
	fieldDestroySurface
	fieldSetDisplayMode
	fieldQueryDeviceType
	fieldRegisterCompositor
	fieldUnregisterCompositor
	fieldHasCapability
)

// Response body field numbers
const (
	fieldSuccess protowire.Number = iota + 10
	fieldGranted
	fieldDenied
	fieldError
	fieldDeviceType
	fieldCapabilityStatus
)

// Capability body field numbers
const (
	fieldCapGPU protowire.Number = iota + 1
	fieldCapInput
	fieldCapDisplay
	fieldCapSurfaceManagement
	fieldCapCompositor
)

// MarshalRequest encodes a request frame
func MarshalRequest(f RequestFrame) ([]byte, error) {
	num, body, err := encodeRequest(f.Request)
	if err != nil {
		return nil, err
	}
	var e encoder
	e.string(fieldRequestID, f.RequestID)
	e.varint(fieldCaller, uint64(f.Caller))
	e.message(num, body)
	return e.b, nil
}

// UnmarshalRequest decodes a request frame
func UnmarshalRequest(b []byte) (RequestFrame, error) {
	var f RequestFrame
	err := parseFields(b, func(fd field) error {
		switch {
		case fd.num == fieldRequestID:
			s, err := fd.str()
			f.RequestID = s
			return err
		case fd.num == fieldCaller:
			v, err := fd.uint32()
			f.Caller = PID(v)
			return err
		case fd.num >= fieldRequestGPU && fd.num <= fieldHasCapability:
			if f.Request != nil {
				return ErrDuplicateBody
			}
			body, err := fd.message()
			if err != nil {
				return err
			}
			req, err := decodeRequest(fd.num, body)
			if err != nil {
				return err
			}
			f.Request = req
		}
		return nil
	})
	if err != nil {
		return RequestFrame{}, err
	}
	if f.Request == nil {
		return RequestFrame{}, ErrMissingBody
	}
	return f, nil
}

// MarshalResponse encodes a response frame
func MarshalResponse(f ResponseFrame) ([]byte, error) {
	num, body, err := encodeResponse(f.Response)
	if err != nil {
		return nil, err
	}
	var e encoder
	e.string(fieldRequestID, f.RequestID)
	e.message(num, body)
	return e.b, nil
}

// UnmarshalResponse decodes a response frame
func UnmarshalResponse(b []byte) (ResponseFrame, error) {
	var f ResponseFrame
	err := parseFields(b, func(fd field) error {
		switch {
		case fd.num == fieldRequestID:
			s, err := fd.str()
			f.RequestID = s
			return err
		case fd.num >= fieldSuccess && fd.num <= fieldCapabilityStatus:
			if f.Response != nil {
				return ErrDuplicateBody
			}
			body, err := fd.message()
			if err != nil {
				return err
			}
			resp, err := decodeResponse(fd.num, body)
			if err != nil {
				return err
			}
			f.Response = resp
		}
		return nil
	})
	if err != nil {
		return ResponseFrame{}, err
	}
	if f.Response == nil {
		return ResponseFrame{}, ErrMissingBody
	}
	return f, nil
}

func encodeRequest(req Request) (protowire.Number, []byte, error) {
	var e encoder
	switch r := req.(type) {
	case RequestGPU:
		e.varint(1, uint64(r.PID))
		e.message(2, encodeLimits(r.Limits))
		return fieldRequestGPU, e.b, nil
	case RequestInputDevice:
		e.varint(1, uint64(r.PID))
		e.varint(2, uint64(r.Device))
		e.bool(3, r.Exclusive)
		return fieldRequestInputDevice, e.b, nil
	case CreateSurface:
		e.varint(1, uint64(r.PID))
		e.message(2, encodeSurfaceConfig(r.Config))
		return fieldCreateSurface, e.b, nil
	case DestroySurface:
		e.varint(1, uint64(r.PID))
		e.varint(2, uint64(r.Surface))
		return fieldDestroySurface, e.b, nil
	case SetDisplayMode:
		e.varint(1, uint64(r.Connector))
		e.message(2, encodeMode(r.Mode))
		return fieldSetDisplayMode, e.b, nil
	case QueryDeviceType:
		return fieldQueryDeviceType, e.b, nil
	case RegisterCompositor:
		e.varint(1, uint64(r.PID))
		return fieldRegisterCompositor, e.b, nil
	case UnregisterCompositor:
		e.varint(1, uint64(r.PID))
		return fieldUnregisterCompositor, e.b, nil
	case HasCapability:
		capBody, err := encodeCapability(r.Capability)
		if err != nil {
			return 0, nil, err
		}
		e.varint(1, uint64(r.PID))
		e.message(2, capBody)
		return fieldHasCapability, e.b, nil
	default:
		return 0, nil, fmt.Errorf("%w: unsupported request %T", ErrMissingBody, req)
	}
}

func decodeRequest(num protowire.Number, body []byte) (Request, error) {
	switch num {
	case fieldRequestGPU:
		var r RequestGPU
		err := parseFields(body, func(fd field) error {
			switch fd.num {
			case 1:
				return fd.pid(&r.PID)
			case 2:
				b, err := fd.message()
				if err != nil {
					return err
				}
				r.Limits, err = decodeLimits(b)
				return err
			}
			return nil
		})
		return r, err
	case fieldRequestInputDevice:
		var r RequestInputDevice
		err := parseFields(body, func(fd field) error {
			switch fd.num {
			case 1:
				return fd.pid(&r.PID)
			case 2:
				v, err := fd.uint32()
				r.Device = DeviceID(v)
				return err
			case 3:
				v, err := fd.boolean()
				r.Exclusive = v
				return err
			}
			return nil
		})
		return r, err
	case fieldCreateSurface:
		var r CreateSurface
		err := parseFields(body, func(fd field) error {
			switch fd.num {
			case 1:
				return fd.pid(&r.PID)
			case 2:
				b, err := fd.message()
				if err != nil {
					return err
				}
				r.Config, err = decodeSurfaceConfig(b)
				return err
			}
			return nil
		})
		return r, err
	case fieldDestroySurface:
		var r DestroySurface
		err := parseFields(body, func(fd field) error {
			switch fd.num {
			case 1:
				return fd.pid(&r.PID)
			case 2:
				v, err := fd.uint64()
				r.Surface = SurfaceID(v)
				return err
			}
			return nil
		})
		return r, err
	case fieldSetDisplayMode:
		var r SetDisplayMode
		err := parseFields(body, func(fd field) error {
			switch fd.num {
			case 1:
				v, err := fd.uint32()
				r.Connector = ConnectorID(v)
				return err
			case 2:
				b, err := fd.message()
				if err != nil {
					return err
				}
				r.Mode, err = decodeMode(b)
				return err
			}
			return nil
		})
		return r, err
	case fieldQueryDeviceType:
		return QueryDeviceType{}, parseFields(body, func(field) error { return nil })
	case fieldRegisterCompositor:
		var r RegisterCompositor
		err := parseFields(body, func(fd field) error {
			if fd.num == 1 {
				return fd.pid(&r.PID)
			}
			return nil
		})
		return r, err
	case fieldUnregisterCompositor:
		var r UnregisterCompositor
		err := parseFields(body, func(fd field) error {
			if fd.num == 1 {
				return fd.pid(&r.PID)
			}
			return nil
		})
		return r, err
	case fieldHasCapability:
		var r HasCapability
		err := parseFields(body, func(fd field) error {
			switch fd.num {
			case 1:
				return fd.pid(&r.PID)
			case 2:
				b, err := fd.message()
				if err != nil {
					return err
				}
				r.Capability, err = decodeCapability(b)
				return err
			}
			return nil
		})
		if err == nil && r.Capability == nil {
			err = fmt.Errorf("%w: has_capability without capability", ErrMissingBody)
		}
		return r, err
	}
	return nil, fmt.Errorf("%w: request field %d", ErrMalformed, num)
}

func encodeResponse(resp Response) (protowire.Number, []byte, error) {
	var e encoder
	switch r := resp.(type) {
	case Success:
		e.varint(1, uint64(r.Surface))
		return fieldSuccess, e.b, nil
	case Granted:
		capBody, err := encodeCapability(r.Capability)
		if err != nil {
			return 0, nil, err
		}
		e.message(1, capBody)
		return fieldGranted, e.b, nil
	case Denied:
		e.varint(1, uint64(r.Reason))
		e.varint(2, uint64(r.Code))
		return fieldDenied, e.b, nil
	case Error:
		e.string(1, r.Message)
		return fieldError, e.b, nil
	case DeviceType:
		e.bool(1, r.IsMobile)
		return fieldDeviceType, e.b, nil
	case CapabilityStatus:
		e.bool(1, r.Held)
		return fieldCapabilityStatus, e.b, nil
	default:
		return 0, nil, fmt.Errorf("%w: unsupported response %T", ErrMissingBody, resp)
	}
}

func decodeResponse(num protowire.Number, body []byte) (Response, error) {
	switch num {
	case fieldSuccess:
		var r Success
		err := parseFields(body, func(fd field) error {
			if fd.num == 1 {
				v, err := fd.uint64()
				r.Surface = SurfaceID(v)
				return err
			}
			return nil
		})
		return r, err
	case fieldGranted:
		var r Granted
		err := parseFields(body, func(fd field) error {
			if fd.num == 1 {
				b, err := fd.message()
				if err != nil {
					return err
				}
				r.Capability, err = decodeCapability(b)
				return err
			}
			return nil
		})
		if err == nil && r.Capability == nil {
			err = fmt.Errorf("%w: granted without capability", ErrMissingBody)
		}
		return r, err
	case fieldDenied:
		var r Denied
		err := parseFields(body, func(fd field) error {
			switch fd.num {
			case 1:
				v, err := fd.uint32()
				if v > uint32(ReasonOther) {
					return fmt.Errorf("%w: denial reason %d", ErrMalformed, v)
				}
				r.Reason = Reason(v)
				return err
			case 2:
				v, err := fd.uint32()
				r.Code = v
				return err
			}
			return nil
		})
		return r, err
	case fieldError:
		var r Error
		err := parseFields(body, func(fd field) error {
			if fd.num == 1 {
				s, err := fd.str()
				r.Message = s
				return err
			}
			return nil
		})
		return r, err
	case fieldDeviceType:
		var r DeviceType
		err := parseFields(body, func(fd field) error {
			if fd.num == 1 {
				v, err := fd.boolean()
				r.IsMobile = v
				return err
			}
			return nil
		})
		return r, err
	case fieldCapabilityStatus:
		var r CapabilityStatus
		err := parseFields(body, func(fd field) error {
			if fd.num == 1 {
				v, err := fd.boolean()
				r.Held = v
				return err
			}
			return nil
		})
		return r, err
	}
	return nil, fmt.Errorf("%w: response field %d", ErrMalformed, num)
}

func encodeCapability(c Capability) ([]byte, error) {
	var body encoder
	var num protowire.Number
	switch v := c.(type) {
	case GPURendering:
		num = fieldCapGPU
		body.b = encodeLimits(GPULimits{MemoryMB: v.MemoryMB, MaxSurfaces: v.MaxSurfaces})
	case InputDevice:
		num = fieldCapInput
		body.varint(1, uint64(v.Device))
		body.bool(2, v.Exclusive)
	case DisplayControl:
		num = fieldCapDisplay
		body.varint(1, uint64(v.Connector))
	case SurfaceManagement:
		num = fieldCapSurfaceManagement
	case Compositor:
		num = fieldCapCompositor
	default:
		return nil, fmt.Errorf("%w: unsupported capability %T", ErrMissingBody, c)
	}
	var e encoder
	e.message(num, body.b)
	return e.b, nil
}

func decodeCapability(b []byte) (Capability, error) {
	var c Capability
	err := parseFields(b, func(fd field) error {
		if fd.num < fieldCapGPU || fd.num > fieldCapCompositor {
			return nil
		}
		if c != nil {
			return ErrDuplicateBody
		}
		body, err := fd.message()
		if err != nil {
			return err
		}
		switch fd.num {
		case fieldCapGPU:
			l, err := decodeLimits(body)
			c = GPURendering{MemoryMB: l.MemoryMB, MaxSurfaces: l.MaxSurfaces}
			return err
		case fieldCapInput:
			var v InputDevice
			err := parseFields(body, func(fd field) error {
				switch fd.num {
				case 1:
					d, err := fd.uint32()
					v.Device = DeviceID(d)
					return err
				case 2:
					x, err := fd.boolean()
					v.Exclusive = x
					return err
				}
				return nil
			})
			c = v
			return err
		case fieldCapDisplay:
			var v DisplayControl
			err := parseFields(body, func(fd field) error {
				if fd.num == 1 {
					d, err := fd.uint32()
					v.Connector = ConnectorID(d)
					return err
				}
				return nil
			})
			c = v
			return err
		case fieldCapSurfaceManagement:
			c = SurfaceManagement{}
		case fieldCapCompositor:
			c = Compositor{}
		}
		return nil
	})
	return c, err
}

func encodeLimits(l GPULimits) []byte {
	var e encoder
	e.varint(1, uint64(l.MemoryMB))
	e.varint(2, uint64(l.MaxSurfaces))
	return e.b
}

func decodeLimits(b []byte) (GPULimits, error) {
	var l GPULimits
	err := parseFields(b, func(fd field) error {
		var err error
		switch fd.num {
		case 1:
			l.MemoryMB, err = fd.uint32()
		case 2:
			l.MaxSurfaces, err = fd.uint32()
		}
		return err
	})
	return l, err
}

func encodeSurfaceConfig(c SurfaceConfig) []byte {
	var e encoder
	e.varint(1, protowire.EncodeZigZag(int64(c.X)))
	e.varint(2, protowire.EncodeZigZag(int64(c.Y)))
	e.varint(3, uint64(c.Width))
	e.varint(4, uint64(c.Height))
	return e.b
}

func decodeSurfaceConfig(b []byte) (SurfaceConfig, error) {
	var c SurfaceConfig
	err := parseFields(b, func(fd field) error {
		var err error
		switch fd.num {
		case 1:
			c.X, err = fd.sint32()
		case 2:
			c.Y, err = fd.sint32()
		case 3:
			c.Width, err = fd.uint32()
		case 4:
			c.Height, err = fd.uint32()
		}
		return err
	})
	return c, err
}

func encodeMode(m DisplayMode) []byte {
	var e encoder
	e.varint(1, uint64(m.Width))
	e.varint(2, uint64(m.Height))
	e.varint(3, uint64(m.RefreshRate))
	return e.b
}

func decodeMode(b []byte) (DisplayMode, error) {
	var m DisplayMode
	err := parseFields(b, func(fd field) error {
		var err error
		switch fd.num {
		case 1:
			m.Width, err = fd.uint32()
		case 2:
			m.Height, err = fd.uint32()
		case 3:
			m.RefreshRate, err = fd.uint32()
		}
		return err
	})
	return m, err
}

// encoder appends proto3 fields, omitting zero scalars
type encoder struct {
	b []byte
}

func (e *encoder) varint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) bool(num protowire.Number, v bool) {
	e.varint(num, protowire.EncodeBool(v))
}

func (e *encoder) string(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, s)
}

// message is always emitted, empty or not, since its presence selects a
// variant.
func (e *encoder) message(num protowire.Number, body []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, body)
}

type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// parseFields walks every field in b. Varint and length-delimited fields
// are decoded for visit; other wire types are skipped.
func parseFields(b []byte, visit func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		fd := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			fd.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			fd.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		if err := visit(fd); err != nil {
			return err
		}
	}
	return nil
}

func (f field) want(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, f.num, f.typ)
	}
	return nil
}

func (f field) uint64() (uint64, error) {
	if err := f.want(protowire.VarintType); err != nil {
		return 0, err
	}
	return f.varint, nil
}

func (f field) uint32() (uint32, error) {
	v, err := f.uint64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: field %d overflows uint32", ErrMalformed, f.num)
	}
	return uint32(v), nil
}

func (f field) sint32() (int32, error) {
	v, err := f.uint64()
	if err != nil {
		return 0, err
	}
	x := protowire.DecodeZigZag(v)
	if x < math.MinInt32 || x > math.MaxInt32 {
		return 0, fmt.Errorf("%w: field %d overflows int32", ErrMalformed, f.num)
	}
	return int32(x), nil
}

func (f field) boolean() (bool, error) {
	v, err := f.uint64()
	if err != nil {
		return false, err
	}
	return protowire.DecodeBool(v), nil
}

func (f field) pid(dst *PID) error {
	v, err := f.uint32()
	*dst = PID(v)
	return err
}

func (f field) message() ([]byte, error) {
	if err := f.want(protowire.BytesType); err != nil {
		return nil, err
	}
	return f.bytes, nil
}

func (f field) str() (string, error) {
	b, err := f.message()
	return string(b), err
}
