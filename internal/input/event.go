package input

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Event types from linux/input-event-codes.h
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02
	EvAbs uint16 = 0x03
)

// Relative axes
const (
	RelX uint16 = 0x00
	RelY uint16 = 0x01
)

// Absolute axes
const (
	AbsX uint16 = 0x00
	AbsY uint16 = 0x01
)

// Key values
const (
	KeyReleased int32 = 0
	KeyPressed  int32 = 1
	KeyRepeated int32 = 2
)

// EventSize is sizeof(struct input_event) on 64-bit kernels
const EventSize = 24

var ErrShortEvent = errors.New("short input event")

// Event is one decoded input_event record
type Event struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

// Kind names the event type for logs and metrics
func (e Event) Kind() string {
	switch e.Type {
	case EvSyn:
		return "syn"
	case EvKey:
		return "key"
	case EvRel:
		return "rel"
	case EvAbs:
		return "abs"
	default:
		return "other"
	}
}

// String renders the event for debugging
func (e Event) String() string {
	return fmt.Sprintf("%s code=%d value=%d", e.Kind(), e.Code, e.Value)
}

// Decode parses one record from b, which must hold at least EventSize bytes
func Decode(b []byte) (Event, error) {
	if len(b) < EventSize {
		return Event{}, fmt.Errorf("%w: %d bytes", ErrShortEvent, len(b))
	}
	sec := int64(binary.LittleEndian.Uint64(b[0:8]))
	usec := int64(binary.LittleEndian.Uint64(b[8:16]))
	return Event{
		Time:  time.Unix(sec, usec*int64(time.Microsecond)),
		Type:  binary.LittleEndian.Uint16(b[16:18]),
		Code:  binary.LittleEndian.Uint16(b[18:20]),
		Value: int32(binary.LittleEndian.Uint32(b[20:24])),
	}, nil
}

// Encode is the inverse of Decode
func Encode(e Event) []byte {
	b := make([]byte, EventSize)
	usec := e.Time.Nanosecond() / int(time.Microsecond)
	binary.LittleEndian.PutUint64(b[0:8], uint64(e.Time.Unix()))
	binary.LittleEndian.PutUint64(b[8:16], uint64(usec))
	binary.LittleEndian.PutUint16(b[16:18], e.Type)
	binary.LittleEndian.PutUint16(b[18:20], e.Code)
	binary.LittleEndian.PutUint32(b[20:24], uint32(e.Value))
	return b
}

// Read reads exactly one record from r. A clean end of stream is io.EOF.
func Read(r io.Reader) (Event, error) {
	var buf [EventSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Event{}, fmt.Errorf("%w: %v", ErrShortEvent, err)
		}
		return Event{}, err
	}
	return Decode(buf[:])
}
