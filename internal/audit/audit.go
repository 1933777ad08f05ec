package audit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/AgentOS/gui/internal/protocol"
)

// Outcomes beyond the response kinds
const (
	OutcomeCascade = "cascade"
	OutcomeExit    = "exit"
)

// Record is one audited event
type Record struct {
	Time      time.Time    `cbor:"time" json:"time"`
	RequestID string       `cbor:"request_id,omitempty" json:"request_id,omitempty"`
	Caller    protocol.PID `cbor:"caller" json:"caller"`
	Subject   protocol.PID `cbor:"subject" json:"subject"`
	Kind      string       `cbor:"kind" json:"kind"`
	Outcome   string       `cbor:"outcome" json:"outcome"`
	Reason    string       `cbor:"reason,omitempty" json:"reason,omitempty"`
	Detail    string       `cbor:"detail,omitempty" json:"detail,omitempty"`
}

// Sink receives audit records
type Sink interface {
	Record(Record) error
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	encMode, err = opts.EncMode()
	if err != nil {
		panic("audit: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("audit: CBOR decoder initialization failed: " + err.Error())
	}
}

// Discard drops every record
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(Record) error { return nil }

// Memory keeps the most recent records in a bounded ring
type Memory struct {
	mu    sync.Mutex
	buf   []Record
	next  int
	full  bool
	total uint64
}

// NewMemory creates a ring holding up to capacity records
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{buf: make([]Record, capacity)}
}

// Record stores r, evicting the oldest record when full
func (m *Memory) Record(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf[m.next] = r
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
	m.total++
	return nil
}

// Records returns the retained records, oldest first
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.full {
		return append([]Record(nil), m.buf[:m.next]...)
	}
	out := make([]Record, 0, len(m.buf))
	out = append(out, m.buf[m.next:]...)
	return append(out, m.buf[:m.next]...)
}

// Total returns the number of records ever stored
func (m *Memory) Total() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// File appends records to a CBOR sequence file
type File struct {
	mu  sync.Mutex
	f   *os.File
	enc *cbor.Encoder
}

// OpenFile opens path for appending, creating it if needed
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &File{f: f, enc: encMode.NewEncoder(f)}, nil
}

// Record appends r
func (f *File) Record(r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enc.Encode(r); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// Close flushes and closes the file
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.f.Sync(); err != nil {
		f.f.Close()
		return err
	}
	return f.f.Close()
}

// Multi fans records out to several sinks. Every sink sees every record;
// errors are joined.
type Multi []Sink

// Record forwards r to every sink
func (m Multi) Record(r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Decode reads every record from a CBOR sequence
func Decode(r io.Reader) ([]Record, error) {
	dec := decMode.NewDecoder(r)

	var out []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode audit record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}

// ReadFile decodes the audit trail at path. Rotated trails compressed
// with gzip or zstd are recognised by content and decompressed on the fly,
// whatever the file is called.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("sniff audit log: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind audit log: %w", err)
	}

	switch {
	case mime.Is("application/gzip"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip audit log: %w", err)
		}
		defer zr.Close()
		return Decode(zr)
	case mime.Is("application/zstd"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open zstd audit log: %w", err)
		}
		defer zr.Close()
		return Decode(zr)
	default:
		return Decode(f)
	}
}
