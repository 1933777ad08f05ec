// Package id generates the identifiers that correlate broker traffic.
//
// Every id is a kind prefix and a ULID joined by an underscore
// (req_01J...). ULIDs sort by creation time, so a log or audit trail
// ordered by request ID is ordered by issue time.
package id

import (
	"crypto/rand"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one broker request across client, transport,
// broker and audit trail
type RequestID string

// FrameID identifies one compositor frame in render logs
type FrameID string

// Kind prefixes
const (
	RequestPrefix = "req"
	FramePrefix   = "frm"
	TracePrefix   = "trc"
	SpanPrefix    = "spn"
)

// ErrNoPrefix is returned by Split for a bare ULID
var ErrNoPrefix = errors.New("id has no kind prefix")

// Generator issues strictly increasing ULIDs
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// Default returns the process-wide generator
var Default = sync.OnceValue(NewGenerator)

// NewGenerator creates a generator backed by crypto/rand. IDs issued within
// the same millisecond still increase strictly.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// ULID issues a bare ULID
func (g *Generator) ULID() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix issues prefix_<ulid>
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + "_" + g.ULID().String()
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewFrameID generates a new frame ID
func NewFrameID() FrameID {
	return FrameID(Default().GenerateWithPrefix(FramePrefix))
}

// NewTraceID and NewSpanID generate tracing ids
func NewTraceID() string { return Default().GenerateWithPrefix(TracePrefix) }
func NewSpanID() string  { return Default().GenerateWithPrefix(SpanPrefix) }

func (id RequestID) String() string { return string(id) }
func (id FrameID) String() string   { return string(id) }

// Split separates the kind prefix from the ULID
func Split(s string) (string, ulid.ULID, error) {
	prefix, rest, ok := strings.Cut(s, "_")
	if !ok {
		u, err := ulid.ParseStrict(s)
		if err != nil {
			return "", ulid.ULID{}, err
		}
		return "", u, ErrNoPrefix
	}
	u, err := ulid.ParseStrict(rest)
	return prefix, u, err
}

// IsValid reports whether s is a ULID, with or without a prefix
func IsValid(s string) bool {
	_, _, err := Split(s)
	return err == nil || errors.Is(err, ErrNoPrefix)
}

// Timestamp extracts the issue time from an id
func Timestamp(s string) (time.Time, error) {
	_, u, err := Split(s)
	if err != nil && !errors.Is(err, ErrNoPrefix) {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
