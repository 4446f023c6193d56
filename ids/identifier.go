// Package ids implements the identifier scheme used for trace and span
// identifiers: fixed-length byte strings with a memoized hex rendering and
// a pluggable generation Scheme (single 8-byte ids, double 16-byte trace
// ids, or a host-supplied generator registered by name).
package ids

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// Identifier is an immutable, fixed-length byte identifier with a hex
// rendering computed once, at construction. The zero value is the empty
// identifier.
type Identifier struct {
	bytes []byte
	hex   string
}

// Empty is the sentinel empty identifier.
var Empty = Identifier{}

// New wraps raw bytes as an Identifier. The slice is copied.
func New(b []byte) Identifier {
	if len(b) == 0 {
		return Empty
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return Identifier{bytes: cp, hex: hex.EncodeToString(cp)}
}

// FromHex parses a hex-encoded identifier. An empty string yields Empty.
func FromHex(s string) (Identifier, error) {
	if s == "" {
		return Empty, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Empty, fmt.Errorf("ids: malformed hex identifier %q: %w", s, err)
	}
	return New(b), nil
}

// IsEmpty reports whether this is the empty identifier sentinel.
func (id Identifier) IsEmpty() bool {
	return len(id.bytes) == 0
}

// Bytes returns the raw identifier bytes. Callers must not mutate the
// returned slice.
func (id Identifier) Bytes() []byte {
	return id.bytes
}

// String returns the lowercase hex rendering memoized at construction.
func (id Identifier) String() string {
	return id.hex
}

// Equal compares two identifiers by byte content.
func (id Identifier) Equal(other Identifier) bool {
	if len(id.bytes) != len(other.bytes) {
		return false
	}
	for i := range id.bytes {
		if id.bytes[i] != other.bytes[i] {
			return false
		}
	}
	return true
}

// Scheme generates trace and span identifiers. Built-in schemes are
// Single and Double; a host may register additional schemes under a name
// in internal/registry and resolve them at configuration time (spec §9:
// extension points named by string, never by reflection).
type Scheme interface {
	// Name identifies the scheme for configuration (e.g. "single", "double").
	Name() string
	// NewTraceID generates a new root trace identifier. start is the span's
	// start instant, used by the double scheme to fold 32 bits of wall-clock
	// time into the upper half the way dd-trace-go's 128-bit trace ids do,
	// so two independently generated trace ids recorded in the same
	// process-second don't collide on the random lower half alone.
	NewTraceID(start time.Time) Identifier
	// NewSpanID generates a new span identifier.
	NewSpanID() Identifier
}

// Single is the 8-byte trace/span id scheme.
var Single Scheme = singleScheme{}

// Double is the 16-byte trace id / 8-byte span id scheme.
var Double Scheme = doubleScheme{}

type singleScheme struct{}

func (singleScheme) Name() string { return "single" }

func (singleScheme) NewTraceID(time.Time) Identifier {
	return New(randomBytes(8))
}

func (singleScheme) NewSpanID() Identifier {
	return New(randomBytes(8))
}

type doubleScheme struct{}

func (doubleScheme) Name() string { return "double" }

func (doubleScheme) NewTraceID(start time.Time) Identifier {
	b := make([]byte, 16)
	// Upper 32 bits of the upper half carry unix seconds, matching the
	// dd-trace-go 128-bit trace id convention; the next 32 bits stay zero
	// and the lower 64 bits are random.
	upperSeconds := uint32(start.Unix())
	binary.BigEndian.PutUint32(b[0:4], upperSeconds)
	copy(b[8:16], randomBytes(8))
	return New(b)
}

func (doubleScheme) NewSpanID() Identifier {
	return New(randomBytes(8))
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read on the standard reader only fails if the OS
		// entropy source is unavailable; fall back to a time-seeded value
		// rather than panicking a measurement hot path.
		seed := uint64(time.Now().UnixNano())
		for i := 0; i < n; i += 8 {
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], seed)
			copy(b[i:], buf[:])
			seed = seed*6364136223846793005 + 1
		}
	}
	return b
}
