package tag

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a 64-bit hash of the set's canonical (sorted-key)
// encoding, used by metric.Registry to key the per-tag-set instrument
// table without building an intermediate string map key on every hot-path
// lookup.
func (s Set) Fingerprint() uint64 {
	if len(s.entries) == 0 {
		return 0
	}
	d := xxhash.New()
	var buf [1]byte
	for _, e := range s.entries {
		_, _ = d.WriteString(e.key)
		_, _ = d.Write([]byte{0})
		buf[0] = byte(e.value.kind)
		_, _ = d.Write(buf[:])
		switch e.value.kind {
		case KindLong:
			_, _ = d.WriteString(strconv.FormatInt(e.value.num, 10))
		case KindBoolean:
			_, _ = d.WriteString(strconv.FormatBool(e.value.b))
		default:
			_, _ = d.WriteString(e.value.str)
		}
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}
