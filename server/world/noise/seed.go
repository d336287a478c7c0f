package noise

import (
	"encoding/binary"
	"errors"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrMalformedSeed is returned by ParseSeed for empty seeds.
var ErrMalformedSeed = errors.New("noise: malformed seed")

// ParseSeed converts a user supplied seed to an int64. Decimal integers are
// used as they are. Any other text is hashed, so that words and phrases may be
// used as seeds. Empty seeds are rejected.
func ParseSeed(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMalformedSeed
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	return int64(xxhash.Sum64String(s)), nil
}

// DeriveSeed mixes seed with a field name, producing the seed of a secondary
// field. Fields derived with different names are unrelated to each other and
// to the world seed, while remaining fully determined by it.
func DeriveSeed(seed int64, name string) int64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(seed))
	d := xxhash.New()
	_, _ = d.Write(b[:])
	_, _ = d.WriteString(name)
	return int64(d.Sum64())
}
