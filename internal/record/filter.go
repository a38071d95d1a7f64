package record

import (
	"github.com/cespare/xxhash/v2"
)

// Hash is the instrument hash used for filtering. The empty instrument hashes to 0.
func Hash(ins []byte) uint64 {
	if len(ins) == 0 {
		return 0
	}
	return xxhash.Sum64(ins)
}

// Filter admits records for one instrument. Matching compares hashes only, so two
// instruments with colliding hashes are treated as the same instrument.
// The zero Filter admits everything.
type Filter struct {
	h uint64
}

func NewFilter(ins string) Filter {
	return Filter{h: Hash([]byte(ins))}
}

// Active reports whether a specific instrument was configured.
func (f Filter) Active() bool { return f.h != 0 }

// Match reports whether ins passes the filter. With an active filter an
// instrument hashing to 0 never matches.
func (f Filter) Match(ins []byte) bool {
	if f.h == 0 {
		return true
	}
	return Hash(ins) == f.h
}
