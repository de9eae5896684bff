package depcache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const lockStripes = 64

// stripes orders provider writes per key: whoever installs an entry for a key
// and whoever stores a value for it never interleave.
type stripes struct {
	mu [lockStripes]sync.Mutex
}

func (s *stripes) lock(key string) *sync.Mutex {
	m := &s.mu[xxhash.Sum64String(key)%lockStripes]
	m.Lock()
	return m
}
