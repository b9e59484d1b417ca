package reactor

import (
	"sync/atomic"
	"time"
)

// Clock supplies wall time for command expiry.
// Implemented by SystemClock (production) and testutil.ManualClock (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// sequence is a monotonic counter. Each call to next returns a unique,
// strictly increasing value starting at 1.
//
// Used for middleware registration IDs, where removal must target exactly
// one registration even when the same middleware value is observed twice.
type sequence struct {
	n atomic.Uint64
}

func (s *sequence) next() uint64 {
	return s.n.Add(1)
}
