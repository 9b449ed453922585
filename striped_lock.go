package lookupd

import (
	"hash/fnv"
	"sync"
)

// defaultStripeCount is plenty for per-object write serialization; the
// filesystem backend holds a stripe only for the duration of one file
// write or delete.
const defaultStripeCount = 32

// StripedLocks serializes writes per object key without a global mutex.
// The key hashes onto one of a fixed set of stripes, so writes to the
// same key always contend while writes to different keys usually do not.
// Two keys sharing a stripe serialize needlessly, which is harmless.
//
// Reads are not locked: the filesystem backend reads whole files and the
// stripes exist only to keep two writers from interleaving on one key.
type StripedLocks struct {
	stripes []sync.Mutex
	count   uint32
}

// NewStripedLocks creates a striped lock set. A non-positive count falls
// back to defaultStripeCount.
func NewStripedLocks(stripeCount int) *StripedLocks {
	if stripeCount <= 0 {
		stripeCount = defaultStripeCount
	}
	return &StripedLocks{
		stripes: make([]sync.Mutex, stripeCount),
		count:   uint32(stripeCount),
	}
}

// Lock acquires the stripe for key and returns the release function.
func (sl *StripedLocks) Lock(key string) func() {
	idx := sl.stripe(key)
	sl.stripes[idx].Lock()
	return sl.stripes[idx].Unlock
}

func (sl *StripedLocks) stripe(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % sl.count
}
