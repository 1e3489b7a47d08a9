package datastore

import (
	"hash/fnv"
	"sync"
)

// ResourceMutexManager provides striped per-resource locking so concurrent
// fetch workers never serialize on a single global lock. Resources hash onto
// a fixed set of stripes; two resources sharing a stripe contend, which is
// acceptable at the stripe counts used here.
type ResourceMutexManager struct {
	stripes []sync.Mutex
}

// NewResourceMutexManager creates a manager with the given stripe count.
func NewResourceMutexManager(stripeCount int) *ResourceMutexManager {
	if stripeCount <= 0 {
		stripeCount = 16
	}
	return &ResourceMutexManager{
		stripes: make([]sync.Mutex, stripeCount),
	}
}

// Lock acquires the stripe lock owning resourceID.
func (rm *ResourceMutexManager) Lock(resourceID string) {
	rm.stripes[rm.stripeFor(resourceID)].Lock()
}

// Unlock releases the stripe lock owning resourceID.
func (rm *ResourceMutexManager) Unlock(resourceID string) {
	rm.stripes[rm.stripeFor(resourceID)].Unlock()
}

func (rm *ResourceMutexManager) stripeFor(resourceID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(resourceID))
	return int(h.Sum32() % uint32(len(rm.stripes)))
}
