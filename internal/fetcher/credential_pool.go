package fetcher

import (
	"sync"

	"github.com/lessuselesss/bounty-crawl/internal/common"
)

// CredentialPool hands out API keys for metered backends in round-robin
// order so a single rate-limited key cannot block the whole run. It is an
// explicit injected object, never a package-level counter, and is safe for
// concurrent use.
type CredentialPool struct {
	mu   sync.Mutex
	keys []string
	next int
}

// NewCredentialPool creates a pool over the configured keys.
func NewCredentialPool(keys []string) *CredentialPool {
	copied := make([]string, len(keys))
	copy(copied, keys)
	return &CredentialPool{keys: copied}
}

// Next returns the next credential in rotation.
func (cp *CredentialPool) Next() (string, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if len(cp.keys) == 0 {
		return "", common.NewError("credential pool is empty")
	}
	key := cp.keys[cp.next]
	cp.next = (cp.next + 1) % len(cp.keys)
	return key, nil
}

// Size returns the number of credentials in the pool.
func (cp *CredentialPool) Size() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.keys)
}
