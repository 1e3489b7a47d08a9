package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialPoolRotatesRoundRobin(t *testing.T) {
	pool := NewCredentialPool([]string{"key-a", "key-b", "key-c"})

	for _, want := range []string{"key-a", "key-b", "key-c", "key-a"} {
		got, err := pool.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCredentialPoolEmpty(t *testing.T) {
	pool := NewCredentialPool(nil)
	assert.Equal(t, 0, pool.Size())

	_, err := pool.Next()
	assert.Error(t, err)
}

func TestCredentialPoolCopiesKeys(t *testing.T) {
	keys := []string{"key-a"}
	pool := NewCredentialPool(keys)
	keys[0] = "mutated"

	got, err := pool.Next()
	require.NoError(t, err)
	assert.Equal(t, "key-a", got)
}
