package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownPolicy(t *testing.T) {
	_, err := New("fifo", 4)
	require.Error(t, err)
}

func TestDisabledCache(t *testing.T) {
	c, err := New(PolicyLRU, 0)
	require.NoError(t, err)

	c.Set("k", Entry{Value: 1})
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.False(t, c.Contains("k"))
	assert.Equal(t, 0, c.Size())
}

func TestPolicies(t *testing.T) {
	for _, policy := range []string{PolicyLRU, PolicyRistretto} {
		t.Run(policy, func(t *testing.T) {
			c, err := New(policy, 16)
			require.NoError(t, err)

			c.Set("a", Entry{Value: "alpha", Timestamp: 1.5})
			e, ok := c.Get("a")
			require.True(t, ok)
			assert.Equal(t, "alpha", e.Value)
			assert.Equal(t, 1.5, e.Timestamp)
			assert.True(t, c.Contains("a"))

			c.Evict("a")
			_, ok = c.Get("a")
			assert.False(t, ok)

			// evicting an absent key is fine
			c.Evict("missing")

			c.Set("b", Entry{Value: 2})
			c.Purge()
			assert.False(t, c.Contains("b"))
		})
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(PolicyLRU, 3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), Entry{Value: i})
	}

	// touch k0 so that k1 becomes the oldest entry
	_, ok := c.Get("k0")
	require.True(t, ok)

	c.Set("k3", Entry{Value: 3})

	assert.True(t, c.Contains("k0"))
	assert.False(t, c.Contains("k1"))
	assert.True(t, c.Contains("k2"))
	assert.True(t, c.Contains("k3"))
}
