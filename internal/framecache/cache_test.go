package framecache

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache(t *testing.T) {
	t.Run("rejects a tiny budget", func(t *testing.T) {
		_, err := NewCache(2, 2, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIllegalBudget)
	})

	t.Run("rejects a single shard", func(t *testing.T) {
		_, err := NewCache(1, 1024, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidSharding)
	})
}

func TestCache_AddGet(t *testing.T) {
	t.Run("no eviction under budget", func(t *testing.T) {
		evicted := 0
		c, err := NewCache(2, 1<<20, func(seq uint64, frame []byte) { evicted++ })
		require.NoError(t, err)

		for i := uint64(1); i <= 50; i++ {
			c.Add(i, []byte(fmt.Sprintf("frame %d", i)))
		}

		for i := uint64(1); i <= 50; i++ {
			v, ok := c.Get(i)
			require.True(t, ok)
			assert.Equal(t, []byte(fmt.Sprintf("frame %d", i)), v)
		}

		assert.Equal(t, 50, c.Count())
		assert.Equal(t, 0, evicted)
	})

	t.Run("oldest frames go first when over budget", func(t *testing.T) {
		evicted := 0
		c, err := NewCache(2, 200, func(seq uint64, frame []byte) { evicted++ })
		require.NoError(t, err)

		anyEviction := false
		for i := uint64(1); i <= 40; i++ {
			if c.Add(i, []byte(fmt.Sprintf("frame %d", i))) {
				anyEviction = true
			}
		}

		assert.True(t, anyEviction)
		assert.Greater(t, evicted, 0)
		assert.Equal(t, 40-evicted, c.Count())

		// the newest frame always survives
		_, ok := c.Get(40)
		assert.True(t, ok)
	})

	t.Run("replacing a frame keeps the count", func(t *testing.T) {
		c, err := NewCache(2, 1024, nil)
		require.NoError(t, err)

		c.Add(7, []byte("first"))
		c.Add(7, []byte("second"))

		assert.Equal(t, 1, c.Count())
		v, ok := c.Get(7)
		require.True(t, ok)
		assert.Equal(t, []byte("second"), v)
	})

	t.Run("miss", func(t *testing.T) {
		c, err := NewCache(2, 1024, nil)
		require.NoError(t, err)

		_, ok := c.Get(99)
		assert.False(t, ok)
	})
}

func TestCache_RemoveAndPurge(t *testing.T) {
	c, err := NewCache(4, 1<<20, nil)
	require.NoError(t, err)

	for i := uint64(1); i <= 10; i++ {
		c.Add(i, []byte("frame"))
	}

	c.Remove(5)
	_, ok := c.Get(5)
	assert.False(t, ok)
	assert.Equal(t, 9, c.Count())

	c.Purge()
	assert.Equal(t, 0, c.Count())
	assert.Empty(t, c.Keys())
}

func TestCache_Keys(t *testing.T) {
	c, err := NewCache(4, 1<<20, nil)
	require.NoError(t, err)

	for i := uint64(1); i <= 5; i++ {
		c.Add(i, []byte("frame"))
	}

	keys := c.Keys()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, keys)
}
