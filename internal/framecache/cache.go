// Package framecache keeps the most recently recorded trajectory frames
// in RAM under a byte budget, so callers can inspect a running simulation
// without touching the full trajectory. Frames are keyed by their record
// sequence number.
package framecache

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

var ErrIllegalBudget = errors.New("illegal frame cache byte budget")
var ErrInvalidSharding = errors.New("invalid frame cache sharding")

// OnEvict is called for every frame pushed out by the byte budget.
type OnEvict func(seq uint64, frame []byte)

type Cache struct {
	maxBytes uint64
	shardCnt uint64
	shards   []*shard
}

func NewCache(shards int, maxTotalBytes uint64, onEvict OnEvict) (*Cache, error) {
	if maxTotalBytes <= 2 {
		return nil, ErrIllegalBudget
	}
	if shards < 2 {
		return nil, ErrInvalidSharding
	}

	c := Cache{
		maxBytes: maxTotalBytes,
		shardCnt: uint64(shards),
		shards:   make([]*shard, shards),
	}

	shardBudget := maxTotalBytes / c.shardCnt
	for i := range c.shards {
		c.shards[i] = newShard(shardBudget, onEvict)
	}

	return &c, nil
}

// Add stores a frame under its sequence number and reports whether an
// eviction happened.
func (c *Cache) Add(seq uint64, frame []byte) bool {
	_, evicted := c.getShard(seq).add(seq, frame)
	return evicted
}

func (c *Cache) Get(seq uint64) ([]byte, bool) {
	return c.getShard(seq).get(seq)
}

func (c *Cache) Remove(seq uint64) {
	c.getShard(seq).remove(seq)
}

func (c *Cache) Purge() {
	var wg sync.WaitGroup
	wg.Add(len(c.shards))
	for i := range c.shards {
		go func(i int) {
			defer wg.Done()
			c.shards[i].purge()
		}(i)
	}
	wg.Wait()
}

func (c *Cache) Count() int {
	total := 0
	for i := range c.shards {
		total += c.shards[i].len()
	}
	return total
}

// Keys returns the cached sequence numbers in no particular order.
func (c *Cache) Keys() []uint64 {
	keys := make([]uint64, 0, c.Count())
	for i := range c.shards {
		keys = append(keys, c.shards[i].keys()...)
	}
	return keys
}

func (c *Cache) getShard(seq uint64) *shard {
	bs := make([]byte, 8)
	binary.LittleEndian.PutUint64(bs, seq)
	hash := xxhash.Sum64(bs)
	return c.shards[hash%c.shardCnt]
}
