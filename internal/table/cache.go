package table

import (
	"container/list"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/aalhour/ridgedb/internal/block"
)

// Cache is a process-wide, size-bounded cache of decoded blocks, keyed by
// (sst id, block index). Eviction is LRU by total cached bytes. Concurrent
// misses on the same key are collapsed into a single decode via
// singleflight, so a hot block is never read off disk twice at once.
type Cache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	ll       *list.List
	items    map[cacheKey]*list.Element

	group singleflight.Group
}

type cacheKey struct {
	id  uint64
	idx int
}

type cacheEntry struct {
	key   cacheKey
	block *block.Block
	bytes int64
}

// NewCache creates a block cache bounded at capacity bytes.
func NewCache(capacity int64) *Cache {
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[cacheKey]*list.Element),
	}
}

// Get returns the decoded block for (id, idx), calling load to decode it
// on a cache miss. Concurrent Get calls for the same key share one load.
func (c *Cache) Get(id uint64, idx int, load func() (*block.Block, error)) (*block.Block, error) {
	key := cacheKey{id: id, idx: idx}

	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		blk := elem.Value.(*cacheEntry).block
		c.mu.Unlock()
		return blk, nil
	}
	c.mu.Unlock()

	sfKey := fmt.Sprintf("%d:%d", id, idx)
	v, err, _ := c.group.Do(sfKey, func() (any, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	blk := v.(*block.Block)

	c.insert(key, blk)
	return blk, nil
}

func (c *Cache) insert(key cacheKey, blk *block.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		return
	}

	entry := &cacheEntry{key: key, block: blk, bytes: int64(blk.UncompressedSize())}
	elem := c.ll.PushFront(entry)
	c.items[key] = elem
	c.size += entry.bytes

	for c.size > c.capacity && c.ll.Back() != nil {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	back := c.ll.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*cacheEntry)
	c.ll.Remove(back)
	delete(c.items, entry.key)
	c.size -= entry.bytes
}

// EvictTable drops every cached block belonging to id, called once a
// table is deleted by compaction.
func (c *Cache) EvictTable(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.items {
		if key.id != id {
			continue
		}
		entry := elem.Value.(*cacheEntry)
		c.ll.Remove(elem)
		delete(c.items, key)
		c.size -= entry.bytes
	}
}

// Size returns the current number of cached bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
