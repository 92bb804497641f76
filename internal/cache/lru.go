package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type entry struct {
	key     string
	value   string
	expires time.Time
	element *list.Element
}

// LRU is a bounded in-process Store. The least recently used entry is
// evicted when full; expired entries are dropped on access.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry
	order    *list.List
	now      func() time.Time
}

// NewLRU creates an LRU holding at most capacity entries, each kept for ttl
// unless Set gives another.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 512
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LRU{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *LRU) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		if c.now().Before(ent.expires) {
			c.order.MoveToFront(ent.element)
			return ent.value, true, nil
		}
		c.removeEntry(ent)
	}
	return "", false, nil
}

func (c *LRU) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.ttl
	}
	expires := c.now().Add(ttl)

	if ent, ok := c.items[key]; ok {
		ent.value = value
		ent.expires = expires
		c.order.MoveToFront(ent.element)
		return nil
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(key)
	c.items[key] = &entry{
		key:     key,
		value:   value,
		expires: expires,
		element: elem,
	}
	return nil
}

func (c *LRU) Purge(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry, c.capacity)
	c.order.Init()
	return nil
}

// Len returns the number of entries, expired or not.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU) Close() error { return nil }

func (c *LRU) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	key := elem.Value.(string)
	if ent, ok := c.items[key]; ok {
		c.removeEntry(ent)
	}
}

func (c *LRU) removeEntry(ent *entry) {
	if ent.element != nil {
		c.order.Remove(ent.element)
	}
	delete(c.items, ent.key)
}
