// ABOUTME: Thread-safe TTL cache for suppressing repeated keys.
// ABOUTME: The link uses it to log each unknown frame type once per window.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry pairs a key's last-seen time with its position in the eviction order.
type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers string keys for a TTL window, holding at most maxSize of
// them. Insertion order is kept in a doubly-linked list so capacity eviction
// is O(1). All methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache that forgets keys after ttl and never holds more than
// maxSize of them. A background goroutine sweeps expired entries; call Close
// to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Check reports whether key was marked within the TTL window.
func (c *Cache) Check(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return ok && time.Since(e.seenAt) < c.ttl
}

// CheckAndMark reports whether key was already marked within the window and
// marks it either way. The check and the mark are one atomic step, so two
// racing callers cannot both see "new".
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && time.Since(e.seenAt) < c.ttl {
		return true
	}

	c.markLocked(key)
	return false
}

// Mark records key as seen now, evicting the oldest entry when at capacity.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

func (c *Cache) markLocked(key string) {
	now := time.Now()

	if e, ok := c.entries[key]; ok {
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = &entry{
		seenAt:  now,
		element: c.order.PushBack(key),
	}
}

func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// Len reports the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweepLoop drops expired entries in the background so a cache holding
// short-lived keys does not pin memory until the next Mark.
func (c *Cache) sweepLoop() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.Sub(e.seenAt) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
