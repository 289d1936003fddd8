package worker

import (
	"container/list"
	"sync"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/store"
)

// handleCache bounds the number of simultaneously open *store.SessionStore
// handles, evicting least-recently-used entries once full.
type handleCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	sessionID string
	store     *store.SessionStore
}

func newHandleCache(capacity int) *handleCache {
	if capacity <= 0 {
		capacity = 16
	}
	return &handleCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// get returns the cached handle for sessionID, opening it if absent.
func (c *handleCache) get(cfg config.Config, sessionID string) (*store.SessionStore, error) {
	c.mu.Lock()
	if el, ok := c.entries[sessionID]; ok {
		c.order.MoveToFront(el)
		s := el.Value.(*cacheEntry).store
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	s, err := store.OpenSession(cfg.SessionDBPath(sessionID))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have raced us to open the same session; keep
	// whichever entry is already in the cache and close our redundant one.
	if el, ok := c.entries[sessionID]; ok {
		c.order.MoveToFront(el)
		existing := el.Value.(*cacheEntry).store
		s.Close()
		return existing, nil
	}
	el := c.order.PushFront(&cacheEntry{sessionID: sessionID, store: s})
	c.entries[sessionID] = el
	c.evictOverflowLocked()
	return s, nil
}

func (c *handleCache) evictOverflowLocked() {
	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*cacheEntry)
		entry.store.Close()
		c.order.Remove(back)
		delete(c.entries, entry.sessionID)
	}
}

// evict drops and closes sessionID's cached handle, if any.
func (c *handleCache) evict(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[sessionID]
	if !ok {
		return
	}
	el.Value.(*cacheEntry).store.Close()
	c.order.Remove(el)
	delete(c.entries, sessionID)
}

func (c *handleCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, el := range c.entries {
		el.Value.(*cacheEntry).store.Close()
	}
	c.entries = make(map[string]*list.Element)
	c.order = list.New()
}
