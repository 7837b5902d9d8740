package audiocache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/MrWong99/voxpal/pkg/provider/tts"
)

// DefaultMaxEntries bounds a [MemoryCache] created with a non-positive size.
const DefaultMaxEntries = 512

type memEntry struct {
	key     string
	audio   tts.Audio
	expires time.Time
}

// MemoryCache is an in-process LRU cache with per-entry expiry.
type MemoryCache struct {
	max int
	now func() time.Time

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
}

// NewMemoryCache creates a MemoryCache holding at most maxEntries entries.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		max:   maxEntries,
		now:   time.Now,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

// Get implements [Cache].
func (c *MemoryCache) Get(_ context.Context, key string) (*tts.Audio, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*memEntry)
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.removeLocked(el)
		return nil, false, nil
	}
	c.ll.MoveToFront(el)
	a := e.audio
	a.Data = append([]byte(nil), e.audio.Data...)
	return &a, true, nil
}

// Set implements [Cache].
func (c *MemoryCache) Set(_ context.Context, key string, audio *tts.Audio, ttl time.Duration) error {
	if audio == nil {
		return nil
	}
	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	stored := tts.Audio{Data: append([]byte(nil), audio.Data...), ContentType: audio.ContentType}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*memEntry)
		e.audio = stored
		e.expires = expires
		c.ll.MoveToFront(el)
		return nil
	}
	c.items[key] = c.ll.PushFront(&memEntry{key: key, audio: stored, expires: expires})
	for c.ll.Len() > c.max {
		c.removeLocked(c.ll.Back())
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *MemoryCache) removeLocked(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*memEntry).key)
}

var _ Cache = (*MemoryCache)(nil)
