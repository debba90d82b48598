package vision

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// The cache keys on the structural skeleton of the action area markup, not
// its text. Two profiles with the same layout but different names, headlines
// or whitespace hash to the same key, so one model call covers both.

const maxCacheEntries = 2048

type cacheEntry struct {
	decision Decision
	expires  time.Time
}

// Cache is a TTL cache of vision decisions keyed by markup skeleton.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[uint64]cacheEntry
}

// NewCache creates a decision cache with the given entry lifetime.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uint64]cacheEntry),
	}
}

// Key hashes markup into a cache key insensitive to text and attribute
// values.
func (c *Cache) Key(markup string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(NormalizeMarkup(markup)))
	return h.Sum64()
}

// Get returns a copy of the cached decision for the key, if fresh.
func (c *Cache) Get(key uint64) (*Decision, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		return nil, false
	}
	d := entry.decision
	d.FromCache = true
	return &d, true
}

// Put stores a decision under the key.
func (c *Cache) Put(key uint64, d *Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= maxCacheEntries {
		c.pruneLocked()
	}
	stored := *d
	stored.FromCache = false
	c.entries[key] = cacheEntry{decision: stored, expires: c.now().Add(c.ttl)}
}

// pruneLocked drops expired entries, then arbitrary ones if still full.
func (c *Cache) pruneLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	for k := range c.entries {
		if len(c.entries) < maxCacheEntries {
			break
		}
		delete(c.entries, k)
	}
}

// NormalizeMarkup reduces HTML to its tag skeleton: element names and
// structure only, with text nodes and attribute values stripped.
func NormalizeMarkup(markup string) string {
	var b strings.Builder
	b.Grow(len(markup) / 4)

	inTag := false
	nameDone := false
	closing := false
	var name strings.Builder

	for _, r := range markup {
		switch {
		case r == '<':
			inTag = true
			nameDone = false
			closing = false
			name.Reset()
		case r == '>' && inTag:
			inTag = false
			tag := strings.ToLower(name.String())
			if tag != "" {
				if closing {
					b.WriteString("</")
				} else {
					b.WriteByte('<')
				}
				b.WriteString(tag)
				b.WriteByte('>')
			}
		case inTag && !nameDone:
			switch {
			case r == '/' && name.Len() == 0:
				closing = true
			case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '/':
				nameDone = true
			default:
				name.WriteRune(r)
			}
		}
	}
	return b.String()
}
