package auth

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PrincipalCache remembers resolved principals per token so repeat requests
// skip the user store lookup. Entries are keyed by subject and token
// signature; Invalidate must be called whenever a user's role changes or the
// user is deleted.
type PrincipalCache struct {
	cache *expirable.LRU[string, Principal]
}

// NewPrincipalCache creates a cache holding at most size entries for ttl each
func NewPrincipalCache(size int, ttl time.Duration) *PrincipalCache {
	if size <= 0 {
		size = 1000
	}
	return &PrincipalCache{
		cache: expirable.NewLRU[string, Principal](size, nil, ttl),
	}
}

func cacheKey(subject, signature string) string {
	return subject + "." + signature
}

// Get returns a copy of the cached principal
func (c *PrincipalCache) Get(subject, signature string) (*Principal, bool) {
	p, ok := c.cache.Get(cacheKey(subject, signature))
	if !ok {
		return nil, false
	}
	return &p, true
}

// Add stores a copy of the principal
func (c *PrincipalCache) Add(subject, signature string, p *Principal) {
	c.cache.Add(cacheKey(subject, signature), *p)
}

// Invalidate removes every entry for username
func (c *PrincipalCache) Invalidate(username string) int {
	removed := 0
	for _, key := range c.cache.Keys() {
		// signatures are base64url and never contain '.'
		idx := strings.LastIndex(key, ".")
		if idx >= 0 && key[:idx] == username {
			if c.cache.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Len returns the number of live entries
func (c *PrincipalCache) Len() int {
	return c.cache.Len()
}

// Purge drops all entries
func (c *PrincipalCache) Purge() {
	c.cache.Purge()
}
