package store

import (
	"sync"
	"sync/atomic"
	"time"
)

// ToolCache caches StoredTool rows by ID with a TTL. Expired rows are still
// served while one caller refreshes them. Rows are copied on the way in and
// out, so callers may modify what they get back.
type ToolCache struct {
	entries sync.Map // id -> *cachedTool
	ttl     time.Duration
}

type cachedTool struct {
	row        StoredTool
	found      bool // false records that the ID does not exist
	expiresAt  time.Time
	refreshing atomic.Bool
}

// CacheGetResult holds the result of a cache lookup.
type CacheGetResult struct {
	Tool         *StoredTool // copy of the cached row; nil on miss or for an unknown ID
	Hit          bool
	NeedsRefresh bool // set for exactly one caller per expired entry
}

func NewToolCache(ttl time.Duration) *ToolCache {
	return &ToolCache{ttl: ttl}
}

// Get never blocks on the repository.
func (c *ToolCache) Get(id string) CacheGetResult {
	val, ok := c.entries.Load(id)
	if !ok {
		return CacheGetResult{}
	}
	entry := val.(*cachedTool)

	result := CacheGetResult{Hit: true}
	if entry.found {
		result.Tool = entry.row.clone()
	}
	if !time.Now().Before(entry.expiresAt) {
		result.NeedsRefresh = entry.refreshing.CompareAndSwap(false, true)
	}
	return result
}

// Set caches a copy of tool. A nil tool records that id does not exist.
func (c *ToolCache) Set(id string, tool *StoredTool) {
	entry := &cachedTool{expiresAt: time.Now().Add(c.ttl)}
	if tool != nil {
		entry.row = *tool.clone()
		entry.found = true
	}
	c.entries.Store(id, entry)
}

func (c *ToolCache) Delete(id string) {
	c.entries.Delete(id)
}
