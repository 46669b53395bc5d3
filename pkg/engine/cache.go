package engine

import (
	"container/list"
	"sync"

	"github.com/samuelblakek/invoice-automation/pkg/models"
)

// ResultCache keeps recent reconciliation results in memory so a
// follow-up settle call can reuse the matched row and parsed amounts.
// Oldest entries are evicted once the cache is full.
type ResultCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element
}

type cacheEntry struct {
	id     string
	result *models.ReconciliationResult
}

// NewResultCache creates a cache holding up to max results
func NewResultCache(max int) *ResultCache {
	if max < 1 {
		max = 1
	}
	return &ResultCache{
		max:     max,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Put stores a result keyed by its ID
func (c *ResultCache) Put(result *models.ReconciliationResult) {
	if result == nil || result.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[result.ID]; ok {
		el.Value = &cacheEntry{id: result.ID, result: result}
		c.order.MoveToBack(el)
		return
	}

	for c.order.Len() >= c.max {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).id)
	}
	c.entries[result.ID] = c.order.PushBack(&cacheEntry{id: result.ID, result: result})
}

// Get returns the cached result for an ID, or nil
func (c *ResultCache) Get(id string) *models.ReconciliationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[id]
	if !ok {
		return nil
	}
	return el.Value.(*cacheEntry).result
}

// Len returns the number of cached results
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
