package extract

import (
	"regexp"
	"sync"
)

// PatternCache compiles and memoizes regular expressions. It is an
// explicit object owned by its extractor so pattern state is visible
// and testable instead of living in package globals.
type PatternCache struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

// NewPatternCache creates an empty cache
func NewPatternCache() *PatternCache {
	return &PatternCache{compiled: make(map[string]*regexp.Regexp)}
}

// Get returns the compiled form of a pattern, compiling it once
func (c *PatternCache) Get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.compiled[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.compiled[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// Len returns the number of cached patterns
func (c *PatternCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.compiled)
}
