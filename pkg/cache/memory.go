package cache

import (
	"sync"
)

// MemoryCache implements a thread-safe in-memory cache with indexing support.
type MemoryCache[K comparable, V any] struct {
	mu sync.RWMutex

	data map[K]V

	extractors map[string]func(V) any

	// indexName -> indexValue -> set of keys
	indices map[string]map[any]map[K]struct{}
}

// NewMemoryCache creates a new instance of MemoryCache
func NewMemoryCache[K comparable, V any]() *MemoryCache[K, V] {
	return &MemoryCache[K, V]{
		data:       make(map[K]V),
		extractors: make(map[string]func(V) any),
		indices:    make(map[string]map[any]map[K]struct{}),
	}
}

// Set adds or updates an item in the cache
func (c *MemoryCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

// SetMany stores items under one lock using keyFunc to derive keys.
func (c *MemoryCache[K, V]) SetMany(items []V, keyFunc func(V) K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		c.set(keyFunc(item), item)
	}
}

// Get retrieves an item from the cache
func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// Del removes an item from the cache
func (c *MemoryCache[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.del(key)
}

// Len returns the number of items in the cache
func (c *MemoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Values returns all values in the cache in no particular order.
func (c *MemoryCache[K, V]) Values() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()

	values := make([]V, 0, len(c.data))
	for _, v := range c.data {
		values = append(values, v)
	}
	return values
}

// Clear removes all items and index entries. Registered indexes survive.
func (c *MemoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[K]V)
	for name := range c.indices {
		c.indices[name] = make(map[any]map[K]struct{})
	}
}

// AddIndex registers a new secondary index
func (c *MemoryCache[K, V]) AddIndex(name string, extractor func(V) any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.extractors[name] = extractor
	c.indices[name] = make(map[any]map[K]struct{})
	for k, v := range c.data {
		c.addIndexEntry(name, extractor(v), k)
	}
}

// Find retrieves items matching the index criteria
func (c *MemoryCache[K, V]) Find(indexName string, indexValue any) ([]V, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys, err := c.lookup(indexName, indexValue)
	if err != nil {
		return nil, err
	}
	results := make([]V, 0, len(keys))
	for _, k := range keys {
		if v, ok := c.data[k]; ok {
			results = append(results, v)
		}
	}
	return results, nil
}

// DelByIndex removes every item matching the index criteria.
func (c *MemoryCache[K, V]) DelByIndex(indexName string, indexValue any) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.lookup(indexName, indexValue)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		c.del(k)
	}
	return len(keys), nil
}

// Filter scans the cache and returns items matching the predicate
func (c *MemoryCache[K, V]) Filter(predicate func(V) bool) []V {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []V
	for _, v := range c.data {
		if predicate(v) {
			results = append(results, v)
		}
	}
	return results
}

// Internal helper methods (assumes lock is held)

func (c *MemoryCache[K, V]) set(key K, value V) {
	if old, ok := c.data[key]; ok {
		c.removeFromIndexes(key, old)
	}
	c.data[key] = value
	for name, extractor := range c.extractors {
		c.addIndexEntry(name, extractor(value), key)
	}
}

func (c *MemoryCache[K, V]) del(key K) {
	if v, ok := c.data[key]; ok {
		c.removeFromIndexes(key, v)
		delete(c.data, key)
	}
}

// lookup copies the key set so callers may mutate the cache while iterating.
func (c *MemoryCache[K, V]) lookup(indexName string, indexValue any) ([]K, error) {
	if _, ok := c.extractors[indexName]; !ok {
		return nil, ErrIndexNotFound
	}
	keySet := c.indices[indexName][indexValue]
	keys := make([]K, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	return keys, nil
}

func (c *MemoryCache[K, V]) removeFromIndexes(key K, value V) {
	for name, extractor := range c.extractors {
		c.removeIndexEntry(name, extractor(value), key)
	}
}

func (c *MemoryCache[K, V]) addIndexEntry(indexName string, indexValue any, key K) {
	index, ok := c.indices[indexName]
	if !ok {
		index = make(map[any]map[K]struct{})
		c.indices[indexName] = index
	}

	keySet, ok := index[indexValue]
	if !ok {
		keySet = make(map[K]struct{})
		index[indexValue] = keySet
	}
	keySet[key] = struct{}{}
}

func (c *MemoryCache[K, V]) removeIndexEntry(indexName string, indexValue any, key K) {
	if index, ok := c.indices[indexName]; ok {
		if keySet, ok := index[indexValue]; ok {
			delete(keySet, key)
			if len(keySet) == 0 {
				delete(index, indexValue)
			}
		}
	}
}

var _ Store[string, any] = (*MemoryCache[string, any])(nil)
