package dbusgen

import (
	"errors"
	"fmt"
	"sync"
)

var errNotFound = errors.New("not found in cache")

// cache is a concurrency-safe memo of results, including failed
// ones.
type cache[K comparable, V any] struct {
	m sync.Map
}

type cacheEntry[V any] struct {
	val V
	err error
}

// Get returns the cached value or error for k. If k has never been
// stored, Get returns errNotFound.
func (c *cache[K, V]) Get(k K) (V, error) {
	ent, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, errNotFound
	}
	if ret, ok := ent.(cacheEntry[V]); ok {
		return ret.val, ret.err
	}
	panic(fmt.Sprintf("mystery value %v (%T) in cache", ent, ent))
}

func (c *cache[K, V]) Set(k K, v V) {
	c.m.Store(k, cacheEntry[V]{val: v})
}

func (c *cache[K, V]) SetErr(k K, err error) {
	c.m.Store(k, cacheEntry[V]{err: err})
}
