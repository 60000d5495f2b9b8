// Copyright 2025 The Warden Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fs

import (
	"container/list"
	"fmt"
	"sync"
)

// DentryCache is an LRU cache of Dentries. The Dentry's refCount is
// incremented when it is added to the cache, and decremented when it is
// removed.
//
// A nil DentryCache corresponds to a cache with size 0. All methods can be
// called, but nothing is actually cached.
type DentryCache struct {
	// maxSize is the maximum size of the cache.
	maxSize uint64

	// limit restricts the number of entries in the cache among multiple
	// caches. It may be nil if there is no global limit for this cache.
	limit *DentryCacheLimiter

	// mu protects currentSize, lru and elements.
	mu sync.Mutex

	// currentSize is the number of elements in the cache.
	currentSize uint64

	// lru orders cached Dentries from most to least recently used.
	lru list.List

	// elements maps a cached Dentry to its position in lru; a Dentry is
	// in the cache exactly when it has an entry here.
	elements map[*Dentry]*list.Element
}

// NewDentryCache returns a new DentryCache with the given maxSize.
func NewDentryCache(maxSize uint64) *DentryCache {
	return &DentryCache{
		maxSize:  maxSize,
		elements: make(map[*Dentry]*list.Element),
	}
}

// Add adds the element to the cache and increments the refCount. If the
// argument is already in the cache, it is moved to the front. An element is
// removed from the back if the cache is over capacity.
func (c *DentryCache) Add(d *Dentry) {
	if c == nil || c.maxSize == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.elements[d]; ok {
		// d is already in cache. Bump it to the front.
		// currentSize and refCount are unaffected.
		c.lru.MoveToFront(e)
		return
	}

	// First check against the global limit.
	for c.limit != nil && !c.limit.tryInc() {
		if c.currentSize == 0 {
			// If the global limit is reached, but there is nothing
			// more to drop from this cache, there is not much else
			// to do.
			return
		}
		c.remove(c.lru.Back().Value.(*Dentry))
	}

	// d is not in cache. Add it and take a reference.
	c.elements[d] = c.lru.PushFront(d)
	d.IncRef()
	c.currentSize++

	c.maybeShrink()
}

func (c *DentryCache) remove(d *Dentry) {
	e, ok := c.elements[d]
	if !ok {
		panic(fmt.Sprintf("trying to remove %v, which is not in the dentry cache", d))
	}
	c.lru.Remove(e)
	delete(c.elements, d)
	d.DecRef()
	c.currentSize--
	if c.limit != nil {
		c.limit.dec()
	}
}

// Remove removes the element from the cache and decrements its refCount.
// Removing an element not in the cache is a no-op.
func (c *DentryCache) Remove(d *Dentry) {
	if c == nil || c.maxSize == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.elements[d]; !ok {
		return
	}
	c.remove(d)
}

// Size returns the number of elements in the cache.
func (c *DentryCache) Size() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// Contains reports whether d currently holds a cache reference.
func (c *DentryCache) Contains(d *Dentry) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.elements[d]
	return ok
}

// Invalidate removes all Dentries from the cache, calling DecRef on each.
func (c *DentryCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.lru.Front() != nil {
		c.remove(c.lru.Front().Value.(*Dentry))
	}
}

// setMaxSize sets cache max size. If the current size is larger than max
// size, the cache shrinks to accommodate the new max.
func (c *DentryCache) setMaxSize(max uint64) {
	c.mu.Lock()
	c.maxSize = max
	c.maybeShrink()
	c.mu.Unlock()
}

// maybeShrink removes the oldest element until the list is under the size
// limit.
func (c *DentryCache) maybeShrink() {
	for c.maxSize > 0 && c.currentSize > c.maxSize {
		c.remove(c.lru.Back().Value.(*Dentry))
	}
}
