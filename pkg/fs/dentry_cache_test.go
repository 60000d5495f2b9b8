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
	"testing"
)

// newCacheTestDentry returns a parentless Dentry suitable for exercising the
// cache, holding one reference owned by the caller.
func newCacheTestDentry() *Dentry {
	return NewTransientDentry(NewMockInode(NewMockMountSource(nil), StableAttr{Type: RegularFile}))
}

func TestDentryCacheLRU(t *testing.T) {
	c := NewDentryCache(3)

	var ds []*Dentry
	for i := 0; i < 4; i++ {
		d := newCacheTestDentry()
		defer d.DecRef()
		c.Add(d)
		ds = append(ds, d)
	}

	// Adding a fourth entry evicts the least recently used, ds[0].
	if got := c.Size(); got != 3 {
		t.Errorf("cache size got %d, want 3", got)
	}
	if c.Contains(ds[0]) {
		t.Errorf("oldest entry survived eviction")
	}
	if got, want := ds[0].ReadRefs(), int64(1); got != want {
		t.Errorf("evicted entry has %d refs, want %d", got, want)
	}
	for _, d := range ds[1:] {
		if !c.Contains(d) {
			t.Errorf("entry missing from cache")
		}
		if got, want := d.ReadRefs(), int64(2); got != want {
			t.Errorf("cached entry has %d refs, want %d", got, want)
		}
	}

	// Touching ds[1] makes ds[2] the next eviction victim.
	c.Add(ds[1])
	c.Add(newCacheTestDentry())
	if !c.Contains(ds[1]) {
		t.Errorf("recently touched entry was evicted")
	}
	if c.Contains(ds[2]) {
		t.Errorf("least recently used entry was not evicted")
	}
}

func TestDentryCacheShrink(t *testing.T) {
	c := NewDentryCache(4)

	var ds []*Dentry
	for i := 0; i < 4; i++ {
		d := newCacheTestDentry()
		defer d.DecRef()
		c.Add(d)
		ds = append(ds, d)
	}

	c.setMaxSize(2)
	if got := c.Size(); got != 2 {
		t.Errorf("cache size after shrink got %d, want 2", got)
	}
	for i, d := range ds {
		if want := i >= 2; c.Contains(d) != want {
			t.Errorf("entry %d: Contains got %t, want %t", i, c.Contains(d), want)
		}
	}
}

func TestDentryCacheRemoveAndInvalidate(t *testing.T) {
	c := NewDentryCache(4)

	d := newCacheTestDentry()
	defer d.DecRef()
	c.Add(d)
	c.Remove(d)
	if c.Contains(d) {
		t.Errorf("entry still cached after Remove")
	}
	if got, want := d.ReadRefs(), int64(1); got != want {
		t.Errorf("removed entry has %d refs, want %d", got, want)
	}
	// Removing something not in the cache is a no-op.
	c.Remove(d)

	var ds []*Dentry
	for i := 0; i < 3; i++ {
		d := newCacheTestDentry()
		defer d.DecRef()
		c.Add(d)
		ds = append(ds, d)
	}
	c.Invalidate()
	if got := c.Size(); got != 0 {
		t.Errorf("cache size after Invalidate got %d, want 0", got)
	}
	for _, d := range ds {
		if got, want := d.ReadRefs(), int64(1); got != want {
			t.Errorf("invalidated entry has %d refs, want %d", got, want)
		}
	}
}

func TestDentryCacheLimiter(t *testing.T) {
	// Two caches share a global budget of 2 entries.
	limit := NewDentryCacheLimiter(2)
	c1 := NewDentryCache(10)
	c1.limit = limit
	c2 := NewDentryCache(10)
	c2.limit = limit

	a := newCacheTestDentry()
	defer a.DecRef()
	b := newCacheTestDentry()
	defer b.DecRef()
	c1.Add(a)
	c1.Add(b)

	// The shared budget is exhausted, so c2 admits its entry only by not
	// exceeding the global count: c2 has nothing of its own to evict, so
	// the add is dropped.
	d := newCacheTestDentry()
	defer d.DecRef()
	c2.Add(d)
	if c2.Contains(d) {
		t.Errorf("entry admitted past the shared limit")
	}
	if got, want := d.ReadRefs(), int64(1); got != want {
		t.Errorf("rejected entry has %d refs, want %d", got, want)
	}

	// Freeing budget in c1 lets c2 admit entries again.
	c1.Remove(a)
	c2.Add(d)
	if !c2.Contains(d) {
		t.Errorf("entry rejected despite free budget")
	}

	// A cache with its own entries evicts them to stay under the shared
	// limit rather than dropping the add.
	e := newCacheTestDentry()
	defer e.DecRef()
	c1.Add(e)
	if !c1.Contains(e) {
		t.Errorf("new entry was not admitted")
	}
	if c1.Contains(b) {
		t.Errorf("old entry survived eviction under the shared limit")
	}
}

func TestNilDentryCache(t *testing.T) {
	var c *DentryCache

	d := newCacheTestDentry()
	defer d.DecRef()
	c.Add(d)
	if got := c.Size(); got != 0 {
		t.Errorf("nil cache size got %d, want 0", got)
	}
	if c.Contains(d) {
		t.Errorf("nil cache claims to contain an entry")
	}
	c.Remove(d)
	c.Invalidate()
	if got, want := d.ReadRefs(), int64(1); got != want {
		t.Errorf("nil cache changed refs to %d, want %d", got, want)
	}
}
