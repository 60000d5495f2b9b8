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

// Package refs defines an interface for reference counted objects and
// provides a drop-in implementation called AtomicRefCount, along with weak
// references that observe an object without extending its lifetime.
package refs

import (
	"sync"
	"sync/atomic"
)

// RefCounter is the interface to be implemented by objects that are
// reference counted.
type RefCounter interface {
	// IncRef increments the reference counter on the object.
	IncRef()

	// DecRef decrements the reference counter on the object.
	//
	// Note that AtomicRefCount.DecRef() does not support destructors.
	// If a type has a destructor, it must implement its own DecRef()
	// method and call AtomicRefCount.DecRefWithDestructor(destructor).
	DecRef()

	// TryIncRef attempts to increase the reference counter on the object,
	// but may fail if all references have already been dropped. This
	// should be used only in special circumstances, such as WeakRefs.
	TryIncRef() bool

	// addWeakRef adds the given weak reference. The caller must hold a
	// reference to the object.
	addWeakRef(*WeakRef)

	// dropWeakRef drops the given weak reference. The caller must hold a
	// reference to the object.
	dropWeakRef(*WeakRef)
}

// WeakRef is a weak reference: it resolves to its object only while the
// object still has real references, and resolves to nil afterwards.
type WeakRef struct {
	mu sync.Mutex

	// obj is the referent. It is set to nil ("zapped") when the last real
	// reference to the object is dropped.
	obj RefCounter
}

// NewWeakRef acquires a weak reference for the given object.
//
// The caller must hold a reference to the object when calling NewWeakRef,
// but may drop it afterwards.
func NewWeakRef(rc RefCounter) *WeakRef {
	w := &WeakRef{obj: rc}
	rc.addWeakRef(w)
	return w
}

// Get attempts to get a real reference to the underlying object, and returns
// the object. If this fails (the object no longer exists), then nil is
// returned instead.
func (w *WeakRef) Get() RefCounter {
	w.mu.Lock()
	rc := w.obj
	w.mu.Unlock()
	if rc == nil {
		// Already zapped.
		return nil
	}
	if !rc.TryIncRef() {
		// The object is being destroyed; it will zap us shortly.
		return nil
	}
	return rc
}

// Drop drops this weak reference. The weak reference must not be used after
// calling Drop.
func (w *WeakRef) Drop() {
	rc := w.Get()
	if rc == nil {
		// The object is gone (or going); destruction unlinks us.
		return
	}
	rc.dropWeakRef(w)
	rc.DecRef()
}

// zap invalidates this weak reference. After zap, Get returns nil.
func (w *WeakRef) zap() {
	w.mu.Lock()
	w.obj = nil
	w.mu.Unlock()
}

// AtomicRefCount keeps a reference count using atomic operations and calls
// the destructor when the count reaches zero.
//
// N.B. To allow the zero-object to be initialized, the count is offset by
// 1; that is, when refCount is n, there are really n+1 references.
type AtomicRefCount struct {
	// refCount is composed of two fields:
	//
	//	[32-bit speculative references]:[32-bit real references]
	//
	// Speculative references are used by TryIncRef to avoid a
	// CompareAndSwap loop; see IncRef, DecRef and TryIncRef.
	refCount atomic.Int64

	// mu protects weakRefs.
	mu sync.Mutex

	// weakRefs is the collection of outstanding weak references.
	weakRefs map[*WeakRef]struct{}
}

// ReadRefs returns the current number of references. The returned count is
// inherently racy and is unsafe to use without external synchronization.
func (r *AtomicRefCount) ReadRefs() int64 {
	// Account for the internal -1 offset on refcounts.
	return r.refCount.Load() + 1
}

// IncRef increments this object's reference count. While the count is kept
// greater than zero, the destructor doesn't get called.
//
// The sanity check here is limited to real references, since if they have
// dropped beneath zero then the object should have been destroyed.
func (r *AtomicRefCount) IncRef() {
	if v := r.refCount.Add(1); v <= 0 {
		panic("Incrementing non-positive ref count")
	}
}

// TryIncRef attempts to increment the reference count, *unless the count has
// already reached zero*. If false is returned, then the object has already
// been destroyed, and the weak reference is no longer valid. If true is
// returned then a valid reference is now held on the object.
//
// To do this safely without a loop, a speculative reference is first acquired
// on the object. This allows multiple concurrent TryIncRef calls to
// distinguish other TryIncRef calls from genuine references held.
func (r *AtomicRefCount) TryIncRef() bool {
	const speculativeRef = 1 << 32
	v := r.refCount.Add(speculativeRef)
	if int32(v) < 0 {
		// This object has already been freed.
		r.refCount.Add(-speculativeRef)
		return false
	}

	// Turn into a real reference.
	r.refCount.Add(-speculativeRef + 1)
	return true
}

// addWeakRef adds the given weak reference.
func (r *AtomicRefCount) addWeakRef(w *WeakRef) {
	r.mu.Lock()
	if r.weakRefs == nil {
		r.weakRefs = make(map[*WeakRef]struct{})
	}
	r.weakRefs[w] = struct{}{}
	r.mu.Unlock()
}

// dropWeakRef drops the given weak reference.
func (r *AtomicRefCount) dropWeakRef(w *WeakRef) {
	r.mu.Lock()
	delete(r.weakRefs, w)
	r.mu.Unlock()
}

// DecRefWithDestructor decrements the object's reference count. If the
// resulting count is negative and the destructor is not nil, then the
// destructor will be called.
//
// Note that speculative references are counted here. Since they were added
// prior to real references reaching zero, they will successfully convert to
// real references. In other words, we see speculative references only in the
// following case:
//
//	A: TryIncRef [speculative increase => sees non-negative references]
//	B: DecRef [real decrease]
//	A: TryIncRef [transform speculative to real]
func (r *AtomicRefCount) DecRefWithDestructor(destroy func()) {
	switch v := r.refCount.Add(-1); {
	case v < -1:
		panic("Decrementing non-positive ref count")

	case v == -1:
		// Zap weak references. Note that at this point all weak
		// references are already invalid: TryIncRef() fails due to
		// the reference count check.
		r.mu.Lock()
		for w := range r.weakRefs {
			delete(r.weakRefs, w)
			w.zap()
		}
		r.mu.Unlock()

		if destroy != nil {
			destroy()
		}
	}
}

// DecRef decrements this object's reference count.
func (r *AtomicRefCount) DecRef() {
	r.DecRefWithDestructor(nil)
}
