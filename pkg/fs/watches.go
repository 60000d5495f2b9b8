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
	"sync"
	"sync/atomic"
)

// inotifyCookie generates the correlation tokens pairing the MOVED_FROM and
// MOVED_TO halves of a rename.
var inotifyCookie atomic.Uint32

// newInotifyCookie returns a unique, non-zero rename correlation token.
func newInotifyCookie() uint32 {
	// Allocated cookies start at 1; 0 means "no cookie".
	return inotifyCookie.Add(1)
}

// A Watcher is notified of changes to the node it watches. Event masks are
// unix.IN_* values.
//
// Watchers are invoked synchronously from namespace operations and must not
// call back into the namespace.
type Watcher interface {
	// NotifyEvent delivers one event. name is the subject's name relative
	// to the watched node ("" for events about the node itself), events
	// is a mask of unix.IN_* bits, and cookie correlates the two halves
	// of a rename (0 otherwise).
	NotifyEvent(name string, events uint32, cookie uint32)
}

// Watches is the change-notification subscription set of an Inode.
type Watches struct {
	// mu protects the fields below.
	mu sync.Mutex

	// watchers is the set of subscribers, keyed by registration id.
	watchers map[uint64]Watcher

	// nextID is the id to hand to the next subscriber.
	nextID uint64

	// unlinked is true once the watched node has lost its last namespace
	// link. It gates the IN_DELETE_SELF event delivered when the inode is
	// finally destroyed.
	unlinked bool

	// pins are dentries kept alive on behalf of in-flight events.
	pins map[*Dentry]struct{}
}

func newWatches() *Watches {
	return &Watches{}
}

// Watch subscribes watcher and returns an id for Unwatch.
func (w *Watches) Watch(watcher Watcher) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watchers == nil {
		w.watchers = make(map[uint64]Watcher)
	}
	w.nextID++
	w.watchers[w.nextID] = watcher
	return w.nextID
}

// Unwatch removes the subscription with the given id.
func (w *Watches) Unwatch(id uint64) {
	w.mu.Lock()
	delete(w.watchers, id)
	w.mu.Unlock()
}

// Notify delivers an event to all subscribers. Delivery order across
// subscribers is unspecified; delivery order across Notify calls follows
// call order, which namespace operations arrange to match Linux (parents
// before self, MOVED_FROM before MOVED_TO).
func (w *Watches) Notify(name string, events uint32, cookie uint32) {
	w.mu.Lock()
	var snapshot []Watcher
	for _, watcher := range w.watchers {
		snapshot = append(snapshot, watcher)
	}
	w.mu.Unlock()

	// Deliver outside the lock; a watcher may unsubscribe from its own
	// callback.
	for _, watcher := range snapshot {
		watcher.NotifyEvent(name, events, cookie)
	}
}

// MarkUnlinked indicates the target of the watch set was removed from the
// namespace.
func (w *Watches) MarkUnlinked() {
	w.mu.Lock()
	w.unlinked = true
	w.mu.Unlock()
}

// Unlinked returns true if the watch target has been removed from the
// namespace.
func (w *Watches) Unlinked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unlinked
}

// Pin keeps d alive on behalf of a pending event. Pinning an already-pinned
// dentry is a no-op.
func (w *Watches) Pin(d *Dentry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pins == nil {
		w.pins = make(map[*Dentry]struct{})
	}
	if _, ok := w.pins[d]; ok {
		return
	}
	w.pins[d] = struct{}{}
	d.IncRef()
}

// Unpin drops the pin taken by Pin, if any.
func (w *Watches) Unpin(d *Dentry) {
	w.mu.Lock()
	_, ok := w.pins[d]
	if ok {
		delete(w.pins, d)
	}
	w.mu.Unlock()
	if ok {
		d.DecRef()
	}
}

// targetDestroyed drops all subscriptions; the watched inode is going away.
// Any active pins would have kept the inode alive, so pins are necessarily
// empty here.
func (w *Watches) targetDestroyed() {
	w.mu.Lock()
	w.watchers = nil
	w.mu.Unlock()
}
