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

// Package fs implements the in-memory filesystem namespace of the sandbox
// kernel: a tree of cached, named entries (Dentries) overlaying one or more
// backing stores.
//
// The namespace is traversed and mutated by many execution contexts at once.
// Consistency is maintained by two levels of locking:
//
//   - renameMu, a single package-wide reader/writer lock. All traversals
//     (walks, full path reconstruction, descendant checks) hold it for
//     reading and so proceed concurrently; rename holds it for writing and
//     is therefore atomic with respect to every other operation in the
//     namespace. Mount-root ascent also holds it for writing because it
//     depends on the stability of the mounted flag chain.
//
//   - a per-Dentry mutex guarding that Dentry's mutable fields (name,
//     parent, children, mounted). It is held only across field accesses,
//     never across a call into a backing store. When a parent and child are
//     both locked in one operation the parent is locked first; when two
//     parents are locked (cross-directory rename) they are locked in
//     ascending Dentry id order.
//
// Dentry destruction (last reference dropped) runs outside renameMu on
// whatever goroutine dropped the reference. That is safe because destruction
// only detaches an entry that can no longer be resolved: the weak reference
// in the parent's children map has already been invalidated.
package fs

import (
	"sync"
)

// renameMu protects the structure of the Dentry tree. Operations that
// depend on the tree shape staying put (walks, path reconstruction) take it
// for reading; rename, the sole structural writer, takes it exclusively.
var renameMu sync.RWMutex
