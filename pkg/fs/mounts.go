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
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/wardenos/warden/pkg/refs"
)

// DefaultTraversalLimit provides a sensible default traversal limit that may
// be passed to FindDentry. Note that the traversal limit in Linux is 40
// symlinks, but mounts are 1 per symlink.
const DefaultTraversalLimit = 10

// MountNamespace defines a collection of mounts over a single root Dentry.
type MountNamespace struct {
	refs.AtomicRefCount

	// root is the root Dentry.
	root *Dentry

	// mu protects mounts.
	mu sync.Mutex

	// mounts maps the root of each mounted subtree to the Dentry it
	// displaced. The namespace holds a real reference on both: keys so a
	// mount cannot be evicted while mounted, values so the original can
	// be restored on unmount.
	mounts map[*Dentry]*Dentry
}

// NewMountNamespace returns a new MountNamespace rooted at rootInode,
// consuming the caller's reference on it.
func NewMountNamespace(rootInode *Inode) *MountNamespace {
	return &MountNamespace{
		root:   NewDentry(rootInode, "/"),
		mounts: make(map[*Dentry]*Dentry),
	}
}

// Root returns the root Dentry of this namespace with a new reference.
func (mns *MountNamespace) Root() *Dentry {
	mns.root.IncRef()
	return mns.root
}

// DecRef releases a reference on the namespace, tearing down all mounts and
// the root when the last one is dropped.
func (mns *MountNamespace) DecRef() {
	mns.DecRefWithDestructor(mns.destroy)
}

func (mns *MountNamespace) destroy() {
	mns.mu.Lock()
	for mounted, original := range mns.mounts {
		delete(mns.mounts, mounted)
		original.DecRef()
		mounted.DecRef()
	}
	mns.mu.Unlock()
	mns.root.DecRef()
}

// Mount overlays node with a subtree rooted at inode: node's place in its
// parent is taken by a new mount-point Dentry backed by inode. Mount
// consumes the caller's reference on inode.
func (mns *MountNamespace) Mount(ctx context.Context, node *Dentry, inode *Inode) error {
	mns.mu.Lock()
	defer mns.mu.Unlock()

	replacement, err := node.Mount(inode)
	if err != nil {
		return err
	}

	// Keep both ends of the substitution alive: the mount point must not
	// be evicted out from under the namespace, and the displaced node is
	// needed again at unmount.
	node.IncRef()
	mns.mounts[replacement] = node

	logrus.WithFields(logrus.Fields{
		"path": replacement.FullName(mns.root),
		"type": inode.MountSource.FilesystemType,
	}).Debug("mounted")
	return nil
}

// Unmount tears down the mount rooted at node, restoring the displaced
// Dentry to its old place. Unmounting a node this namespace never mounted
// returns EINVAL.
func (mns *MountNamespace) Unmount(ctx context.Context, node *Dentry) error {
	mns.mu.Lock()
	defer mns.mu.Unlock()

	original, ok := mns.mounts[node]
	if !ok {
		logrus.WithField("path", node.FullName(mns.root)).Warn("unmount of something not mounted here")
		return unix.EINVAL
	}

	node.Unmount(original)

	delete(mns.mounts, node)
	original.DecRef()
	node.DecRef()
	return nil
}

// FindDentry resolves path to a Dentry, walking component by component from
// wd (or from root if the path is absolute), following symlinks.
// remainingTraversals is decremented per symlink followed; when it hits zero
// resolution fails with ELOOP. root bounds every ".." in the walk.
//
// FindDentry returns a new reference to the result.
func (mns *MountNamespace) FindDentry(ctx context.Context, root, wd *Dentry, path string, remainingTraversals *uint) (*Dentry, error) {
	if path == "" {
		return nil, unix.ENOENT
	}
	if root == nil {
		root = mns.root
	}

	current := wd
	if current == nil || strings.HasPrefix(path, "/") {
		current = root
	}
	current.IncRef()

	for _, name := range strings.Split(path, "/") {
		if name == "" {
			continue
		}

		next, err := current.Walk(ctx, root, name)
		if err != nil {
			current.DecRef()
			return nil, err
		}

		// Chase symlinks relative to the directory they sit in.
		for IsSymlink(next.Inode.StableAttr) {
			if *remainingTraversals == 0 {
				logrus.WithField("path", path).Debug("symlink traversal limit reached")
				next.DecRef()
				current.DecRef()
				return nil, unix.ELOOP
			}
			(*remainingTraversals)--

			target, err := next.Inode.Readlink(ctx)
			if err != nil {
				next.DecRef()
				current.DecRef()
				return nil, err
			}

			resolved, err := mns.FindDentry(ctx, root, current, target, remainingTraversals)
			next.DecRef()
			if err != nil {
				current.DecRef()
				return nil, err
			}
			next = resolved
		}

		current.DecRef()
		current = next
	}

	return current, nil
}
