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

// Package ramfs implements an in-memory file system that can be associated
// with any device.
package ramfs

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wardenos/warden/pkg/fs"
)

// Entry represents common internal state for file and directory nodes. It
// implements fs.InodeOperations with every operation unsupported; concrete
// node types embed it and override what they support.
type Entry struct {
	// mu protects the fields below.
	mu sync.Mutex

	// unstable is unstable attributes.
	unstable fs.UnstableAttr

	// xattrs are the extended attributes of the Entry.
	xattrs map[string][]byte
}

// InitEntry initializes an entry.
func (e *Entry) InitEntry(owner fs.FileOwner, p fs.FilePermissions) {
	e.InitEntryWithAttr(fs.WithCurrentTime(fs.UnstableAttr{
		Owner: owner,
		Perms: p,
		// Always start unlinked.
		Links: 0,
	}))
}

// InitEntryWithAttr initializes an entry with a complete set of attributes.
func (e *Entry) InitEntryWithAttr(uattr fs.UnstableAttr) {
	e.unstable = uattr
	e.xattrs = make(map[string][]byte)
}

// UnstableAttr implements fs.InodeOperations.UnstableAttr.
func (e *Entry) UnstableAttr(ctx context.Context, inode *fs.Inode) (fs.UnstableAttr, error) {
	e.mu.Lock()
	attr := e.unstable
	e.mu.Unlock()
	return attr, nil
}

// Check implements fs.InodeOperations.Check.
func (*Entry) Check(ctx context.Context, inode *fs.Inode, p fs.PermMask) bool {
	return fs.ContextCanAccessFile(ctx, inode, p)
}

// Getxattr returns the extended attribute at name.
func (e *Entry) Getxattr(name string) ([]byte, error) {
	e.mu.Lock()
	value, ok := e.xattrs[name]
	e.mu.Unlock()
	if ok {
		return value, nil
	}
	return nil, unix.ENODATA
}

// Setxattr sets the extended attribute at name to value.
func (e *Entry) Setxattr(name string, value []byte) {
	e.mu.Lock()
	e.xattrs[name] = value
	e.mu.Unlock()
}

// Listxattr returns the set of all currently set extended attributes.
func (e *Entry) Listxattr() map[string]struct{} {
	e.mu.Lock()
	names := make(map[string]struct{}, len(e.xattrs))
	for name := range e.xattrs {
		names[name] = struct{}{}
	}
	e.mu.Unlock()
	return names
}

// SetPermissions always sets the permissions.
func (e *Entry) SetPermissions(p fs.FilePermissions) bool {
	e.mu.Lock()
	e.unstable.Perms = p
	e.unstable.StatusChangeTime = time.Now()
	e.mu.Unlock()
	return true
}

// SetOwner always sets ownership.
func (e *Entry) SetOwner(owner fs.FileOwner) {
	e.mu.Lock()
	e.unstable.Owner = owner
	e.mu.Unlock()
}

// Permissions returns permissions on this entry.
func (e *Entry) Permissions() fs.FilePermissions {
	e.mu.Lock()
	p := e.unstable.Perms
	e.mu.Unlock()
	return p
}

// NotifyStatusChange updates the status change time (ctime).
func (e *Entry) NotifyStatusChange() {
	e.mu.Lock()
	e.unstable.StatusChangeTime = time.Now()
	e.mu.Unlock()
}

// NotifyModification updates the modification time and the status change
// time.
func (e *Entry) NotifyModification() {
	e.mu.Lock()
	now := time.Now()
	e.unstable.ModificationTime = now
	e.unstable.StatusChangeTime = now
	e.mu.Unlock()
}

// NotifyAccess updates the access time.
func (e *Entry) NotifyAccess() {
	e.mu.Lock()
	e.unstable.AccessTime = time.Now()
	e.mu.Unlock()
}

// Lookup is not supported by default.
func (*Entry) Lookup(context.Context, *fs.Inode, string) (*fs.Dentry, error) {
	return nil, unix.EINVAL
}

// Create is not supported by default.
func (*Entry) Create(context.Context, *fs.Inode, string, fs.FileFlags, fs.FilePermissions) (*fs.File, error) {
	return nil, unix.EINVAL
}

// CreateDirectory is not supported by default.
func (*Entry) CreateDirectory(context.Context, *fs.Inode, string, fs.FilePermissions) error {
	return unix.EINVAL
}

// CreateLink is not supported by default.
func (*Entry) CreateLink(context.Context, *fs.Inode, string, string) error {
	return unix.EINVAL
}

// CreateHardLink is not supported by default.
func (*Entry) CreateHardLink(context.Context, *fs.Inode, *fs.Inode, string) error {
	return unix.EINVAL
}

// CreateFifo is not supported by default.
func (*Entry) CreateFifo(context.Context, *fs.Inode, string, fs.FilePermissions) error {
	return unix.EINVAL
}

// Bind is not supported by default.
func (*Entry) Bind(context.Context, *fs.Inode, string, fs.BoundEndpoint, fs.FilePermissions) (*fs.Dentry, error) {
	return nil, unix.EINVAL
}

// Remove is not supported by default.
func (*Entry) Remove(context.Context, *fs.Inode, string) error {
	return unix.EINVAL
}

// RemoveDirectory is not supported by default.
func (*Entry) RemoveDirectory(context.Context, *fs.Inode, string) error {
	return unix.EINVAL
}

// Rename implements fs.InodeOperations.Rename.
func (*Entry) Rename(ctx context.Context, inode *fs.Inode, oldParent *fs.Inode, oldName string, newParent *fs.Inode, newName string, replacement bool) error {
	return Rename(ctx, oldParent.InodeOperations, oldName, newParent.InodeOperations, newName, replacement)
}

// Readlink always returns ENOLINK.
func (*Entry) Readlink(context.Context, *fs.Inode) (string, error) {
	return "", unix.ENOLINK
}

// Release is a no-op.
func (*Entry) Release(context.Context) {}

// AddLink implements fs.InodeOperations.AddLink.
func (e *Entry) AddLink() {
	e.mu.Lock()
	e.unstable.Links++
	e.mu.Unlock()
}

// DropLink implements fs.InodeOperations.DropLink.
func (e *Entry) DropLink() {
	e.mu.Lock()
	e.unstable.Links--
	e.mu.Unlock()
}

// Rename renames from a *ramfs.Dir to another *ramfs.Dir.
func Rename(ctx context.Context, oldParent fs.InodeOperations, oldName string, newParent fs.InodeOperations, newName string, replacement bool) error {
	op, ok := oldParent.(*Dir)
	if !ok {
		return unix.EXDEV
	}
	np, ok := newParent.(*Dir)
	if !ok {
		return unix.EXDEV
	}

	np.mu.Lock()
	defer np.mu.Unlock()

	if replaced, ok := np.children[newName]; ok {
		// A directory can only be replaced if it is empty.
		if fs.IsDir(replaced.StableAttr) {
			rd, ok := replaced.InodeOperations.(*Dir)
			if !ok {
				return unix.EXDEV
			}
			if !rd.empty() {
				return unix.ENOTEMPTY
			}
		}
		inode, err := np.removeChildLocked(newName)
		if err != nil {
			return err
		}
		inode.DecRef()
	}

	// Be careful, we may have already grabbed this mutex above.
	if op != np {
		op.mu.Lock()
		defer op.mu.Unlock()
	}

	// Do the swap. removeChildLocked already updates the moved node's
	// ctime.
	n, err := op.removeChildLocked(oldName)
	if err != nil {
		return err
	}
	np.addChildLocked(newName, n)
	return nil
}
