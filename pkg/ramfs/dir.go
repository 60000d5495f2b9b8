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

package ramfs

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/wardenos/warden/pkg/fs"
)

// CreateOps represents operations to create different file types.
type CreateOps struct {
	// NewDir creates a new directory.
	NewDir func(ctx context.Context, dir *fs.Inode, perms fs.FilePermissions) (*fs.Inode, error)

	// NewFile creates a new file.
	NewFile func(ctx context.Context, dir *fs.Inode, perms fs.FilePermissions) (*fs.Inode, error)

	// NewSymlink creates a new symlink with permissions 0777.
	NewSymlink func(ctx context.Context, dir *fs.Inode, target string) (*fs.Inode, error)

	// NewBoundEndpoint creates a new socket.
	NewBoundEndpoint func(ctx context.Context, dir *fs.Inode, ep fs.BoundEndpoint, perms fs.FilePermissions) (*fs.Inode, error)

	// NewFifo creates a new fifo.
	NewFifo func(ctx context.Context, dir *fs.Inode, perms fs.FilePermissions) (*fs.Inode, error)
}

// Dir represents a single directory in the filesystem.
type Dir struct {
	Entry

	// CreateOps may be provided.
	//
	// These may only be modified during initialization. No synchronization
	// is performed when accessing these operations afterwards.
	*CreateOps

	// mu protects the fields below.
	mu sync.Mutex

	// children are inodes that are in this directory. A reference is held
	// on each inode while it is in the map.
	children map[string]*fs.Inode

	// dentryMap is a SortedDentryMap containing entries for all children.
	// Its entries are kept up-to-date with d.children.
	dentryMap *fs.SortedDentryMap
}

// NewDir returns a new Dir over the given contents, inheriting the caller's
// reference on each of them.
func NewDir(contents map[string]*fs.Inode, owner fs.FileOwner, perms fs.FilePermissions) *Dir {
	d := &Dir{}
	d.InitEntry(owner, perms)
	if contents == nil {
		contents = make(map[string]*fs.Inode)
	}
	d.children = contents

	// Build the entries map ourselves, rather than calling addChildLocked,
	// because it will be faster.
	entries := make(map[string]fs.DentAttr, len(contents))
	for name, inode := range contents {
		entries[name] = fs.DentAttr{
			Type:    inode.StableAttr.Type,
			InodeID: inode.StableAttr.InodeID,
		}
	}
	d.dentryMap = fs.NewSortedDentryMap(entries)

	// Directories have an extra link, corresponding to '.'.
	d.AddLink()
	return d
}

// addChildLocked adds the child inode, inheriting its reference.
func (d *Dir) addChildLocked(name string, inode *fs.Inode) {
	d.children[name] = inode
	d.dentryMap.Add(name, fs.DentAttr{
		Type:    inode.StableAttr.Type,
		InodeID: inode.StableAttr.InodeID,
	})

	// If the child is a directory, increment this dir's link count,
	// corresponding to '..' from the subdirectory.
	if fs.IsDir(inode.StableAttr) {
		d.AddLink()
	}

	// Given we're now adding this inode to the directory we must also
	// increase its link count. Similarly we decrement it in
	// removeChildLocked.
	inode.AddLink()
}

// AddChild adds a child to this dir, inheriting the caller's reference on
// inode.
func (d *Dir) AddChild(name string, inode *fs.Inode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addChildLocked(name, inode)
}

// FindChild returns (child, true) if the directory contains name.
func (d *Dir) FindChild(name string) (*fs.Inode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	child, ok := d.children[name]
	return child, ok
}

// removeChildLocked attempts to remove an entry from this directory. It
// returns the removed Inode, whose map reference the caller inherits.
func (d *Dir) removeChildLocked(name string) (*fs.Inode, error) {
	inode, ok := d.children[name]
	if !ok {
		return nil, unix.ENOENT
	}

	delete(d.children, name)
	d.dentryMap.Remove(name)
	d.Entry.NotifyModification()

	// If the child was a subdirectory, then we must decrement this dir's
	// link count which was the child's ".." directory entry.
	if fs.IsDir(inode.StableAttr) {
		d.Entry.DropLink()
	}

	// Update ctime.
	notifyStatusChange(inode)

	// Given we're now removing this inode from the directory we must also
	// decrease its link count. Similarly it is increased in
	// addChildLocked.
	inode.DropLink()

	return inode, nil
}

// Remove removes the named non-directory.
func (d *Dir) Remove(ctx context.Context, dir *fs.Inode, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inode, err := d.removeChildLocked(name)
	if err != nil {
		return err
	}

	// Remove our reference on the inode.
	inode.DecRef()
	return nil
}

// RemoveDirectory removes the named directory, which must be empty.
func (d *Dir) RemoveDirectory(ctx context.Context, dir *fs.Inode, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	inode, ok := d.children[name]
	if !ok {
		return unix.ENOENT
	}
	child, ok := inode.InodeOperations.(*Dir)
	if !ok {
		return unix.ENOTDIR
	}
	if !child.empty() {
		return unix.ENOTEMPTY
	}

	if _, err := d.removeChildLocked(name); err != nil {
		return err
	}

	// Remove our reference on the inode.
	inode.DecRef()
	return nil
}

// Lookup loads an inode at name into a Dentry.
func (d *Dir) Lookup(ctx context.Context, dir *fs.Inode, name string) (*fs.Dentry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Entry.NotifyAccess()
	inode, ok := d.children[name]
	if !ok {
		return nil, unix.ENOENT
	}

	// Take a reference on the inode before returning it. This reference
	// is owned by the dentry we are about to create.
	inode.IncRef()
	return fs.NewDentry(inode, name), nil
}

// createInodeOperationsCommon creates a new child node at this dir by
// calling makeInodeOperations. It is the common logic for creating a new
// child.
func (d *Dir) createInodeOperationsCommon(name string, makeInodeOperations func() (*fs.Inode, error)) (*fs.Inode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.children[name]; ok {
		return nil, unix.EEXIST
	}

	inode, err := makeInodeOperations()
	if err != nil {
		return nil, err
	}

	d.addChildLocked(name, inode)
	d.Entry.NotifyModification()

	return inode, nil
}

// Create creates a new Inode with the given name and returns its File.
func (d *Dir) Create(ctx context.Context, dir *fs.Inode, name string, flags fs.FileFlags, perms fs.FilePermissions) (*fs.File, error) {
	if d.CreateOps == nil || d.CreateOps.NewFile == nil {
		return nil, unix.EACCES
	}

	inode, err := d.createInodeOperationsCommon(name, func() (*fs.Inode, error) {
		return d.NewFile(ctx, dir, perms)
	})
	if err != nil {
		return nil, err
	}

	// Take an extra ref on inode, which will be owned by the dentry.
	inode.IncRef()
	return fs.NewFile(fs.NewDentry(inode, name), flags), nil
}

// CreateLink returns a new link.
func (d *Dir) CreateLink(ctx context.Context, dir *fs.Inode, oldname, newname string) error {
	if d.CreateOps == nil || d.CreateOps.NewSymlink == nil {
		return unix.EACCES
	}
	_, err := d.createInodeOperationsCommon(newname, func() (*fs.Inode, error) {
		return d.NewSymlink(ctx, dir, oldname)
	})
	return err
}

// CreateHardLink creates a new hard link.
func (d *Dir) CreateHardLink(ctx context.Context, dir *fs.Inode, target *fs.Inode, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.children[name]; ok {
		return unix.EEXIST
	}

	// Take an extra reference on the inode and add it to our children.
	target.IncRef()

	// The link count will be incremented in addChildLocked.
	d.addChildLocked(name, target)
	d.Entry.NotifyModification()

	// Update ctime.
	notifyStatusChange(target)
	return nil
}

// CreateDirectory returns a new subdirectory.
func (d *Dir) CreateDirectory(ctx context.Context, dir *fs.Inode, name string, perms fs.FilePermissions) error {
	if d.CreateOps == nil || d.CreateOps.NewDir == nil {
		return unix.EACCES
	}
	_, err := d.createInodeOperationsCommon(name, func() (*fs.Inode, error) {
		return d.NewDir(ctx, dir, perms)
	})
	return err
}

// Bind implements fs.InodeOperations.Bind.
func (d *Dir) Bind(ctx context.Context, dir *fs.Inode, name string, ep fs.BoundEndpoint, perms fs.FilePermissions) (*fs.Dentry, error) {
	if d.CreateOps == nil || d.CreateOps.NewBoundEndpoint == nil {
		return nil, unix.EACCES
	}
	inode, err := d.createInodeOperationsCommon(name, func() (*fs.Inode, error) {
		return d.NewBoundEndpoint(ctx, dir, ep, perms)
	})
	if err != nil {
		return nil, err
	}

	// Take another ref on inode which will be donated to the new dentry.
	inode.IncRef()
	return fs.NewDentry(inode, name), nil
}

// CreateFifo implements fs.InodeOperations.CreateFifo.
func (d *Dir) CreateFifo(ctx context.Context, dir *fs.Inode, name string, perms fs.FilePermissions) error {
	if d.CreateOps == nil || d.CreateOps.NewFifo == nil {
		return unix.EACCES
	}
	_, err := d.createInodeOperationsCommon(name, func() (*fs.Inode, error) {
		return d.NewFifo(ctx, dir, perms)
	})
	return err
}

// Readdir emits the entries contained in this directory into dirCtx.
func (d *Dir) Readdir(dirCtx *fs.DirCtx) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := fs.GenericReaddir(dirCtx, d.dentryMap)
	d.Entry.NotifyAccess()
	return n, err
}

// Size returns the number of children in the directory.
func (d *Dir) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.children)
}

// empty reports whether the directory has no children.
func (d *Dir) empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.children) == 0
}

// Release drops the references held on all children.
func (d *Dir) Release(context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, inode := range d.children {
		delete(d.children, name)
		d.dentryMap.Remove(name)
		inode.DecRef()
	}
}

// notifyStatusChange updates the ctime of inode if it is a ramfs node.
func notifyStatusChange(inode *fs.Inode) {
	if e, ok := inode.InodeOperations.(interface{ NotifyStatusChange() }); ok {
		e.NotifyStatusChange()
	}
}
