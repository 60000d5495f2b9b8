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

	"golang.org/x/sys/unix"

	"github.com/wardenos/warden/pkg/auth"
	"github.com/wardenos/warden/pkg/refs"
)

// Inode is a backing filesystem object that can be simultaneously
// referenced by different components of the namespace (Dentry, File, the
// socket layer).
type Inode struct {
	// AtomicRefCount is our reference count.
	refs.AtomicRefCount

	// InodeOperations is the file system specific behavior of the Inode.
	InodeOperations InodeOperations

	// StableAttr are stable cached attributes of the Inode.
	StableAttr StableAttr

	// Watches is the set of watches on this Inode.
	Watches *Watches

	// MountSource is the mount source this Inode is a part of.
	MountSource *MountSource
}

// NewInode constructs an Inode from InodeOperations, a MountSource, and
// stable attributes.
//
// NewInode takes a reference on msrc.
func NewInode(iops InodeOperations, msrc *MountSource, sattr StableAttr) *Inode {
	msrc.IncRef()
	return &Inode{
		InodeOperations: iops,
		StableAttr:      sattr,
		Watches:         newWatches(),
		MountSource:     msrc,
	}
}

// DecRef drops a reference on the Inode.
func (i *Inode) DecRef() {
	i.DecRefWithDestructor(i.destroy)
}

// destroy releases the Inode and the MountSource reference taken at
// construction.
func (i *Inode) destroy() {
	ctx := context.Background()

	// If this inode is being destroyed because it was unlinked, queue a
	// deletion event. This may not be the case for inodes being
	// revalidated.
	if i.Watches.Unlinked() {
		i.Watches.Notify("", unix.IN_DELETE_SELF, 0)
	}

	// The watch set is about to be dropped along with the inode; any
	// active pins would have kept us out of the destructor.
	i.Watches.targetDestroyed()

	i.InodeOperations.Release(ctx)
	i.MountSource.DecRef()
}

// Lookup calls i.InodeOperations.Lookup with i as the directory.
func (i *Inode) Lookup(ctx context.Context, name string) (*Dentry, error) {
	return i.InodeOperations.Lookup(ctx, i, name)
}

// Create calls i.InodeOperations.Create with i as the directory.
func (i *Inode) Create(ctx context.Context, name string, flags FileFlags, perms FilePermissions) (*File, error) {
	return i.InodeOperations.Create(ctx, i, name, flags, perms)
}

// CreateDirectory calls i.InodeOperations.CreateDirectory with i as the
// directory.
func (i *Inode) CreateDirectory(ctx context.Context, name string, perms FilePermissions) error {
	return i.InodeOperations.CreateDirectory(ctx, i, name, perms)
}

// CreateLink calls i.InodeOperations.CreateLink with i as the directory.
func (i *Inode) CreateLink(ctx context.Context, oldname string, newname string) error {
	return i.InodeOperations.CreateLink(ctx, i, oldname, newname)
}

// CreateHardLink calls i.InodeOperations.CreateHardLink with i as the
// directory.
func (i *Inode) CreateHardLink(ctx context.Context, target *Inode, name string) error {
	return i.InodeOperations.CreateHardLink(ctx, i, target, name)
}

// CreateFifo calls i.InodeOperations.CreateFifo with i as the directory.
func (i *Inode) CreateFifo(ctx context.Context, name string, perms FilePermissions) error {
	return i.InodeOperations.CreateFifo(ctx, i, name, perms)
}

// Bind calls i.InodeOperations.Bind with i as the directory.
func (i *Inode) Bind(ctx context.Context, name string, data BoundEndpoint, perms FilePermissions) (*Dentry, error) {
	return i.InodeOperations.Bind(ctx, i, name, data, perms)
}

// Remove calls i.InodeOperations.Remove or RemoveDirectory with i as the
// directory, depending on the victim's type.
func (i *Inode) Remove(ctx context.Context, victim *Dentry) error {
	if IsDir(victim.Inode.StableAttr) {
		return i.InodeOperations.RemoveDirectory(ctx, i, victim.Name())
	}
	return i.InodeOperations.Remove(ctx, i, victim.Name())
}

// Rename calls i.InodeOperations.Rename with the given arguments.
func (i *Inode) Rename(ctx context.Context, oldParent *Dentry, renamed *Dentry, newParent *Dentry, newName string, replacement bool) error {
	return i.InodeOperations.Rename(ctx, renamed.Inode, oldParent.Inode, renamed.Name(), newParent.Inode, newName, replacement)
}

// Readlink calls i.InodeOperations.Readlink with i as the Inode.
func (i *Inode) Readlink(ctx context.Context) (string, error) {
	return i.InodeOperations.Readlink(ctx, i)
}

// UnstableAttr calls i.InodeOperations.UnstableAttr with i as the Inode.
func (i *Inode) UnstableAttr(ctx context.Context) (UnstableAttr, error) {
	return i.InodeOperations.UnstableAttr(ctx, i)
}

// AddLink calls i.InodeOperations.AddLink.
func (i *Inode) AddLink() {
	i.InodeOperations.AddLink()
}

// DropLink calls i.InodeOperations.DropLink.
func (i *Inode) DropLink() {
	i.InodeOperations.DropLink()
}

// CheckPermission will check if the caller may access this inode in the
// requested way for reading, writing, or executing.
//
// CheckPermission is like Linux's fs/namei.c:inode_permission. It
//   - checks file system mount flags,
//   - and utilizes InodeOperations.Check to check capabilities and modes.
func (i *Inode) CheckPermission(ctx context.Context, p PermMask) error {
	if p.Write && i.MountSource.Flags.ReadOnly {
		return unix.EROFS
	}
	if !i.InodeOperations.Check(ctx, i, p) {
		return unix.EACCES
	}
	return nil
}

// CheckOwnership checks whether `ctx` owns this Inode or may act as its
// owner. Compare Linux's fs/inode.c:inode_owner_or_capable.
func (i *Inode) CheckOwnership(ctx context.Context) bool {
	uattr, err := i.UnstableAttr(ctx)
	if err != nil {
		return false
	}
	creds := auth.CredentialsFromContext(ctx)
	if uattr.Owner.UID == creds.EffectiveKUID {
		return true
	}
	return creds.HasCapability(auth.CAP_FOWNER)
}

// CheckCapability checks whether `ctx` has capability cp with respect to
// operations on this Inode.
func (i *Inode) CheckCapability(ctx context.Context, cp auth.Capability) bool {
	return auth.CredentialsFromContext(ctx).HasCapability(cp)
}
