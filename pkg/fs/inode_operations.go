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
)

// BoundEndpoint is an endpoint bound into the filesystem namespace via
// Bind, typically the server side of a unix domain socket. Its behavior is
// owned by the socket layer; the namespace only stores and releases it.
type BoundEndpoint interface {
	// Release releases any resources held by the endpoint.
	Release()
}

// InodeOperations are the backing-store operations for an Inode. They are
// the contract the dentry cache requires from a filesystem.
//
// Objects that implement InodeOperations may cache file system state; all
// implementations must be able to tolerate concurrent calls, since the
// namespace only serializes structural mutation (rename) against other
// operations.
type InodeOperations interface {
	// Release releases all private state held by the InodeOperations.
	//
	// Called when the Inode's last reference is dropped.
	Release(ctx context.Context)

	// Lookup loads an Inode at name into a Dentry. The name is a valid
	// component path: it contains no "/"s nor is the empty string.
	//
	// Lookup returns ENOENT if name does not exist.
	Lookup(ctx context.Context, dir *Inode, name string) (*Dentry, error)

	// Create creates an Inode at name and opens it, returning its open
	// file handle. The new node is owned by the handle's Dentry.
	Create(ctx context.Context, dir *Inode, name string, flags FileFlags, perms FilePermissions) (*File, error)

	// CreateDirectory creates a directory at name.
	CreateDirectory(ctx context.Context, dir *Inode, name string, perms FilePermissions) error

	// CreateLink creates a symbolic link under dir at newname pointing to
	// oldname.
	CreateLink(ctx context.Context, dir *Inode, oldname string, newname string) error

	// CreateHardLink creates a hard link under dir at name pointing to
	// target.
	CreateHardLink(ctx context.Context, dir *Inode, target *Inode, name string) error

	// CreateFifo creates a named pipe under dir at name.
	CreateFifo(ctx context.Context, dir *Inode, name string, perms FilePermissions) error

	// Bind binds a new socket endpoint under dir at name and returns the
	// new Dentry holding it.
	Bind(ctx context.Context, dir *Inode, name string, data BoundEndpoint, perms FilePermissions) (*Dentry, error)

	// Remove removes the given named non-directory under dir.
	Remove(ctx context.Context, dir *Inode, name string) error

	// RemoveDirectory removes the given named directory under dir.
	//
	// RemoveDirectory should check that the directory to be removed is
	// empty.
	RemoveDirectory(ctx context.Context, dir *Inode, name string) error

	// Rename atomically renames oldName under oldParent to newName under
	// newParent. replacement indicates whether an existing node at the
	// destination is being overwritten.
	Rename(ctx context.Context, inode *Inode, oldParent *Inode, oldName string, newParent *Inode, newName string, replacement bool) error

	// Readlink reads the symlink value.
	Readlink(ctx context.Context, inode *Inode) (string, error)

	// UnstableAttr returns the most up-to-date "unstable" attributes of
	// an Inode, where unstable naturally means things that may change over
	// the lifetime of the Inode.
	UnstableAttr(ctx context.Context, inode *Inode) (UnstableAttr, error)

	// Check determines whether an Inode can be accessed with the
	// requested permission mask.
	Check(ctx context.Context, inode *Inode, p PermMask) bool

	// AddLink increments the hard link count of the backing node.
	AddLink()

	// DropLink decrements the hard link count of the backing node.
	DropLink()
}
