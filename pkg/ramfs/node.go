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

	"github.com/wardenos/warden/pkg/device"
	"github.com/wardenos/warden/pkg/fs"
)

// ramfsDevice backs the inode numbers of all ramfs nodes.
var ramfsDevice = device.NewAnonDevice()

const blockSize = 4096

// newInode wraps iops in an Inode on msrc, with a fresh inode number on the
// ramfs device.
func newInode(iops fs.InodeOperations, msrc *fs.MountSource, typ fs.InodeType) *fs.Inode {
	return fs.NewInode(iops, msrc, fs.StableAttr{
		Type:      typ,
		DeviceID:  ramfsDevice.DeviceID(),
		InodeID:   ramfsDevice.NextIno(),
		BlockSize: blockSize,
	})
}

// NewDefaultCreateOps returns CreateOps that create fully functional
// in-memory nodes. New nodes are owned by the credentials attached to the
// creating context, and subdirectories inherit the same CreateOps.
func NewDefaultCreateOps() *CreateOps {
	ops := &CreateOps{}
	ops.NewDir = func(ctx context.Context, dir *fs.Inode, perms fs.FilePermissions) (*fs.Inode, error) {
		d := NewDir(nil, fs.FileOwnerFromContext(ctx), perms)
		d.CreateOps = ops
		return newInode(d, dir.MountSource, fs.Directory), nil
	}
	ops.NewFile = func(ctx context.Context, dir *fs.Inode, perms fs.FilePermissions) (*fs.Inode, error) {
		f := &File{}
		f.InitFile(fs.FileOwnerFromContext(ctx), perms)
		return newInode(f, dir.MountSource, fs.RegularFile), nil
	}
	ops.NewSymlink = func(ctx context.Context, dir *fs.Inode, target string) (*fs.Inode, error) {
		s := &Symlink{}
		s.InitSymlink(fs.FileOwnerFromContext(ctx), target)
		return newInode(s, dir.MountSource, fs.Symlink), nil
	}
	ops.NewBoundEndpoint = func(ctx context.Context, dir *fs.Inode, ep fs.BoundEndpoint, perms fs.FilePermissions) (*fs.Inode, error) {
		s := &Socket{}
		s.InitSocket(ep, fs.FileOwnerFromContext(ctx), perms)
		return newInode(s, dir.MountSource, fs.Socket), nil
	}
	ops.NewFifo = func(ctx context.Context, dir *fs.Inode, perms fs.FilePermissions) (*fs.Inode, error) {
		f := &Fifo{}
		f.InitFifo(fs.FileOwnerFromContext(ctx), perms)
		return newInode(f, dir.MountSource, fs.Pipe), nil
	}
	return ops
}

// NewRootInode returns an inode for an empty writable directory suitable as
// the root of a ramfs mount. NewRootInode takes a reference on msrc.
func NewRootInode(msrc *fs.MountSource, owner fs.FileOwner, perms fs.FilePermissions) *fs.Inode {
	d := NewDir(nil, owner, perms)
	d.CreateOps = NewDefaultCreateOps()
	return newInode(d, msrc, fs.Directory)
}
