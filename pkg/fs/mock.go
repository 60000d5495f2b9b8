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

// MockInodeOperations implements InodeOperations for testing Inodes.
type MockInodeOperations struct {
	InodeOperations

	UAttr UnstableAttr

	createCalled          bool
	createDirectoryCalled bool
	createLinkCalled      bool
	renameCalled          bool
	walkCalled            bool
	removeCalled          bool
}

// NewMockInode returns a mock *Inode using MockInodeOperations.
func NewMockInode(msrc *MountSource, sattr StableAttr) *Inode {
	return NewInode(NewMockInodeOperations(), msrc, sattr)
}

// NewMockInodeOperations returns a *MockInodeOperations.
func NewMockInodeOperations() *MockInodeOperations {
	return &MockInodeOperations{
		UAttr: WithCurrentTime(UnstableAttr{
			Perms: FilePermsFromMode(0777),
		}),
	}
}

// MockMountSourceOps implements MountSourceOperations.
type MockMountSourceOps struct {
	MountSourceOperations
	keep       bool
	revalidate bool
}

// NewMockMountSource returns a new *MountSource using MockMountSourceOps.
func NewMockMountSource(cache *DentryCache) *MountSource {
	var keep bool
	if cache != nil {
		keep = cache.maxSize > 0
	}
	return &MountSource{
		MountSourceOperations: &MockMountSourceOps{keep: keep},
		FilesystemType:        "mock",
		fscache:               cache,
	}
}

// Revalidate implements MountSourceOperations.Revalidate.
func (n *MockMountSourceOps) Revalidate(context.Context, string, *Inode, *Inode) bool {
	return n.revalidate
}

// Keep implements MountSourceOperations.Keep.
func (n *MockMountSourceOps) Keep(dirent *Dentry) bool {
	return n.keep
}

// Destroy implements MountSourceOperations.Destroy.
func (n *MockMountSourceOps) Destroy() {}

// UnstableAttr implements InodeOperations.UnstableAttr.
func (n *MockInodeOperations) UnstableAttr(context.Context, *Inode) (UnstableAttr, error) {
	return n.UAttr, nil
}

// Lookup implements InodeOperations.Lookup.
func (n *MockInodeOperations) Lookup(ctx context.Context, dir *Inode, p string) (*Dentry, error) {
	n.walkCalled = true
	return NewDentry(NewInode(&MockInodeOperations{}, dir.MountSource, StableAttr{}), p), nil
}

// Create implements InodeOperations.Create.
func (n *MockInodeOperations) Create(ctx context.Context, dir *Inode, p string, flags FileFlags, perms FilePermissions) (*File, error) {
	n.createCalled = true
	d := NewDentry(NewInode(&MockInodeOperations{}, dir.MountSource, StableAttr{}), p)
	return NewFile(d, flags), nil
}

// CreateLink implements InodeOperations.CreateLink.
func (n *MockInodeOperations) CreateLink(_ context.Context, dir *Inode, oldname string, newname string) error {
	n.createLinkCalled = true
	return nil
}

// CreateDirectory implements InodeOperations.CreateDirectory.
func (n *MockInodeOperations) CreateDirectory(context.Context, *Inode, string, FilePermissions) error {
	n.createDirectoryCalled = true
	return nil
}

// CreateHardLink implements InodeOperations.CreateHardLink.
func (n *MockInodeOperations) CreateHardLink(context.Context, *Inode, *Inode, string) error {
	return nil
}

// CreateFifo implements InodeOperations.CreateFifo.
func (n *MockInodeOperations) CreateFifo(context.Context, *Inode, string, FilePermissions) error {
	return nil
}

// Rename implements InodeOperations.Rename.
func (n *MockInodeOperations) Rename(ctx context.Context, inode *Inode, oldParent *Inode, oldName string, newParent *Inode, newName string, replacement bool) error {
	n.renameCalled = true
	return nil
}

// Check implements InodeOperations.Check.
func (n *MockInodeOperations) Check(ctx context.Context, inode *Inode, p PermMask) bool {
	return ContextCanAccessFile(ctx, inode, p)
}

// Release implements InodeOperations.Release.
func (n *MockInodeOperations) Release(context.Context) {}

// Remove implements InodeOperations.Remove.
func (n *MockInodeOperations) Remove(context.Context, *Inode, string) error {
	n.removeCalled = true
	return nil
}

// RemoveDirectory implements InodeOperations.RemoveDirectory.
func (n *MockInodeOperations) RemoveDirectory(context.Context, *Inode, string) error {
	n.removeCalled = true
	return nil
}

// AddLink implements InodeOperations.AddLink.
func (n *MockInodeOperations) AddLink() {}

// DropLink implements InodeOperations.DropLink.
func (n *MockInodeOperations) DropLink() {}
