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

	"github.com/wardenos/warden/pkg/refs"
)

// DentryOperations provide file systems greater control over how long a
// Dentry stays pinned in core. Implementations must not take Dentry locks.
type DentryOperations interface {
	// Revalidate is called during lookup each time we encounter a Dentry
	// in the cache. Implementations may update stale properties of the
	// child Inode. If Revalidate returns true, then the entire Inode will
	// be reloaded.
	//
	// Revalidate will never be called on an Inode that is mounted.
	Revalidate(ctx context.Context, name string, parent, child *Inode) bool

	// Keep returns true if the Dentry should be kept in memory for as
	// long as possible beyond any active references.
	Keep(dirent *Dentry) bool
}

// MountSourceOperations contains filesystem specific operations.
type MountSourceOperations interface {
	// DentryOperations provide optional extra management of Dentries.
	DentryOperations

	// Destroy destroys the MountSource.
	Destroy()
}

// MountSourceFlags are the flags a filesystem was mounted with.
type MountSourceFlags struct {
	// ReadOnly corresponds to mount(2)'s "MS_RDONLY".
	ReadOnly bool
}

// MountSource represents a source of file objects.
//
// MountSource corresponds to struct super_block in Linux. There should be
// only one mount source per logical device.
type MountSource struct {
	refs.AtomicRefCount

	// MountSourceOperations defines filesystem specific behavior.
	MountSourceOperations

	// FilesystemType is the type of the filesystem backing this mount.
	FilesystemType string

	// Flags are the flags that this filesystem was mounted with.
	Flags MountSourceFlags

	// fscache keeps Dentries pinned beyond application references to
	// them; see Dentry.ExtendReference.
	fscache *DentryCache
}

// DefaultDentryCacheSize is the number of Dentries a mount source can hold
// an extra reference on.
const DefaultDentryCacheSize uint64 = 1000

// NewMountSource returns a new MountSource.
func NewMountSource(mops MountSourceOperations, fsType string, flags MountSourceFlags) *MountSource {
	return &MountSource{
		MountSourceOperations: mops,
		Flags:                 flags,
		FilesystemType:        fsType,
		fscache:               NewDentryCache(DefaultDentryCacheSize),
	}
}

// ExtendReference pins d in the mount source's cache.
func (msrc *MountSource) ExtendReference(d *Dentry) {
	msrc.fscache.Add(d)
}

// DropExtendedReference drops the cache pin on d, if any.
func (msrc *MountSource) DropExtendedReference(d *Dentry) {
	msrc.fscache.Remove(d)
}

// FlushDentryRefs drops all references held by the MountSource on Dentries.
func (msrc *MountSource) FlushDentryRefs() {
	msrc.fscache.Invalidate()
}

// SetDentryCacheMaxSize sets the max size of the dentry cache associated
// with this mount source.
func (msrc *MountSource) SetDentryCacheMaxSize(max uint64) {
	msrc.fscache.setMaxSize(max)
}

// SetDentryCacheLimiter sets the limiter object of the dentry cache
// associated with this mount source.
func (msrc *MountSource) SetDentryCacheLimiter(l *DentryCacheLimiter) {
	msrc.fscache.limit = l
}

// DecRef drops a reference on the MountSource.
func (msrc *MountSource) DecRef() {
	msrc.DecRefWithDestructor(msrc.MountSourceOperations.Destroy)
}

// NewCachingMountSource returns a generic mount that will cache dentries
// aggressively.
func NewCachingMountSource(fsType string, flags MountSourceFlags) *MountSource {
	return NewMountSource(&SimpleMountSourceOperations{
		keep: true,
	}, fsType, flags)
}

// NewNonCachingMountSource returns a generic mount that will never cache
// dentries.
func NewNonCachingMountSource(fsType string, flags MountSourceFlags) *MountSource {
	return NewMountSource(&SimpleMountSourceOperations{}, fsType, flags)
}

// NewRevalidatingMountSource returns a generic mount that will cache
// dentries, but will revalidate them on each lookup.
func NewRevalidatingMountSource(fsType string, flags MountSourceFlags) *MountSource {
	return NewMountSource(&SimpleMountSourceOperations{
		keep:       true,
		revalidate: true,
	}, fsType, flags)
}

// NewPseudoMountSource returns a "pseudo" mount source that is not backed
// by an actual filesystem. It is always non-caching.
func NewPseudoMountSource() *MountSource {
	return NewMountSource(&SimpleMountSourceOperations{}, "none", MountSourceFlags{})
}

// SimpleMountSourceOperations implements MountSourceOperations with fixed
// caching and revalidation policies.
type SimpleMountSourceOperations struct {
	keep       bool
	revalidate bool
}

// Revalidate implements MountSourceOperations.Revalidate.
func (smo *SimpleMountSourceOperations) Revalidate(context.Context, string, *Inode, *Inode) bool {
	return smo.revalidate
}

// Keep implements MountSourceOperations.Keep.
func (smo *SimpleMountSourceOperations) Keep(*Dentry) bool {
	return smo.keep
}

// Destroy implements MountSourceOperations.Destroy.
func (*SimpleMountSourceOperations) Destroy() {}
