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
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wardenos/warden/pkg/auth"
)

// InodeType enumerates types of Inodes.
type InodeType int

const (
	// RegularFile is a regular file.
	RegularFile InodeType = iota

	// Directory is a directory.
	Directory

	// Symlink is a symbolic link.
	Symlink

	// Pipe is a pipe (named or regular).
	Pipe

	// Socket is a socket.
	Socket

	// CharacterDevice is a character device.
	CharacterDevice

	// BlockDevice is a block device.
	BlockDevice

	// Anonymous is an anonymous type when none of the above apply.
	Anonymous
)

// String returns a human-readable representation of the InodeType.
func (n InodeType) String() string {
	switch n {
	case RegularFile:
		return "file"
	case Directory:
		return "directory"
	case Symlink:
		return "symlink"
	case Pipe:
		return "pipe"
	case Socket:
		return "socket"
	case CharacterDevice:
		return "character-device"
	case BlockDevice:
		return "block-device"
	case Anonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// StableAttr contains Inode attributes that will be stable throughout the
// lifetime of the Inode.
type StableAttr struct {
	// Type is the InodeType of the Inode.
	Type InodeType

	// DeviceID is the device on which the Inode resides.
	DeviceID uint64

	// InodeID uniquely identifies the Inode on its device.
	InodeID uint64

	// BlockSize is the block size of data backing this Inode.
	BlockSize int64
}

// IsRegular returns true if StableAttr.Type matches a regular file.
func IsRegular(s StableAttr) bool {
	return s.Type == RegularFile
}

// IsDir returns true if StableAttr.Type matches a directory.
func IsDir(s StableAttr) bool {
	return s.Type == Directory
}

// IsSymlink returns true if StableAttr.Type matches a symlink.
func IsSymlink(s StableAttr) bool {
	return s.Type == Symlink
}

// IsPipe returns true if StableAttr.Type matches a pipe.
func IsPipe(s StableAttr) bool {
	return s.Type == Pipe
}

// IsSocket returns true if StableAttr.Type matches a socket.
func IsSocket(s StableAttr) bool {
	return s.Type == Socket
}

// UnstableAttr contains Inode attributes that may change over the lifetime
// of the Inode.
type UnstableAttr struct {
	// Size is the file size in bytes.
	Size int64

	// Perms is the protection (read/write/execute for user/group/other).
	Perms FilePermissions

	// Owner describes the ownership of this file.
	Owner FileOwner

	// AccessTime is the time of last access.
	AccessTime time.Time

	// ModificationTime is the time of last modification.
	ModificationTime time.Time

	// StatusChangeTime is the time of last attribute modification.
	StatusChangeTime time.Time

	// Links is the number of hard links.
	Links uint64
}

// WithCurrentTime returns u with all times set to the current time.
func WithCurrentTime(u UnstableAttr) UnstableAttr {
	t := time.Now()
	u.AccessTime = t
	u.ModificationTime = t
	u.StatusChangeTime = t
	return u
}

// PermMask are file access permissions.
type PermMask struct {
	// Read indicates reading is permitted.
	Read bool

	// Write indicates writing is permitted.
	Write bool

	// Execute indicates execution is permitted.
	Execute bool
}

// String implements fmt.Stringer.
func (p PermMask) String() string {
	return fmt.Sprintf("PermMask{Read: %v, Write: %v, Execute: %v}", p.Read, p.Write, p.Execute)
}

// Mode returns the system mode (unix.S_IXOTH, etc.) for these permissions
// in the "other" bits.
func (p PermMask) Mode() (mode uint32) {
	if p.Read {
		mode |= unix.S_IROTH
	}
	if p.Write {
		mode |= unix.S_IWOTH
	}
	if p.Execute {
		mode |= unix.S_IXOTH
	}
	return
}

// SupersetOf returns true iff the permissions in p are a superset of the
// permissions in other.
func (p PermMask) SupersetOf(other PermMask) bool {
	if !p.Read && other.Read {
		return false
	}
	if !p.Write && other.Write {
		return false
	}
	if !p.Execute && other.Execute {
		return false
	}
	return true
}

// FilePermissions represents the permissions of a file, with
// Read/Write/Execute bits for user, group, and other.
type FilePermissions struct {
	User  PermMask
	Group PermMask
	Other PermMask

	// Sticky, if set on directories, restricts renaming and deletion of
	// files in those directories to the directory owner, file owner, or
	// CAP_FOWNER. The sticky bit is ignored when set on other files.
	Sticky bool

	// SetUID executables can call UID-setting syscalls without CAP_SETUID.
	SetUID bool

	// SetGID executables can call GID-setting syscalls without CAP_SETGID.
	SetGID bool
}

// permsFromMode takes the Other permissions (last 3 bits) of a mode and
// returns a set of PermMask.
func permsFromMode(mode uint32) (perms PermMask) {
	perms.Read = mode&unix.S_IROTH != 0
	perms.Write = mode&unix.S_IWOTH != 0
	perms.Execute = mode&unix.S_IXOTH != 0
	return
}

// FilePermsFromMode converts a system file mode to a FilePermissions struct.
func FilePermsFromMode(mode uint32) (fp FilePermissions) {
	fp.Other = permsFromMode(mode)
	fp.Group = permsFromMode(mode >> 3)
	fp.User = permsFromMode(mode >> 6)
	fp.Sticky = mode&unix.S_ISVTX == unix.S_ISVTX
	fp.SetUID = mode&unix.S_ISUID == unix.S_ISUID
	fp.SetGID = mode&unix.S_ISGID == unix.S_ISGID
	return
}

// LinuxMode returns the mode_t representation of these permissions.
func (f FilePermissions) LinuxMode() uint32 {
	m := f.User.Mode()<<6 | f.Group.Mode()<<3 | f.Other.Mode()
	if f.SetUID {
		m |= unix.S_ISUID
	}
	if f.SetGID {
		m |= unix.S_ISGID
	}
	if f.Sticky {
		m |= unix.S_ISVTX
	}
	return m
}

// AnyExecute returns true if any of U/G/O have the execute bit set.
func (f FilePermissions) AnyExecute() bool {
	return f.User.Execute || f.Group.Execute || f.Other.Execute
}

// AnyWrite returns true if any of U/G/O have the write bit set.
func (f FilePermissions) AnyWrite() bool {
	return f.User.Write || f.Group.Write || f.Other.Write
}

// AnyRead returns true if any of U/G/O have the read bit set.
func (f FilePermissions) AnyRead() bool {
	return f.User.Read || f.Group.Read || f.Other.Read
}

// FileOwner represents ownership of a file.
type FileOwner struct {
	UID auth.KUID
	GID auth.KGID
}

// RootOwner corresponds to KUID/KGID 0/0.
var RootOwner = FileOwner{
	UID: auth.RootKUID,
	GID: auth.RootKGID,
}

// FileOwnerFromContext returns a FileOwner using the effective credentials
// attached to ctx.
func FileOwnerFromContext(ctx context.Context) FileOwner {
	creds := auth.CredentialsFromContext(ctx)
	return FileOwner{
		UID: creds.EffectiveKUID,
		GID: creds.EffectiveKGID,
	}
}
