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
	"github.com/wardenos/warden/pkg/refs"
)

// FileFlags encodes file access modes and open behavior.
type FileFlags struct {
	// Read is the read access bit.
	Read bool

	// Write is the write access bit.
	Write bool

	// Append implies Write, and ensures all writes land at the end of the
	// file.
	Append bool

	// Truncate truncates the file on open.
	Truncate bool
}

// File is an open file handle. The file behavior itself (reads, writes,
// seeking) lives with the backing filesystem; the namespace only needs the
// handle to carry the Dentry of a freshly created node.
type File struct {
	refs.AtomicRefCount

	// Dirent is the dentry this file opened. The File holds a reference
	// on it for its entire lifetime.
	Dirent *Dentry

	// Flags are the flags this file was opened with.
	Flags FileFlags
}

// NewFile returns a File for the given Dentry, transferring the caller's
// reference on the Dentry to the File.
func NewFile(dirent *Dentry, flags FileFlags) *File {
	return &File{
		Dirent: dirent,
		Flags:  flags,
	}
}

// DecRef destroys the File when it is no longer referenced.
func (f *File) DecRef() {
	f.DecRefWithDestructor(func() {
		f.Dirent.DecRef()
	})
}
