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
	"io"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/wardenos/warden/pkg/fs"
)

// File represents a unique file. It uses a simple byte slice as storage, and
// thus should only be used for small files.
type File struct {
	Entry

	// mu protects the fields below.
	mu sync.Mutex

	// data tracks backing data for the file.
	data []byte
}

// InitFile initializes a file.
func (f *File) InitFile(owner fs.FileOwner, perms fs.FilePermissions) {
	f.InitEntry(owner, perms)
}

// UnstableAttr returns unstable attributes of this ramfs file.
func (f *File) UnstableAttr(ctx context.Context, inode *fs.Inode) (fs.UnstableAttr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uattr, _ := f.Entry.UnstableAttr(ctx, inode)
	uattr.Size = int64(len(f.data))
	return uattr, nil
}

// Append appends the given data. This is for internal use.
func (f *File) Append(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append(f.data, data...)
	f.Entry.NotifyModification()
}

// Truncate truncates this node.
func (f *File) Truncate(l int64) error {
	if l < 0 {
		return unix.EINVAL
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if l < int64(len(f.data)) {
		// Remove excess bytes.
		f.data = f.data[:l]
	} else if l > int64(len(f.data)) {
		// Create a new slice with size l, and copy f.data into it.
		d := make([]byte, l)
		copy(d, f.data)
		f.data = d
	}
	f.Entry.NotifyModification()
	return nil
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(data []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, unix.EINVAL
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(data, f.data[offset:])
	// Did we read past the end?
	if offset+int64(len(data)) >= int64(len(f.data)) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt, growing the file as needed.
func (f *File) WriteAt(data []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, unix.EINVAL
	}
	newLen := offset + int64(len(data))
	if newLen < 0 {
		// Overflow.
		return 0, unix.EINVAL
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if newLen > int64(len(f.data)) {
		// Copy f.data into new slice with expanded length.
		d := make([]byte, newLen)
		copy(d, f.data)
		f.data = d
	}
	n := copy(f.data[offset:], data)
	f.Entry.NotifyModification()
	return n, nil
}
