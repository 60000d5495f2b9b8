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

	"github.com/wardenos/warden/pkg/fs"
)

// Symlink represents a symlink.
type Symlink struct {
	Entry

	// Target is the symlink target. It is immutable after initialization.
	Target string
}

// InitSymlink initializes a symlink, pointing to the given target.
// A symlink always has permissions 0777.
func (s *Symlink) InitSymlink(owner fs.FileOwner, target string) {
	s.InitEntry(owner, fs.FilePermsFromMode(0777))
	s.Target = target
}

// UnstableAttr returns all attributes of this ramfs symlink.
func (s *Symlink) UnstableAttr(ctx context.Context, inode *fs.Inode) (fs.UnstableAttr, error) {
	uattr, _ := s.Entry.UnstableAttr(ctx, inode)
	uattr.Size = int64(len(s.Target))
	return uattr, nil
}

// SetPermissions on a symlink is always rejected.
func (s *Symlink) SetPermissions(fs.FilePermissions) bool {
	return false
}

// Readlink reads the symlink value.
func (s *Symlink) Readlink(ctx context.Context, _ *fs.Inode) (string, error) {
	s.Entry.NotifyAccess()
	return s.Target, nil
}
