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
	"fmt"
	"path"
	"strings"

	"github.com/wardenos/warden/pkg/fs"
)

// MakeDirectoryTree constructs a ramfs tree of all directories containing
// subdirs. Each element of subdir must be a clean path, and cannot be empty
// or "/".
//
// All directories in the created tree will have full (read-write-execute)
// permissions, but file creation inside them is not supported because the
// directories carry no CreateOps; these trees are mount skeletons.
func MakeDirectoryTree(msrc *fs.MountSource, subdirs []string) (*fs.Inode, error) {
	root := emptyDir(msrc)
	for _, subdir := range subdirs {
		if path.Clean(subdir) != subdir {
			return nil, fmt.Errorf("cannot add subdir at an unclean path: %q", subdir)
		}
		if subdir == "" || subdir == "/" {
			return nil, fmt.Errorf("cannot add subdir at %q", subdir)
		}
		makeSubdir(msrc, root.InodeOperations.(*Dir), subdir)
	}
	return root, nil
}

// makeSubdir installs into root each component of subdir. The final
// component is a *ramfs.Dir.
func makeSubdir(msrc *fs.MountSource, root *Dir, subdir string) {
	for _, c := range strings.Split(subdir, "/") {
		if len(c) == 0 {
			continue
		}
		child, ok := root.FindChild(c)
		if !ok {
			child = emptyDir(msrc)
			root.AddChild(c, child)
		}
		root = child.InodeOperations.(*Dir)
	}
}

// emptyDir returns an empty *ramfs.Dir with all permissions granted.
func emptyDir(msrc *fs.MountSource) *fs.Inode {
	dir := NewDir(nil, fs.RootOwner, fs.FilePermsFromMode(0777))
	return newInode(dir, msrc, fs.Directory)
}
