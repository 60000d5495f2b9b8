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
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/wardenos/warden/pkg/auth"
	"github.com/wardenos/warden/pkg/contexttest"
)

// memNode is a minimal in-memory backing store used to exercise the
// namespace against something whose lookups actually reflect creates,
// removes and renames, unlike MockInodeOperations.
type memNode struct {
	*MockInodeOperations

	sattr StableAttr

	mu sync.Mutex

	// children is nil for non-directories.
	children map[string]*memNode

	// target is the symlink target for symlinks.
	target string
}

var memInoGen atomic.Uint64

func newMemFile() *memNode {
	return &memNode{
		MockInodeOperations: NewMockInodeOperations(),
		sattr:               StableAttr{Type: RegularFile, InodeID: memInoGen.Add(1)},
	}
}

func newMemDir() *memNode {
	return &memNode{
		MockInodeOperations: NewMockInodeOperations(),
		sattr:               StableAttr{Type: Directory, InodeID: memInoGen.Add(1)},
		children:            make(map[string]*memNode),
	}
}

func newMemSymlink(target string) *memNode {
	return &memNode{
		MockInodeOperations: NewMockInodeOperations(),
		sattr:               StableAttr{Type: Symlink, InodeID: memInoGen.Add(1)},
		target:              target,
	}
}

// newMemRoot returns a Dentry over a fresh empty directory.
func newMemRoot(cache *DentryCache) *Dentry {
	m := newMemDir()
	return NewDentry(NewInode(m, NewMockMountSource(cache), m.sattr), "/")
}

func (m *memNode) Lookup(ctx context.Context, dir *Inode, name string) (*Dentry, error) {
	m.mu.Lock()
	child, ok := m.children[name]
	m.mu.Unlock()
	if !ok {
		return nil, unix.ENOENT
	}
	return NewDentry(NewInode(child, dir.MountSource, child.sattr), name), nil
}

func (m *memNode) Create(ctx context.Context, dir *Inode, name string, flags FileFlags, perms FilePermissions) (*File, error) {
	child := newMemFile()
	m.mu.Lock()
	m.children[name] = child
	m.mu.Unlock()
	return NewFile(NewDentry(NewInode(child, dir.MountSource, child.sattr), name), flags), nil
}

func (m *memNode) CreateDirectory(ctx context.Context, dir *Inode, name string, perms FilePermissions) error {
	m.mu.Lock()
	m.children[name] = newMemDir()
	m.mu.Unlock()
	return nil
}

func (m *memNode) CreateLink(ctx context.Context, dir *Inode, oldname, newname string) error {
	m.mu.Lock()
	m.children[newname] = newMemSymlink(oldname)
	m.mu.Unlock()
	return nil
}

func (m *memNode) CreateHardLink(ctx context.Context, dir *Inode, target *Inode, name string) error {
	m.mu.Lock()
	m.children[name] = target.InodeOperations.(*memNode)
	m.mu.Unlock()
	return nil
}

func (m *memNode) CreateFifo(ctx context.Context, dir *Inode, name string, perms FilePermissions) error {
	child := newMemFile()
	child.sattr.Type = Pipe
	m.mu.Lock()
	m.children[name] = child
	m.mu.Unlock()
	return nil
}

func (m *memNode) Bind(ctx context.Context, dir *Inode, name string, data BoundEndpoint, perms FilePermissions) (*Dentry, error) {
	child := newMemFile()
	child.sattr.Type = Socket
	m.mu.Lock()
	m.children[name] = child
	m.mu.Unlock()
	return NewDentry(NewInode(child, dir.MountSource, child.sattr), name), nil
}

func (m *memNode) Remove(ctx context.Context, dir *Inode, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.children[name]; !ok {
		return unix.ENOENT
	}
	delete(m.children, name)
	return nil
}

func (m *memNode) RemoveDirectory(ctx context.Context, dir *Inode, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	child, ok := m.children[name]
	if !ok {
		return unix.ENOENT
	}
	child.mu.Lock()
	n := len(child.children)
	child.mu.Unlock()
	if n != 0 {
		return unix.ENOTEMPTY
	}
	delete(m.children, name)
	return nil
}

func (m *memNode) Rename(ctx context.Context, inode *Inode, oldParent *Inode, oldName string, newParent *Inode, newName string, replacement bool) error {
	op := oldParent.InodeOperations.(*memNode)
	np := newParent.InodeOperations.(*memNode)
	op.mu.Lock()
	child, ok := op.children[oldName]
	if !ok {
		op.mu.Unlock()
		return unix.ENOENT
	}
	delete(op.children, oldName)
	op.mu.Unlock()
	np.mu.Lock()
	np.children[newName] = child
	np.mu.Unlock()
	return nil
}

func (m *memNode) Readlink(ctx context.Context, inode *Inode) (string, error) {
	if !IsSymlink(m.sattr) {
		return "", unix.EINVAL
	}
	return m.target, nil
}

func TestFullName(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	if err := root.CreateDirectory(ctx, root, "a", FilePermsFromMode(0755)); err != nil {
		t.Fatalf("CreateDirectory(a) failed: %v", err)
	}
	a, err := root.Walk(ctx, root, "a")
	if err != nil {
		t.Fatalf("Walk(a) failed: %v", err)
	}
	if err := a.CreateDirectory(ctx, root, "b", FilePermsFromMode(0755)); err != nil {
		t.Fatalf("CreateDirectory(b) failed: %v", err)
	}
	b, err := a.Walk(ctx, root, "b")
	if err != nil {
		t.Fatalf("Walk(b) failed: %v", err)
	}

	for _, test := range []struct {
		d    *Dentry
		want string
	}{
		{root, "/"},
		{a, "/a"},
		{b, "/a/b"},
	} {
		if got := test.d.FullName(root); got != test.want {
			t.Errorf("FullName(%q) got %q, want %q", test.d.Name(), got, test.want)
		}
	}

	// A node's full name is its parent's plus a separator plus its own.
	if pn, n := a.FullName(root), b.FullName(root); pn+"/"+b.Name() != n {
		t.Errorf("FullName mismatch: parent %q, child %q", pn, n)
	}

	// With b as the ceiling, b is "/".
	if got := b.FullName(b); got != "/" {
		t.Errorf("FullName(b, ceiling=b) got %q, want /", got)
	}
}

func TestWalkDot(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	for _, name := range []string{"", "."} {
		d, err := root.Walk(ctx, root, name)
		if err != nil {
			t.Fatalf("Walk(%q) failed: %v", name, err)
		}
		if d != root {
			t.Errorf("Walk(%q) got %q, want root", name, d.Name())
		}
		d.DecRef()
	}
}

func TestWalkDotDot(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	// ".." from root is root itself.
	d, err := root.Walk(ctx, root, "..")
	if err != nil {
		t.Fatalf("Walk(..) from root failed: %v", err)
	}
	if d != root {
		t.Errorf("Walk(..) from root got %q, want root", d.Name())
	}
	d.DecRef()

	if err := root.CreateDirectory(ctx, root, "a", FilePermsFromMode(0755)); err != nil {
		t.Fatalf("CreateDirectory(a) failed: %v", err)
	}
	a, err := root.Walk(ctx, root, "a")
	if err != nil {
		t.Fatalf("Walk(a) failed: %v", err)
	}
	defer a.DecRef()

	// ".." from a non-root node is the true parent.
	p, err := a.Walk(ctx, root, "..")
	if err != nil {
		t.Fatalf("Walk(..) from a failed: %v", err)
	}
	defer p.DecRef()
	if p != root {
		t.Errorf("Walk(..) from a got %q, want root", p.Name())
	}

	// With a as the walk ceiling, a is its own ancestor.
	c, err := a.Walk(ctx, a, "..")
	if err != nil {
		t.Fatalf("Walk(..) with ceiling failed: %v", err)
	}
	defer c.DecRef()
	if c != a {
		t.Errorf("Walk(..) with ceiling got %q, want a", c.Name())
	}
}

func TestWalkNotDir(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	f, err := root.Create(ctx, root, "f", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(f) failed: %v", err)
	}
	defer f.DecRef()

	if _, err := f.Dirent.Walk(ctx, root, "x"); err != unix.ENOTDIR {
		t.Errorf("Walk under a file got %v, want ENOTDIR", err)
	}
}

func TestCreateIdentity(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	f, err := root.Create(ctx, root, "f", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(f) failed: %v", err)
	}
	defer f.DecRef()

	// A subsequent walk resolves to the very node Create returned.
	d, err := root.Walk(ctx, root, "f")
	if err != nil {
		t.Fatalf("Walk(f) failed: %v", err)
	}
	defer d.DecRef()
	if d != f.Dirent {
		t.Errorf("Walk(f) got a different Dentry than Create")
	}

	// Creating it again fails.
	if _, err := root.Create(ctx, root, "f", FileFlags{}, FilePermsFromMode(0644)); err != unix.EEXIST {
		t.Errorf("second Create(f) got %v, want EEXIST", err)
	}
}

func TestCreateHardLink(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)
	other := newMemRoot(nil)

	f, err := root.Create(ctx, root, "f", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(f) failed: %v", err)
	}
	defer f.DecRef()
	if err := root.CreateDirectory(ctx, root, "d", FilePermsFromMode(0755)); err != nil {
		t.Fatalf("CreateDirectory(d) failed: %v", err)
	}
	d, err := root.Walk(ctx, root, "d")
	if err != nil {
		t.Fatalf("Walk(d) failed: %v", err)
	}
	defer d.DecRef()

	// Different mount sources cannot be linked.
	if err := other.CreateHardLink(ctx, other, f.Dirent, "link"); err != unix.EXDEV {
		t.Errorf("cross-mount hard link got %v, want EXDEV", err)
	}

	// Directories cannot be linked.
	if err := root.CreateHardLink(ctx, root, d, "link"); err != unix.EPERM {
		t.Errorf("directory hard link got %v, want EPERM", err)
	}

	// Same mount, regular file: allowed, and both names resolve to the
	// same underlying node.
	if err := root.CreateHardLink(ctx, root, f.Dirent, "link"); err != nil {
		t.Fatalf("hard link failed: %v", err)
	}
	link, err := root.Walk(ctx, root, "link")
	if err != nil {
		t.Fatalf("Walk(link) failed: %v", err)
	}
	defer link.DecRef()
	if got, want := link.Inode.StableAttr.InodeID, f.Dirent.Inode.StableAttr.InodeID; got != want {
		t.Errorf("hard link resolves to inode %d, want %d", got, want)
	}
}

func TestRemoveErrors(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	if err := root.CreateDirectory(ctx, root, "d", FilePermsFromMode(0755)); err != nil {
		t.Fatalf("CreateDirectory(d) failed: %v", err)
	}
	f, err := root.Create(ctx, root, "f", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(f) failed: %v", err)
	}
	defer f.DecRef()

	if err := root.Remove(ctx, root, "d"); err != unix.EISDIR {
		t.Errorf("Remove(d) got %v, want EISDIR", err)
	}
	if err := root.RemoveDirectory(ctx, root, "f"); err != unix.ENOTDIR {
		t.Errorf("RemoveDirectory(f) got %v, want ENOTDIR", err)
	}
	if err := root.RemoveDirectory(ctx, root, "."); err != unix.EINVAL {
		t.Errorf("RemoveDirectory(.) got %v, want EINVAL", err)
	}
	if err := root.RemoveDirectory(ctx, root, ".."); err != unix.ENOTEMPTY {
		t.Errorf("RemoveDirectory(..) got %v, want ENOTEMPTY", err)
	}
	if err := root.Remove(ctx, root, "missing"); err != unix.ENOENT {
		t.Errorf("Remove(missing) got %v, want ENOENT", err)
	}

	// A non-empty directory cannot be removed.
	d, err := root.Walk(ctx, root, "d")
	if err != nil {
		t.Fatalf("Walk(d) failed: %v", err)
	}
	defer d.DecRef()
	df, err := d.Create(ctx, root, "inner", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(d/inner) failed: %v", err)
	}
	defer df.DecRef()
	if err := root.RemoveDirectory(ctx, root, "d"); err != unix.ENOTEMPTY {
		t.Errorf("RemoveDirectory(non-empty d) got %v, want ENOTEMPTY", err)
	}
}

func TestRemoveResolvesToNothing(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	f, err := root.Create(ctx, root, "f", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(f) failed: %v", err)
	}
	defer f.DecRef()

	if err := root.Remove(ctx, root, "f"); err != nil {
		t.Fatalf("Remove(f) failed: %v", err)
	}
	if _, err := root.Walk(ctx, root, "f"); err != unix.ENOENT {
		t.Errorf("Walk(f) after Remove got %v, want ENOENT", err)
	}
}

func TestMayDeleteSticky(t *testing.T) {
	root := newMemRoot(nil)

	// A sticky directory owned by UID 10 containing a file owned by
	// UID 20.
	ownerCtx := contexttest.WithCredentials(auth.NewUserCredentials(10, 10, nil))
	if err := root.CreateDirectory(ownerCtx, root, "tmp", FilePermsFromMode(01777)); err != nil {
		t.Fatalf("CreateDirectory(tmp) failed: %v", err)
	}
	tmp, err := root.Walk(ownerCtx, root, "tmp")
	if err != nil {
		t.Fatalf("Walk(tmp) failed: %v", err)
	}
	defer tmp.DecRef()
	tmpOps := tmp.Inode.InodeOperations.(*memNode)
	tmpOps.UAttr.Perms = FilePermsFromMode(01777)
	tmpOps.UAttr.Owner = FileOwner{UID: 10, GID: 10}

	victimCtx := contexttest.WithCredentials(auth.NewUserCredentials(20, 20, nil))
	vf, err := tmp.Create(victimCtx, root, "victim", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(victim) failed: %v", err)
	}
	defer vf.DecRef()
	victimOps := vf.Dirent.Inode.InodeOperations.(*memNode)
	victimOps.UAttr.Perms = FilePermsFromMode(0644)
	victimOps.UAttr.Owner = FileOwner{UID: 20, GID: 20}

	for _, test := range []struct {
		desc string
		ctx  context.Context
		want error
	}{
		{
			desc: "directory owner may delete",
			ctx:  ownerCtx,
			want: nil,
		},
		{
			desc: "victim owner may delete",
			ctx:  victimCtx,
			want: nil,
		},
		{
			desc: "third party may not delete",
			ctx:  contexttest.WithCredentials(auth.NewUserCredentials(30, 30, nil)),
			want: unix.EPERM,
		},
		{
			desc: "capability holder may delete",
			ctx:  contexttest.WithCredentials(auth.NewRootCredentials()),
			want: nil,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			if err := tmp.MayDelete(test.ctx, root, "victim"); err != test.want {
				t.Errorf("MayDelete got %v, want %v", err, test.want)
			}
		})
	}
}

func TestMayDeleteRoot(t *testing.T) {
	ctx := contexttest.RootContext(t)
	root := newMemRoot(nil)

	// The namespace root can never be deleted.
	if err := root.mayDelete(ctx, root); err != unix.EBUSY {
		t.Errorf("mayDelete(root) got %v, want EBUSY", err)
	}
}

type testEndpoint struct {
	released bool
}

func (e *testEndpoint) Release() {
	e.released = true
}

func TestBind(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	d, err := root.Bind(ctx, root, "sock", &testEndpoint{}, FilePermsFromMode(0700))
	if err != nil {
		t.Fatalf("Bind(sock) failed: %v", err)
	}
	defer d.DecRef()
	if !IsSocket(d.Inode.StableAttr) {
		t.Errorf("Bind created a %v, want socket", d.Inode.StableAttr.Type)
	}

	// A taken name surfaces as EADDRINUSE, not EEXIST.
	if _, err := root.Bind(ctx, root, "sock", &testEndpoint{}, FilePermsFromMode(0700)); err != unix.EADDRINUSE {
		t.Errorf("second Bind(sock) got %v, want EADDRINUSE", err)
	}
}

func TestCreateFifo(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	if err := root.CreateFifo(ctx, root, "fifo", FilePermsFromMode(0644)); err != nil {
		t.Fatalf("CreateFifo failed: %v", err)
	}
	d, err := root.Walk(ctx, root, "fifo")
	if err != nil {
		t.Fatalf("Walk(fifo) failed: %v", err)
	}
	defer d.DecRef()
	if !IsPipe(d.Inode.StableAttr) {
		t.Errorf("CreateFifo created a %v, want pipe", d.Inode.StableAttr.Type)
	}
}

func TestCreateLinkAndReadlink(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	if err := root.CreateLink(ctx, root, "/target", "l"); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	l, err := root.Walk(ctx, root, "l")
	if err != nil {
		t.Fatalf("Walk(l) failed: %v", err)
	}
	defer l.DecRef()
	if !IsSymlink(l.Inode.StableAttr) {
		t.Fatalf("CreateLink created a %v, want symlink", l.Inode.StableAttr.Type)
	}
	target, err := l.Inode.Readlink(ctx)
	if err != nil {
		t.Fatalf("Readlink failed: %v", err)
	}
	if target != "/target" {
		t.Errorf("Readlink got %q, want %q", target, "/target")
	}
}
