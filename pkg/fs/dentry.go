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
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/wardenos/warden/pkg/auth"
	"github.com/wardenos/warden/pkg/fsmetric"
	"github.com/wardenos/warden/pkg/refs"
)

// nextDentryID hands out ids for new Dentries.
var nextDentryID atomic.Uint64

// negativeDentry is the shared sentinel cached under a name whose lookup
// definitively failed. It has no Inode, is never attached to a parent, and is
// never returned to a caller; a cache hit on it means ENOENT. The package
// reference here keeps it alive forever, so weak references to it never
// expire.
var negativeDentry = &Dentry{name: "(negative)"}

// Dentry holds an Inode in memory at a certain path in a namespace.
//
// A Dentry and its children form a strict tree: strong references flow from
// child to parent (the parent field) and from external holders; a parent
// observes its children only through weak references, so an unreferenced
// child can be collected at any time. A collected child detaches itself from
// the parent's children map as a side effect of destruction.
//
// Dentry fields name, parent, children and mounted are protected by mu. mu
// is never held across a call into an InodeOperations implementation. When a
// parent and child must both be locked, the parent is locked first.
type Dentry struct {
	refs.AtomicRefCount

	// id is globally unique and defines a total order between Dentries.
	// It never changes.
	id uint64

	// Inode is the backing filesystem object. It is nil only for the
	// negative sentinel and for Dentries that have been destroyed.
	Inode *Inode

	// mu protects the fields below.
	mu sync.Mutex

	// name is the leaf path component.
	name string

	// parent is this Dentry's parent, nil for a namespace root. While
	// attached, a Dentry holds a real reference on its parent.
	parent *Dentry

	// mounted is true if this Dentry is the root of a mounted subtree.
	mounted bool

	// children are cached lookup results, keyed by leaf name. Entries may
	// be expired at any time and are purged lazily.
	children map[string]*refs.WeakRef
}

func newDentry(inode *Inode, name string) *Dentry {
	return &Dentry{
		id:       nextDentryID.Add(1),
		Inode:    inode,
		name:     name,
		children: make(map[string]*refs.WeakRef),
	}
}

// NewDentry returns a new, unattached Dentry for inode with the given leaf
// name, taking ownership of the caller's reference on inode. The caller
// either attaches it with AddChild or uses it as a namespace root.
func NewDentry(inode *Inode, name string) *Dentry {
	return newDentry(inode, name)
}

// NewTransientDentry returns a Dentry carrying inode that will never be
// attached to a parent nor inserted into any children map. It is used for
// short-lived internal results.
func NewTransientDentry(inode *Inode) *Dentry {
	return newDentry(inode, "transient")
}

// ID returns this Dentry's globally unique id.
func (d *Dentry) ID() uint64 {
	return d.id
}

// Name returns the leaf path component of d.
func (d *Dentry) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Parent returns d's parent, or nil if d is a namespace root. The returned
// Dentry is valid without an extra reference for as long as the caller holds
// d, since an attached child keeps its parent alive.
func (d *Dentry) Parent() *Dentry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parent
}

// IsRoot returns true if d has no parent.
func (d *Dentry) IsRoot() bool {
	return d.Parent() == nil
}

// IsNegative returns true if d represents a name that is known not to exist.
func (d *Dentry) IsNegative() bool {
	return d.Inode == nil
}

// IsMountPoint returns true if d is a mount boundary or a namespace root.
func (d *Dentry) IsMountPoint() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted || d.parent == nil
}

// DecRef releases a reference on d. Dropping the last reference destroys d,
// which detaches it from its parent's children map.
func (d *Dentry) DecRef() {
	d.DecRefWithDestructor(d.destroy)
}

// destroy runs when the last reference on d is dropped. It can run on any
// goroutine at any time, without renameMu: the weak reference in the
// parent's children map has already been invalidated, so nothing can resolve
// to d anymore, and all we do here is drop the now-dead entry.
func (d *Dentry) destroy() {
	// Drop all cached child entries. Any live child would be holding a
	// real reference on us, so every remaining entry is either expired or
	// the negative sentinel.
	d.mu.Lock()
	for name, w := range d.children {
		delete(d.children, name)
		w.Drop()
	}
	d.children = nil
	parent := d.parent
	name := d.name
	d.mu.Unlock()

	if parent != nil {
		parent.mu.Lock()
		if w, ok := parent.children[name]; ok {
			if rc := w.Get(); rc == nil {
				// The entry is ours (already zapped); purge it.
				delete(parent.children, name)
				w.Drop()
			} else {
				// The name was reused; the entry belongs to a
				// live sibling now.
				rc.DecRef()
			}
		}
		parent.mu.Unlock()

		// Release the attachment reference on the parent.
		parent.DecRef()
	}

	if d.Inode != nil {
		// This gives the watch set its final chance to deliver
		// IN_DELETE_SELF if the node was unlinked.
		d.Inode.DecRef()
		d.Inode = nil
	}
}

// Walk resolves a single path component name relative to d. root acts as a
// ceiling: walking ".." from root returns root itself.
//
// Walk returns a new reference to the result.
func (d *Dentry) Walk(ctx context.Context, root *Dentry, name string) (*Dentry, error) {
	if d.Inode == nil {
		panic("Dentry.Walk: walk from a negative Dentry")
	}

	renameMu.RLock()
	defer renameMu.RUnlock()
	return d.walk(ctx, root, name)
}

// walk resolves name relative to d.
//
// Preconditions: renameMu is held for at least reading.
func (d *Dentry) walk(ctx context.Context, root *Dentry, name string) (*Dentry, error) {
	if !IsDir(d.Inode.StableAttr) {
		return nil, unix.ENOTDIR
	}

	if name == "" || name == "." {
		d.IncRef()
		return d, nil
	} else if name == ".." {
		// Respect the walk ceiling: root is its own ancestor.
		if d == root {
			d.IncRef()
			return d, nil
		}
		if parent := d.Parent(); parent != nil {
			parent.IncRef()
			return parent, nil
		}
		// A true root is also its own ancestor.
		d.IncRef()
		return d, nil
	}

	fsmetric.Walks.Inc()

	d.mu.Lock()
	if w, ok := d.children[name]; ok {
		if child := w.Get(); child != nil {
			cd := child.(*Dentry)
			if cd.IsNegative() {
				cd.DecRef()
				d.mu.Unlock()
				fsmetric.WalkNegativeHits.Inc()
				return nil, unix.ENOENT
			}

			// Being cached is not enough for mounts that want to
			// revalidate. Mount points are exempt: the overlay,
			// not the backing store, owns them now.
			cd.mu.Lock()
			mounted := cd.mounted
			cd.mu.Unlock()
			if mounted || !cd.Inode.MountSource.Revalidate(ctx, name, d.Inode, cd.Inode) {
				d.mu.Unlock()
				fsmetric.WalkCacheHits.Inc()
				return cd, nil
			}

			// Stale: evict the entry and fall through to a real
			// lookup.
			delete(d.children, name)
			d.mu.Unlock()
			w.Drop()
			cd.DropExtendedReference()
			cd.DecRef()
		} else {
			// Expired; purge lazily.
			delete(d.children, name)
			w.Drop()
			d.mu.Unlock()
		}
	} else {
		d.mu.Unlock()
	}

	fsmetric.WalkCacheMisses.Inc()

	// Slow path: consult the backing store. The Dentry lock must not be
	// held across this call.
	c, err := d.Inode.Lookup(ctx, name)
	if err != nil {
		if err == unix.ENOENT {
			// Remember the miss.
			d.cacheNegative(name)
		}
		return nil, err
	}
	if cname := c.Name(); cname != name {
		panic(fmt.Sprintf("lookup from %q for %q returned a node named %q", d.Name(), name, cname))
	}

	d.mu.Lock()
	if w, ok := d.children[name]; ok {
		if child := w.Get(); child != nil {
			if cd := child.(*Dentry); !cd.IsNegative() {
				// Lost a race with a concurrent lookup; prefer
				// the entry that made it into the cache.
				d.mu.Unlock()
				c.DecRef()
				return cd, nil
			}
			child.DecRef()
		}
	}
	d.addChildLocked(c)
	d.mu.Unlock()

	return c, nil
}

// exists returns true if name can be resolved under d.
//
// Preconditions: renameMu is held for at least reading.
func (d *Dentry) exists(ctx context.Context, root *Dentry, name string) bool {
	child, err := d.walk(ctx, root, name)
	if err != nil {
		return false
	}
	child.DecRef()
	return true
}

// cacheNegative remembers that name does not exist under d.
func (d *Dentry) cacheNegative(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.children == nil {
		return
	}
	if w, ok := d.children[name]; ok {
		// Never clobber a live entry; a create may have raced with the
		// failed lookup.
		if child := w.Get(); child != nil {
			child.DecRef()
			return
		}
		delete(d.children, name)
		w.Drop()
	}
	d.children[name] = refs.NewWeakRef(negativeDentry)
}

// dropCached removes d's cache entry for name, if any, forcing the next walk
// to consult the backing store.
func (d *Dentry) dropCached(name string) {
	d.mu.Lock()
	if w, ok := d.children[name]; ok {
		delete(d.children, name)
		w.Drop()
	}
	d.mu.Unlock()
}

// AddChild attaches child to d under the child's name, replacing any cache
// entry already at that name. The caller retains its reference on child.
//
// Preconditions: child is not attached to any parent.
func (d *Dentry) AddChild(child *Dentry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addChildLocked(child)
}

// addChildLocked implements AddChild.
//
// Preconditions: d.mu is held.
func (d *Dentry) addChildLocked(child *Dentry) {
	if !IsDir(d.Inode.StableAttr) {
		panic(fmt.Sprintf("attaching a child to non-directory %q", d.name))
	}

	// An attached child keeps its parent alive.
	d.IncRef()
	child.mu.Lock()
	if child.parent != nil {
		child.mu.Unlock()
		panic(fmt.Sprintf("attaching %q, which already has a parent", child.name))
	}
	child.parent = d
	name := child.name
	child.mu.Unlock()

	if w, ok := d.children[name]; ok {
		delete(d.children, name)
		w.Drop()
	}
	d.children[name] = refs.NewWeakRef(child)
}

// flush collapses the cached subtree below d: expired and negative entries
// are purged, and live descendants lose their extended references so they
// are evicted as soon as their holders let go. Used after a subtree has been
// replaced or renamed rather than waiting for organic eviction.
//
// Preconditions: renameMu is held for at least reading.
func (d *Dentry) flush() {
	d.mu.Lock()
	var live []*Dentry
	for name, w := range d.children {
		if child := w.Get(); child != nil {
			cd := child.(*Dentry)
			if cd.IsNegative() {
				delete(d.children, name)
				w.Drop()
				cd.DecRef()
				continue
			}
			live = append(live, cd)
		} else {
			delete(d.children, name)
			w.Drop()
		}
	}
	d.mu.Unlock()

	// Process live children outside d.mu: dropping what may be a child's
	// last reference runs its destructor, which locks d.mu to detach.
	for _, cd := range live {
		cd.flush()
		cd.DropExtendedReference()
		cd.DecRef()
	}
}

// FullName returns the fully-qualified path of d, treating root as "/". If d
// is not a descendant of root the path is reconstructed up to a true root.
func (d *Dentry) FullName(root *Dentry) string {
	renameMu.RLock()
	defer renameMu.RUnlock()
	return d.fullName(root)
}

// fullName implements FullName.
//
// Preconditions: renameMu is held for at least reading.
func (d *Dentry) fullName(root *Dentry) string {
	if d == root {
		return "/"
	}
	parent := d.Parent()
	if parent == nil {
		return "/"
	}
	pname := parent.fullName(root)
	if pname == "/" {
		return pname + d.Name()
	}
	return pname + "/" + d.Name()
}

// DescendantOf returns true if d is p or a transitive child of p.
func (d *Dentry) DescendantOf(p *Dentry) bool {
	renameMu.RLock()
	defer renameMu.RUnlock()
	return d.descendantOf(p)
}

// descendantOf implements DescendantOf.
//
// Preconditions: renameMu is held for at least reading.
func (d *Dentry) descendantOf(p *Dentry) bool {
	for ; d != nil; d = d.Parent() {
		if d == p {
			return true
		}
	}
	return false
}

// MountRoot finds the root of the mounted subtree containing d: the nearest
// ancestor (inclusive) that is a mount point, or the true namespace root.
//
// MountRoot holds renameMu exclusively because the answer depends on the
// stability of the whole mounted-flag chain, not just one node.
//
// MountRoot returns a new reference to the result.
func (d *Dentry) MountRoot() *Dentry {
	renameMu.Lock()
	defer renameMu.Unlock()

	cur := d
	for {
		cur.mu.Lock()
		mounted := cur.mounted
		parent := cur.parent
		cur.mu.Unlock()
		if mounted || parent == nil {
			break
		}
		cur = parent
	}
	cur.IncRef()
	return cur
}

// Create creates a new regular file under d and opens it, returning the open
// File. Unlike the other create variants, the node returned by the backing
// store is inserted into the cache directly.
//
// The caller owns a reference to the returned File.
func (d *Dentry) Create(ctx context.Context, root *Dentry, name string, flags FileFlags, perms FilePermissions) (*File, error) {
	renameMu.RLock()
	defer renameMu.RUnlock()

	if d.exists(ctx, root, name) {
		return nil, unix.EEXIST
	}

	file, err := d.Inode.Create(ctx, name, flags, perms)
	if err != nil {
		return nil, err
	}
	child := file.Dirent
	if cname := child.Name(); cname != name {
		panic(fmt.Sprintf("create under %q for %q returned a node named %q", d.Name(), name, cname))
	}

	// Attach, replacing the negative entry cached by the existence check.
	d.AddChild(child)
	child.ExtendReference()

	fsmetric.Creates.Inc()
	d.Inode.Watches.Notify(name, unix.IN_CREATE, 0)
	return file, nil
}

// genericCreate executes create if name does not already exist under d. The
// cache entry for name is dropped before and after the backend call: the
// backend's result is not trusted to be cache-consistent, so the next walk
// re-resolves it.
//
// Preconditions: renameMu is held for at least reading.
func (d *Dentry) genericCreate(ctx context.Context, root *Dentry, name string, create func() error) error {
	if d.exists(ctx, root, name) {
		return unix.EEXIST
	}

	d.dropCached(name)
	if err := create(); err != nil {
		return err
	}
	d.dropCached(name)
	return nil
}

// CreateLink creates a symbolic link named newname under d pointing at
// oldname.
func (d *Dentry) CreateLink(ctx context.Context, root *Dentry, oldname, newname string) error {
	renameMu.RLock()
	defer renameMu.RUnlock()

	err := d.genericCreate(ctx, root, newname, func() error {
		return d.Inode.CreateLink(ctx, oldname, newname)
	})
	if err != nil {
		return err
	}

	fsmetric.Creates.Inc()
	d.Inode.Watches.Notify(newname, unix.IN_CREATE, 0)
	return nil
}

// CreateHardLink creates a hard link named name under d pointing at the node
// held by target. Both must live on the same mount, and directories cannot
// be hard linked.
func (d *Dentry) CreateHardLink(ctx context.Context, root *Dentry, target *Dentry, name string) error {
	if d.Inode.MountSource != target.Inode.MountSource {
		return unix.EXDEV
	}
	if IsDir(target.Inode.StableAttr) {
		return unix.EPERM
	}

	renameMu.RLock()
	defer renameMu.RUnlock()

	err := d.genericCreate(ctx, root, name, func() error {
		return d.Inode.CreateHardLink(ctx, target.Inode, name)
	})
	if err != nil {
		return err
	}

	fsmetric.Creates.Inc()
	// The link count on the target changed.
	target.Inode.Watches.Notify("", unix.IN_ATTRIB, 0)
	d.Inode.Watches.Notify(name, unix.IN_CREATE, 0)
	return nil
}

// CreateDirectory creates a directory named name under d.
func (d *Dentry) CreateDirectory(ctx context.Context, root *Dentry, name string, perms FilePermissions) error {
	renameMu.RLock()
	defer renameMu.RUnlock()

	err := d.genericCreate(ctx, root, name, func() error {
		return d.Inode.CreateDirectory(ctx, name, perms)
	})
	if err != nil {
		return err
	}

	fsmetric.Creates.Inc()
	d.Inode.Watches.Notify(name, unix.IN_ISDIR|unix.IN_CREATE, 0)
	return nil
}

// CreateFifo creates a named pipe named name under d.
func (d *Dentry) CreateFifo(ctx context.Context, root *Dentry, name string, perms FilePermissions) error {
	renameMu.RLock()
	defer renameMu.RUnlock()

	err := d.genericCreate(ctx, root, name, func() error {
		return d.Inode.CreateFifo(ctx, name, perms)
	})
	if err != nil {
		return err
	}

	fsmetric.Creates.Inc()
	d.Inode.Watches.Notify(name, unix.IN_CREATE, 0)
	return nil
}

// Bind binds a socket endpoint at name under d and returns the new node.
// A name conflict surfaces as EADDRINUSE, matching bind(2) on a unix socket
// address that is already taken.
//
// The caller owns a reference to the returned Dentry.
func (d *Dentry) Bind(ctx context.Context, root *Dentry, name string, data BoundEndpoint, perms FilePermissions) (*Dentry, error) {
	renameMu.RLock()
	defer renameMu.RUnlock()

	if d.exists(ctx, root, name) {
		return nil, unix.EADDRINUSE
	}
	d.dropCached(name)

	child, err := d.Inode.Bind(ctx, name, data, perms)
	if err != nil {
		if err == unix.EEXIST {
			return nil, unix.EADDRINUSE
		}
		return nil, err
	}
	if cname := child.Name(); cname != name {
		panic(fmt.Sprintf("bind under %q for %q returned a node named %q", d.Name(), name, cname))
	}

	d.AddChild(child)
	child.ExtendReference()

	fsmetric.Creates.Inc()
	d.Inode.Watches.Notify(name, unix.IN_CREATE, 0)
	return child, nil
}

// Remove unlinks the non-directory name under d.
func (d *Dentry) Remove(ctx context.Context, root *Dentry, name string) error {
	renameMu.RLock()
	defer renameMu.RUnlock()

	child, err := d.walk(ctx, root, name)
	if err != nil {
		return err
	}
	defer child.DecRef()

	if IsDir(child.Inode.StableAttr) {
		return unix.EISDIR
	}
	if child.IsMountPoint() {
		return unix.EBUSY
	}

	// Backend first; if it fails, the cache is untouched.
	if err := d.Inode.Remove(ctx, child); err != nil {
		return err
	}

	fsmetric.Removes.Inc()

	// The link count on the victim changed.
	child.Inode.Watches.Notify("", unix.IN_ATTRIB, 0)

	// Make the name unresolvable and release the policy pin. The victim
	// stays alive while anyone still holds it; the events below are
	// delivered before our reference is dropped so the watch set can
	// finish teardown once the node is truly gone.
	d.dropCached(name)
	child.DropExtendedReference()
	child.Inode.Watches.MarkUnlinked()
	child.Inode.Watches.Unpin(child)
	d.Inode.Watches.Notify(name, unix.IN_DELETE, 0)
	return nil
}

// RemoveDirectory removes the directory name under d.
func (d *Dentry) RemoveDirectory(ctx context.Context, root *Dentry, name string) error {
	renameMu.RLock()
	defer renameMu.RUnlock()

	// Linux gives these literal names their own errors.
	if name == "." {
		return unix.EINVAL
	}
	if name == ".." {
		return unix.ENOTEMPTY
	}

	child, err := d.walk(ctx, root, name)
	if err != nil {
		return err
	}
	defer child.DecRef()

	if !IsDir(child.Inode.StableAttr) {
		return unix.ENOTDIR
	}
	if child.IsMountPoint() {
		return unix.EBUSY
	}

	if err := d.Inode.Remove(ctx, child); err != nil {
		return err
	}

	fsmetric.Removes.Inc()

	d.dropCached(name)
	child.DropExtendedReference()
	child.Inode.Watches.MarkUnlinked()
	child.Inode.Watches.Unpin(child)
	d.Inode.Watches.Notify(name, unix.IN_ISDIR|unix.IN_DELETE, 0)
	return nil
}

// MayDelete reports whether the caller is allowed to remove name from d:
// write and execute permission on d, plus the sticky bit rule.
func (d *Dentry) MayDelete(ctx context.Context, root *Dentry, name string) error {
	renameMu.RLock()
	defer renameMu.RUnlock()

	victim, err := d.walk(ctx, root, name)
	if err != nil {
		return err
	}
	defer victim.DecRef()

	return d.mayDelete(ctx, victim)
}

// mayDelete implements MayDelete for an already-resolved victim.
//
// Preconditions: renameMu is held for at least reading.
func (d *Dentry) mayDelete(ctx context.Context, victim *Dentry) error {
	if err := d.Inode.CheckPermission(ctx, PermMask{Write: true, Execute: true}); err != nil {
		return err
	}
	if victim.IsRoot() {
		return unix.EBUSY
	}
	return d.checkSticky(ctx, victim)
}

// checkSticky enforces the sticky bit: if d's sticky bit is set, only d's
// owner, the victim's owner, or a CAP_FOWNER holder may remove victim.
func (d *Dentry) checkSticky(ctx context.Context, victim *Dentry) error {
	uattr, err := d.Inode.UnstableAttr(ctx)
	if err != nil {
		return unix.EPERM
	}
	if !uattr.Perms.Sticky {
		return nil
	}

	creds := auth.CredentialsFromContext(ctx)
	if uattr.Owner.UID == creds.EffectiveKUID {
		return nil
	}

	vattr, err := victim.Inode.UnstableAttr(ctx)
	if err != nil {
		return unix.EPERM
	}
	if vattr.Owner.UID == creds.EffectiveKUID {
		return nil
	}
	if victim.Inode.CheckCapability(ctx, auth.CAP_FOWNER) {
		return nil
	}
	return unix.EPERM
}

// Rename atomically renames oldName under oldParent to newName under
// newParent, overwriting any compatible node already at the destination. It
// is the only namespace operation that takes the structural lock
// exclusively: no walk anywhere in the tree can observe it half-done.
func Rename(ctx context.Context, root *Dentry, oldParent *Dentry, oldName string, newParent *Dentry, newName string) error {
	renameMu.Lock()
	defer renameMu.Unlock()

	if oldParent == newParent && oldName == newName {
		return nil
	}
	return rename(ctx, root, oldParent, oldName, newParent, newName)
}

// rename implements Rename.
//
// Preconditions: renameMu is held for writing; the operation is not a no-op.
func rename(ctx context.Context, root *Dentry, oldParent *Dentry, oldName string, newParent *Dentry, newName string) error {
	if oldParent != newParent {
		// Renaming a directory to a destination inside itself: the
		// source must not reappear as an ancestor of the destination
		// parent.
		for p := newParent; p != nil; p = p.Parent() {
			if p.Parent() == oldParent && p.Name() == oldName {
				return unix.EINVAL
			}
		}
	}

	// Both parents need write and execute (but not read).
	if err := oldParent.Inode.CheckPermission(ctx, PermMask{Write: true, Execute: true}); err != nil {
		return err
	}
	if err := newParent.Inode.CheckPermission(ctx, PermMask{Write: true, Execute: true}); err != nil {
		return err
	}

	renamed, err := oldParent.walk(ctx, root, oldName)
	if err != nil {
		return err
	}
	defer renamed.DecRef()

	if err := oldParent.checkSticky(ctx, renamed); err != nil {
		return err
	}
	if renamed.IsMountPoint() {
		return unix.EBUSY
	}
	// Catch the general inside-itself case via the resolved source.
	if newParent.descendantOf(renamed) {
		return unix.EINVAL
	}
	if IsDir(renamed.Inode.StableAttr) {
		// A moved directory gets its ".." rewritten, which needs write
		// permission on the directory itself.
		if err := renamed.Inode.CheckPermission(ctx, PermMask{Write: true}); err != nil {
			return err
		}
	}

	// Resolve the destination.
	replaced, err := newParent.walk(ctx, root, newName)
	if err != nil && err != unix.ENOENT {
		return err
	}
	replacement := err == nil
	if replacement {
		err := func() error {
			defer replaced.DecRef()

			if err := newParent.checkSticky(ctx, replaced); err != nil {
				return err
			}
			if replaced.IsMountPoint() {
				return unix.EBUSY
			}

			// Source and destination must agree on directory-ness.
			oldIsDir := IsDir(renamed.Inode.StableAttr)
			newIsDir := IsDir(replaced.Inode.StableAttr)
			if oldIsDir && !newIsDir {
				return unix.ENOTDIR
			}
			if !oldIsDir && newIsDir {
				return unix.EISDIR
			}

			// The destination is going away: collapse its cached
			// subtree and release its pin while it is still
			// resolvable.
			replaced.flush()
			replaced.DropExtendedReference()
			replaced.Inode.Watches.MarkUnlinked()
			replaced.Inode.Watches.Unpin(replaced)
			return nil
		}()
		if err != nil {
			return err
		}
	}

	if err := renamed.Inode.Rename(ctx, oldParent, renamed, newParent, newName, replacement); err != nil {
		return err
	}

	// Restitch the tree. Two distinct parents are locked in ascending id
	// order.
	first, second := oldParent, newParent
	if oldParent != newParent && second.id < first.id {
		first, second = newParent, oldParent
	}
	first.mu.Lock()
	if oldParent != newParent {
		second.mu.Lock()
	}

	if w, ok := oldParent.children[oldName]; ok {
		delete(oldParent.children, oldName)
		w.Drop()
	}
	if w, ok := newParent.children[newName]; ok {
		delete(newParent.children, newName)
		w.Drop()
	}

	renamed.mu.Lock()
	renamed.name = newName
	if oldParent != newParent {
		// The attachment reference moves to the new parent.
		renamed.parent = newParent
		newParent.IncRef()
	}
	renamed.mu.Unlock()

	newParent.children[newName] = refs.NewWeakRef(renamed)

	if oldParent != newParent {
		second.mu.Unlock()
	}
	first.mu.Unlock()
	if oldParent != newParent {
		oldParent.DecRef()
	}

	// Ordered notifications: both parents first, sharing a cookie so a
	// listener can pair the halves, then the node itself without one.
	var dirEv uint32
	if IsDir(renamed.Inode.StableAttr) {
		dirEv = unix.IN_ISDIR
	}
	cookie := newInotifyCookie()
	oldParent.Inode.Watches.Notify(oldName, dirEv|unix.IN_MOVED_FROM, cookie)
	newParent.Inode.Watches.Notify(newName, dirEv|unix.IN_MOVED_TO, cookie)
	renamed.Inode.Watches.Notify("", unix.IN_MOVE_SELF, 0)

	// The old location's pin is gone; re-apply retention policy at the
	// new one and collapse whatever the subtree had cached.
	renamed.DropExtendedReference()
	renamed.ExtendReference()
	renamed.flush()

	fsmetric.Renames.Inc()
	return nil
}

// Mount substitutes a new Dentry holding inode over d: the parent's cache
// entry for d's name is redirected to the new node, which is marked as a
// mount point. d remains reachable only through whoever already holds it.
//
// On success Mount consumes the caller's reference on inode and returns a
// new reference to the mounted Dentry; on failure the caller keeps its inode
// reference.
func (d *Dentry) Mount(inode *Inode) (*Dentry, error) {
	renameMu.Lock()
	defer renameMu.Unlock()
	return d.mount(inode)
}

// mount implements Mount.
//
// Preconditions: renameMu is held for writing.
func (d *Dentry) mount(inode *Inode) (*Dentry, error) {
	// A symlink cannot anchor a mounted subtree.
	if IsSymlink(inode.StableAttr) {
		return nil, unix.ENOENT
	}

	parent := d.Parent()
	if parent == nil {
		return nil, unix.EBUSY
	}

	replacement := NewDentry(inode, d.Name())
	replacement.mounted = true
	parent.AddChild(replacement)
	return replacement, nil
}

// Unmount reverses Mount: original, the node d displaced, is restored into
// the parent's children map under its own name, and d stops being a mount
// point. Unmounting a node that is not currently mounted over original's
// place is a contract violation and panics.
func (d *Dentry) Unmount(original *Dentry) {
	renameMu.Lock()
	defer renameMu.Unlock()
	d.unmount(original)
}

// unmount implements Unmount.
//
// Preconditions: renameMu is held for writing.
func (d *Dentry) unmount(original *Dentry) {
	parent := d.Parent()
	if parent == nil {
		panic("unmount: mount point has no parent")
	}
	if op := original.Parent(); op != parent {
		panic(fmt.Sprintf("unmount: %q was not displaced from under %q", original.Name(), parent.Name()))
	}
	name := d.Name()

	parent.mu.Lock()
	w, ok := parent.children[name]
	if !ok {
		panic(fmt.Sprintf("unmount: no cache entry for mount point %q", name))
	}
	cur := w.Get()
	if cur == nil {
		panic(fmt.Sprintf("unmount: mount point %q expired while mounted", name))
	}
	if cd := cur.(*Dentry); cd != d {
		panic(fmt.Sprintf("unmount: %q is mounted by someone else", name))
	}
	cur.DecRef()
	delete(parent.children, name)
	w.Drop()

	// The displaced node never let go of its parent; just reinstall its
	// cache entry.
	parent.children[original.Name()] = refs.NewWeakRef(original)
	parent.mu.Unlock()

	d.mu.Lock()
	d.mounted = false
	d.mu.Unlock()
}

// GetDotAttrs returns the DentAttrs for the "." and ".." entries of d.
func (d *Dentry) GetDotAttrs(root *Dentry) (DentAttr, DentAttr) {
	sattr := d.Inode.StableAttr
	dot := DentAttr{Type: sattr.Type, InodeID: sattr.InodeID}

	if !d.IsRoot() && d.DescendantOf(root) {
		pattr := d.Parent().Inode.StableAttr
		return dot, DentAttr{Type: pattr.Type, InodeID: pattr.InodeID}
	}
	// Root (or outside the walk ceiling): ".." is the same as ".".
	return dot, dot
}

// InotifyEvent delivers an event about d to d's watch set and its parent's
// watch set, in that parent-first order, adding IN_ISDIR for directories.
// Parent watchers observe the event under d's name; d's own watchers observe
// it with an empty name.
func (d *Dentry) InotifyEvent(events, cookie uint32) {
	if IsDir(d.Inode.StableAttr) {
		events |= unix.IN_ISDIR
	}

	// Hold renameMu so the name/parent pair cannot shift between the two
	// deliveries.
	renameMu.RLock()
	defer renameMu.RUnlock()

	d.mu.Lock()
	parent := d.parent
	name := d.name
	d.mu.Unlock()

	if parent != nil {
		parent.Inode.Watches.Notify(name, events, cookie)
	}
	d.Inode.Watches.Notify("", events, cookie)
}

// ExtendReference pins d in its mount's dentry cache if the mount's
// retention policy wants to keep it in core beyond plain ownership.
func (d *Dentry) ExtendReference() {
	if msrc := d.Inode.MountSource; msrc.Keep(d) {
		msrc.ExtendReference(d)
	}
}

// DropExtendedReference releases any retention pin on d.
func (d *Dentry) DropExtendedReference() {
	d.Inode.MountSource.DropExtendedReference(d)
}
