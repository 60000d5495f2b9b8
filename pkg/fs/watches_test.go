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
	"sync"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/wardenos/warden/pkg/contexttest"
)

type recordedEvent struct {
	name   string
	events uint32
	cookie uint32
}

// recordingWatcher accumulates every event it is notified of.
type recordingWatcher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (w *recordingWatcher) NotifyEvent(name string, events uint32, cookie uint32) {
	w.mu.Lock()
	w.events = append(w.events, recordedEvent{name, events, cookie})
	w.mu.Unlock()
}

func (w *recordingWatcher) take() []recordedEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.events
	w.events = nil
	return out
}

func expectEvents(t *testing.T, got, want []recordedEvent) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d events %+v, want %d events %+v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d is %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWatchCreateRemove(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	w := &recordingWatcher{}
	root.Inode.Watches.Watch(w)

	f, err := root.Create(ctx, root, "f", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(f) failed: %v", err)
	}
	if err := root.CreateDirectory(ctx, root, "d", FilePermsFromMode(0755)); err != nil {
		t.Fatalf("CreateDirectory(d) failed: %v", err)
	}

	cw := &recordingWatcher{}
	f.Dirent.Inode.Watches.Watch(cw)

	if err := root.Remove(ctx, root, "f"); err != nil {
		t.Fatalf("Remove(f) failed: %v", err)
	}
	if err := root.RemoveDirectory(ctx, root, "d"); err != nil {
		t.Fatalf("RemoveDirectory(d) failed: %v", err)
	}

	expectEvents(t, w.take(), []recordedEvent{
		{"f", unix.IN_CREATE, 0},
		{"d", unix.IN_ISDIR | unix.IN_CREATE, 0},
		{"f", unix.IN_DELETE, 0},
		{"d", unix.IN_ISDIR | unix.IN_DELETE, 0},
	})

	// The unlinked victim sees its link count change, then a deletion
	// event once the last reference is gone.
	f.DecRef()
	expectEvents(t, cw.take(), []recordedEvent{
		{"", unix.IN_ATTRIB, 0},
		{"", unix.IN_DELETE_SELF, 0},
	})
}

func TestWatchRenameCookiePairing(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	for _, name := range []string{"a", "b"} {
		if err := root.CreateDirectory(ctx, root, name, FilePermsFromMode(0755)); err != nil {
			t.Fatalf("CreateDirectory(%s) failed: %v", name, err)
		}
	}
	a, err := root.Walk(ctx, root, "a")
	if err != nil {
		t.Fatalf("Walk(a) failed: %v", err)
	}
	defer a.DecRef()
	b, err := root.Walk(ctx, root, "b")
	if err != nil {
		t.Fatalf("Walk(b) failed: %v", err)
	}
	defer b.DecRef()
	f, err := a.Create(ctx, root, "f", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(a/f) failed: %v", err)
	}
	defer f.DecRef()

	aw, bw, fw := &recordingWatcher{}, &recordingWatcher{}, &recordingWatcher{}
	a.Inode.Watches.Watch(aw)
	b.Inode.Watches.Watch(bw)
	f.Dirent.Inode.Watches.Watch(fw)

	if err := Rename(ctx, root, a, "f", b, "g"); err != nil {
		t.Fatalf("Rename(a/f, b/g) failed: %v", err)
	}

	from := aw.take()
	to := bw.take()
	self := fw.take()
	if len(from) != 1 || len(to) != 1 || len(self) != 1 {
		t.Fatalf("got %d/%d/%d events, want 1/1/1", len(from), len(to), len(self))
	}
	if from[0].name != "f" || from[0].events != unix.IN_MOVED_FROM {
		t.Errorf("source parent saw %+v, want {f IN_MOVED_FROM}", from[0])
	}
	if to[0].name != "g" || to[0].events != unix.IN_MOVED_TO {
		t.Errorf("destination parent saw %+v, want {g IN_MOVED_TO}", to[0])
	}
	if from[0].cookie == 0 || from[0].cookie != to[0].cookie {
		t.Errorf("rename halves have cookies %d and %d, want equal and non-zero", from[0].cookie, to[0].cookie)
	}
	if self[0] != (recordedEvent{"", unix.IN_MOVE_SELF, 0}) {
		t.Errorf("moved node saw %+v, want {\"\" IN_MOVE_SELF 0}", self[0])
	}
}

func TestWatchUnwatch(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	w := &recordingWatcher{}
	id := root.Inode.Watches.Watch(w)
	root.Inode.Watches.Unwatch(id)

	f, err := root.Create(ctx, root, "f", FileFlags{}, FilePermsFromMode(0644))
	if err != nil {
		t.Fatalf("Create(f) failed: %v", err)
	}
	defer f.DecRef()

	if events := w.take(); len(events) != 0 {
		t.Errorf("unwatched subscriber got events %+v", events)
	}
}

func TestInotifyEventOrdering(t *testing.T) {
	ctx := contexttest.Context(t)
	root := newMemRoot(nil)

	if err := root.CreateDirectory(ctx, root, "d", FilePermsFromMode(0755)); err != nil {
		t.Fatalf("CreateDirectory(d) failed: %v", err)
	}
	d, err := root.Walk(ctx, root, "d")
	if err != nil {
		t.Fatalf("Walk(d) failed: %v", err)
	}
	defer d.DecRef()

	pw, sw := &recordingWatcher{}, &recordingWatcher{}
	root.Inode.Watches.Watch(pw)
	d.Inode.Watches.Watch(sw)

	d.InotifyEvent(unix.IN_ATTRIB, 7)

	// Directories get IN_ISDIR added; the parent observes the event under
	// the child's name, the child under "".
	expectEvents(t, pw.take(), []recordedEvent{
		{"d", unix.IN_ATTRIB | unix.IN_ISDIR, 7},
	})
	expectEvents(t, sw.take(), []recordedEvent{
		{"", unix.IN_ATTRIB | unix.IN_ISDIR, 7},
	})
}
