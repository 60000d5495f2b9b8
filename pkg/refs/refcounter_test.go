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

package refs

import (
	"testing"
)

type testCounter struct {
	AtomicRefCount

	destroyed bool
}

func (t *testCounter) DecRef() {
	t.DecRefWithDestructor(t.destroy)
}

func (t *testCounter) destroy() {
	t.destroyed = true
}

func TestOneRef(t *testing.T) {
	tc := &testCounter{}
	tc.DecRef()

	if !tc.destroyed {
		t.Errorf("object was not destroyed")
	}
}

func TestTwoRefs(t *testing.T) {
	tc := &testCounter{}
	tc.IncRef()
	tc.DecRef()
	tc.DecRef()

	if !tc.destroyed {
		t.Errorf("object was not destroyed")
	}
}

func TestMultiRefs(t *testing.T) {
	tc := &testCounter{}
	tc.IncRef()
	tc.DecRef()

	tc.IncRef()
	tc.DecRef()

	tc.DecRef()

	if !tc.destroyed {
		t.Errorf("object was not destroyed")
	}
}

func TestWeakRef(t *testing.T) {
	tc := &testCounter{}
	w := NewWeakRef(tc)

	// Try resolving.
	if x := w.Get(); x == nil {
		t.Errorf("weak reference resolved to nil with object alive")
	} else {
		x.DecRef()
	}

	// Drop the original reference.
	tc.DecRef()
	if !tc.destroyed {
		t.Errorf("object was not destroyed")
	}

	// Destruction zaps the weak reference.
	if x := w.Get(); x != nil {
		t.Errorf("weak reference resolved to a destroyed object")
	}
}

func TestWeakRefDrop(t *testing.T) {
	tc := &testCounter{}
	w := NewWeakRef(tc)
	w.Drop()
	if tc.destroyed {
		t.Errorf("dropping a weak reference destroyed the object")
	}

	tc.DecRef()
	if !tc.destroyed {
		t.Errorf("object was not destroyed")
	}
}

func TestTryIncRefAfterDestroy(t *testing.T) {
	tc := &testCounter{}
	tc.DecRef()

	if tc.TryIncRef() {
		t.Errorf("TryIncRef succeeded on a destroyed object")
	}
}
