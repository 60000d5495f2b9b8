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
	"fmt"
	"sync"
)

// DentryCacheLimiter limits the number of entries allowed in a set of
// DentryCaches that share it.
type DentryCacheLimiter struct {
	mu    sync.Mutex
	max   uint64
	count uint64
}

// NewDentryCacheLimiter creates a new DentryCacheLimiter.
func NewDentryCacheLimiter(max uint64) *DentryCacheLimiter {
	return &DentryCacheLimiter{max: max}
}

// tryInc tries to increment the count and returns true if successful.
func (d *DentryCacheLimiter) tryInc() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.count >= d.max {
		return false
	}
	d.count++
	return true
}

// dec decrements the count.
func (d *DentryCacheLimiter) dec() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.count == 0 {
		panic(fmt.Sprintf("underflowing DentryCacheLimiter count: %+v", d))
	}
	d.count--
}
