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
	"github.com/wardenos/warden/pkg/fs"
)

// Fifo represents a named pipe. The pipe buffer itself lives with whoever
// opens the fifo; the namespace only needs the node.
type Fifo struct {
	Entry
}

// InitFifo initializes a fifo.
func (f *Fifo) InitFifo(owner fs.FileOwner, perms fs.FilePermissions) {
	f.InitEntry(owner, perms)
}
