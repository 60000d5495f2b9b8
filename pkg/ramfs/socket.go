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

// Socket represents a socket.
type Socket struct {
	Entry

	// ep is the bound endpoint.
	ep fs.BoundEndpoint
}

// InitSocket initializes a socket.
func (s *Socket) InitSocket(ep fs.BoundEndpoint, owner fs.FileOwner, perms fs.FilePermissions) {
	s.InitEntry(owner, perms)
	s.ep = ep
}

// BoundEndpoint returns the socket endpoint bound at this node.
func (s *Socket) BoundEndpoint() fs.BoundEndpoint {
	return s.ep
}

// Release releases the bound endpoint.
func (s *Socket) Release(context.Context) {
	if s.ep != nil {
		s.ep.Release()
	}
}
