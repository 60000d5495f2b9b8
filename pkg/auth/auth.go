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

// Package auth implements the credentials of an execution context: user and
// group ids plus the capability set consulted by filesystem permission
// checks.
package auth

import (
	"context"
)

// KUID is a kernel user ID.
type KUID uint32

// KGID is a kernel group ID.
type KGID uint32

// RootKUID is the user ID of the superuser.
const RootKUID KUID = 0

// RootKGID is the group ID of the superuser's group.
const RootKGID KGID = 0

// NoID is a KUID or KGID guaranteed to not identify anything.
const NoID = ^uint32(0)

// A Capability represents the ability to perform a privileged operation.
// Values match the Linux capability numbering.
type Capability int

// Capabilities used by filesystem permission checking.
const (
	CAP_DAC_OVERRIDE    = Capability(1)
	CAP_DAC_READ_SEARCH = Capability(2)
	CAP_FOWNER          = Capability(3)
)

// Ok returns true if cp is a supported capability.
func (cp Capability) Ok() bool {
	return cp >= 0 && cp < 64
}

// A CapabilitySet is a set of Capabilities implemented as a bitset.
type CapabilitySet uint64

// AllCapabilities is a CapabilitySet containing all valid capabilities.
const AllCapabilities = CapabilitySet(^uint64(0))

// CapabilitySetOf returns a CapabilitySet containing only the given
// capability.
func CapabilitySetOf(cp Capability) CapabilitySet {
	return CapabilitySet(1) << uint(cp)
}

// Credentials contains information required to authorize privileged
// operations in a user namespace-free world: effective ids and the
// effective capability set.
type Credentials struct {
	// RealKUID is the real UID of the task.
	RealKUID KUID

	// EffectiveKUID is the effective UID of the task, used for permission
	// checks.
	EffectiveKUID KUID

	// RealKGID is the real GID of the task.
	RealKGID KGID

	// EffectiveKGID is the effective GID of the task, used for permission
	// checks.
	EffectiveKGID KGID

	// ExtraKGIDs are the supplementary groups of the task.
	ExtraKGIDs []KGID

	// EffectiveCaps is the effective capability set of the task.
	EffectiveCaps CapabilitySet
}

// NewAnonymousCredentials returns Credentials with no capabilities and no
// identity.
func NewAnonymousCredentials() *Credentials {
	return &Credentials{
		RealKUID:      KUID(NoID),
		EffectiveKUID: KUID(NoID),
		RealKGID:      KGID(NoID),
		EffectiveKGID: KGID(NoID),
	}
}

// NewRootCredentials returns Credentials with the superuser identity and all
// capabilities.
func NewRootCredentials() *Credentials {
	return &Credentials{
		RealKUID:      RootKUID,
		EffectiveKUID: RootKUID,
		RealKGID:      RootKGID,
		EffectiveKGID: RootKGID,
		EffectiveCaps: AllCapabilities,
	}
}

// NewUserCredentials returns Credentials for an unprivileged user.
func NewUserCredentials(kuid KUID, kgid KGID, extraKGIDs []KGID) *Credentials {
	return &Credentials{
		RealKUID:      kuid,
		EffectiveKUID: kuid,
		RealKGID:      kgid,
		EffectiveKGID: kgid,
		ExtraKGIDs:    extraKGIDs,
	}
}

// InGroup returns true if the task is a member of the given group.
func (c *Credentials) InGroup(kgid KGID) bool {
	if c.EffectiveKGID == kgid {
		return true
	}
	for _, extra := range c.ExtraKGIDs {
		if extra == kgid {
			return true
		}
	}
	return false
}

// HasCapability returns true if the task has the given capability.
func (c *Credentials) HasCapability(cp Capability) bool {
	if !cp.Ok() {
		return false
	}
	return c.EffectiveCaps&CapabilitySetOf(cp) != 0
}

// contextID is this package's type for context.Context.Value keys.
type contextID int

const (
	// ctxCredentials is the Credentials of the execution context.
	ctxCredentials contextID = iota
)

// ContextWithCredentials returns a copy of ctx carrying creds.
func ContextWithCredentials(ctx context.Context, creds *Credentials) context.Context {
	return context.WithValue(ctx, ctxCredentials, creds)
}

// CredentialsFromContext returns the Credentials of the execution context,
// or anonymous credentials if no Credentials are attached.
func CredentialsFromContext(ctx context.Context) *Credentials {
	if creds, ok := ctx.Value(ctxCredentials).(*Credentials); ok {
		return creds
	}
	return NewAnonymousCredentials()
}
