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

// Package device defines virtual kernel devices and inode number
// allocation for them.
package device

import (
	"sync"
	"sync/atomic"
)

// Registry tracks all simple devices on the system.
type Registry struct {
	// lastAnonDeviceMinor is the last minor device number used for an
	// anonymous device.
	lastAnonDeviceMinor atomic.Uint64

	// mu protects devices.
	mu sync.Mutex

	devices map[ID]*Device
}

// SimpleDevices is the system-wide simple device registry.
var SimpleDevices = newRegistry()

func newRegistry() *Registry {
	return &Registry{
		devices: make(map[ID]*Device),
	}
}

// newAnonID assigns a major and minor number to an anonymous device ID.
// Anon devices always have a major number of 0.
func (r *Registry) newAnonID() ID {
	return ID{
		Major: 0,
		Minor: r.lastAnonDeviceMinor.Add(1),
	}
}

// newAnonDevice allocates a new anonymous device with a unique minor device
// number, and registers it with r.
func (r *Registry) newAnonDevice() *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &Device{
		ID: r.newAnonID(),
	}
	r.devices[d.ID] = d
	return d
}

// ID identifies a device.
type ID struct {
	Major uint64
	Minor uint64
}

// DeviceID formats a major and minor device number into a standard device
// number, with the same bit layout the Linux kernel uses.
func (i *ID) DeviceID() uint64 {
	minor := uint32(i.Minor)
	return (i.Major & 0xfff << 8) | uint64(minor&0xff) | uint64(minor&0xfff00)<<12
}

// NewAnonDevice creates a new anonymous device. Packages that require an
// anonymous device should initialize the device in a global variable in a
// file called device.go:
//
//	var myDevice = device.NewAnonDevice()
func NewAnonDevice() *Device {
	return SimpleDevices.newAnonDevice()
}

// Device is a simple virtual kernel device.
type Device struct {
	ID

	// last is the last generated inode number.
	last atomic.Uint64
}

// NextIno generates a new inode number.
func (d *Device) NextIno() uint64 {
	return d.last.Add(1)
}
