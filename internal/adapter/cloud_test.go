//go:build unit

// Copyright 2025 Alexandre Mahdhaoui
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

package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"libvirt.org/go/libvirt"

	"github.com/alexandremahdhaoui/vigil/internal/types"
)

func TestMapDomainState(t *testing.T) {
	for state, expected := range map[libvirt.DomainState]types.VMState{
		libvirt.DOMAIN_RUNNING:     types.VMStateRunning,
		libvirt.DOMAIN_SHUTOFF:     types.VMStateDeallocated,
		libvirt.DOMAIN_SHUTDOWN:    types.VMStateStopped,
		libvirt.DOMAIN_CRASHED:     types.VMStateStopped,
		libvirt.DOMAIN_PAUSED:      types.VMStateStopped,
		libvirt.DOMAIN_PMSUSPENDED: types.VMStateStopped,
		libvirt.DOMAIN_BLOCKED:     types.VMStateStopped,
		libvirt.DOMAIN_NOSTATE:     types.VMStateUnknown,
	} {
		assert.Equal(t, expected, mapDomainState(state), "state=%d", state)
	}
}

func TestMemoryToMiB(t *testing.T) {
	assert.Equal(t, uint(2048), memoryToMiB(2097152, "KiB"))
	assert.Equal(t, uint(2048), memoryToMiB(2097152, ""))
	assert.Equal(t, uint(512), memoryToMiB(512, "MiB"))
	assert.Equal(t, uint(4096), memoryToMiB(4, "GiB"))
	assert.Equal(t, uint(1), memoryToMiB(1048576, "bytes"))
	assert.Equal(t, uint(7), memoryToMiB(7, "parsecs"))
}
