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

package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alexandremahdhaoui/vigil/internal/types"
)

func TestRestartPolicyValid(t *testing.T) {
	assert.True(t, types.RestartPolicyNever.Valid())
	assert.True(t, types.RestartPolicyOnFailure.Valid())
	assert.True(t, types.RestartPolicyAlways.Valid())
	assert.False(t, types.RestartPolicy("sometimes").Valid())
	assert.False(t, types.RestartPolicy("").Valid())
}

func TestHookEventValid(t *testing.T) {
	assert.True(t, types.HookOnFailure.Valid())
	assert.True(t, types.HookOnRestart.Valid())
	assert.False(t, types.HookEvent("on_boot").Valid())
}

func TestMonitoringConfigValidate(t *testing.T) {
	valid := types.MonitoringConfig{
		VMName:               "web-1",
		CheckIntervalSeconds: 60,
		RestartPolicy:        types.RestartPolicyOnFailure,
		SSHFailureThreshold:  3,
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("empty vm name", func(t *testing.T) {
		config := valid
		config.VMName = ""
		assert.Error(t, config.Validate())
	})

	t.Run("zero check interval", func(t *testing.T) {
		config := valid
		config.CheckIntervalSeconds = 0
		assert.Error(t, config.Validate())
	})

	t.Run("unknown restart policy", func(t *testing.T) {
		config := valid
		config.RestartPolicy = "eventually"
		assert.Error(t, config.Validate())
	})

	t.Run("on-failure requires threshold", func(t *testing.T) {
		config := valid
		config.SSHFailureThreshold = 0
		assert.Error(t, config.Validate())
	})

	t.Run("threshold not required for other policies", func(t *testing.T) {
		config := valid
		config.RestartPolicy = types.RestartPolicyNever
		config.SSHFailureThreshold = 0
		assert.NoError(t, config.Validate())
	})

	t.Run("negative cooldown", func(t *testing.T) {
		config := valid
		config.RestartCooldownSeconds = -1
		assert.Error(t, config.Validate())
	})

	t.Run("unknown hook event", func(t *testing.T) {
		config := valid
		config.Hooks = map[types.HookEvent]string{"on_boot": "/bin/true"}
		assert.Error(t, config.Validate())
	})

	t.Run("known hook events", func(t *testing.T) {
		config := valid
		config.Hooks = map[types.HookEvent]string{
			types.HookOnFailure: "/bin/true",
			types.HookOnRestart: "/bin/true",
		}
		assert.NoError(t, config.Validate())
	})
}
