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

package types

import (
	"errors"
	"fmt"
)

// ------------------------------------------------- RESTART POLICY ------------------------------------------------- //

// RestartPolicy governs whether accumulated failure evidence triggers an
// automatic restart of a VM.
type RestartPolicy string

const (
	// RestartPolicyNever disables automatic restarts regardless of evidence.
	RestartPolicyNever RestartPolicy = "never"
	// RestartPolicyOnFailure restarts once the consecutive SSH failure count
	// reaches the configured threshold.
	RestartPolicyOnFailure RestartPolicy = "on-failure"
	// RestartPolicyAlways restarts on any failure evidence.
	RestartPolicyAlways RestartPolicy = "always"
)

// Valid reports whether the policy is a known variant. Unknown variants are
// kept in the config as-is but are treated as "never" by the self healer.
func (p RestartPolicy) Valid() bool {
	switch p {
	case RestartPolicyNever, RestartPolicyOnFailure, RestartPolicyAlways:
		return true
	default:
		return false
	}
}

// --------------------------------------------------- HOOK EVENT --------------------------------------------------- //

// HookEvent names a lifecycle event a user-supplied hook script can be
// attached to.
type HookEvent string

const (
	// HookOnFailure fires whenever a health failure is handled.
	HookOnFailure HookEvent = "on_failure"
	// HookOnRestart fires after a restart call was accepted by the cloud API.
	HookOnRestart HookEvent = "on_restart"
)

// Valid reports whether the event is a known hook event.
func (e HookEvent) Valid() bool {
	return e == HookOnFailure || e == HookOnRestart
}

// ------------------------------------------------ MONITORING CONFIG ----------------------------------------------- //

var (
	errVMNameEmpty          = errors.New("vm name must not be empty")
	errCheckInterval        = errors.New("check interval must be at least 1 second")
	errSSHFailureThreshold  = errors.New("ssh failure threshold must be at least 1 for policy on-failure")
	errNegativeCooldown     = errors.New("restart cooldown must not be negative")
	errUnknownHookEvent     = errors.New("unknown hook event")
	errUnknownRestartPolicy = errors.New("unknown restart policy")
)

// MonitoringConfig is the durable per-VM monitoring configuration. It is
// created by LifecycleManager.EnableMonitoring and only mutated through the
// LifecycleManager; disabling is a soft flag, never a deletion.
type MonitoringConfig struct {
	// VMName is the name of the monitored VM.
	VMName string `json:"vmName"`
	// Enabled is the soft monitoring flag.
	Enabled bool `json:"enabled"`
	// CheckIntervalSeconds is the desired interval between health checks.
	CheckIntervalSeconds int `json:"checkIntervalSeconds"`
	// RestartPolicy governs automatic restarts.
	RestartPolicy RestartPolicy `json:"restartPolicy"`
	// SSHFailureThreshold is the minimum consecutive unreachable count
	// required before the on-failure policy restarts the VM.
	SSHFailureThreshold int `json:"sshFailureThreshold"`
	// RestartCooldownSeconds skips a restart when the previous accepted
	// restart is younger than the cooldown. Zero disables the cooldown.
	RestartCooldownSeconds int `json:"restartCooldownSeconds,omitempty"`

	// Hooks maps a hook event name to an executable script path.
	Hooks map[HookEvent]string `json:"hooks,omitempty"`

	// SSHUser is the user the SSH connectivity check authenticates as.
	SSHUser string `json:"sshUser,omitempty"`
	// SSHPort is the SSH port on the guest. Defaults to 22.
	SSHPort int `json:"sshPort,omitempty"`
	// SSHKeyPath is the path to the private key used for the SSH check.
	SSHKeyPath string `json:"sshKeyPath,omitempty"`
	// SSHHost optionally overrides the guest address. When empty the address
	// is resolved through the cloud provider.
	SSHHost string `json:"sshHost,omitempty"`
}

// Validate checks the config invariants enforced at enable time.
func (c MonitoringConfig) Validate() error {
	var errs []error

	if c.VMName == "" {
		errs = append(errs, errVMNameEmpty)
	}

	if c.CheckIntervalSeconds < 1 {
		errs = append(errs, errCheckInterval)
	}

	if !c.RestartPolicy.Valid() {
		errs = append(errs, fmt.Errorf("%q: %w", c.RestartPolicy, errUnknownRestartPolicy))
	}

	if c.RestartPolicy == RestartPolicyOnFailure && c.SSHFailureThreshold < 1 {
		errs = append(errs, errSSHFailureThreshold)
	}

	if c.RestartCooldownSeconds < 0 {
		errs = append(errs, errNegativeCooldown)
	}

	for event := range c.Hooks {
		if !event.Valid() {
			errs = append(errs, fmt.Errorf("%q: %w", event, errUnknownHookEvent))
		}
	}

	return errors.Join(errs...)
}
