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

package controller

import (
	"context"
	"errors"

	"github.com/go-logr/logr"

	"github.com/alexandremahdhaoui/vigil/internal/adapter"
	"github.com/alexandremahdhaoui/vigil/internal/types"
)

var errInvalidMonitoringConfig = errors.New("invalid monitoring config")

const (
	defaultCheckIntervalSeconds = 60
	defaultSSHPort              = 22
	defaultSSHUser              = "root"
)

// --------------------------------------------------- INTERFACE ---------------------------------------------------- //

// MonitoringStatus is the answer to a status query.
type MonitoringStatus struct {
	Enabled bool
	Config  types.MonitoringConfig
}

// LifecycleManager owns the durable per-VM monitoring configuration. All
// mutations go through it; disabling is a soft flag, never a deletion.
type LifecycleManager interface {
	// EnableMonitoring validates and persists the config with the enabled
	// flag set. Re-enabling overwrites any previous config for the VM.
	EnableMonitoring(ctx context.Context, config types.MonitoringConfig) error

	// DisableMonitoring clears the enabled flag, keeping the config.
	DisableMonitoring(ctx context.Context, vmName string) error

	// GetMonitoringStatus returns the enabled flag and the stored config.
	GetMonitoringStatus(ctx context.Context, vmName string) (MonitoringStatus, error)

	// ListMonitoredVMs returns the names of all VMs with a stored config,
	// enabled or not.
	ListMonitoredVMs(ctx context.Context) ([]string, error)
}

// --------------------------------------------- CONCRETE IMPLEMENTATION -------------------------------------------- //

// NewLifecycleManager returns a LifecycleManager backed by the given store.
func NewLifecycleManager(store adapter.ConfigStore, logger logr.Logger) LifecycleManager {
	return &lifecycleManager{
		store:  store,
		logger: logger.WithName("lifecycle"),
	}
}

type lifecycleManager struct {
	store  adapter.ConfigStore
	logger logr.Logger
}

func (m *lifecycleManager) EnableMonitoring(
	_ context.Context,
	config types.MonitoringConfig,
) error {
	config.Enabled = true
	applyConfigDefaults(&config)

	if err := config.Validate(); err != nil {
		return errors.Join(err, errInvalidMonitoringConfig)
	}

	if err := m.store.Put(config); err != nil {
		return err
	}

	m.logger.Info("monitoring enabled",
		"vmName", config.VMName,
		"restartPolicy", config.RestartPolicy,
		"sshFailureThreshold", config.SSHFailureThreshold,
		"checkIntervalSeconds", config.CheckIntervalSeconds)

	return nil
}

func (m *lifecycleManager) DisableMonitoring(_ context.Context, vmName string) error {
	config, err := m.store.Get(vmName)
	if err != nil {
		return err
	}

	config.Enabled = false
	if err := m.store.Put(config); err != nil {
		return err
	}

	m.logger.Info("monitoring disabled", "vmName", vmName)
	return nil
}

func (m *lifecycleManager) GetMonitoringStatus(
	_ context.Context,
	vmName string,
) (MonitoringStatus, error) {
	config, err := m.store.Get(vmName)
	if err != nil {
		return MonitoringStatus{}, err
	}

	return MonitoringStatus{Enabled: config.Enabled, Config: config}, nil
}

func (m *lifecycleManager) ListMonitoredVMs(_ context.Context) ([]string, error) {
	return m.store.List()
}

func applyConfigDefaults(config *types.MonitoringConfig) {
	if config.CheckIntervalSeconds == 0 {
		config.CheckIntervalSeconds = defaultCheckIntervalSeconds
	}
	if config.SSHPort == 0 {
		config.SSHPort = defaultSSHPort
	}
	if config.SSHUser == "" {
		config.SSHUser = defaultSSHUser
	}
}
