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
	"time"

	"github.com/go-logr/logr"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/alexandremahdhaoui/vigil/internal/adapter"
	"github.com/alexandremahdhaoui/vigil/internal/types"
)

// ErrHealthCheck indicates the VM's existence or power state could not be
// determined. It is the only error CheckVMHealth propagates: data-plane
// failures (SSH, metrics) are represented in the HealthStatus instead.
var ErrHealthCheck = errors.New("health check failed")

const (
	defaultSSHTimeout     = 10 * time.Second
	defaultMetricsTimeout = 15 * time.Second
)

// --------------------------------------------------- INTERFACE ---------------------------------------------------- //

// HealthMonitor performs one health check per invocation and owns the per-VM
// consecutive-failure counters.
type HealthMonitor interface {
	// CheckVMHealth produces a fresh HealthStatus for the VM. It fails only
	// when the VM's existence or power state cannot be determined.
	CheckVMHealth(ctx context.Context, vmName string) (types.HealthStatus, error)

	// GetVMState is a thin passthrough to the cloud provider, wrapping any
	// error as an ErrHealthCheck.
	GetVMState(ctx context.Context, vmName string) (types.VMState, error)

	// CheckSSHConnectivity reports guest reachability within timeout. Errors
	// are swallowed and yield false.
	CheckSSHConnectivity(ctx context.Context, vmName string, timeout time.Duration) bool

	// GetMetrics fetches best-effort resource metrics. Any failure yields
	// nil; absence of metrics is a normal, expected state.
	GetMetrics(ctx context.Context, vmName string) *types.VMMetrics

	// Forget drops the failure counter and the per-VM metric series of a VM
	// that is no longer monitored.
	Forget(vmName string)
}

// --------------------------------------------- CONCRETE IMPLEMENTATION -------------------------------------------- //

// MonitorOption configures the health monitor.
type MonitorOption func(*healthMonitor)

// WithSSHTimeout bounds the SSH connectivity check. Defaults to 10s.
func WithSSHTimeout(timeout time.Duration) MonitorOption {
	return func(m *healthMonitor) {
		m.sshTimeout = timeout
	}
}

// WithMetricsTimeout bounds the metrics fetch. Defaults to 15s.
func WithMetricsTimeout(timeout time.Duration) MonitorOption {
	return func(m *healthMonitor) {
		m.metricsTimeout = timeout
	}
}

// NewHealthMonitor returns a HealthMonitor. The lifecycle manager supplies
// the per-VM SSH settings; the failure counters live in memory, keyed
// strictly by VM name.
func NewHealthMonitor(
	cloud adapter.CloudProvider,
	exec adapter.RemoteExec,
	lifecycle LifecycleManager,
	logger logr.Logger,
	opts ...MonitorOption,
) HealthMonitor {
	m := &healthMonitor{
		cloud:          cloud,
		exec:           exec,
		lifecycle:      lifecycle,
		logger:         logger.WithName("healthmonitor"),
		counters:       cmap.New[int](),
		sshTimeout:     defaultSSHTimeout,
		metricsTimeout: defaultMetricsTimeout,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

type healthMonitor struct {
	cloud     adapter.CloudProvider
	exec      adapter.RemoteExec
	lifecycle LifecycleManager
	logger    logr.Logger

	// counters holds the consecutive SSH failure count per VM name. The map
	// is sharded per key, so checks for distinct VMs never contend.
	counters cmap.ConcurrentMap[string, int]

	sshTimeout     time.Duration
	metricsTimeout time.Duration
}

func (m *healthMonitor) CheckVMHealth(
	ctx context.Context,
	vmName string,
) (types.HealthStatus, error) {
	state, err := m.GetVMState(ctx, vmName)
	if err != nil {
		healthChecksTotal.WithLabelValues(checkResultError).Inc()
		return types.HealthStatus{}, err
	}

	status := types.HealthStatus{
		VMName:      vmName,
		State:       state,
		SSHFailures: m.failureCount(vmName),
	}

	if state != types.VMStateRunning {
		// No SSH attempt is made against a VM that is not running, and the
		// failure counter stays untouched.
		status.LastCheck = time.Now()
		healthChecksTotal.WithLabelValues(checkResultNotRunning).Inc()
		m.logger.V(1).Info("VM not running, skipping SSH check",
			"vmName", vmName, "state", state)

		return status, nil
	}

	target, targetErr := m.resolveTarget(ctx, vmName)

	reachable := false
	if targetErr != nil {
		// An unresolvable guest address is a data-plane failure, exactly
		// like a refused connection.
		m.logger.V(1).Info("failed to resolve SSH target",
			"vmName", vmName, "error", targetErr.Error())
	} else {
		reachable = m.exec.CheckConnectivity(ctx, target, m.sshTimeout)
	}

	if reachable {
		m.counters.Set(vmName, 0)
		status.SSHReachable = true
		status.SSHFailures = 0
		status.Metrics = m.fetchMetrics(ctx, vmName, target)
		healthChecksTotal.WithLabelValues(checkResultHealthy).Inc()
	} else {
		status.SSHFailures = m.counters.Upsert(vmName, 1,
			func(exist bool, current, inc int) int {
				if exist {
					return current + inc
				}
				return inc
			})
		healthChecksTotal.WithLabelValues(checkResultSSHUnreachable).Inc()
		m.logger.Info("VM unreachable over SSH",
			"vmName", vmName, "sshFailures", status.SSHFailures)
	}

	sshFailureStreak.WithLabelValues(vmName).Set(float64(status.SSHFailures))
	status.LastCheck = time.Now()

	return status, nil
}

func (m *healthMonitor) GetVMState(ctx context.Context, vmName string) (types.VMState, error) {
	state, err := m.cloud.GetVMState(ctx, vmName)
	if err != nil {
		return types.VMStateUnknown, errors.Join(err, ErrHealthCheck)
	}

	return state, nil
}

func (m *healthMonitor) CheckSSHConnectivity(
	ctx context.Context,
	vmName string,
	timeout time.Duration,
) bool {
	target, err := m.resolveTarget(ctx, vmName)
	if err != nil {
		return false
	}

	return m.exec.CheckConnectivity(ctx, target, timeout)
}

func (m *healthMonitor) GetMetrics(ctx context.Context, vmName string) *types.VMMetrics {
	target, err := m.resolveTarget(ctx, vmName)
	if err != nil {
		return nil
	}

	return m.fetchMetrics(ctx, vmName, target)
}

func (m *healthMonitor) Forget(vmName string) {
	m.counters.Remove(vmName)
	sshFailureStreak.DeleteLabelValues(vmName)
}

func (m *healthMonitor) fetchMetrics(
	ctx context.Context,
	vmName string,
	target adapter.Target,
) *types.VMMetrics {
	ctx, cancel := context.WithTimeout(ctx, m.metricsTimeout)
	defer cancel()

	metrics, err := m.exec.FetchMetrics(ctx, target)
	if err != nil {
		m.logger.V(1).Info("metrics fetch failed", "vmName", vmName, "error", err.Error())
		return nil
	}

	return metrics
}

// resolveTarget combines the stored SSH settings with the provider's address
// lookup. The SSHHost override wins when set.
func (m *healthMonitor) resolveTarget(
	ctx context.Context,
	vmName string,
) (adapter.Target, error) {
	target := adapter.Target{
		Port: defaultSSHPort,
		User: defaultSSHUser,
	}

	status, err := m.lifecycle.GetMonitoringStatus(ctx, vmName)
	if err == nil {
		config := status.Config
		if config.SSHPort != 0 {
			target.Port = config.SSHPort
		}
		if config.SSHUser != "" {
			target.User = config.SSHUser
		}
		target.KeyPath = config.SSHKeyPath
		target.Host = config.SSHHost
	}

	if target.Host == "" {
		host, err := m.cloud.GetVMAddress(ctx, vmName)
		if err != nil {
			return adapter.Target{}, err
		}
		target.Host = host
	}

	return target, nil
}

func (m *healthMonitor) failureCount(vmName string) int {
	count, _ := m.counters.Get(vmName)
	return count
}
