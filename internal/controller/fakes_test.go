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

package controller_test

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/alexandremahdhaoui/vigil/internal/adapter"
	"github.com/alexandremahdhaoui/vigil/internal/controller"
	"github.com/alexandremahdhaoui/vigil/internal/types"
)

// ------------------------------------------------- CLOUD PROVIDER ------------------------------------------------- //

type fakeCloud struct {
	mu sync.Mutex

	states     map[string]types.VMState
	stateErr   error
	addresses  map[string]string
	addressErr error
	restartErr error

	restartCalls []string
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		states:    map[string]types.VMState{},
		addresses: map[string]string{},
	}
}

func (c *fakeCloud) GetVMState(_ context.Context, vmName string) (types.VMState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateErr != nil {
		return types.VMStateUnknown, c.stateErr
	}

	state, ok := c.states[vmName]
	if !ok {
		return types.VMStateUnknown, adapter.ErrVMNotFound
	}
	return state, nil
}

func (c *fakeCloud) RestartVM(_ context.Context, vmName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.restartCalls = append(c.restartCalls, vmName)
	return c.restartErr
}

func (c *fakeCloud) GetVMAddress(_ context.Context, vmName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.addressErr != nil {
		return "", c.addressErr
	}
	return c.addresses[vmName], nil
}

func (c *fakeCloud) DescribeVM(_ context.Context, vmName string) (adapter.VMDetails, error) {
	return adapter.VMDetails{Name: vmName}, nil
}

func (c *fakeCloud) Close() error { return nil }

func (c *fakeCloud) restartCount(vmName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, name := range c.restartCalls {
		if name == vmName {
			n++
		}
	}
	return n
}

// -------------------------------------------------- REMOTE EXEC --------------------------------------------------- //

type fakeRemoteExec struct {
	mu sync.Mutex

	reachable  map[string]bool
	metrics    *types.VMMetrics
	metricsErr error

	connectivityCalls []string
}

func newFakeRemoteExec() *fakeRemoteExec {
	return &fakeRemoteExec{reachable: map[string]bool{}}
}

func (e *fakeRemoteExec) CheckConnectivity(
	_ context.Context,
	target adapter.Target,
	_ time.Duration,
) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.connectivityCalls = append(e.connectivityCalls, target.Host)
	return e.reachable[target.Host]
}

func (e *fakeRemoteExec) FetchMetrics(
	_ context.Context,
	_ adapter.Target,
) (*types.VMMetrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.metrics, e.metricsErr
}

func (e *fakeRemoteExec) connectivityCallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.connectivityCalls)
}

// ------------------------------------------------- HOOK EXECUTOR -------------------------------------------------- //

type hookCall struct {
	Event      types.HookEvent
	ScriptPath string
	VMName     string
	HookCtx    map[string]string
}

type fakeHookExecutor struct {
	mu sync.Mutex

	result types.HookResult
	panics bool

	calls []hookCall
}

func newFakeHookExecutor() *fakeHookExecutor {
	return &fakeHookExecutor{result: types.HookResult{Success: true}}
}

func (e *fakeHookExecutor) ExecuteHook(
	_ context.Context,
	event types.HookEvent,
	scriptPath string,
	vmName string,
	hookCtx map[string]string,
) types.HookResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.panics {
		panic("hook executor blew up")
	}

	e.calls = append(e.calls, hookCall{
		Event:      event,
		ScriptPath: scriptPath,
		VMName:     vmName,
		HookCtx:    hookCtx,
	})

	return e.result
}

func (e *fakeHookExecutor) callsFor(event types.HookEvent) []hookCall {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []hookCall
	for _, call := range e.calls {
		if call.Event == event {
			out = append(out, call)
		}
	}
	return out
}

// ------------------------------------------------ LIFECYCLE MANAGER ------------------------------------------------ //

// fakeLifecycle returns canned statuses; used where a config read error must
// be simulated.
type fakeLifecycle struct {
	status controller.MonitoringStatus
	err    error
}

func (l *fakeLifecycle) EnableMonitoring(_ context.Context, _ types.MonitoringConfig) error {
	return l.err
}

func (l *fakeLifecycle) DisableMonitoring(_ context.Context, _ string) error {
	return l.err
}

func (l *fakeLifecycle) GetMonitoringStatus(
	_ context.Context,
	_ string,
) (controller.MonitoringStatus, error) {
	return l.status, l.err
}

func (l *fakeLifecycle) ListMonitoredVMs(_ context.Context) ([]string, error) {
	return nil, l.err
}

// --------------------------------------------------- TEST WIRING -------------------------------------------------- //

// enabledConfig is a valid enabled monitoring config for vmName.
func enabledConfig(vmName string) types.MonitoringConfig {
	return types.MonitoringConfig{
		VMName:               vmName,
		Enabled:              true,
		CheckIntervalSeconds: 60,
		RestartPolicy:        types.RestartPolicyOnFailure,
		SSHFailureThreshold:  3,
		SSHUser:              "root",
		SSHPort:              22,
	}
}

func discard() logr.Logger { return logr.Discard() }
