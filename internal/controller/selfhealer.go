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
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/alexandremahdhaoui/vigil/internal/adapter"
	"github.com/alexandremahdhaoui/vigil/internal/types"
)

const defaultRestartTimeout = 30 * time.Second

// --------------------------------------------------- INTERFACE ---------------------------------------------------- //

// SelfHealer turns a (restart policy, failure count) pair into a restart
// decision, executes it, and notifies hooks. Its entry point never fails: one
// misbehaving VM must not abort monitoring of others.
type SelfHealer interface {
	// ShouldRestart evaluates the VM's persisted restart policy against the
	// failure evidence. Any config read error fails safe and returns false.
	ShouldRestart(ctx context.Context, vmName string, failure types.HealthFailure) bool

	// RestartVM issues an accept-only restart call. Failures are reported in
	// the result, never raised. Concurrent calls for the same VM serialize on
	// a per-VM lock.
	RestartVM(ctx context.Context, vmName string) types.RestartResult

	// HandleFailure orchestrates decision, restart, and hooks. It recovers
	// from everything and only logs.
	HandleFailure(ctx context.Context, vmName string, failure types.HealthFailure)
}

// --------------------------------------------- CONCRETE IMPLEMENTATION -------------------------------------------- //

// HealerOption configures the self healer.
type HealerOption func(*selfHealer)

// WithRestartTimeout bounds the restart acceptance call. Defaults to 30s.
func WithRestartTimeout(timeout time.Duration) HealerOption {
	return func(h *selfHealer) {
		h.restartTimeout = timeout
	}
}

// NewSelfHealer returns a SelfHealer.
func NewSelfHealer(
	lifecycle LifecycleManager,
	cloud adapter.CloudProvider,
	hooks adapter.HookExecutor,
	logger logr.Logger,
	opts ...HealerOption,
) SelfHealer {
	h := &selfHealer{
		lifecycle:      lifecycle,
		cloud:          cloud,
		hooks:          hooks,
		logger:         logger.WithName("selfhealer"),
		restartLocks:   cmap.New[*sync.Mutex](),
		lastRestart:    cmap.New[time.Time](),
		restartTimeout: defaultRestartTimeout,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

type selfHealer struct {
	lifecycle LifecycleManager
	cloud     adapter.CloudProvider
	hooks     adapter.HookExecutor
	logger    logr.Logger

	// restartLocks serializes restart calls per VM; the cloud restart
	// operation is not documented to be idempotent under duplication.
	restartLocks cmap.ConcurrentMap[string, *sync.Mutex]
	lastRestart  cmap.ConcurrentMap[string, time.Time]

	restartTimeout time.Duration
}

func (h *selfHealer) ShouldRestart(
	ctx context.Context,
	vmName string,
	failure types.HealthFailure,
) bool {
	status, err := h.lifecycle.GetMonitoringStatus(ctx, vmName)
	if err != nil {
		// Fail open: without a readable policy the safe decision is to not
		// restart.
		h.logger.Error(err, "failed to read monitoring config, not restarting",
			"vmName", vmName)
		return false
	}

	if !status.Enabled {
		return false
	}

	switch status.Config.RestartPolicy {
	case types.RestartPolicyNever:
		return false
	case types.RestartPolicyAlways:
		return failure.FailureCount >= 1
	case types.RestartPolicyOnFailure:
		return failure.FailureCount >= status.Config.SSHFailureThreshold
	default:
		// Unknown policy variants never restart.
		h.logger.Info("unknown restart policy, not restarting",
			"vmName", vmName, "restartPolicy", status.Config.RestartPolicy)
		return false
	}
}

func (h *selfHealer) RestartVM(ctx context.Context, vmName string) types.RestartResult {
	lock := h.restartLock(vmName)
	lock.Lock()
	defer lock.Unlock()

	result := types.RestartResult{VMName: vmName, Timestamp: time.Now()}

	if cooldown := h.restartCooldown(ctx, vmName); cooldown > 0 {
		if last, ok := h.lastRestart.Get(vmName); ok && time.Since(last) < cooldown {
			result.ErrorMessage = "restart suppressed: previous restart within cooldown"
			h.logger.Info("restart suppressed by cooldown",
				"vmName", vmName, "lastRestart", last, "cooldown", cooldown.String())
			return result
		}
	}

	ctx, cancel := context.WithTimeout(ctx, h.restartTimeout)
	defer cancel()

	if err := h.cloud.RestartVM(ctx, vmName); err != nil {
		result.ErrorMessage = err.Error()
		vmRestartsTotal.WithLabelValues(resultLabel(false)).Inc()
		return result
	}

	result.Success = true
	result.Timestamp = time.Now()
	h.lastRestart.Set(vmName, result.Timestamp)
	vmRestartsTotal.WithLabelValues(resultLabel(true)).Inc()

	return result
}

func (h *selfHealer) HandleFailure(
	ctx context.Context,
	vmName string,
	failure types.HealthFailure,
) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Info("recovered panic while handling failure",
				"vmName", vmName, "panic", r)
		}
	}()

	h.logger.Info("handling health failure",
		"vmName", vmName,
		"failureCount", failure.FailureCount,
		"reason", failure.Reason)

	hooks := h.configuredHooks(ctx, vmName)
	hookCtx := map[string]string{
		"failure_count": strconv.Itoa(failure.FailureCount),
		"reason":        failure.Reason,
	}

	h.fireHook(ctx, types.HookOnFailure, hooks, vmName, hookCtx)

	if !h.ShouldRestart(ctx, vmName, failure) {
		return
	}

	result := h.RestartVM(ctx, vmName)
	if !result.Success {
		// Not retried here: the next scheduled health check re-evaluates
		// from scratch.
		h.logger.Error(nil, "restart failed",
			"vmName", vmName, "errorMessage", result.ErrorMessage)
		return
	}

	h.logger.Info("restart accepted", "vmName", vmName, "timestamp", result.Timestamp)
	h.fireHook(ctx, types.HookOnRestart, hooks, vmName, hookCtx)
}

// configuredHooks reads the VM's hook map; a read error only skips hooks.
func (h *selfHealer) configuredHooks(
	ctx context.Context,
	vmName string,
) map[types.HookEvent]string {
	status, err := h.lifecycle.GetMonitoringStatus(ctx, vmName)
	if err != nil {
		h.logger.V(1).Info("failed to read hook config",
			"vmName", vmName, "error", err.Error())
		return nil
	}

	return status.Config.Hooks
}

// fireHook executes the hook for event when one is configured. Hook failures
// are warnings; they never affect the healing pipeline.
func (h *selfHealer) fireHook(
	ctx context.Context,
	event types.HookEvent,
	hooks map[types.HookEvent]string,
	vmName string,
	hookCtx map[string]string,
) {
	scriptPath, ok := hooks[event]
	if !ok || scriptPath == "" {
		return
	}

	result := h.hooks.ExecuteHook(ctx, event, scriptPath, vmName, hookCtx)
	hookExecutionsTotal.WithLabelValues(string(event), resultLabel(result.Success)).Inc()

	if !result.Success {
		h.logger.Info("hook execution failed",
			"vmName", vmName,
			"event", event,
			"exitCode", result.ExitCode,
			"stderr", result.Stderr)
	}
}

func (h *selfHealer) restartLock(vmName string) *sync.Mutex {
	return h.restartLocks.Upsert(vmName, nil,
		func(exist bool, current, _ *sync.Mutex) *sync.Mutex {
			if exist {
				return current
			}
			return &sync.Mutex{}
		})
}

func (h *selfHealer) restartCooldown(ctx context.Context, vmName string) time.Duration {
	status, err := h.lifecycle.GetMonitoringStatus(ctx, vmName)
	if err != nil {
		return 0
	}

	return time.Duration(status.Config.RestartCooldownSeconds) * time.Second
}
