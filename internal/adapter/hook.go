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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/alexandremahdhaoui/vigil/internal/types"
)

const (
	defaultHookTimeout = 30 * time.Second

	hookEnvPrefix = "VIGIL_"
)

// --------------------------------------------------- INTERFACE ---------------------------------------------------- //

// HookExecutor runs a user-supplied hook script with event context. Scripts
// stay external subprocesses: they are never loaded into the process, their
// execution is bounded by a timeout, and their output is captured. Execution
// failures are data, never errors.
type HookExecutor interface {
	ExecuteHook(
		ctx context.Context,
		event types.HookEvent,
		scriptPath string,
		vmName string,
		hookCtx map[string]string,
	) types.HookResult
}

// ----------------------------------------------- SCRIPT IMPLEMENTATION -------------------------------------------- //

// HookOption configures the script hook executor.
type HookOption func(*scriptHookExecutor)

// WithHookTimeout bounds hook script execution. Defaults to 30s.
func WithHookTimeout(timeout time.Duration) HookOption {
	return func(e *scriptHookExecutor) {
		e.timeout = timeout
	}
}

// NewScriptHookExecutor returns a HookExecutor invoking scripts directly.
func NewScriptHookExecutor(logger logr.Logger, opts ...HookOption) HookExecutor {
	e := &scriptHookExecutor{
		logger:  logger.WithName("hooks"),
		timeout: defaultHookTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

type scriptHookExecutor struct {
	logger  logr.Logger
	timeout time.Duration
}

func (e *scriptHookExecutor) ExecuteHook(
	ctx context.Context,
	event types.HookEvent,
	scriptPath string,
	vmName string,
	hookCtx map[string]string,
) types.HookResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	eventID := uuid.NewString()

	cmd := exec.CommandContext(ctx, scriptPath)
	cmd.Env = append(os.Environ(), hookEnv(event, vmName, eventID, hookCtx)...)
	// A background child inheriting the output pipes would otherwise make
	// Run wait for the pipes long after the script itself exited.
	cmd.WaitDelay = e.timeout

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := types.HookResult{
		Success: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	switch {
	case err == nil:
		e.logger.V(1).Info("hook succeeded",
			"event", event, "vmName", vmName, "eventID", eventID, "script", scriptPath)
	case errors.Is(err, exec.ErrWaitDelay):
		// The script exited cleanly; only stragglers kept the pipes open.
		result.Success = true
		e.logger.V(1).Info("hook succeeded, output pipe abandoned",
			"event", event, "vmName", vmName, "eventID", eventID, "script", scriptPath)
	case ctx.Err() != nil:
		result.ExitCode = -1
		e.logger.Info("hook timed out",
			"event", event, "vmName", vmName, "eventID", eventID,
			"script", scriptPath, "timeout", e.timeout.String())
	default:
		result.ExitCode = exitCode(err)
		e.logger.Info("hook failed",
			"event", event, "vmName", vmName, "eventID", eventID,
			"script", scriptPath, "exitCode", result.ExitCode, "error", err.Error())
	}

	return result
}

// hookEnv renders the event context as VIGIL_* environment variables. Context
// keys are upper-cased and prefixed with VIGIL_CTX_.
func hookEnv(
	event types.HookEvent,
	vmName, eventID string,
	hookCtx map[string]string,
) []string {
	env := []string{
		fmt.Sprintf("%sHOOK=%s", hookEnvPrefix, event),
		fmt.Sprintf("%sVM_NAME=%s", hookEnvPrefix, vmName),
		fmt.Sprintf("%sEVENT_ID=%s", hookEnvPrefix, eventID),
	}

	keys := make([]string, 0, len(hookCtx))
	for key := range hookCtx {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		env = append(env, fmt.Sprintf("%sCTX_%s=%s",
			hookEnvPrefix, strings.ToUpper(key), hookCtx[key]))
	}

	return env
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
