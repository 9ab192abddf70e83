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

import "time"

// ---------------------------------------------------- VM STATE ---------------------------------------------------- //

// VMState is the cloud-reported power state of a VM.
type VMState string

const (
	VMStateRunning     VMState = "RUNNING"
	VMStateStopped     VMState = "STOPPED"
	VMStateDeallocated VMState = "DEALLOCATED"
	VMStateUnknown     VMState = "UNKNOWN"
)

// -------------------------------------------------- HEALTH STATUS ------------------------------------------------- //

// VMMetrics is a best-effort resource snapshot fetched from a reachable VM.
type VMMetrics struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	DiskPercent   float64 `json:"diskPercent"`
}

// HealthStatus is a transient per-check snapshot. It is created fresh on
// every check and never persisted; only the SSHFailures counter outlives the
// call, inside the HealthMonitor.
type HealthStatus struct {
	// VMName is the name of the checked VM.
	VMName string `json:"vmName"`
	// State is the cloud-reported power state at check time.
	State VMState `json:"state"`
	// SSHReachable is true iff the VM was RUNNING and the bounded SSH
	// connectivity check succeeded.
	SSHReachable bool `json:"sshReachable"`
	// SSHFailures is the consecutive SSH failure count for this VM. It resets
	// to 0 on any success and is untouched while the VM is not RUNNING.
	SSHFailures int `json:"sshFailures"`
	// LastCheck is the time the result was produced.
	LastCheck time.Time `json:"lastCheck"`
	// Metrics is nil whenever the VM was unreachable or the fetch failed.
	Metrics *VMMetrics `json:"metrics,omitempty"`
}

// ----------------------------------------------------- EVENTS ----------------------------------------------------- //

// HealthFailure is the event the scheduler constructs from a failing
// HealthStatus and hands to the SelfHealer.
type HealthFailure struct {
	VMName       string `json:"vmName"`
	FailureCount int    `json:"failureCount"`
	Reason       string `json:"reason"`
}

// RestartResult reports the outcome of a restart call. Restart failures are
// data, never errors.
type RestartResult struct {
	Success      bool      `json:"success"`
	VMName       string    `json:"vmName"`
	Timestamp    time.Time `json:"timestamp"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// HookResult reports the outcome of a hook script invocation.
type HookResult struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}
