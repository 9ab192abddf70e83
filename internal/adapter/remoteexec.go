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
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/alexandremahdhaoui/vigil/internal/types"
	"github.com/alexandremahdhaoui/vigil/internal/util/ssh"
)

var (
	errMetricsProbe       = errors.New("metrics probe failed")
	errMetricsProbeOutput = errors.New("unexpected metrics probe output")
)

// metricsProbe emits four lines: cpu count, 1-minute load average, memory
// usage percent, and root filesystem usage percent.
const metricsProbe = `nproc; cut -d' ' -f1 /proc/loadavg; free -b | awk '/^Mem:/{printf "%.2f\n", $3/$2*100}'; df -P / | awk 'NR==2{sub("%","",$5); print $5}'`

// --------------------------------------------------- INTERFACE ---------------------------------------------------- //

// Target describes the SSH endpoint of a monitored guest.
type Target struct {
	Host    string
	Port    int
	User    string
	KeyPath string
}

// RemoteExec is the data-plane collaborator: it probes guest reachability and
// fetches best-effort resource metrics over SSH.
type RemoteExec interface {
	// CheckConnectivity reports whether the guest accepts an SSH connection
	// within timeout. Any dial, auth, or timeout error yields false; it never
	// returns an error.
	CheckConnectivity(ctx context.Context, target Target, timeout time.Duration) bool

	// FetchMetrics runs the metrics probe on the guest. Callers treat any
	// error as "no metrics available".
	FetchMetrics(ctx context.Context, target Target) (*types.VMMetrics, error)
}

// ------------------------------------------------ SSH IMPLEMENTATION ---------------------------------------------- //

// NewSSHRemoteExec returns a RemoteExec that dials the guest over SSH.
func NewSSHRemoteExec(logger logr.Logger) RemoteExec {
	return &sshRemoteExec{
		logger:    logger.WithName("remoteexec"),
		newRunner: defaultRunnerFactory,
	}
}

// runnerFactory builds a Runner for a target; swapped out in tests.
type runnerFactory func(target Target) (ssh.Runner, error)

func defaultRunnerFactory(target Target) (ssh.Runner, error) {
	return ssh.NewClient(target.Host, target.User, target.KeyPath, strconv.Itoa(target.Port))
}

type sshRemoteExec struct {
	logger    logr.Logger
	newRunner runnerFactory
}

func (e *sshRemoteExec) CheckConnectivity(
	ctx context.Context,
	target Target,
	timeout time.Duration,
) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runner, err := e.newRunner(target)
	if err != nil {
		e.logger.V(1).Info("ssh client setup failed", "host", target.Host, "error", err.Error())
		return false
	}

	if err := runner.Ping(ctx); err != nil {
		e.logger.V(1).Info("ssh connectivity check failed", "host", target.Host, "error", err.Error())
		return false
	}

	return true
}

func (e *sshRemoteExec) FetchMetrics(
	ctx context.Context,
	target Target,
) (*types.VMMetrics, error) {
	runner, err := e.newRunner(target)
	if err != nil {
		return nil, errors.Join(err, errMetricsProbe)
	}

	stdout, stderr, err := runner.Run(ctx, metricsProbe)
	if err != nil {
		return nil, errors.Join(err, fmt.Errorf("stderr: %s", stderr), errMetricsProbe)
	}

	return parseMetricsProbe(stdout)
}

// parseMetricsProbe parses the four-line probe output into a metrics
// snapshot. CPU usage is the 1-minute load average normalized by CPU count.
func parseMetricsProbe(stdout string) (*types.VMMetrics, error) {
	fields := strings.Fields(stdout)
	if len(fields) != 4 {
		return nil, errors.Join(
			fmt.Errorf("got %d fields, want 4: %q", len(fields), stdout),
			errMetricsProbeOutput,
		)
	}

	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Join(err, errMetricsProbeOutput)
		}
		values[i] = v
	}

	cpus, load, memPercent, diskPercent := values[0], values[1], values[2], values[3]
	if cpus < 1 {
		return nil, errors.Join(fmt.Errorf("cpu count %v", cpus), errMetricsProbeOutput)
	}

	cpuPercent := load / cpus * 100
	if cpuPercent > 100 {
		cpuPercent = 100
	}

	return &types.VMMetrics{
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DiskPercent:   diskPercent,
	}, nil
}
