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

package main

import (
	"fmt"
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	maxGoroutines       = 500
	maxHostDiskPercent  = 95.0
	maxHostMemPercent   = 98.0
	hostDiskProbedMount = "/"
)

// setupProbesServer creates an HTTP server for liveness and readiness probes.
// Readiness includes host resource pressure: a hypervisor host that is out of
// disk or memory cannot be trusted to assess its guests.
func setupProbesServer(config *Config) *http.Server {
	health := healthcheck.NewHandler()

	health.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(maxGoroutines))
	health.AddReadinessCheck("host-disk", hostDiskCheck(hostDiskProbedMount, maxHostDiskPercent))
	health.AddReadinessCheck("host-memory", hostMemoryCheck(maxHostMemPercent))

	return &http.Server{ //nolint:exhaustruct
		Addr:    config.ProbesBind,
		Handler: health,
	}
}

func hostDiskCheck(mount string, maxUsedPercent float64) healthcheck.Check {
	return func() error {
		usage, err := disk.Usage(mount)
		if err != nil {
			return fmt.Errorf("reading disk usage for %s: %w", mount, err)
		}

		if usage.UsedPercent > maxUsedPercent {
			return fmt.Errorf("disk usage %.1f%% on %s exceeds %.1f%%",
				usage.UsedPercent, mount, maxUsedPercent)
		}

		return nil
	}
}

func hostMemoryCheck(maxUsedPercent float64) healthcheck.Check {
	return func() error {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return fmt.Errorf("reading memory usage: %w", err)
		}

		if vm.UsedPercent > maxUsedPercent {
			return fmt.Errorf("memory usage %.1f%% exceeds %.1f%%",
				vm.UsedPercent, maxUsedPercent)
		}

		return nil
	}
}
