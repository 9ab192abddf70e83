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

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alexandremahdhaoui/vigil/internal/controller"
)

var checkCmd = &cobra.Command{
	Use:   "check <vm-name>",
	Short: "Run a one-shot health check against a VM",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vmName := args[0]
		ctx := cmd.Context()
		logger := setupLogger()

		lifecycle, err := newLifecycleManager(logger)
		if err != nil {
			fail(err)
		}

		cloud, err := newCloudProvider()
		if err != nil {
			fail(err)
		}
		defer func() { _ = cloud.Close() }()

		monitor := controller.NewHealthMonitor(
			cloud,
			newRemoteExec(logger),
			lifecycle,
			logger,
		)

		health, err := monitor.CheckVMHealth(ctx, vmName)
		if err != nil {
			fail(err)
		}

		reachable := color.GreenString("yes")
		if !health.SSHReachable {
			reachable = color.RedString("no")
		}

		fmt.Printf("VM:            %s\n", health.VMName)
		fmt.Printf("State:         %s\n", colorState(health.State))
		fmt.Printf("SSH reachable: %s\n", reachable)
		fmt.Printf("SSH failures:  %d\n", health.SSHFailures)
		fmt.Printf("Checked at:    %s\n", health.LastCheck.Format("2006-01-02 15:04:05"))

		if health.Metrics != nil {
			fmt.Printf("CPU:           %.1f%%\n", health.Metrics.CPUPercent)
			fmt.Printf("Memory:        %.1f%%\n", health.Metrics.MemoryPercent)
			fmt.Printf("Disk:          %.1f%%\n", health.Metrics.DiskPercent)
		}
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart <vm-name>",
	Short: "Request an asynchronous VM restart",
	Long: `Request a VM restart through the self healer. The command returns once
the restart is accepted; it does not wait for the VM to boot.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vmName := args[0]
		ctx := cmd.Context()
		logger := setupLogger()

		lifecycle, err := newLifecycleManager(logger)
		if err != nil {
			fail(err)
		}

		cloud, err := newCloudProvider()
		if err != nil {
			fail(err)
		}
		defer func() { _ = cloud.Close() }()

		healer := controller.NewSelfHealer(
			lifecycle,
			cloud,
			newHookExecutor(logger),
			logger,
		)

		result := healer.RestartVM(ctx, vmName)
		if !result.Success {
			fail(fmt.Errorf("restart not accepted: %s", result.ErrorMessage))
		}

		fmt.Printf("Restart accepted for %s at %s\n",
			vmName, result.Timestamp.Format("2006-01-02 15:04:05"))
	},
}
