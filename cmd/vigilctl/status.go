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

	"github.com/alexandremahdhaoui/vigil/internal/types"
)

var disableCmd = &cobra.Command{
	Use:   "disable <vm-name>",
	Short: "Disable health monitoring for a VM",
	Long: `Disable health monitoring for a VM. The stored configuration is kept
and can be re-enabled later.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vmName := args[0]

		lifecycle, err := newLifecycleManager(setupLogger())
		if err != nil {
			fail(err)
		}

		if err := lifecycle.DisableMonitoring(cmd.Context(), vmName); err != nil {
			fail(err)
		}

		fmt.Printf("Monitoring disabled for %s\n", vmName)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <vm-name>",
	Short: "Show monitoring status and VM details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vmName := args[0]
		ctx := cmd.Context()

		lifecycle, err := newLifecycleManager(setupLogger())
		if err != nil {
			fail(err)
		}

		status, err := lifecycle.GetMonitoringStatus(ctx, vmName)
		if err != nil {
			fail(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		enabled := green("enabled")
		if !status.Enabled {
			enabled = yellow("disabled")
		}

		fmt.Printf("VM:               %s\n", vmName)
		fmt.Printf("Monitoring:       %s\n", enabled)
		fmt.Printf("Restart policy:   %s\n", status.Config.RestartPolicy)
		if status.Config.RestartPolicy == types.RestartPolicyOnFailure {
			fmt.Printf("SSH threshold:    %d\n", status.Config.SSHFailureThreshold)
		}
		fmt.Printf("Check interval:   %ds\n", status.Config.CheckIntervalSeconds)
		if status.Config.RestartCooldownSeconds > 0 {
			fmt.Printf("Restart cooldown: %ds\n", status.Config.RestartCooldownSeconds)
		}
		for event, script := range status.Config.Hooks {
			fmt.Printf("Hook %-12s %s\n", string(event)+":", script)
		}

		// VM details are best effort: the config is useful even when libvirt
		// is unreachable from this host.
		cloud, err := newCloudProvider()
		if err != nil {
			fmt.Printf("VM details:       unavailable (%v)\n", err)
			return
		}
		defer func() { _ = cloud.Close() }()

		state, err := cloud.GetVMState(ctx, vmName)
		if err != nil {
			fmt.Printf("VM state:         unavailable (%v)\n", err)
			return
		}
		fmt.Printf("VM state:         %s\n", colorState(state))

		if details, err := cloud.DescribeVM(ctx, vmName); err == nil {
			fmt.Printf("UUID:             %s\n", details.UUID)
			fmt.Printf("Memory:           %d MiB\n", details.MemoryMB)
			fmt.Printf("vCPUs:            %d\n", details.VCPUs)
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all VMs with a monitoring config",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		lifecycle, err := newLifecycleManager(setupLogger())
		if err != nil {
			fail(err)
		}

		vms, err := lifecycle.ListMonitoredVMs(ctx)
		if err != nil {
			fail(err)
		}

		if len(vms) == 0 {
			fmt.Println("No monitored VMs.")
			return
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		for _, vmName := range vms {
			status, err := lifecycle.GetMonitoringStatus(ctx, vmName)
			if err != nil {
				fmt.Printf("%-30s (unreadable: %v)\n", vmName, err)
				continue
			}

			enabled := green("enabled")
			if !status.Enabled {
				enabled = yellow("disabled")
			}

			fmt.Printf("%-30s %-10s policy=%s\n", vmName, enabled, status.Config.RestartPolicy)
		}
	},
}

func colorState(state types.VMState) string {
	switch state {
	case types.VMStateRunning:
		return color.GreenString(string(state))
	case types.VMStateUnknown:
		return color.YellowString(string(state))
	default:
		return color.RedString(string(state))
	}
}
