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
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexandremahdhaoui/vigil/internal/types"
)

var enableCmd = &cobra.Command{
	Use:   "enable <vm-name>",
	Short: "Enable health monitoring for a VM",
	Long: `Enable health monitoring for a VM, persisting its restart policy,
failure threshold, and hooks.

Examples:
  # Restart web-1 after 3 consecutive SSH failures
  vigilctl enable web-1 --policy on-failure --threshold 3

  # Never restart, but run a script on every failure
  vigilctl enable db-1 --policy never --hook on_failure=/usr/local/bin/page-oncall.sh

  # Restart on any failure, notify afterwards
  vigilctl enable cache-1 --policy always --hook on_restart=/usr/local/bin/notify.sh`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vmName := args[0]

		policy, _ := cmd.Flags().GetString("policy")
		threshold, _ := cmd.Flags().GetInt("threshold")
		interval, _ := cmd.Flags().GetInt("interval")
		cooldown, _ := cmd.Flags().GetInt("cooldown")
		hookFlags, _ := cmd.Flags().GetStringArray("hook")
		sshUser, _ := cmd.Flags().GetString("ssh-user")
		sshPort, _ := cmd.Flags().GetInt("ssh-port")
		sshKey, _ := cmd.Flags().GetString("ssh-key")
		sshHost, _ := cmd.Flags().GetString("ssh-host")

		hooks, err := parseHookFlags(hookFlags)
		if err != nil {
			fail(err)
		}

		lifecycle, err := newLifecycleManager(setupLogger())
		if err != nil {
			fail(err)
		}

		config := types.MonitoringConfig{
			VMName:                 vmName,
			CheckIntervalSeconds:   interval,
			RestartPolicy:          types.RestartPolicy(policy),
			SSHFailureThreshold:    threshold,
			RestartCooldownSeconds: cooldown,
			Hooks:                  hooks,
			SSHUser:                sshUser,
			SSHPort:                sshPort,
			SSHKeyPath:             sshKey,
			SSHHost:                sshHost,
		}

		if err := lifecycle.EnableMonitoring(cmd.Context(), config); err != nil {
			fail(err)
		}

		fmt.Printf("Monitoring enabled for %s (policy=%s)\n", vmName, policy)
	},
}

func init() {
	enableCmd.Flags().String("policy", string(types.RestartPolicyOnFailure),
		"restart policy: never, on-failure, or always")
	enableCmd.Flags().Int("threshold", 3,
		"consecutive SSH failures before the on-failure policy restarts")
	enableCmd.Flags().Int("interval", 0,
		"seconds between health checks (0 uses the default)")
	enableCmd.Flags().Int("cooldown", 0,
		"minimum seconds between restarts (0 disables the cooldown)")
	enableCmd.Flags().StringArray("hook", nil,
		"hook in event=script form; events: on_failure, on_restart (repeatable)")
	enableCmd.Flags().String("ssh-user", "", "SSH user for connectivity checks")
	enableCmd.Flags().Int("ssh-port", 0, "SSH port on the guest")
	enableCmd.Flags().String("ssh-key", "", "path to the SSH private key")
	enableCmd.Flags().String("ssh-host", "", "override the guest address")
}

func parseHookFlags(flags []string) (map[types.HookEvent]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}

	hooks := make(map[types.HookEvent]string, len(flags))
	for _, flag := range flags {
		event, script, ok := strings.Cut(flag, "=")
		if !ok || script == "" {
			return nil, fmt.Errorf("invalid --hook %q, want event=script", flag)
		}
		hooks[types.HookEvent(event)] = script
	}

	return hooks, nil
}
