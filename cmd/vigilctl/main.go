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
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/alexandremahdhaoui/vigil/internal/adapter"
	"github.com/alexandremahdhaoui/vigil/internal/controller"
	"github.com/alexandremahdhaoui/vigil/internal/util/logging"
)

var (
	storeDir   string
	libvirtURI string
	devMode    bool
)

var rootCmd = &cobra.Command{
	Use:   "vigilctl",
	Short: "Manage VM health monitoring and self-healing",
	Long: `vigilctl manages the per-VM monitoring configuration consumed by vigild
and runs one-shot health checks and restarts against libvirt.

The configuration store is a plain directory: vigilctl and vigild can point at
the same --store-dir from different processes.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&storeDir, "store-dir",
		defaultStoreDir(), "directory holding the per-VM monitoring configs")
	rootCmd.PersistentFlags().StringVar(&libvirtURI, "libvirt-uri",
		"", "libvirt connection URI (defaults to qemu:///system)")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "development logging")

	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(restartCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultStoreDir() string {
	if dir := os.Getenv("VIGIL_STORE_DIR"); dir != "" {
		return dir
	}
	return "/var/lib/vigil/monitoring"
}

// setupLogger builds the logr logger CLI commands hand to the core.
func setupLogger() logr.Logger {
	opts := logging.DefaultOptions()
	opts.Development = devMode
	return logging.Setup(opts).WithName("vigilctl")
}

// newLifecycleManager opens the store; it never needs libvirt.
func newLifecycleManager(logger logr.Logger) (controller.LifecycleManager, error) {
	store, err := adapter.NewFileConfigStore(storeDir)
	if err != nil {
		return nil, fmt.Errorf("opening config store %s: %w", storeDir, err)
	}

	return controller.NewLifecycleManager(store, logger), nil
}

// newRemoteExec builds the SSH collaborator for one-shot checks.
func newRemoteExec(logger logr.Logger) adapter.RemoteExec {
	return adapter.NewSSHRemoteExec(logger)
}

// newHookExecutor builds the hook collaborator for one-shot restarts.
func newHookExecutor(logger logr.Logger) adapter.HookExecutor {
	return adapter.NewScriptHookExecutor(logger)
}

// newCloudProvider connects to libvirt; only commands touching a VM need it.
func newCloudProvider() (adapter.CloudProvider, error) {
	cloud, err := adapter.NewLibvirtProvider(libvirtURI)
	if err != nil {
		return nil, fmt.Errorf("connecting to libvirt: %w", err)
	}

	return cloud, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
