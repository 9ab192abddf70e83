/*
Copyright 2025 Alexandre Mahdhaoui

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/panjf2000/ants/v2"

	"github.com/alexandremahdhaoui/vigil/internal/adapter"
	"github.com/alexandremahdhaoui/vigil/internal/controller"
	"github.com/alexandremahdhaoui/vigil/internal/util/gracefulshutdown"
	"github.com/alexandremahdhaoui/vigil/internal/util/logging"
)

const (
	libvirtConnectRetries = 5
	serverShutdownTimeout = 10 * time.Second
)

func main() {
	// Load configuration
	configPath := os.Getenv(ConfigPathEnvKey)
	config, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logger using shared logging utility
	logger := logging.Setup(logging.Options{
		Development: config.DevelopmentMode,
	}).WithName("vigild")

	logger.Info("starting vigild",
		"storeDir", config.StoreDir,
		"metricsAddr", config.MetricsBind,
		"probesAddr", config.ProbesBind,
		"pollIntervalSeconds", config.PollIntervalSeconds,
		"workers", config.Workers)

	// Connect to libvirt with retries: the daemon often races libvirtd at
	// boot.
	var cloud adapter.CloudProvider
	err = backoff.Retry(func() error {
		var connErr error
		cloud, connErr = adapter.NewLibvirtProvider(config.LibvirtURI)
		return connErr
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), libvirtConnectRetries))
	if err != nil {
		logger.Error(err, "unable to connect to libvirt")
		os.Exit(1)
	}
	defer func() { _ = cloud.Close() }()

	store, err := adapter.NewFileConfigStore(config.StoreDir)
	if err != nil {
		logger.Error(err, "unable to open config store", "storeDir", config.StoreDir)
		os.Exit(1)
	}

	// Wire the monitoring core.
	lifecycle := controller.NewLifecycleManager(store, logger)
	remoteExec := adapter.NewSSHRemoteExec(logger)
	hookExec := adapter.NewScriptHookExecutor(logger,
		adapter.WithHookTimeout(time.Duration(config.HookTimeoutSeconds)*time.Second))

	monitor := controller.NewHealthMonitor(cloud, remoteExec, lifecycle, logger,
		controller.WithSSHTimeout(time.Duration(config.SSHTimeoutSeconds)*time.Second))
	healer := controller.NewSelfHealer(lifecycle, cloud, hookExec, logger,
		controller.WithRestartTimeout(time.Duration(config.RestartTimeoutSeconds)*time.Second))

	pool, err := ants.NewPool(config.Workers)
	if err != nil {
		logger.Error(err, "unable to create worker pool")
		os.Exit(1)
	}
	defer pool.Release()

	sched := newScheduler(lifecycle, monitor, healer, pool,
		time.Duration(config.PollIntervalSeconds)*time.Second, logger)

	gs := gracefulshutdown.New("vigild")

	gs.Go(sched.Run)
	startServer(gs, logger, "metrics", setupMetricsServer(config))
	startServer(gs, logger, "probes", setupProbesServer(config))

	<-gs.Context().Done()
	gs.Shutdown(0)
}

// startServer runs srv and registers its graceful shutdown. A listen failure
// takes the whole daemon down.
func startServer(
	gs *gracefulshutdown.GracefulShutdown,
	logger logr.Logger,
	name string,
	srv *http.Server,
) {
	gs.Go(func(ctx context.Context) {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "error shutting down server", "server", name)
		}
	})

	// Not registered with gs: ListenAndServe returns once Shutdown ran.
	go func() {
		logger.Info("server listening", "server", name, "addr", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "server failed", "server", name)
			gs.Shutdown(1)
		}
	}()
}
