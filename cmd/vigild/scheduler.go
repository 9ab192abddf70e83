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
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/panjf2000/ants/v2"

	"github.com/alexandremahdhaoui/vigil/internal/controller"
	"github.com/alexandremahdhaoui/vigil/internal/types"
)

// scheduler drives the monitoring core: every tick it lists the monitored
// VMs, submits due health checks to the worker pool, and escalates failing
// checks to the self healer. The core itself stays scheduling-free.
type scheduler struct {
	lifecycle controller.LifecycleManager
	monitor   controller.HealthMonitor
	healer    controller.SelfHealer
	pool      *ants.Pool
	logger    logr.Logger

	pollInterval time.Duration

	// lastCheck is only touched from the Run goroutine.
	lastCheck map[string]time.Time
}

func newScheduler(
	lifecycle controller.LifecycleManager,
	monitor controller.HealthMonitor,
	healer controller.SelfHealer,
	pool *ants.Pool,
	pollInterval time.Duration,
	logger logr.Logger,
) *scheduler {
	return &scheduler{
		lifecycle:    lifecycle,
		monitor:      monitor,
		healer:       healer,
		pool:         pool,
		logger:       logger.WithName("scheduler"),
		pollInterval: pollInterval,
		lastCheck:    make(map[string]time.Time),
	}
}

// Run blocks until the context is canceled.
func (s *scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "pollInterval", s.pollInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *scheduler) tick(ctx context.Context) {
	vms, err := s.lifecycle.ListMonitoredVMs(ctx)
	if err != nil {
		s.logger.Error(err, "failed to list monitored VMs")
		return
	}

	now := time.Now()
	s.pruneRemoved(vms)

	for _, vmName := range vms {
		status, err := s.lifecycle.GetMonitoringStatus(ctx, vmName)
		if err != nil {
			s.logger.Error(err, "failed to read monitoring config", "vmName", vmName)
			continue
		}
		if !status.Enabled {
			continue
		}

		interval := time.Duration(status.Config.CheckIntervalSeconds) * time.Second
		if last, ok := s.lastCheck[vmName]; ok && now.Sub(last) < interval {
			continue
		}
		s.lastCheck[vmName] = now

		if err := s.pool.Submit(func() { s.checkOne(ctx, vmName) }); err != nil {
			s.logger.Error(err, "failed to submit health check", "vmName", vmName)
		}
	}
}

// pruneRemoved drops scheduler and monitor state of VMs whose config was
// removed from the store, so their entries and metric series do not outlive
// them.
func (s *scheduler) pruneRemoved(vms []string) {
	current := make(map[string]struct{}, len(vms))
	for _, vmName := range vms {
		current[vmName] = struct{}{}
	}

	for vmName := range s.lastCheck {
		if _, ok := current[vmName]; !ok {
			delete(s.lastCheck, vmName)
			s.monitor.Forget(vmName)
			s.logger.Info("VM removed from store, dropping monitoring state", "vmName", vmName)
		}
	}
}

// checkOne runs a single health check and escalates failures. Checks for
// distinct VMs are independent; a failing one never aborts the others.
func (s *scheduler) checkOne(ctx context.Context, vmName string) {
	health, err := s.monitor.CheckVMHealth(ctx, vmName)
	if err != nil {
		s.logger.Error(err, "health check failed at the control plane", "vmName", vmName)
		return
	}

	s.logger.V(1).Info("health check completed",
		"vmName", vmName,
		"state", health.State,
		"sshReachable", health.SSHReachable,
		"sshFailures", health.SSHFailures)

	if health.State == types.VMStateRunning && !health.SSHReachable {
		s.healer.HandleFailure(ctx, vmName, types.HealthFailure{
			VMName:       vmName,
			FailureCount: health.SSHFailures,
			Reason:       "ssh unreachable",
		})
	}
}
