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

package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "vigil"

// Check result labels.
const (
	checkResultHealthy        = "healthy"
	checkResultSSHUnreachable = "ssh_unreachable"
	checkResultNotRunning     = "not_running"
	checkResultError          = "error"
)

var (
	healthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "health_checks_total",
		Help:      "Number of VM health checks by result.",
	}, []string{"result"})

	sshFailureStreak = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "ssh_failure_streak",
		Help:      "Current consecutive SSH failure count per VM.",
	}, []string{"vm"})

	vmRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "vm_restarts_total",
		Help:      "Number of VM restart attempts by result.",
	}, []string{"result"})

	hookExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "hook_executions_total",
		Help:      "Number of hook script executions by event and result.",
	}, []string{"event", "result"})
)

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
