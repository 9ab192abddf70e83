//go:build unit

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
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandremahdhaoui/vigil/internal/util/ssh"
)

// fakeRunner implements ssh.Runner without dialing anything.
type fakeRunner struct {
	pingErr error
	stdout  string
	stderr  string
	runErr  error
}

func (f *fakeRunner) Ping(_ context.Context) error {
	return f.pingErr
}

func (f *fakeRunner) Run(_ context.Context, _ string) (string, string, error) {
	return f.stdout, f.stderr, f.runErr
}

func newFakeExec(runner ssh.Runner, factoryErr error) *sshRemoteExec {
	return &sshRemoteExec{
		logger: logr.Discard(),
		newRunner: func(_ Target) (ssh.Runner, error) {
			return runner, factoryErr
		},
	}
}

func TestCheckConnectivity(t *testing.T) {
	target := Target{Host: "192.0.2.10", Port: 22, User: "root"}

	t.Run("reachable", func(t *testing.T) {
		e := newFakeExec(&fakeRunner{}, nil)
		assert.True(t, e.CheckConnectivity(context.Background(), target, time.Second))
	})

	t.Run("dial failure is false, not an error", func(t *testing.T) {
		e := newFakeExec(&fakeRunner{pingErr: errors.New("connection refused")}, nil)
		assert.False(t, e.CheckConnectivity(context.Background(), target, time.Second))
	})

	t.Run("client setup failure is false", func(t *testing.T) {
		e := newFakeExec(nil, errors.New("no such key file"))
		assert.False(t, e.CheckConnectivity(context.Background(), target, time.Second))
	})
}

func TestFetchMetrics(t *testing.T) {
	target := Target{Host: "192.0.2.10", Port: 22, User: "root"}

	t.Run("parses probe output", func(t *testing.T) {
		e := newFakeExec(&fakeRunner{stdout: "4\n1.00\n42.50\n63\n"}, nil)

		metrics, err := e.FetchMetrics(context.Background(), target)
		require.NoError(t, err)
		assert.InDelta(t, 25.0, metrics.CPUPercent, 0.001)
		assert.InDelta(t, 42.5, metrics.MemoryPercent, 0.001)
		assert.InDelta(t, 63.0, metrics.DiskPercent, 0.001)
	})

	t.Run("probe command failure", func(t *testing.T) {
		e := newFakeExec(&fakeRunner{runErr: errors.New("exited 127"), stderr: "sh: nproc: not found"}, nil)

		_, err := e.FetchMetrics(context.Background(), target)
		require.Error(t, err)
		assert.ErrorIs(t, err, errMetricsProbe)
	})
}

func TestParseMetricsProbe(t *testing.T) {
	t.Run("load capped at 100 percent", func(t *testing.T) {
		metrics, err := parseMetricsProbe("2\n9.75\n10.00\n20\n")
		require.NoError(t, err)
		assert.Equal(t, 100.0, metrics.CPUPercent)
	})

	t.Run("single cpu", func(t *testing.T) {
		metrics, err := parseMetricsProbe("1\n0.50\n10.00\n20\n")
		require.NoError(t, err)
		assert.InDelta(t, 50.0, metrics.CPUPercent, 0.001)
	})

	for name, stdout := range map[string]string{
		"empty output":     "",
		"missing line":     "4\n1.00\n42.50\n",
		"extra line":       "4\n1.00\n42.50\n63\n99\n",
		"non-numeric line": "4\nhigh\n42.50\n63\n",
		"zero cpus":        "0\n1.00\n42.50\n63\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseMetricsProbe(stdout)
			require.Error(t, err)
			assert.ErrorIs(t, err, errMetricsProbeOutput)
		})
	}
}
