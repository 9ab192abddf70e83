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

package adapter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandremahdhaoui/vigil/internal/adapter"
	"github.com/alexandremahdhaoui/vigil/internal/types"
)

func testConfig(vmName string) types.MonitoringConfig {
	return types.MonitoringConfig{
		VMName:               vmName,
		Enabled:              true,
		CheckIntervalSeconds: 60,
		RestartPolicy:        types.RestartPolicyOnFailure,
		SSHFailureThreshold:  3,
		Hooks: map[types.HookEvent]string{
			types.HookOnRestart: "/usr/local/bin/notify.sh",
		},
		SSHUser: "admin",
		SSHPort: 2222,
	}
}

func TestFileConfigStoreRoundTrip(t *testing.T) {
	store, err := adapter.NewFileConfigStore(t.TempDir())
	require.NoError(t, err)

	expected := testConfig("web-1")
	require.NoError(t, store.Put(expected))

	actual, err := store.Get("web-1")
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestFileConfigStoreSurvivesNewInstance(t *testing.T) {
	dir := t.TempDir()

	store, err := adapter.NewFileConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(testConfig("web-1")))

	// A fresh instance over the same directory must observe identical values.
	fresh, err := adapter.NewFileConfigStore(dir)
	require.NoError(t, err)

	actual, err := fresh.Get("web-1")
	require.NoError(t, err)
	assert.Equal(t, testConfig("web-1"), actual)
}

func TestFileConfigStoreGetNotFound(t *testing.T) {
	store, err := adapter.NewFileConfigStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("unknown")
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrConfigNotFound)
}

func TestFileConfigStorePutOverwrites(t *testing.T) {
	store, err := adapter.NewFileConfigStore(t.TempDir())
	require.NoError(t, err)

	config := testConfig("web-1")
	require.NoError(t, store.Put(config))

	config.Enabled = false
	require.NoError(t, store.Put(config))

	actual, err := store.Get("web-1")
	require.NoError(t, err)
	assert.False(t, actual.Enabled)
}

func TestFileConfigStoreList(t *testing.T) {
	store, err := adapter.NewFileConfigStore(t.TempDir())
	require.NoError(t, err)

	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Put(testConfig("web-2")))
	require.NoError(t, store.Put(testConfig("db-1")))
	require.NoError(t, store.Put(testConfig("web-1")))

	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"db-1", "web-1", "web-2"}, names)
}

func TestFileConfigStoreFilesAreWorldReadable(t *testing.T) {
	dir := t.TempDir()
	store, err := adapter.NewFileConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(testConfig("web-1")))

	info, err := os.Stat(filepath.Join(dir, "web-1.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestFileConfigStoreRejectsInvalidVMName(t *testing.T) {
	store, err := adapter.NewFileConfigStore(t.TempDir())
	require.NoError(t, err)

	for _, vmName := range []string{"", "../escape", "a/b", `a\b`} {
		_, err := store.Get(vmName)
		assert.Error(t, err, "vmName=%q", vmName)

		err = store.Put(testConfig(vmName))
		assert.Error(t, err, "vmName=%q", vmName)
	}
}
