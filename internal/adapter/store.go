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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/alexandremahdhaoui/vigil/internal/types"
)

var (
	// ErrConfigNotFound indicates no monitoring config exists for the VM.
	ErrConfigNotFound = errors.New("monitoring config not found")

	errInvalidVMName = errors.New("invalid vm name")
	errStoreDir      = errors.New("failed to create store directory")
	errStoreRead     = errors.New("failed to read monitoring config")
	errStoreDecode   = errors.New("failed to decode monitoring config")
	errStoreWrite    = errors.New("failed to write monitoring config")
)

const configFileSuffix = ".yaml"

// --------------------------------------------------- INTERFACE ---------------------------------------------------- //

// ConfigStore persists per-VM monitoring configuration. A config written by
// one process instance must be observable, with identical values, by a fresh
// instance constructed against the same backing store.
type ConfigStore interface {
	// Get returns the config for vmName, or an error wrapping
	// ErrConfigNotFound.
	Get(vmName string) (types.MonitoringConfig, error)

	// Put durably persists the config keyed by its VMName.
	Put(config types.MonitoringConfig) error

	// List returns the names of all VMs with a stored config, sorted.
	List() ([]string, error)
}

// ------------------------------------------------ FILE STORE ------------------------------------------------------ //

// NewFileConfigStore returns a ConfigStore keeping one YAML document per VM
// under dir. Writes go through a temp file and an atomic rename so concurrent
// readers, including other processes, never observe a torn document.
func NewFileConfigStore(dir string) (ConfigStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Join(err, errStoreDir)
	}

	return &fileConfigStore{dir: dir}, nil
}

type fileConfigStore struct {
	dir string
	mu  sync.Mutex // serializes writers within this process; rename handles the rest
}

func (s *fileConfigStore) Get(vmName string) (types.MonitoringConfig, error) {
	path, err := s.configPath(vmName)
	if err != nil {
		return types.MonitoringConfig{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.MonitoringConfig{},
				errors.Join(fmt.Errorf("vmName=%s", vmName), ErrConfigNotFound)
		}
		return types.MonitoringConfig{}, errors.Join(err, errStoreRead)
	}

	config := types.MonitoringConfig{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return types.MonitoringConfig{}, errors.Join(err, fmt.Errorf("path=%s", path), errStoreDecode)
	}

	return config, nil
}

func (s *fileConfigStore) Put(config types.MonitoringConfig) error {
	path, err := s.configPath(config.VMName)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Join(err, errStoreWrite)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, config.VMName+".*.tmp")
	if err != nil {
		return errors.Join(err, errStoreWrite)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Join(err, errStoreWrite)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Join(err, errStoreWrite)
	}

	// CreateTemp yields 0600; the daemon and the CLI may run as different
	// users against the same store.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Join(err, errStoreWrite)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Join(err, errStoreWrite)
	}

	return nil
}

func (s *fileConfigStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Join(err, errStoreRead)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), configFileSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), configFileSuffix))
	}

	sort.Strings(names)
	return names, nil
}

// configPath rejects names that would escape the store directory.
func (s *fileConfigStore) configPath(vmName string) (string, error) {
	if vmName == "" || strings.ContainsAny(vmName, "/\\") || vmName != filepath.Base(vmName) {
		return "", errors.Join(fmt.Errorf("vmName=%q", vmName), errInvalidVMName)
	}

	return filepath.Join(s.dir, vmName+configFileSuffix), nil
}
