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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

const (
	// ConfigPathEnvKey is the environment variable key for the config file path
	ConfigPathEnvKey = "VIGILD_CONFIG_PATH"
)

// Config holds the configuration for vigild
type Config struct {
	// StoreDir is the directory holding the per-VM monitoring configs
	StoreDir string `json:"storeDir"`

	// LibvirtURI is the libvirt connection URI (empty means qemu:///system)
	LibvirtURI string `json:"libvirtURI,omitempty"`

	// MetricsBind is the address for the metrics server (e.g., ":8080")
	MetricsBind string `json:"metricsBind"`

	// ProbesBind is the address for the health probe server (e.g., ":8081")
	ProbesBind string `json:"probesBind"`

	// PollIntervalSeconds is the scheduler tick; per-VM check intervals are
	// honored on top of it
	PollIntervalSeconds int `json:"pollIntervalSeconds"`

	// Workers is the size of the health-check worker pool
	Workers int `json:"workers"`

	// SSHTimeoutSeconds bounds the SSH connectivity check
	SSHTimeoutSeconds int `json:"sshTimeoutSeconds"`

	// HookTimeoutSeconds bounds hook script execution
	HookTimeoutSeconds int `json:"hookTimeoutSeconds"`

	// RestartTimeoutSeconds bounds the restart acceptance call
	RestartTimeoutSeconds int `json:"restartTimeoutSeconds"`

	// DevelopmentMode enables development logging
	DevelopmentMode bool `json:"developmentMode"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		StoreDir:              "/var/lib/vigil/monitoring",
		LibvirtURI:            "",
		MetricsBind:           ":8080",
		ProbesBind:            ":8081",
		PollIntervalSeconds:   15,
		Workers:               8,
		SSHTimeoutSeconds:     10,
		HookTimeoutSeconds:    30,
		RestartTimeoutSeconds: 30,
		DevelopmentMode:       false,
	}
}

// LoadConfig loads configuration from a JSON file path or returns defaults with env var overrides
// If configPath is empty, it uses environment variables only
func LoadConfig(configPath string) (*Config, error) {
	config := NewDefaultConfig()

	// If config path provided, load from file
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}

		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	// Override with environment variables (if set)
	config.applyEnvironmentOverrides()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config
func (c *Config) applyEnvironmentOverrides() {
	if val := os.Getenv("VIGILD_STORE_DIR"); val != "" {
		c.StoreDir = val
	}
	if val := os.Getenv("VIGILD_LIBVIRT_URI"); val != "" {
		c.LibvirtURI = val
	}
	if val := os.Getenv("VIGILD_METRICS_ADDR"); val != "" {
		c.MetricsBind = val
	}
	if val := os.Getenv("VIGILD_PROBES_ADDR"); val != "" {
		c.ProbesBind = val
	}
	if val := os.Getenv("VIGILD_POLL_INTERVAL"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.PollIntervalSeconds = n
		}
	}
	if val := os.Getenv("VIGILD_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Workers = n
		}
	}
	if val := os.Getenv("VIGILD_SSH_TIMEOUT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.SSHTimeoutSeconds = n
		}
	}
	if val := os.Getenv("VIGILD_HOOK_TIMEOUT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.HookTimeoutSeconds = n
		}
	}
	if val := os.Getenv("VIGILD_RESTART_TIMEOUT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.RestartTimeoutSeconds = n
		}
	}
	if val := os.Getenv("VIGILD_DEV_MODE"); val != "" {
		c.DevelopmentMode = val == "true" || val == "1" || val == "yes"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.StoreDir == "" {
		errs = append(errs, errors.New("storeDir cannot be empty"))
	}

	if c.MetricsBind == "" {
		errs = append(errs, errors.New("metricsBind cannot be empty"))
	}

	if c.ProbesBind == "" {
		errs = append(errs, errors.New("probesBind cannot be empty"))
	}

	if c.PollIntervalSeconds < 1 {
		errs = append(errs, errors.New("pollIntervalSeconds must be at least 1"))
	}

	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}

	if c.SSHTimeoutSeconds < 1 {
		errs = append(errs, errors.New("sshTimeoutSeconds must be at least 1"))
	}

	if c.HookTimeoutSeconds < 1 {
		errs = append(errs, errors.New("hookTimeoutSeconds must be at least 1"))
	}

	if c.RestartTimeoutSeconds < 1 {
		errs = append(errs, errors.New("restartTimeoutSeconds must be at least 1"))
	}

	return errors.Join(errs...)
}
