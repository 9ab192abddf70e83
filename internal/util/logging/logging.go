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

// Package logging provides shared logging utilities for all vigil binaries.
// It uses log/slog as the standard library logger and bridges zap to logr,
// which is the logger type all vigil components accept.
package logging

import (
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// Options configures the logger behavior.
type Options struct {
	// Development enables development mode logging (more verbose, human-readable).
	Development bool

	// Level sets the minimum log level. Defaults to slog.LevelInfo.
	Level slog.Level
}

// DefaultOptions returns the default logging options.
func DefaultOptions() Options {
	return Options{
		Development: false,
		Level:       slog.LevelInfo,
	}
}

// Setup configures the standard library slog logger and returns a logr.Logger
// backed by zap. This must be called early in main() before any logging.
func Setup(opts Options) logr.Logger {
	// Configure slog for the few places that log outside a component.
	var handler slog.Handler
	if opts.Development {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: opts.Level,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: opts.Level,
		})
	}
	slog.SetDefault(slog.New(handler))

	var (
		zapLogger *zap.Logger
		err       error
	)
	if opts.Development {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		// zap only fails on invalid configuration; the presets above are valid.
		panic(err)
	}

	return zapr.NewLogger(zapLogger)
}

// SetupDefault sets up logging with default options.
// Convenience function for simple cases.
func SetupDefault() logr.Logger {
	return Setup(DefaultOptions())
}

// SetupDevelopment sets up logging in development mode.
func SetupDevelopment() logr.Logger {
	return Setup(Options{
		Development: true,
		Level:       slog.LevelDebug,
	})
}
