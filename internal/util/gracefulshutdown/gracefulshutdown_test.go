//go:build unit

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

package gracefulshutdown_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandremahdhaoui/vigil/internal/util/gracefulshutdown"
)

func TestShutdownWaitsForGoroutines(t *testing.T) {
	var exitCode atomic.Int64
	exitCode.Store(-1)

	gs := gracefulshutdown.NewWithExit("test", func(code int) {
		exitCode.Store(int64(code))
	})

	var finished atomic.Bool
	gs.Go(func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	gs.Shutdown(0)

	assert.True(t, finished.Load())
	assert.Equal(t, int64(0), exitCode.Load())
}

func TestShutdownOnlyFirstCallCounts(t *testing.T) {
	var calls atomic.Int64

	gs := gracefulshutdown.NewWithExit("test", func(int) {
		calls.Add(1)
	})

	gs.Shutdown(0)
	gs.Shutdown(1)

	assert.Equal(t, int64(1), calls.Load())
}

func TestContextCanceledOnShutdown(t *testing.T) {
	gs := gracefulshutdown.NewWithExit("test", func(int) {})

	require.NoError(t, gs.Context().Err())
	gs.Shutdown(0)
	assert.ErrorIs(t, gs.Context().Err(), context.Canceled)
}
