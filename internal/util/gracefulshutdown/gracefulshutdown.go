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

package gracefulshutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// GracefulShutdown coordinates the shutdown of a set of goroutines: a signal
// or an explicit Shutdown call cancels the shared context, and Shutdown then
// waits for every registered goroutine before exiting.
type GracefulShutdown struct {
	ctx    context.Context
	cancel context.CancelFunc
	name   string

	once sync.Once
	wg   sync.WaitGroup

	// exitFunc allows injecting exit behavior for testing.
	exitFunc func(int)
}

// New creates a GracefulShutdown whose context is canceled by SIGTERM or
// SIGINT.
func New(name string) *GracefulShutdown {
	return NewWithExit(name, os.Exit)
}

// NewWithExit creates a GracefulShutdown with a custom exit function,
// primarily for tests where os.Exit would terminate the test process.
func NewWithExit(name string, exitFunc func(int)) *GracefulShutdown {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)

	return &GracefulShutdown{
		ctx:      ctx,
		cancel:   cancel,
		name:     name,
		exitFunc: exitFunc,
	}
}

// Go runs f on a registered goroutine. Shutdown waits for all registered
// goroutines to return.
func (s *GracefulShutdown) Go(f func(ctx context.Context)) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		f(s.ctx)
	}()
}

// Context returns the shared shutdown context.
func (s *GracefulShutdown) Context() context.Context {
	return s.ctx
}

// Shutdown cancels the context, waits for all registered goroutines, and
// exits. Only the first call has any effect.
func (s *GracefulShutdown) Shutdown(exitCode int) {
	s.once.Do(func() {
		slog.Info("gracefully shutting down", "name", s.name)

		s.cancel()
		s.wg.Wait()
		s.exitFunc(exitCode)
	})
}
