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

package ssh

import "context"

// Runner executes commands on a remote host.
type Runner interface {
	// Run executes cmd on the remote host and returns its output. The call is
	// bounded by the context deadline.
	Run(ctx context.Context, cmd string) (stdout, stderr string, err error)

	// Ping establishes a connection and tears it down again. It returns an
	// error when the host is unreachable within the context deadline.
	Ping(ctx context.Context) error
}
