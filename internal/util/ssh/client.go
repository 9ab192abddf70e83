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

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

const defaultDialTimeout = 10 * time.Second

// Client implements the Runner interface for real SSH connections.
type Client struct {
	Host       string
	User       string
	PrivateKey []byte
	Port       string
}

// NewClient creates a new SSH client, reading the private key from disk.
func NewClient(host, user, privateKeyPath, port string) (*Client, error) {
	key, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %w", err)
	}

	return &Client{
		Host:       host,
		User:       user,
		PrivateKey: key,
		Port:       port,
	}, nil
}

func (c *Client) clientConfig(ctx context.Context) (*ssh.ClientConfig, error) {
	signer, err := ssh.ParsePrivateKey(c.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key: %w", err)
	}

	timeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	return &ssh.ClientConfig{
		User: c.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		// Monitored guests are short-lived cloud images without a stable host
		// key; reachability is what is being probed here.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}, nil
}

// Ping dials the SSH server and immediately closes the connection.
func (c *Client) Ping(ctx context.Context) error {
	config, err := c.clientConfig(ctx)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(c.Host, c.Port)
	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", addr, err)
	}

	_ = conn.Close()
	return nil
}

// Run executes cmd on the remote host. The session is torn down when the
// context expires, so the call never outlives its deadline.
func (c *Client) Run(ctx context.Context, cmd string) (stdout, stderr string, err error) {
	config, err := c.clientConfig(ctx)
	if err != nil {
		return "", "", err
	}

	addr := net.JoinHostPort(c.Host, c.Port)
	conn, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return "", "", fmt.Errorf("unable to connect to %s: %w", addr, err)
	}
	defer runFuncAndLogErr(conn.Close)

	session, err := conn.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("unable to create SSH session: %w", err)
	}
	defer runFuncAndLogErr(session.Close)

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return stdoutBuf.String(), stderrBuf.String(), ctx.Err()
	case err := <-done:
		if err != nil {
			return stdoutBuf.String(), stderrBuf.String(),
				fmt.Errorf("remote command failed: %w", err)
		}
	}

	return stdoutBuf.String(), stderrBuf.String(), nil
}

func runFuncAndLogErr(f func() error) {
	if err := f(); err != nil {
		slog.Debug("error closing ssh session or connection", "err", err.Error())
	}
}
