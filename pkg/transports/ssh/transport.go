// Package ssh provides the SSH transport used to run platform commands on
// remote cluster nodes and to read their files over SFTP.
package ssh

import (
	"context"
	"time"

	"github.com/pkg/sftp"
)

// Transport is a connection to one remote node.
type Transport interface {
	// Connect establishes the SSH connection.
	// Returns an error if connection fails or authentication is rejected.
	Connect(ctx context.Context) error

	// Disconnect closes the connection and any SFTP client opened on it.
	Disconnect() error

	// IsConnected returns true if the transport has an active connection.
	IsConnected() bool

	// HealthCheck verifies the connection is still alive and responsive.
	HealthCheck(ctx context.Context) error

	// Run executes cmd and waits for it. A command that ran and exited
	// non-zero is not an error: inspect ExecResult.ExitCode. The error is
	// reserved for transport failures and cancellation.
	Run(ctx context.Context, cmd string) (*ExecResult, error)

	// SFTP returns an SFTP client sharing the connection.
	SFTP() (*sftp.Client, error)

	// GetConnectionInfo returns information about the current connection.
	GetConnectionInfo() ConnectionInfo
}

// ConnectionInfo contains details about an active SSH connection.
type ConnectionInfo struct {
	Host         string
	Port         int
	User         string
	ConnectedAt  time.Time
	LastActivity time.Time
}

// ExecResult represents the result of a command execution.
type ExecResult struct {
	// Stdout is the standard output from the command, trimmed
	Stdout string

	// Stderr is the standard error output from the command, trimmed
	Stderr string

	// ExitCode is the command's exit code, -1 if it never completed
	ExitCode int

	// StartedAt is when the command started executing
	StartedAt time.Time

	// Duration is the total execution time
	Duration time.Duration
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "exec", "sftp-init")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}
