package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// signalGrace is how long a cancelled command gets between SIGTERM and the
// session being torn down.
const signalGrace = 2 * time.Second

// Run executes cmd on the remote host and waits for it to exit.
func (c *SSHClient) Run(ctx context.Context, cmd string) (*ExecResult, error) {
	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	result := &ExecResult{ExitCode: -1, StartedAt: time.Now()}

	log.Debug().
		Str("host", c.config.Host).
		Str("command", cmd).
		Msg("executing command")

	sshClient, err := c.getClient()
	if err != nil {
		return result, err
	}

	session, err := sshClient.NewSession()
	if err != nil {
		return result, &TransportError{
			Op:          "exec",
			Err:         fmt.Errorf("failed to create session: %w", err),
			IsTemporary: true,
		}
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- session.Run(cmd)
	}()

	var execErr error
	finished := true
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		select {
		case <-doneChan:
		case <-time.After(signalGrace):
			finished = false
			_ = session.Signal(ssh.SIGKILL)
			_ = session.Close()
		}
		execErr = ctx.Err()
	case execErr = <-doneChan:
	}

	result.Duration = time.Since(result.StartedAt)
	if finished {
		result.Stdout = strings.TrimSpace(stdoutBuf.String())
		result.Stderr = strings.TrimSpace(stderrBuf.String())
	}

	var exitErr *ssh.ExitError
	switch {
	case execErr == nil:
		result.ExitCode = 0
	case errors.As(execErr, &exitErr):
		result.ExitCode = exitErr.ExitStatus()
	}

	log.Debug().
		Str("host", c.config.Host).
		Str("command", cmd).
		Int("exit_code", result.ExitCode).
		Int("stdout_len", len(result.Stdout)).
		Int("stderr_len", len(result.Stderr)).
		Dur("duration", result.Duration).
		Msg("command completed")

	if execErr != nil && exitErr == nil {
		return result, &TransportError{
			Op:          "exec",
			Err:         execErr,
			IsTemporary: !errors.Is(execErr, context.Canceled),
		}
	}
	return result, nil
}
