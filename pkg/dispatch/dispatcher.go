package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pvebulk/pvebulk/pkg/engine"
	"github.com/pvebulk/pvebulk/pkg/transports/ssh"
)

// Result is what a dispatched command produced.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	DryRun   bool
}

// RemoteRunner runs a command line on a remote host. *ssh.Pool implements it.
type RemoteRunner interface {
	Run(ctx context.Context, host, cmd string) (*ssh.ExecResult, error)
}

// Recorder receives one observation per executed command.
type Recorder interface {
	ObserveDispatch(target string, exitCode int, duration time.Duration)
}

// Dispatcher executes commands synchronously on a target.
type Dispatcher struct {
	logger   zerolog.Logger
	remote   RemoteRunner
	recorder Recorder
	tracer   trace.Tracer
	dryRun   bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithRemote sets the runner used for remote targets.
func WithRemote(r RemoteRunner) Option {
	return func(d *Dispatcher) {
		d.remote = r
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithDryRun makes Dispatch log commands instead of running them.
func WithDryRun(dryRun bool) Option {
	return func(d *Dispatcher) {
		d.dryRun = dryRun
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: zerolog.Nop(),
		tracer: otel.Tracer("github.com/pvebulk/pvebulk/pkg/dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DryRun reports whether commands are only logged.
func (d *Dispatcher) DryRun() bool {
	return d.dryRun
}

// Dispatch expands the {id} placeholder in cmd and runs it on target. A
// command that exits non-zero yields an *engine.ExecutionFailure alongside
// the result.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, cmd Command, id int) (Result, error) {
	expanded := cmd.Expand(id)
	line := expanded.String()

	logger := d.logger.With().
		Str("target", target.String()).
		Str("command", line).
		Logger()

	if d.dryRun {
		logger.Info().Msg("dry run, not executing")
		return Result{DryRun: true}, nil
	}

	ctx, span := d.tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String("dispatch.target", target.String()),
		attribute.String("dispatch.command", expanded.Name),
		attribute.Bool("dispatch.local", target.IsLocal()),
	))
	defer span.End()

	logger.Debug().Msg("dispatching command")

	var (
		result Result
		err    error
	)
	switch {
	case target.IsLocal():
		result, err = runLocal(ctx, expanded)
	case target.Address == "":
		result, err = Result{ExitCode: -1}, fmt.Errorf("no address known for node %q", target.Node)
	case d.remote == nil:
		result, err = Result{ExitCode: -1}, fmt.Errorf("no remote transport configured")
	default:
		result, err = d.runRemote(ctx, target, line)
	}

	if d.recorder != nil {
		kind := "remote"
		if target.IsLocal() {
			kind = "local"
		}
		d.recorder.ObserveDispatch(kind, result.ExitCode, result.Duration)
	}
	span.SetAttributes(attribute.Int("dispatch.exit_code", result.ExitCode))

	if err == nil && result.ExitCode != 0 {
		err = fmt.Errorf("exit status %d", result.ExitCode)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.Debug().Err(err).Int("exit_code", result.ExitCode).Msg("command failed")
		return result, &engine.ExecutionFailure{
			Command:  line,
			Target:   target.String(),
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
			Err:      err,
		}
	}

	logger.Debug().Dur("duration", result.Duration).Msg("command succeeded")
	return result, nil
}

func (d *Dispatcher) runRemote(ctx context.Context, target Target, line string) (Result, error) {
	res, err := d.remote.Run(ctx, target.Address, line)
	if res == nil {
		return Result{ExitCode: -1}, err
	}
	return Result{
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: res.Duration,
	}, err
}
