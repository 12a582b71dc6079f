package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recorder receives run and item observations, typically for metrics.
type Recorder interface {
	ObserveItem(operation string, status ItemStatus, duration time.Duration)
	ObserveRun(summary *Summary)
}

// Runner executes bulk operations one item at a time, in order, without
// aborting on item failures.
type Runner struct {
	logger   zerolog.Logger
	out      io.Writer
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithOutput sets where the final summary is printed. Nil disables printing.
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.out = w
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithTracer sets the tracer used for run and item spans.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner creates a new Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: zerolog.Nop(),
		tracer: otel.Tracer("github.com/pvebulk/pvebulk/pkg/engine"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every ID of op.Source in order and returns the summary.
// The returned error is non-nil only when op is malformed; item failures are
// reported through the summary (see Summary.Err).
func (r *Runner) Run(ctx context.Context, op Operation) (*Summary, error) {
	if err := validateOperation(op); err != nil {
		return nil, err
	}

	summary := &Summary{
		Operation: op.Name,
		RunID:     uuid.New().String(),
		Source:    op.Source.String(),
		StartedAt: r.now(),
	}

	logger := r.logger.With().
		Str("operation", op.Name).
		Str("run_id", summary.RunID).
		Logger()

	ctx, span := r.tracer.Start(ctx, "bulk."+op.Name, trace.WithAttributes(
		attribute.String("bulk.run_id", summary.RunID),
		attribute.String("bulk.source", summary.Source),
		attribute.Bool("bulk.node_aware", op.Locator != nil),
	))
	defer span.End()

	logger.Info().Int("ids", op.Source.Len()).Str("source", summary.Source).Msg("starting bulk operation")

	for id := range op.Source.IDs() {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logger.Warn().Int("vmid", id).Msg("interrupted, stopping before next item")
			break
		}

		result := r.runItem(ctx, logger, op, id)
		summary.record(result)

		if r.recorder != nil {
			r.recorder.ObserveItem(op.Name, result.Status, result.Duration)
		}
	}

	summary.Duration = r.now().Sub(summary.StartedAt)

	span.SetAttributes(
		attribute.Int("bulk.attempted", summary.Attempted),
		attribute.Int("bulk.succeeded", summary.Succeeded),
		attribute.Int("bulk.failed", summary.Failed),
		attribute.Int("bulk.skipped", summary.Skipped),
	)
	if summary.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d items failed", summary.Failed))
	}

	if r.recorder != nil {
		r.recorder.ObserveRun(summary)
	}

	event := logger.Info()
	if summary.Failed > 0 || summary.Interrupted {
		event = logger.Warn()
	}
	event.
		Str("status", string(summary.Status())).
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Ints("failed_ids", summary.FailedIDs).
		Dur("duration", summary.Duration).
		Msg("bulk operation finished")

	if r.out != nil {
		if err := summary.Render(r.out); err != nil {
			logger.Warn().Err(err).Msg("failed to print summary")
		}
	}

	return summary, nil
}

// runItem drives one ID through the state machine.
func (r *Runner) runItem(ctx context.Context, logger zerolog.Logger, op Operation, id int) ItemResult {
	start := r.now()
	it := &itemState{id: id, status: ItemPending, logger: logger.With().Int("vmid", id).Logger()}

	ctx, span := r.tracer.Start(ctx, "bulk.item", trace.WithAttributes(attribute.Int("bulk.id", id)))
	defer span.End()

	var placement Placement
	if op.Locator != nil {
		it.advance(ItemResolving)

		p, err := op.Locator.Locate(ctx, id)
		switch {
		case err != nil:
			it.advance(ItemFailed)
			it.logger.Error().Err(err).Msg("failed to resolve entity")
			return it.result(fmt.Sprintf("resolve: %v", err), NotFound, r.now().Sub(start), span)
		case !p.Found() && op.MissPolicy == MissFails:
			it.advance(ItemFailed)
			it.logger.Warn().Msg("entity not found in cluster")
			return it.result("not found in cluster", NotFound, r.now().Sub(start), span)
		case !p.Found():
			it.advance(ItemSkipped)
			it.logger.Info().Msg("entity not found in cluster, skipping")
			return it.result("not found in cluster", NotFound, r.now().Sub(start), span)
		}
		placement = p
		it.logger = it.logger.With().Str("node", p.Node).Logger()
		span.SetAttributes(attribute.String("bulk.node", p.Node))
	}

	it.advance(ItemDispatching)
	outcome := safeInvoke(ctx, op.Callback, Item{ID: id, Placement: placement})

	if outcome.OK {
		it.advance(ItemSucceeded)
		it.logger.Info().Str("message", outcome.Message).Msg("item succeeded")
	} else {
		it.advance(ItemFailed)
		it.logger.Error().Str("message", outcome.Message).Msg("item failed")
	}

	return it.result(outcome.Message, placement, r.now().Sub(start), span)
}

// safeInvoke runs the callback, turning a panic into a failed outcome so one
// bad entity cannot end the batch.
func safeInvoke(ctx context.Context, cb Callback, item Item) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = Outcome{OK: false, Message: fmt.Sprintf("panic: %v", rec)}
		}
	}()
	return cb(ctx, item)
}

type itemState struct {
	id     int
	status ItemStatus
	logger zerolog.Logger
}

func (s *itemState) advance(next ItemStatus) {
	if !s.status.canTransition(next) {
		s.logger.Error().
			Str("from", string(s.status)).
			Str("to", string(next)).
			Msg("invalid item state transition")
	}
	s.logger.Trace().Str("from", string(s.status)).Str("to", string(next)).Msg("item state")
	s.status = next
}

func (s *itemState) result(msg string, p Placement, d time.Duration, span trace.Span) ItemResult {
	span.SetAttributes(attribute.String("bulk.status", string(s.status)))
	if s.status == ItemFailed {
		span.SetStatus(codes.Error, msg)
	}
	return ItemResult{
		ID:        s.id,
		Status:    s.status,
		Message:   msg,
		Placement: p,
		Duration:  d,
	}
}

func validateOperation(op Operation) error {
	if op.Name == "" {
		return fmt.Errorf("operation name is required")
	}
	if op.Source == nil {
		return fmt.Errorf("operation %s: id source is required", op.Name)
	}
	if op.Callback == nil {
		return fmt.Errorf("operation %s: callback is required", op.Name)
	}
	if err := op.MissPolicy.Validate(); err != nil {
		return fmt.Errorf("operation %s: %w", op.Name, err)
	}
	return nil
}
