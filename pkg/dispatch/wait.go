package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/pvebulk/pvebulk/pkg/engine"
)

// Poll bounds a post-condition wait.
type Poll struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultPoll checks every two seconds for up to a minute.
var DefaultPoll = Poll{Interval: 2 * time.Second, Timeout: 60 * time.Second}

// Check reports whether a condition holds. state describes what was
// observed and ends up in the timeout error. A non-nil error stops the wait.
type Check func(ctx context.Context) (ready bool, state string, err error)

var errNotReady = errors.New("condition not reached")

// WaitFor polls check at a fixed interval until it reports ready, returns an
// error, or the timeout elapses. The timeout yields an *engine.TimeoutFailure.
func WaitFor(ctx context.Context, poll Poll, condition string, check Check) error {
	if poll.Interval <= 0 {
		poll.Interval = DefaultPoll.Interval
	}
	if poll.Timeout <= 0 {
		poll.Timeout = DefaultPoll.Timeout
	}

	var last string
	op := func() (struct{}, error) {
		ready, state, err := check(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		last = state
		if !ready {
			return struct{}{}, errNotReady
		}
		return struct{}{}, nil
	}

	start := time.Now()
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(poll.Interval)),
		backoff.WithMaxElapsedTime(poll.Timeout),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNotReady):
		return &engine.TimeoutFailure{
			Condition: condition,
			Waited:    time.Since(start).Round(time.Second).String(),
			Last:      last,
		}
	default:
		return err
	}
}
