package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvebulk/pvebulk/pkg/engine"
)

var fastPoll = Poll{Interval: 10 * time.Millisecond, Timeout: 200 * time.Millisecond}

func TestWaitFor_Ready(t *testing.T) {
	calls := 0
	err := WaitFor(context.Background(), fastPoll, "osd active", func(context.Context) (bool, string, error) {
		calls++
		return calls == 3, fmt.Sprintf("poll %d", calls), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitFor_Timeout(t *testing.T) {
	err := WaitFor(context.Background(), fastPoll, "ceph-osd@3 active", func(context.Context) (bool, string, error) {
		return false, "activating", nil
	})

	var timeout *engine.TimeoutFailure
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "ceph-osd@3 active", timeout.Condition)
	assert.Equal(t, "activating", timeout.Last)
	assert.True(t, engine.IsTimeout(err))
}

func TestWaitFor_CheckError(t *testing.T) {
	boom := errors.New("ssh: connection lost")
	calls := 0
	err := WaitFor(context.Background(), fastPoll, "osd active", func(context.Context) (bool, string, error) {
		calls++
		return false, "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, engine.IsTimeout(err))
	assert.Equal(t, 1, calls, "errors stop the wait")
}

func TestWaitFor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WaitFor(ctx, Poll{Interval: 10 * time.Millisecond, Timeout: time.Minute}, "osd active", func(context.Context) (bool, string, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return false, "inactive", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, engine.IsTimeout(err))
}
