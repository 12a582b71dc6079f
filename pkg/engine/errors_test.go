package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"usage", &UsageError{Param: "first", Reason: "required"}, ExitUsage},
		{"wrapped usage", fmt.Errorf("parse: %w", &UsageError{Reason: "too many arguments"}), ExitUsage},
		{"precondition", &PreconditionError{Check: "root", Message: "must run as root"}, ExitFailure},
		{"items failed", fmt.Errorf("power: %w", ErrItemsFailed), ExitFailure},
		{"plain", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestClassOf(t *testing.T) {
	underlying := errors.New("connection refused")
	err := fmt.Errorf("dispatch: %w", &ExecutionFailure{
		Command:  "qm start 100",
		Target:   "10.0.0.2",
		ExitCode: -1,
		Err:      underlying,
	})

	class, ok := ClassOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrorClassExecution, class)
	assert.True(t, IsExecution(err))
	assert.False(t, IsTimeout(err))
	assert.ErrorIs(t, err, underlying)

	_, ok = ClassOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `invalid value "50" for first: below minimum 100`,
		(&UsageError{Param: "first", Value: "50", Reason: "below minimum 100"}).Error())

	assert.Equal(t, "qm start 100 on local exited with code 2: no such VM",
		(&ExecutionFailure{Command: "qm start 100", Target: "local", ExitCode: 2, Stderr: "no such VM"}).Error())

	assert.Equal(t, "timed out after 1m0s waiting for ceph-osd@3 active (last state: activating)",
		(&TimeoutFailure{Condition: "ceph-osd@3 active", Waited: "1m0s", Last: "activating"}).Error())

	assert.True(t, IsTimeout(&TimeoutFailure{}))
	assert.True(t, IsPrecondition(fmt.Errorf("x: %w", &PreconditionError{Check: "cluster"})))
}

func TestItemStatusTransitions(t *testing.T) {
	assert.True(t, ItemPending.canTransition(ItemResolving))
	assert.True(t, ItemPending.canTransition(ItemDispatching))
	assert.True(t, ItemResolving.canTransition(ItemSkipped))
	assert.True(t, ItemDispatching.canTransition(ItemFailed))
	assert.False(t, ItemDispatching.canTransition(ItemSkipped))
	assert.False(t, ItemFailed.canTransition(ItemDispatching), "no retry state")
	assert.True(t, ItemSkipped.IsTerminal())
	assert.Error(t, ItemStatus("retrying").Validate())
}
