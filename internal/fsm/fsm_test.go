package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperationTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := OperationTransition(s, EventValidate)
	require.NoError(t, err)
	require.Equal(t, StateValidating, next)

	next, err = OperationTransition(next, EventSubmit)
	require.NoError(t, err)
	require.Equal(t, StatePending, next)

	next, err = OperationTransition(next, EventSucceed)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, next)

	next, err = OperationTransition(next, EventReset)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestOperationTransitionResetFromIdleIsNoop(t *testing.T) {
	next, err := OperationTransition(StateIdle, EventReset)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestOperationTransitionResubmitFromTerminal(t *testing.T) {
	for _, state := range []State{StateSucceeded, StateFailed} {
		next, err := OperationTransition(state, EventValidate)
		require.NoError(t, err)
		require.Equal(t, StateValidating, next)
	}
}

func TestOperationTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle submit skips validation", state: StateIdle, event: EventSubmit, want: StateIdle, wantErr: true},
		{name: "idle succeed invalid", state: StateIdle, event: EventSucceed, want: StateIdle, wantErr: true},
		{name: "validating reset invalid", state: StateValidating, event: EventReset, want: StateValidating, wantErr: true},
		{name: "validating reject valid", state: StateValidating, event: EventReject, want: StateIdle},
		{name: "pending validate invalid", state: StatePending, event: EventValidate, want: StatePending, wantErr: true},
		{name: "pending reset invalid", state: StatePending, event: EventReset, want: StatePending, wantErr: true},
		{name: "pending fail valid", state: StatePending, event: EventFail, want: StateFailed},
		{name: "failed succeed invalid", state: StateFailed, event: EventSucceed, want: StateFailed, wantErr: true},
		{name: "succeeded fail invalid", state: StateSucceeded, event: EventFail, want: StateSucceeded, wantErr: true},
		{name: "failed reset valid", state: StateFailed, event: EventReset, want: StateIdle},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := OperationTransition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCaptureTransition(t *testing.T) {
	next, err := CaptureTransition(StateIdle, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	for _, event := range []Event{EventStop, EventCancel, EventFail} {
		next, err := CaptureTransition(StateRecording, event)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}

	next, err = CaptureTransition(StateRecording, EventStart)
	require.Error(t, err)
	require.Equal(t, StateRecording, next)

	next, err = CaptureTransition(StateIdle, EventStop)
	require.Error(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := OperationTransition(State("mystery"), EventValidate)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)

	_, err = CaptureTransition(StatePending, EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
}

func TestTerminal(t *testing.T) {
	require.True(t, Terminal(StateSucceeded))
	require.True(t, Terminal(StateFailed))
	require.False(t, Terminal(StatePending))
	require.False(t, Terminal(StateIdle))
}
