// Package fsm holds the pure state machines behind operation submission and
// microphone capture.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StatePending    State = "pending"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"

	StateRecording State = "recording"
	// StateStopped marks a finished recording session; the capture machine
	// itself returns to idle.
	StateStopped State = "stopped"
)

const (
	EventValidate Event = "validate"
	EventReject   Event = "reject"
	EventSubmit   Event = "submit"
	EventSucceed  Event = "succeed"
	EventFail     Event = "fail"
	EventReset    Event = "reset"

	EventStart  Event = "start"
	EventStop   Event = "stop"
	EventCancel Event = "cancel"
)

// OperationTransition drives one embed/extract/compare controller.
//
//	idle|succeeded|failed --validate--> validating
//	validating --submit--> pending, --reject--> idle
//	pending --succeed--> succeeded, --fail--> failed
//	idle|succeeded|failed --reset--> idle
func OperationTransition(current State, event Event) (State, error) {
	switch current {
	case StateIdle, StateSucceeded, StateFailed:
		switch event {
		case EventValidate:
			return StateValidating, nil
		case EventReset:
			return StateIdle, nil
		}
	case StateValidating:
		switch event {
		case EventSubmit:
			return StatePending, nil
		case EventReject:
			return StateIdle, nil
		}
	case StatePending:
		switch event {
		case EventSucceed:
			return StateSucceeded, nil
		case EventFail:
			return StateFailed, nil
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
	return current, invalidTransition(current, event)
}

// CaptureTransition drives the microphone session. Every way out of recording
// lands back in idle.
func CaptureTransition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		if event == EventStart {
			return StateRecording, nil
		}
	case StateRecording:
		switch event {
		case EventStop, EventCancel, EventFail:
			return StateIdle, nil
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
	return current, invalidTransition(current, event)
}

// Terminal reports whether an operation phase holds a finished outcome.
func Terminal(state State) bool {
	return state == StateSucceeded || state == StateFailed
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
