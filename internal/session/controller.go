// Package session owns one microphone capture at a time and turns it into a
// WAV recording usable as an upload.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/voxseal/internal/audio"
	"github.com/rbright/voxseal/internal/fsm"
	"github.com/rbright/voxseal/internal/ipc"
)

var (
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
)

// CaptureError reports a microphone that could not be opened or released.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("microphone %s failed: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowError(context.Context, string)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) Hide(context.Context)              {}

// Controller drives the capture state machine around one Microphone.
type Controller struct {
	logger    *slog.Logger
	mic       audio.Microphone
	indicator Indicator

	// op serializes Start/Stop/Cancel; mu guards the fields below it.
	op sync.Mutex

	mu        sync.RWMutex
	state     fsm.State
	stream    audio.Stream
	chunks    [][]byte
	collected chan struct{}
	startedAt time.Time
	// requested is set once a stop or cancel is queued for the session.
	requested bool

	actions chan action
}

func NewController(logger *slog.Logger, mic audio.Microphone, indicator Indicator) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if indicator == nil {
		indicator = noopIndicator{}
	}
	return &Controller{
		logger:    logger,
		mic:       mic,
		indicator: indicator,
		state:     fsm.StateIdle,
		actions:   make(chan action, 1),
	}
}

func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// BytesCaptured reports PCM received so far in the active session.
func (c *Controller) BytesCaptured() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, chunk := range c.chunks {
		n += len(chunk)
	}
	return n
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.CaptureTransition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Start acquires the microphone and begins accumulating chunks. A failed
// acquisition leaves the controller idle.
func (c *Controller) Start(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	state := c.State()
	if state == fsm.StateRecording {
		return ErrAlreadyRecording
	}
	if _, err := fsm.CaptureTransition(state, fsm.EventStart); err != nil {
		return err
	}
	if c.mic == nil {
		return &CaptureError{Op: "open", Err: errors.New("no microphone configured")}
	}

	stream, err := c.mic.Open(ctx)
	if err != nil {
		c.logger.Warn("microphone unavailable", "error", err.Error())
		return &CaptureError{Op: "open", Err: err}
	}

	collected := make(chan struct{})
	c.mu.Lock()
	c.stream = stream
	c.chunks = nil
	c.collected = collected
	c.startedAt = time.Now()
	c.requested = false
	c.mu.Unlock()
	c.drainActions()

	if err := c.transition(fsm.EventStart); err != nil {
		_ = stream.Close()
		return err
	}

	go c.collect(stream, collected)
	c.logger.Info("recording started", "device", stream.Device().ID)
	return nil
}

func (c *Controller) collect(stream audio.Stream, done chan<- struct{}) {
	defer close(done)
	for chunk := range stream.Chunks() {
		c.mu.Lock()
		c.chunks = append(c.chunks, chunk)
		c.mu.Unlock()
	}
}

// release closes the active stream exactly once and waits for the chunk
// collector to drain it.
func (c *Controller) release() ([][]byte, audio.Stream, time.Time, error) {
	c.mu.Lock()
	stream := c.stream
	collected := c.collected
	startedAt := c.startedAt
	c.stream = nil
	c.collected = nil
	c.mu.Unlock()

	if stream == nil {
		return nil, nil, startedAt, nil
	}

	closeErr := stream.Close()
	<-collected

	c.mu.Lock()
	chunks := c.chunks
	c.chunks = nil
	c.mu.Unlock()

	if closeErr != nil {
		closeErr = &CaptureError{Op: "release", Err: closeErr}
	}
	return chunks, stream, startedAt, closeErr
}

// Stop ends the session and returns the recording as a WAV blob. Zero
// captured chunks still produce a valid header-only blob.
func (c *Controller) Stop() (Recording, error) {
	c.op.Lock()
	defer c.op.Unlock()

	if c.State() != fsm.StateRecording {
		return Recording{}, ErrNotRecording
	}

	chunks, stream, startedAt, err := c.release()
	if terr := c.transition(fsm.EventStop); terr != nil && err == nil {
		err = terr
	}

	device := ""
	if stream != nil {
		device = stream.Device().ID
	}
	rec := newRecording(chunks, device, startedAt)
	c.logger.Info("recording stopped",
		"device", rec.Device,
		"chunks", len(rec.Chunks),
		"bytes_captured", rec.PCMBytes(),
		"duration_ms", rec.Duration().Milliseconds(),
	)
	return rec, err
}

// Cancel discards the captured audio and releases the microphone.
func (c *Controller) Cancel() error {
	c.op.Lock()
	defer c.op.Unlock()

	if c.State() != fsm.StateRecording {
		return ErrNotRecording
	}

	chunks, _, _, err := c.release()
	_ = c.transition(fsm.EventCancel)
	c.logger.Info("recording cancelled", "chunks_discarded", len(chunks))
	return err
}

// Result is the outcome of one interactive Run.
type Result struct {
	State      fsm.State
	Recording  Recording
	Cancelled  bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run records until a stop or cancel is requested, or ctx ends. Context
// cancellation discards the audio like Cancel does.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}
	finish := func() Result {
		result.State = c.State()
		result.FinishedAt = time.Now()
		return result
	}

	if err := c.Start(ctx); err != nil {
		c.indicator.ShowError(ctx, "Unable to start recording")
		result.Err = err
		return finish()
	}
	c.indicator.ShowRecording(ctx)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
		defer cancel()
		c.indicator.Hide(cleanupCtx)
	}()

	select {
	case <-ctx.Done():
		if err := c.Cancel(); err != nil {
			c.logger.Warn("release after interrupt failed", "error", err.Error())
		}
		result.Err = ctx.Err()
		return finish()
	case a := <-c.actions:
		switch a {
		case actionCancel:
			result.Err = c.Cancel()
			result.Cancelled = true
			return finish()
		case actionStop:
			rec, err := c.Stop()
			result.Recording = rec
			result.Err = err
			return finish()
		default:
			_ = c.Cancel()
			result.Err = fmt.Errorf("unknown action %d", a)
			return finish()
		}
	}
}

// RequestStop asks a running Run to stop and keep the audio.
func (c *Controller) RequestStop() ipc.Response { return c.request(actionStop) }

// RequestCancel asks a running Run to discard the audio.
func (c *Controller) RequestCancel() ipc.Response { return c.request(actionCancel) }

// Handle serves record-control commands for the active session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(c.State()), Bytes: int64(c.BytesCaptured()), Message: "status"}
	case ipc.CommandStop:
		return c.RequestStop()
	case ipc.CommandCancel:
		return c.RequestCancel()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) request(a action) ipc.Response {
	verb := "stop"
	if a == actionCancel {
		verb = "cancel"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.state
	if state != fsm.StateRecording {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", verb, state)}
	}
	if c.requested {
		return ipc.Response{OK: true, State: string(state), Message: "already requested"}
	}

	select {
	case c.actions <- a:
		c.requested = true
		return ipc.Response{OK: true, State: string(state), Message: verb + " requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "already requested"}
	}
}

// drainActions drops an action left over from a previous session.
func (c *Controller) drainActions() {
	for {
		select {
		case <-c.actions:
		default:
			return
		}
	}
}
