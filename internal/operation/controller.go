// Package operation runs the embed, extract and compare workflows: it holds
// validated inputs, allows one request in flight at a time, and keeps the
// user-visible state consistent across success, failure and reset.
package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/voxseal/internal/fsm"
	"github.com/rbright/voxseal/internal/service"
	"github.com/rbright/voxseal/internal/upload"
)

var (
	ErrInFlight  = errors.New("a request is already in flight")
	ErrModalOpen = errors.New("acknowledge the current result first")
	ErrNoModal   = errors.New("no result awaiting acknowledgment")
)

// Service is the remote API the controllers submit to.
type Service interface {
	Embed(ctx context.Context, image upload.File, audio upload.File) (service.EmbedResult, error)
	Extract(ctx context.Context, image upload.File) (service.ExtractResult, error)
	Compare(ctx context.Context, a upload.File, b upload.File) (service.CompareResult, error)
}

// Indicator mirrors the controller phase to the user while a request runs.
type Indicator interface {
	ShowPending(context.Context, Kind)
	ShowSucceeded(context.Context, Kind)
	ShowError(context.Context, string)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowPending(context.Context, Kind)   {}
func (noopIndicator) ShowSucceeded(context.Context, Kind) {}
func (noopIndicator) ShowError(context.Context, string)   {}
func (noopIndicator) Hide(context.Context)                {}

// UIState is the snapshot rendered for one operation.
type UIState struct {
	Phase        fsm.State
	ErrorMessage string
	ModalOpen    bool
}

// Controller owns one operation's inputs, request lifecycle and result.
type Controller struct {
	kind      Kind
	logger    *slog.Logger
	service   Service
	indicator Indicator

	mu        sync.Mutex
	state     UIState
	inputs    *inputs
	result    *Result
	cancel    context.CancelFunc
	listeners []func(UIState)
}

func New(kind Kind, logger *slog.Logger, svc Service, indicator Indicator) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if indicator == nil {
		indicator = noopIndicator{}
	}
	return &Controller{
		kind:      kind,
		logger:    logger.With("operation", string(kind)),
		service:   svc,
		indicator: indicator,
		state:     UIState{Phase: fsm.StateIdle},
		inputs:    newInputs(kind),
	}
}

func NewEmbed(logger *slog.Logger, svc Service, indicator Indicator) *Controller {
	return New(KindEmbed, logger, svc, indicator)
}

func NewExtract(logger *slog.Logger, svc Service, indicator Indicator) *Controller {
	return New(KindExtract, logger, svc, indicator)
}

func NewCompare(logger *slog.Logger, svc Service, indicator Indicator) *Controller {
	return New(KindCompare, logger, svc, indicator)
}

func (c *Controller) Kind() Kind { return c.kind }

func (c *Controller) State() UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the stored outcome of the last successful submission.
func (c *Controller) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return Result{}, false
	}
	return *c.result, true
}

// Selected returns the accepted file currently held in slot.
func (c *Controller) Selected(slot Slot) (upload.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputs.get(slot)
}

// OnChange registers fn to receive every state snapshot after it changes.
func (c *Controller) OnChange(fn func(UIState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Select validates candidate for slot. A rejection surfaces its reason and
// leaves every previously accepted input in place.
func (c *Controller) Select(slot Slot, candidate upload.Candidate) (upload.File, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return upload.File{}, err
	}

	file, err := c.inputs.set(slot, candidate)
	if err != nil {
		c.state.ErrorMessage = err.Error()
	} else {
		c.state.ErrorMessage = ""
		c.logger.Debug("input selected", "slot", string(slot), "name", file.Name(), "size", file.Size())
	}
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	notify(listeners, snapshot)
	return file, err
}

// SetSecondSource switches the compare flow between an uploaded and a
// recorded second sample, discarding the other.
func (c *Controller) SetSecondSource(source SecondSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind != KindCompare {
		return fmt.Errorf("%s has no second audio source", c.kind)
	}
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.inputs.setSource(source)
	return nil
}

// UseRecording installs a finished recording as the second compare sample.
func (c *Controller) UseRecording(file upload.File) error {
	c.mu.Lock()
	if c.kind != KindCompare {
		c.mu.Unlock()
		return fmt.Errorf("%s does not accept recordings", c.kind)
	}
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.inputs.setSource(SourceRecord)
	c.inputs.recording = file
	c.state.ErrorMessage = ""
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

func (c *Controller) editableLocked() error {
	if c.state.Phase == fsm.StatePending {
		return ErrInFlight
	}
	if c.state.ModalOpen {
		return ErrModalOpen
	}
	return nil
}

// Submit sends exactly one request built from the held inputs and waits for
// it to settle. A missing input fails before any network call and leaves the
// phase unchanged.
func (c *Controller) Submit(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}

	prior := c.state.Phase
	validating, err := fsm.OperationTransition(prior, fsm.EventValidate)
	if err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	c.state.Phase = validating

	req, err := c.inputs.build(c.kind)
	if err != nil {
		if fsm.Terminal(prior) {
			c.state.Phase = prior
		} else {
			c.state.Phase, _ = fsm.OperationTransition(validating, fsm.EventReject)
		}
		c.state.ErrorMessage = err.Error()
		snapshot, listeners := c.snapshotLocked()
		c.mu.Unlock()

		c.logger.Info("submission rejected", "reason", err.Error())
		notify(listeners, snapshot)
		return Result{}, err
	}

	c.state.Phase, _ = fsm.OperationTransition(validating, fsm.EventSubmit)
	c.state.ErrorMessage = ""
	c.result = nil

	requestID := uuid.NewString()
	reqCtx, cancel := context.WithCancel(service.WithRequestID(ctx, requestID))
	c.cancel = cancel
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()
	defer cancel()

	notify(listeners, snapshot)
	c.indicator.ShowPending(ctx, c.kind)

	started := time.Now()
	result, err := c.dispatch(reqCtx, req)
	if err != nil && reqCtx.Err() != nil && !errors.Is(err, service.ErrCancelled) {
		err = fmt.Errorf("%w: %w", service.ErrCancelled, err)
	}

	c.mu.Lock()
	c.cancel = nil
	if err != nil {
		c.state.Phase, _ = fsm.OperationTransition(c.state.Phase, fsm.EventFail)
		c.state.ErrorMessage = Message(err)
	} else {
		c.state.Phase, _ = fsm.OperationTransition(c.state.Phase, fsm.EventSucceed)
		c.result = &result
		c.state.ModalOpen = opensModal(result)
	}
	snapshot, listeners = c.snapshotLocked()
	c.mu.Unlock()

	attrs := []any{
		"request_id", requestID,
		"phase", string(snapshot.Phase),
		"duration_ms", time.Since(started).Milliseconds(),
	}
	if err != nil {
		c.logger.Warn("submission failed", append(attrs, "error_kind", service.ErrorKind(err), "error", err.Error())...)
		c.indicator.ShowError(ctx, snapshot.ErrorMessage)
	} else {
		c.logger.Info("submission succeeded", append(attrs, "modal_open", snapshot.ModalOpen)...)
		c.indicator.ShowSucceeded(ctx, c.kind)
	}
	notify(listeners, snapshot)
	return result, err
}

func (c *Controller) dispatch(ctx context.Context, req Request) (Result, error) {
	switch r := req.(type) {
	case EmbedRequest:
		res, err := c.service.Embed(ctx, r.Image, r.Audio)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindEmbed, Embed: &res}, nil
	case ExtractRequest:
		res, err := c.service.Extract(ctx, r.Image)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindExtract, Extract: &res}, nil
	case CompareRequest:
		res, err := c.service.Compare(ctx, r.AudioA, r.AudioB)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindCompare, Compare: &res}, nil
	default:
		return Result{}, fmt.Errorf("unsupported request %T", req)
	}
}

// opensModal reports whether a result needs explicit acknowledgment: every
// embed, and an extract that carries a match score.
func opensModal(result Result) bool {
	switch result.Kind {
	case KindEmbed:
		return true
	case KindExtract:
		return result.Extract != nil && result.Extract.MatchResult != nil
	default:
		return false
	}
}

// Cancel aborts the in-flight request, if any.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Reset returns to idle and drops inputs, result, error and modal. It is a
// no-op on an idle controller and refused while a request is in flight.
func (c *Controller) Reset() error {
	c.mu.Lock()
	next, err := fsm.OperationTransition(c.state.Phase, fsm.EventReset)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("reset: %w", err)
	}
	changed := c.state != (UIState{Phase: next}) || c.result != nil
	c.state = UIState{Phase: next}
	c.result = nil
	c.inputs.clear()
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		c.indicator.Hide(context.Background())
		notify(listeners, snapshot)
	}
	return nil
}

// Acknowledge closes the outcome modal, which fully resets the controller.
func (c *Controller) Acknowledge() error {
	c.mu.Lock()
	open := c.state.ModalOpen
	c.mu.Unlock()
	if !open {
		return ErrNoModal
	}
	return c.Reset()
}

func (c *Controller) snapshotLocked() (UIState, []func(UIState)) {
	return c.state, append(([]func(UIState))(nil), c.listeners...)
}

func notify(listeners []func(UIState), state UIState) {
	for _, fn := range listeners {
		fn(state)
	}
}
