package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/voxseal/internal/audio"
	"github.com/rbright/voxseal/internal/cli"
	"github.com/rbright/voxseal/internal/config"
	"github.com/rbright/voxseal/internal/indicator"
	"github.com/rbright/voxseal/internal/ipc"
	"github.com/rbright/voxseal/internal/operation"
	"github.com/rbright/voxseal/internal/present"
	"github.com/rbright/voxseal/internal/preview"
	"github.com/rbright/voxseal/internal/session"
	"github.com/rbright/voxseal/internal/upload"
)

var errRecordingCancelled = errors.New("recording cancelled")

const dialogHint = "Press Enter to continue"

type selection struct {
	slot operation.Slot
	path string
}

func selections(parsed cli.Parsed) []selection {
	switch parsed.Command {
	case cli.CommandEmbed:
		return []selection{{operation.SlotImage, parsed.Image}, {operation.SlotAudio, parsed.Audio}}
	case cli.CommandExtract:
		return []selection{{operation.SlotImage, parsed.Image}}
	case cli.CommandCompare:
		return []selection{{operation.SlotAudio1, parsed.Audio1}, {operation.SlotAudio2, parsed.Audio2}}
	default:
		return nil
	}
}

// commandOperation selects inputs, submits once, then presents the result
// and holds the outcome dialog until it is acknowledged.
func (r Runner) commandOperation(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	notifier := indicator.New(cfg.UI, r.Stderr, logger)
	ctrl := operation.New(operation.Kind(parsed.Command), logger, newServiceClient(cfg.Service, logger), notifier)
	ctrl.OnChange(func(state operation.UIState) {
		logger.Debug("operation state", "operation", parsed.Command, "phase", state.Phase, "modal_open", state.ModalOpen)
	})
	renderer := present.NewRenderer(cfg.UI.Color)
	fail := func(msg string) int {
		fmt.Fprintln(r.Stderr, renderer.Error(msg))
		return 1
	}

	var input <-chan string
	stdinLines := func() <-chan string {
		if input == nil {
			input = r.lines(ctx)
		}
		return input
	}

	for _, sel := range selections(parsed) {
		if sel.path == "" {
			continue
		}
		candidate, err := upload.Load(sel.path)
		if err != nil {
			return fail(err.Error())
		}
		file, err := ctrl.Select(sel.slot, candidate)
		if err != nil {
			return fail(operation.Message(err))
		}
		fmt.Fprintln(r.Stderr, renderer.Selected(file))
	}

	if parsed.Command == cli.CommandCompare {
		source := operation.SourceUpload
		if parsed.Record {
			source = operation.SourceRecord
		}
		if err := ctrl.SetSecondSource(source); err != nil {
			return fail(operation.Message(err))
		}
	}

	if parsed.Record {
		rec, err := r.record(ctx, cfg, logger, notifier, stdinLines())
		if err != nil {
			if errors.Is(err, errRecordingCancelled) {
				return fail(err.Error())
			}
			return fail(operation.Message(err))
		}
		file := rec.File()
		if err := ctrl.UseRecording(file); err != nil {
			return fail(operation.Message(err))
		}
		fmt.Fprintln(r.Stderr, renderer.Selected(file))
	}

	result, err := ctrl.Submit(ctx)
	if err != nil {
		return fail(operation.Message(err))
	}

	view, err := present.Build(result)
	if err != nil {
		return fail(err.Error())
	}
	if _, err := present.SaveArtifacts(cfg.Output.Dir, view); err != nil {
		return fail(err.Error())
	}

	format := present.Format(cfg.Output.Format)
	if format == present.FormatText {
		fmt.Fprintln(r.Stdout, renderer.Render(view))
	} else if err := present.Output(r.Stdout, view, format); err != nil {
		return fail(err.Error())
	}

	if parsed.Preview {
		r.preview(ctx, cfg, logger, view)
	}

	text, ok := present.ModalText(result)
	if !ok {
		return 0
	}
	modal := present.Open(ctrl, text)
	if cfg.UI.AutoAck {
		fmt.Fprintln(r.Stderr, renderer.Dialog(text, ""))
		err = modal.Acknowledge()
	} else {
		fmt.Fprintln(r.Stderr, renderer.Dialog(text, dialogHint))
		err = modal.Await(ctx, stdinLines())
	}
	if err != nil {
		return fail(err.Error())
	}
	return 0
}

func (r Runner) preview(ctx context.Context, cfg config.Config, logger *slog.Logger, view present.View) {
	launcher := preview.New(cfg.Preview, logger)
	for _, artifact := range view.Artifacts() {
		if artifact.Path == "" {
			continue
		}
		if err := launcher.Open(ctx, artifact.Path, artifact.MIMEType); err != nil {
			fmt.Fprintf(r.Stderr, "warning: preview %s: %v\n", artifact.Name, err)
			logger.Warn("preview failed", "artifact", artifact.Name, "error", err.Error())
		}
	}
}

// record captures the second compare sample. It owns the record-control
// socket for its duration so `voxseal stop` and `voxseal cancel` reach it;
// a line on stdin also stops it.
func (r Runner) record(ctx context.Context, cfg config.Config, logger *slog.Logger, notifier session.Indicator, lines <-chan string) (session.Recording, error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return session.Recording{}, err
	}
	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		return session.Recording{}, err
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	mic := r.Microphone
	if mic == nil {
		mic = audio.PulseMicrophone{
			Preference: audio.Preference{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback},
			OnSelect: func(sel audio.Selection) {
				if sel.Warning != "" {
					fmt.Fprintf(r.Stderr, "warning: %s\n", sel.Warning)
				}
				logger.Info("audio device selected", "device", sel.Device.ID, "fallback", sel.Fallback)
			},
		}
	}
	controller := session.NewController(logger, mic, notifier)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	done := make(chan struct{})
	go stopOnLine(controller, lines, done)

	fmt.Fprintln(r.Stderr, "Press Enter or run `voxseal stop` to finish; `voxseal cancel` discards.")
	result := controller.Run(ctx)
	close(done)

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		logger.Warn("ipc server failed", "error", serverErr.Error())
	}
	logSessionResult(logger, result)

	switch {
	case result.Cancelled:
		return session.Recording{}, errRecordingCancelled
	case result.Err != nil:
		return session.Recording{}, result.Err
	default:
		return result.Recording, nil
	}
}

// stopOnLine requests a stop once a line arrives, retrying until capture
// has actually started. A closed line source leaves stopping to IPC.
func stopOnLine(controller *session.Controller, lines <-chan string, done <-chan struct{}) {
	select {
	case _, ok := <-lines:
		if !ok {
			return
		}
	case <-done:
		return
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !controller.RequestStop().OK {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
