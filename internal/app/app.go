package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/voxseal/internal/audio"
	"github.com/rbright/voxseal/internal/cli"
	"github.com/rbright/voxseal/internal/config"
	"github.com/rbright/voxseal/internal/doctor"
	"github.com/rbright/voxseal/internal/ipc"
	"github.com/rbright/voxseal/internal/logging"
	"github.com/rbright/voxseal/internal/operation"
	"github.com/rbright/voxseal/internal/present"
	"github.com/rbright/voxseal/internal/service"
	"github.com/rbright/voxseal/internal/session"
	"github.com/rbright/voxseal/internal/upload"
	"github.com/rbright/voxseal/internal/version"
)

const (
	binaryName     = "voxseal"
	forwardTimeout = 220 * time.Millisecond
)

// Runner executes one command line. Stdin feeds record-stop and dialog
// acknowledgments; nil means no interactive input.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	Logger *slog.Logger

	// Microphone overrides the PulseAudio capture source.
	Microphone audio.Microphone
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr, Stdin: os.Stdin}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	cfg := applyFlags(cfgLoaded.Config, parsed)

	logRuntime, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"dotenv", cfgLoaded.DotEnv,
		"service", cfg.Service.BaseURL,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandEmbed, cli.CommandExtract, cli.CommandCompare:
		return r.commandOperation(ctx, parsed, cfg, logger)
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, cfgLoaded, cfg)
	case cli.CommandDevices:
		return r.commandDevices(ctx, cfg)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.CommandCancel)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// applyFlags layers command-line overrides over the loaded config.
func applyFlags(cfg config.Config, parsed cli.Parsed) config.Config {
	if parsed.Output != "" {
		cfg.Output.Format = parsed.Output
	}
	if parsed.OutDir != "" {
		cfg.Output.Dir = parsed.OutDir
	}
	if parsed.Yes {
		cfg.UI.AutoAck = true
	}
	return cfg
}

func (r Runner) commandDoctor(ctx context.Context, loaded config.Loaded, cfg config.Config) int {
	loaded.Config = cfg
	report := doctor.Run(ctx, loaded)
	if err := r.writeReport(cfg, report, report.String()); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if report.OK() {
		return 0
	}
	return 1
}

func (r Runner) commandDevices(ctx context.Context, cfg config.Config) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	if present.Format(cfg.Output.Format) != present.FormatText {
		if err := present.Encode(r.Stdout, devices, present.Format(cfg.Output.Format)); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, err := ipc.Forward(ctx, socketPath, ipc.CommandStatus, forwardTimeout)
	switch {
	case errors.Is(err, ipc.ErrNoOwner):
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	state := resp.State
	if state == "" {
		state = "idle"
	}
	if resp.Bytes > 0 {
		fmt.Fprintf(r.Stdout, "%s (%s captured)\n", state, upload.FormatSize(uint64(resp.Bytes), 1))
		return 0
	}
	fmt.Fprintln(r.Stdout, state)
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, err := ipc.Forward(ctx, socketPath, command, forwardTimeout)
	if errors.Is(err, ipc.ErrNoOwner) {
		fmt.Fprintln(r.Stderr, "error: no active voxseal recording")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: forward command %q: %v\n", command, err)
		return 1
	}
	if !resp.OK {
		fmt.Fprintf(r.Stderr, "error: %s\n", resp.Error)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// writeReport prints text in text mode and encodes v otherwise.
func (r Runner) writeReport(cfg config.Config, v any, text string) error {
	format := present.Format(cfg.Output.Format)
	if format == present.FormatText {
		_, err := fmt.Fprintln(r.Stdout, text)
		return err
	}
	return present.Encode(r.Stdout, v, format)
}

// lines delivers Stdin one line at a time and closes on EOF.
func (r Runner) lines(ctx context.Context) <-chan string {
	ch := make(chan string)
	if r.Stdin == nil {
		close(ch)
		return ch
	}
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r.Stdin)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"cancelled", result.Cancelled,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"audio_device", result.Recording.Device,
		"bytes_captured", result.Recording.PCMBytes(),
		"audio_ms", result.Recording.Duration().Milliseconds(),
	}

	if result.Err != nil {
		logger.Error("recording failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("recording complete", fields...)
}

func newServiceClient(cfg config.ServiceConfig, logger *slog.Logger) *service.Client {
	opts := []service.Option{
		service.WithRatePerMinute(cfg.RatePerMinute),
		service.WithLogger(logger),
	}
	if cfg.TimeoutMS > 0 {
		opts = append(opts, service.WithTimeout(time.Duration(cfg.TimeoutMS)*time.Millisecond))
	}
	return service.New(cfg.BaseURL, opts...)
}

var _ operation.Service = (*service.Client)(nil)
