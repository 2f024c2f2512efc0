// Package indicator reports recording and request progress to the user,
// either as terminal status lines or as desktop notifications.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rbright/voxseal/internal/config"
	"github.com/rbright/voxseal/internal/operation"
)

const (
	BackendTerminal = "terminal"
	BackendDesktop  = "desktop"
	BackendNone     = "none"
)

// Notifier serves both the capture session and the operation controllers.
type Notifier struct {
	cfg      config.UIConfig
	out      io.Writer
	logger   *slog.Logger
	messages messages
	styles   styles

	mu                    sync.Mutex
	desktopNotificationID uint32
}

type styles struct {
	busy  lipgloss.Style
	ok    lipgloss.Style
	error lipgloss.Style
}

// New creates a notifier for the configured backend. Terminal lines go to out.
func New(cfg config.UIConfig, out io.Writer, logger *slog.Logger) *Notifier {
	if out == nil {
		out = io.Discard
	}
	n := &Notifier{
		cfg:      cfg,
		out:      out,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		styles: styles{
			busy:  lipgloss.NewStyle(),
			ok:    lipgloss.NewStyle(),
			error: lipgloss.NewStyle(),
		},
	}
	if cfg.Color {
		n.styles = styles{
			busy:  lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")),
			ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")),
			error: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f38ba8")),
		}
	}
	return n
}

func (n *Notifier) ShowRecording(ctx context.Context) {
	n.show(ctx, n.styles.busy, "●", n.messages.recording, 0)
}

func (n *Notifier) ShowPending(ctx context.Context, kind operation.Kind) {
	n.show(ctx, n.styles.busy, "…", n.messages.pendingText(kind), 0)
}

func (n *Notifier) ShowSucceeded(ctx context.Context, kind operation.Kind) {
	n.show(ctx, n.styles.ok, "✓", n.messages.succeededText(kind), 0)
}

// ShowError displays an error-state message; empty text uses the default.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if text == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	n.show(ctx, n.styles.error, "✗", text, timeout)
}

// Hide dismisses the active desktop notification.
func (n *Notifier) Hide(ctx context.Context) {
	if n.backend() != BackendDesktop {
		return
	}
	n.run(ctx, n.dismissDesktop)
}

func (n *Notifier) backend() string {
	backend := strings.ToLower(strings.TrimSpace(n.cfg.Indicator))
	if backend == "" {
		return BackendTerminal
	}
	return backend
}

func (n *Notifier) show(ctx context.Context, style lipgloss.Style, icon string, text string, timeoutMS int) {
	switch n.backend() {
	case BackendNone:
		return
	case BackendDesktop:
		if timeoutMS == 0 {
			timeoutMS = 300000
		}
		n.run(ctx, func(ctx context.Context) error {
			return n.notifyDesktop(ctx, timeoutMS, text)
		})
	default:
		if _, err := fmt.Fprintln(n.out, style.Render(icon+" "+text)); err != nil {
			n.log("indicator write failed", err)
		}
	}
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "voxseal"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
