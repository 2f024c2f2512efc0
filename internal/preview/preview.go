// Package preview opens saved artifacts in the configured player or viewer.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/rbright/voxseal/internal/config"
)

// ErrNoCommand reports a media type with no configured preview command.
var ErrNoCommand = errors.New("no preview command configured")

type Launcher struct {
	cfg    config.PreviewConfig
	logger *slog.Logger
}

func New(cfg config.PreviewConfig, logger *slog.Logger) *Launcher {
	return &Launcher{cfg: cfg, logger: logger}
}

// Command returns the argv that would preview path.
func (l *Launcher) Command(path string, mimeType string) ([]string, error) {
	var cmd config.CommandConfig
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		cmd = l.cfg.AudioCmd
	case strings.HasPrefix(mimeType, "image/"):
		cmd = l.cfg.ImageCmd
	}
	if cmd.Program() == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoCommand, mimeType)
	}
	return cmd.Expand(path), nil
}

// Open runs the preview command for path and waits for it to exit.
func (l *Launcher) Open(ctx context.Context, path string, mimeType string) error {
	argv, err := l.Command(path, mimeType)
	if err != nil {
		return err
	}
	if l.logger != nil {
		l.logger.Debug("preview", "argv", argv)
	}
	return runCommand(ctx, argv)
}

// runCommand executes argv, folding its output into the error on failure.
func runCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("run %s: %w", argv[0], err)
		}
		return fmt.Errorf("run %s: %w (%s)", argv[0], err, trimmed)
	}
	return nil
}
