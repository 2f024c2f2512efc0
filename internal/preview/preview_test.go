package preview

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/voxseal/internal/config"
	"github.com/stretchr/testify/require"
)

func TestCommandAppendsPath(t *testing.T) {
	l := New(config.Default().Preview, nil)

	argv, err := l.Command("/tmp/out/stego_image.png", "image/png")
	require.NoError(t, err)
	require.Equal(t, []string{"xdg-open", "/tmp/out/stego_image.png"}, argv)
}

func TestCommandSubstitutesPlaceholder(t *testing.T) {
	cfg := config.Default().Preview
	cfg.AudioCmd = config.CommandConfig{Argv: []string{"mpv", "--no-video", "file={}"}}
	l := New(cfg, nil)

	argv, err := l.Command("/tmp/a.wav", "audio/wav")
	require.NoError(t, err)
	require.Equal(t, []string{"mpv", "--no-video", "file=/tmp/a.wav"}, argv)
}

func TestCommandWithoutConfiguredCommand(t *testing.T) {
	_, err := New(config.PreviewConfig{}, nil).Command("/tmp/a.wav", "audio/wav")
	require.ErrorIs(t, err, ErrNoCommand)

	_, err = New(config.Default().Preview, nil).Command("/tmp/a.bin", "application/octet-stream")
	require.ErrorIs(t, err, ErrNoCommand)
}

func TestOpenRunsConfiguredCommand(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "args.txt")
	script := filepath.Join(dir, "viewer")
	body := "#!/usr/bin/env bash\nprintf '%s\\n' \"$@\" > \"" + logPath + "\"\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	cfg := config.PreviewConfig{ImageCmd: config.CommandConfig{Argv: []string{script, "--fullscreen"}}}
	require.NoError(t, New(cfg, nil).Open(context.Background(), "/tmp/stego_image.png", "image/png"))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Equal(t, []string{"--fullscreen", "/tmp/stego_image.png"}, strings.Fields(string(data)))
}

func TestOpenReportsCommandOutput(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "player")
	require.NoError(t, os.WriteFile(script, []byte("#!/usr/bin/env bash\necho 'no audio device' >&2\nexit 3\n"), 0o755))

	cfg := config.PreviewConfig{AudioCmd: config.CommandConfig{Argv: []string{script}}}
	err := New(cfg, nil).Open(context.Background(), "/tmp/a.wav", "audio/wav")
	require.ErrorContains(t, err, "no audio device")
}

func TestRunCommandRejectsEmptyArgv(t *testing.T) {
	require.ErrorContains(t, runCommand(context.Background(), nil), "argv cannot be empty")
}
