package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbright/voxseal/internal/audio"
	"github.com/rbright/voxseal/internal/cli"
	"github.com/rbright/voxseal/internal/config"
	"github.com/rbright/voxseal/internal/fsm"
	"github.com/rbright/voxseal/internal/ipc"
	"github.com/rbright/voxseal/internal/servicetest"
	"github.com/rbright/voxseal/internal/session"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "voxseal")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerStatusIdleWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerStopReturnsNoActiveRecording(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no active voxseal recording")
}

func TestRunnerForwardsCommandsToActiveRecording(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	commands := make(chan string, 8)

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		commands <- req.Command
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, State: "recording", Bytes: 2048}
		case ipc.CommandStop, ipc.CommandCancel:
			return ipc.Response{OK: true, Message: req.Command + " handled"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	outputs := map[string]string{}
	for _, cmd := range []string{"status", "stop", "cancel"} {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner := Runner{Stdout: stdout, Stderr: stderr}

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 0, exitCode, cmd)
		require.Empty(t, stderr.String(), cmd)
		outputs[cmd] = stdout.String()
	}

	got := []string{<-commands, <-commands, <-commands}
	require.ElementsMatch(t, []string{"status", "stop", "cancel"}, got)
	require.Equal(t, "recording (2 KB captured)\n", outputs["status"])
	require.Equal(t, "stop handled\n", outputs["stop"])
}

func TestRunnerForwardReportsRejectedCommand(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: false, State: "stopped", Error: "cannot stop from state stopped"}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "cannot stop from state stopped")
}

func TestRunnerStatusFallsBackToIdleWhenServerStateEmpty(t *testing.T) {
	paths := setupRunnerEnv(t, "")

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		require.Equal(t, ipc.CommandStatus, req.Command)
		return ipc.Response{OK: true, State: ""}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "[OK] config: loaded")
	require.Contains(t, stdout.String(), "[OK] service: reachable at "+srv.URL)
	require.Contains(t, stdout.String(), "[FAIL] audio.device")
}

func TestRunnerDoctorJSONOutput(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "-o", "json", "doctor"})
	require.Equal(t, 1, exitCode)

	var report struct {
		Checks []struct {
			Name string `json:"name"`
			Pass bool   `json:"pass"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	require.NotEmpty(t, report.Checks)
	require.Equal(t, "config", report.Checks[0].Name)
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t, "")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerEmbedSavesStegoImage(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)
	image := writeInput(t, "cover.png", 10*1024)
	voice := writeInput(t, "voice.wav", 2048)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{
		"--config", paths.configPath, "--out-dir", paths.outDir, "--yes",
		"embed", "--image", image, "--audio", voice,
	})
	require.Equal(t, 0, exitCode, stderr.String())

	saved, err := os.ReadFile(filepath.Join(paths.outDir, "stego_image.png"))
	require.NoError(t, err)
	require.Equal(t, servicetest.StegoPNG, saved)

	require.Contains(t, stderr.String(), "Selected: cover.png (10 KB)")
	require.Contains(t, stderr.String(), "Audio embedded successfully!")
	require.Contains(t, stdout.String(), "Stego Image")
	require.Contains(t, stdout.String(), filepath.Join(paths.outDir, "stego_image.png"))
	require.Contains(t, stdout.String(), "Unique ID: 0110")

	calls := srv.Calls(servicetest.EmbedPath)
	require.Len(t, calls, 1)
	require.Equal(t, "cover.png", calls[0].Files["image"].Filename)
	require.Equal(t, "voice.wav", calls[0].Files["audio"].Filename)
}

func TestRunnerEmbedWaitsForAcknowledgment(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr, Stdin: strings.NewReader("\n")}

	exitCode := runner.Execute(context.Background(), []string{
		"--config", paths.configPath, "--out-dir", paths.outDir,
		"embed", "--image", writeInput(t, "cover.png", 64), "--audio", writeInput(t, "voice.wav", 64),
	})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stderr.String(), "Press Enter to continue")
}

func TestRunnerExtractShowsMatch(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{
		"--config", paths.configPath, "--out-dir", paths.outDir, "--yes",
		"extract", "--image", writeInput(t, "stego.png", 128),
	})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "Extracted Audio")
	require.Contains(t, stdout.String(), "Original file: voice.wav")
	require.Contains(t, stdout.String(), "Match Found (92.50%)")
	require.Contains(t, stderr.String(), "Match Found (92.50%)")

	saved, err := os.ReadFile(filepath.Join(paths.outDir, "extracted_audio.wav"))
	require.NoError(t, err)
	require.Equal(t, servicetest.ExtractedWAV, saved)
}

func TestRunnerCompareShowsDifferences(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{
		"--config", paths.configPath, "--out-dir", paths.outDir,
		"compare", "--audio1", writeInput(t, "a.wav", 64), "--audio2", writeInput(t, "b.mp3", 64),
	})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "Overall similarity: 41.20%")
	require.Contains(t, stdout.String(), "Verdict: No Match")
	require.Contains(t, stdout.String(), "Feature Differences")
	require.Contains(t, stdout.String(), "PITCH  0.6200 (threshold 0.3000)")

	// Compare results have no modal and nothing to save.
	require.NotContains(t, stderr.String(), "Press Enter")
	_, err := os.Stat(paths.outDir)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunnerCompareJSONOutput(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{
		"--config", paths.configPath, "-o", "json",
		"compare", "--audio1", writeInput(t, "a.wav", 64), "--audio2", writeInput(t, "b.wav", 64),
	})
	require.Equal(t, 0, exitCode)

	var doc struct {
		Operation string `json:"operation"`
		Result    struct {
			Similarity  string `json:"similarity"`
			SameSpeaker bool   `json:"same_speaker"`
			Features    []struct {
				Name   string `json:"name"`
				Status string `json:"status"`
			} `json:"features"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	require.Equal(t, "compare", doc.Operation)
	require.Equal(t, "41.20%", doc.Result.Similarity)
	require.False(t, doc.Result.SameSpeaker)
	require.Len(t, doc.Result.Features, 1)
	require.Equal(t, "fail", doc.Result.Features[0].Status)
}

func TestRunnerOperationFailures(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		args    func(t *testing.T) []string
		want    string
	}{
		{
			name:    "unreachable service",
			baseURL: servicetest.Unreachable(),
			args: func(t *testing.T) []string {
				return []string{"extract", "--image", writeInput(t, "stego.png", 16)}
			},
			want: "cannot reach service at",
		},
		{
			name: "wrong image type",
			args: func(t *testing.T) []string {
				return []string{"extract", "--image", writeInput(t, "photo.gif", 16)}
			},
			want: "Image must be PNG or JPG format",
		},
		{
			name: "wrong embed audio type",
			args: func(t *testing.T) []string {
				return []string{"embed", "--image", writeInput(t, "cover.png", 16), "--audio", writeInput(t, "voice.mp3", 16)}
			},
			want: "Audio must be WAV format",
		},
		{
			name: "missing embed audio",
			args: func(t *testing.T) []string {
				return []string{"embed", "--image", writeInput(t, "cover.png", 16)}
			},
			want: "Please select both image and audio files",
		},
		{
			name: "missing compare sample",
			args: func(t *testing.T) []string {
				return []string{"compare", "--audio1", writeInput(t, "a.wav", 16)}
			},
			want: "Please select both audio files or record audio for comparison",
		},
		{
			name: "unreadable input",
			args: func(t *testing.T) []string {
				return []string{"extract", "--image", filepath.Join(t.TempDir(), "missing.png")}
			},
			want: "read ",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			baseURL := tc.baseURL
			if baseURL == "" {
				srv := servicetest.New()
				defer srv.Close()
				baseURL = srv.URL
			}
			paths := setupRunnerEnv(t, baseURL)

			var stderr bytes.Buffer
			runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

			args := append([]string{"--config", paths.configPath, "--yes"}, tc.args(t)...)
			exitCode := runner.Execute(context.Background(), args)
			require.Equal(t, 1, exitCode)
			require.Contains(t, stderr.String(), "error: "+tc.want)
		})
	}
}

func TestRunnerSurfacesServiceErrorMessage(t *testing.T) {
	srv := servicetest.New(servicetest.WithHandler(servicetest.ExtractPath,
		servicetest.JSON(http.StatusBadRequest, map[string]string{"error": "No hidden audio found"})))
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{
		"--config", paths.configPath, "extract", "--image", writeInput(t, "plain.png", 16),
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error: No hidden audio found")
}

func TestRunnerCompareWithRecording(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)

	stream := newFakeStream()
	stream.chunks <- make([]byte, 3200)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{
		Stdout:     &stdout,
		Stderr:     &stderr,
		Stdin:      strings.NewReader("\n"),
		Microphone: &fakeMicrophone{stream: stream},
	}

	exitCode := runner.Execute(context.Background(), []string{
		"--config", paths.configPath,
		"compare", "--audio1", writeInput(t, "a.wav", 64), "--record",
	})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stderr.String(), "Selected: "+session.RecordingName)
	require.Contains(t, stdout.String(), "Overall similarity: 41.20%")

	calls := srv.Calls(servicetest.ComparePath)
	require.Len(t, calls, 1)
	recorded := calls[0].Files["audio2"]
	require.Equal(t, session.RecordingName, recorded.Filename)
	require.Equal(t, "RIFF", string(recorded.Data[:4]))

	_, statErr := os.Stat(paths.socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerCompareRecordingCancelledOverIPC(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)

	var stderr bytes.Buffer
	runner := Runner{
		Stdout:     &bytes.Buffer{},
		Stderr:     &stderr,
		Microphone: &fakeMicrophone{stream: newFakeStream()},
	}

	args := []string{"--config", paths.configPath, "compare", "--audio1", writeInput(t, "a.wav", 64), "--record"}
	done := make(chan int, 1)
	go func() {
		done <- runner.Execute(context.Background(), args)
	}()

	require.Eventually(t, func() bool {
		resp, err := ipc.Forward(context.Background(), paths.socketPath, ipc.CommandCancel, time.Second)
		return err == nil && resp.OK
	}, 3*time.Second, 20*time.Millisecond)

	require.Equal(t, 1, <-done)
	require.Contains(t, stderr.String(), "error: recording cancelled")
	require.Zero(t, srv.Count(servicetest.ComparePath))
}

func TestRunnerCompareRecordingMicrophoneFailure(t *testing.T) {
	srv := servicetest.New()
	defer srv.Close()
	paths := setupRunnerEnv(t, srv.URL)

	var stderr bytes.Buffer
	runner := Runner{
		Stdout:     &bytes.Buffer{},
		Stderr:     &stderr,
		Microphone: &fakeMicrophone{openErr: errors.New("no source")},
	}

	exitCode := runner.Execute(context.Background(), []string{
		"--config", paths.configPath,
		"compare", "--audio1", writeInput(t, "a.wav", 64), "--record",
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "Error accessing microphone")
	require.Zero(t, srv.Count(servicetest.ComparePath))
}

func TestApplyFlagsOverridesConfig(t *testing.T) {
	cfg := config.Default()
	parsedCfg := applyFlags(cfg, parsedWith("json", "/tmp/out", true))
	require.Equal(t, "json", parsedCfg.Output.Format)
	require.Equal(t, "/tmp/out", parsedCfg.Output.Dir)
	require.True(t, parsedCfg.UI.AutoAck)

	require.Equal(t, cfg, applyFlags(cfg, parsedWith("", "", false)))
}

func TestLogSessionResultWritesFailureAndSuccess(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	started := time.Now()
	finished := started.Add(1500 * time.Millisecond)

	logSessionResult(logger, session.Result{
		State:      fsm.StateStopped,
		StartedAt:  started,
		FinishedAt: finished,
		Recording:  session.Recording{Device: "Mic", Chunks: [][]byte{make([]byte, 320)}},
	})

	require.Contains(t, logBuf.String(), "recording complete")
	require.Contains(t, logBuf.String(), "\"audio_device\":\"Mic\"")
	require.Contains(t, logBuf.String(), "\"duration_ms\":1500")

	logBuf.Reset()
	logSessionResult(logger, session.Result{
		State:      fsm.StateIdle,
		StartedAt:  started,
		FinishedAt: finished,
		Err:        errors.New("boom"),
	})
	require.Contains(t, logBuf.String(), "recording failed")
	require.Contains(t, logBuf.String(), "boom")
}

type runnerPaths struct {
	configPath string
	runtimeDir string
	socketPath string
	outDir     string
}

// setupRunnerEnv isolates XDG dirs, environment overrides, and the working
// directory, and writes a config pointing at baseURL.
func setupRunnerEnv(t *testing.T, baseURL string) runnerPaths {
	t.Helper()

	runtimeDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv(config.EnvServiceURL, "")
	t.Setenv(config.EnvOutputDir, "")
	t.Setenv(config.EnvLogLevel, "")
	t.Chdir(t.TempDir())

	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	content := `{
  // test service
  "service": {"base_url": "` + baseURL + `", "timeout_ms": 5000},
  "ui": {"indicator": "none", "color": false},
}
`
	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	return runnerPaths{
		configPath: configPath,
		runtimeDir: runtimeDir,
		socketPath: filepath.Join(runtimeDir, "voxseal.sock"),
		outDir:     filepath.Join(t.TempDir(), "out"),
	}
}

func parsedWith(output string, outDir string, yes bool) cli.Parsed {
	return cli.Parsed{Command: cli.CommandEmbed, Output: output, OutDir: outDir, Yes: yes}
}

func writeInput(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x5a}, size), 0o600))
	return path
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

type fakeStream struct {
	chunks chan []byte
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte, 4)}
}

func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }

func (s *fakeStream) Device() audio.Device { return audio.Device{ID: "test-mic"} }

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.chunks) })
	return nil
}

type fakeMicrophone struct {
	stream  *fakeStream
	openErr error
}

func (m *fakeMicrophone) Open(context.Context) (audio.Stream, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}
