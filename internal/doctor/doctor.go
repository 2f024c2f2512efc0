// Package doctor runs readiness diagnostics for config, the remote service,
// audio capture, and preview tooling.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/voxseal/internal/audio"
	"github.com/rbright/voxseal/internal/config"
	"github.com/rbright/voxseal/internal/service"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string `json:"name" yaml:"name"`
	Pass    bool   `json:"pass" yaml:"pass"`
	Message string `json:"message" yaml:"message"`
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check `json:"checks" yaml:"checks"`
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkService(ctx, cfg.Service))
	checks = append(checks, checkOutputDir(cfg.Output.Dir))

	if strings.EqualFold(cfg.UI.Indicator, "desktop") {
		checks = append(checks, checkBinary("busctl", "desktop notifications require busctl"))
	}
	if len(cfg.Preview.AudioCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Preview.AudioCmd.Argv, "preview.audio_cmd"))
	}
	if len(cfg.Preview.ImageCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Preview.ImageCmd.Argv, "preview.image_cmd"))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg))
	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	if loaded.DotEnv {
		message += " with " + config.DotEnvFile + " overrides"
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkService probes the service base URL. Any non-5xx answer counts as up.
func checkService(ctx context.Context, cfg config.ServiceConfig) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	client := service.New(cfg.BaseURL, service.WithRatePerMinute(0))
	status, err := client.Ping(ctx)
	if err != nil {
		return Check{Name: "service", Pass: false, Message: err.Error()}
	}
	if status >= http.StatusInternalServerError {
		return Check{Name: "service", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", status, client.BaseURL())}
	}
	return Check{Name: "service", Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", client.BaseURL(), status)}
}

// checkOutputDir verifies downloads can be written.
func checkOutputDir(dir string) Check {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: "output.dir", Pass: false, Message: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".voxseal-doctor-*")
	if err != nil {
		return Check{Name: "output.dir", Pass: false, Message: fmt.Sprintf("not writable: %v", err)}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return Check{Name: "output.dir", Pass: true, Message: fmt.Sprintf("writable %q", dir)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, audio.Preference{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback})
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}
