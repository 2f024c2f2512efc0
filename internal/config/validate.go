package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	outputFormats = []string{"text", "yaml", "json"}
	indicators    = []string{"terminal", "desktop", "none"}
	logLevels     = []string{"debug", "info", "warn", "error"}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateBaseURL(cfg.Service.BaseURL); err != nil {
		return nil, err
	}
	if cfg.Service.TimeoutMS < 0 {
		return nil, fmt.Errorf("service.timeout_ms must be >= 0")
	}
	if cfg.Service.RatePerMinute < 0 {
		return nil, fmt.Errorf("service.rate_per_minute must be >= 0")
	}
	if cfg.Service.RatePerMinute == 0 {
		warnings = append(warnings, Warning{Message: "service.rate_per_minute=0 disables client-side pacing"})
	}

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		return nil, fmt.Errorf("output.dir must not be empty")
	}
	if !slices.Contains(outputFormats, strings.ToLower(cfg.Output.Format)) {
		return nil, fmt.Errorf("output.format must be one of: %s", strings.Join(outputFormats, ", "))
	}

	indicator := strings.ToLower(strings.TrimSpace(cfg.UI.Indicator))
	if !slices.Contains(indicators, indicator) {
		return nil, fmt.Errorf("ui.indicator must be one of: %s", strings.Join(indicators, ", "))
	}
	if indicator == "desktop" && strings.TrimSpace(cfg.UI.DesktopAppName) == "" {
		return nil, fmt.Errorf("ui.desktop_app_name must not be empty when ui.indicator=desktop")
	}
	if cfg.UI.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("ui.error_timeout_ms must be >= 0")
	}

	if cfg.Preview.AudioCmd.Raw != "" && len(cfg.Preview.AudioCmd.Argv) == 0 {
		return nil, fmt.Errorf("preview.audio_cmd is configured but empty")
	}
	if cfg.Preview.ImageCmd.Raw != "" && len(cfg.Preview.ImageCmd.Argv) == 0 {
		return nil, fmt.Errorf("preview.image_cmd is configured but empty")
	}
	if len(cfg.Preview.AudioCmd.Argv) == 0 {
		warnings = append(warnings, Warning{Message: "preview.audio_cmd is unset; --preview skips audio"})
	}
	if len(cfg.Preview.ImageCmd.Argv) == 0 {
		warnings = append(warnings, Warning{Message: "preview.image_cmd is unset; --preview skips images"})
	}

	if !slices.Contains(logLevels, strings.ToLower(cfg.Log.Level)) {
		return nil, fmt.Errorf("log.level must be one of: %s", strings.Join(logLevels, ", "))
	}
	if cfg.Log.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("log.max_size_mb must be > 0")
	}
	if cfg.Log.MaxBackups < 0 {
		return nil, fmt.Errorf("log.max_backups must be >= 0")
	}

	return warnings, nil
}

func validateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("service.base_url must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("service.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("service.base_url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("service.base_url must include a host")
	}
	return nil
}
