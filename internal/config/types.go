// Package config resolves, parses, validates, and defaults voxseal configuration.
package config

// Config is the fully materialized runtime configuration used by voxseal.
type Config struct {
	Service ServiceConfig
	Audio   AudioConfig
	Output  OutputConfig
	UI      UIConfig
	Preview PreviewConfig
	Log     LogConfig
}

// ServiceConfig locates and paces the remote stego/voice service.
type ServiceConfig struct {
	BaseURL       string
	TimeoutMS     int
	RatePerMinute int
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// OutputConfig controls where downloads land and how results print.
type OutputConfig struct {
	Dir    string
	Format string
}

// UIConfig controls the progress indicator and the outcome modal.
type UIConfig struct {
	Indicator      string
	DesktopAppName string
	ErrorTimeoutMS int
	Color          bool
	AutoAck        bool
}

// PreviewConfig holds the player/viewer commands used by --preview.
type PreviewConfig struct {
	AudioCmd CommandConfig
	ImageCmd CommandConfig
}

// LogConfig controls the rotating JSONL log file.
type LogConfig struct {
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
