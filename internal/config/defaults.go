package config

const (
	DefaultBaseURL       = "http://localhost:5000"
	DefaultRatePerMinute = 100
	DefaultOutputDir     = "."
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	opener := "xdg-open"

	return Config{
		Service: ServiceConfig{
			BaseURL:       DefaultBaseURL,
			TimeoutMS:     0,
			RatePerMinute: DefaultRatePerMinute,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Output: OutputConfig{
			Dir:    DefaultOutputDir,
			Format: "text",
		},
		UI: UIConfig{
			Indicator:      "terminal",
			DesktopAppName: "voxseal",
			ErrorTimeoutMS: 1600,
			Color:          true,
		},
		Preview: PreviewConfig{
			AudioCmd: CommandConfig{Raw: opener, Argv: []string{opener}},
			ImageCmd: CommandConfig{Raw: opener, Argv: []string{opener}},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}
