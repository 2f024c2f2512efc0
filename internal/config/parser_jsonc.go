package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Service *jsoncService `json:"service"`
	Audio   *jsoncAudio   `json:"audio"`
	Output  *jsoncOutput  `json:"output"`
	UI      *jsoncUI      `json:"ui"`
	Preview *jsoncPreview `json:"preview"`
	Log     *jsoncLog     `json:"log"`
}

type jsoncService struct {
	BaseURL       *string `json:"base_url"`
	TimeoutMS     *int    `json:"timeout_ms"`
	RatePerMinute *int    `json:"rate_per_minute"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncOutput struct {
	Dir    *string `json:"dir"`
	Format *string `json:"format"`
}

type jsoncUI struct {
	Indicator      *string `json:"indicator"`
	DesktopAppName *string `json:"desktop_app_name"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
	Color          *bool   `json:"color"`
	AutoAck        *bool   `json:"auto_ack"`
}

type jsoncPreview struct {
	AudioCmd *string `json:"audio_cmd"`
	ImageCmd *string `json:"image_cmd"`
}

type jsoncLog struct {
	Level      *string `json:"level"`
	MaxSizeMB  *int    `json:"max_size_mb"`
	MaxBackups *int    `json:"max_backups"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setCommand(dst *CommandConfig, key string, src *string) error {
	if src == nil {
		return nil
	}
	cmd, err := ParseCommand(*src)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = cmd
	return nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if s := payload.Service; s != nil {
		setString(&cfg.Service.BaseURL, s.BaseURL)
		setValue(&cfg.Service.TimeoutMS, s.TimeoutMS)
		setValue(&cfg.Service.RatePerMinute, s.RatePerMinute)
	}

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if o := payload.Output; o != nil {
		setString(&cfg.Output.Dir, o.Dir)
		setString(&cfg.Output.Format, o.Format)
	}

	if u := payload.UI; u != nil {
		setString(&cfg.UI.Indicator, u.Indicator)
		setString(&cfg.UI.DesktopAppName, u.DesktopAppName)
		setValue(&cfg.UI.ErrorTimeoutMS, u.ErrorTimeoutMS)
		setValue(&cfg.UI.Color, u.Color)
		setValue(&cfg.UI.AutoAck, u.AutoAck)
	}

	if p := payload.Preview; p != nil {
		if err := setCommand(&cfg.Preview.AudioCmd, "preview.audio_cmd", p.AudioCmd); err != nil {
			return err
		}
		if err := setCommand(&cfg.Preview.ImageCmd, "preview.image_cmd", p.ImageCmd); err != nil {
			return err
		}
	}

	if l := payload.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
		setValue(&cfg.Log.MaxSizeMB, l.MaxSizeMB)
		setValue(&cfg.Log.MaxBackups, l.MaxBackups)
	}
	return nil
}

// normalizeJSONC blanks comments and trailing commas in place so decoder
// offsets still point at the original line and column.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)
	inString := false
	escaped := false
	pendingComma := -1

	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
		case ch == '/' && i+1 < len(out) && out[i+1] == '/':
			end := i
			for end < len(out) && out[end] != '\n' && out[end] != '\r' {
				end++
			}
			blank(out[i:end])
			i = end - 1
		case ch == '/' && i+1 < len(out) && out[i+1] == '*':
			closing := strings.Index(content[i+2:], "*/")
			if closing < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			end := i + 2 + closing + 2
			blank(out[i:end])
			i = end - 1
		case ch == '"':
			inString = true
			pendingComma = -1
		case ch == ',':
			pendingComma = i
		case ch == '}' || ch == ']':
			if pendingComma >= 0 {
				out[pendingComma] = ' '
			}
			pendingComma = -1
		case isJSONWhitespace(ch):
		default:
			pendingComma = -1
		}
	}
	return string(out), nil
}

func blank(b []byte) {
	for i, ch := range b {
		if ch != '\n' && ch != '\r' && ch != '\t' {
			b[i] = ' '
		}
	}
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := min(int(offset), len(content))
	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
