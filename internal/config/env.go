package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvServiceURL = "VOXSEAL_SERVICE_URL"
	EnvOutputDir  = "VOXSEAL_OUTPUT_DIR"
	EnvLogLevel   = "VOXSEAL_LOG_LEVEL"

	// DotEnvFile is read from the working directory when present.
	DotEnvFile = ".env"
)

// LookupFunc resolves one environment variable.
type LookupFunc func(key string) (string, bool)

// EnvLookup layers the process environment over the variables in dotenvPath.
// Empty process values fall through to the file. A missing dotenv file is
// not an error.
func EnvLookup(dotenvPath string) (LookupFunc, bool, error) {
	fileVars, err := godotenv.Read(dotenvPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.LookupEnv, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", dotenvPath, err)
	}

	return func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			return value, true
		}
		value, ok := fileVars[key]
		return value, ok
	}, true, nil
}

// ApplyEnv overrides cfg from the environment. Empty values are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if value, ok := nonEmpty(lookup, EnvServiceURL); ok {
		cfg.Service.BaseURL = value
	}
	if value, ok := nonEmpty(lookup, EnvOutputDir); ok {
		cfg.Output.Dir = value
	}
	if value, ok := nonEmpty(lookup, EnvLogLevel); ok {
		cfg.Log.Level = strings.ToLower(value)
	}
}

func nonEmpty(lookup LookupFunc, key string) (string, bool) {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}
