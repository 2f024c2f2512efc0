package config

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// PathPlaceholder in a preview command is replaced by the artifact path.
// Commands without it get the path appended.
const PathPlaceholder = "{}"

// ParseCommand splits a preview command using shell quoting. A blank or
// commented-out command yields an empty Argv.
func ParseCommand(raw string) (CommandConfig, error) {
	argv, err := shlex.Split(raw)
	if err != nil {
		return CommandConfig{}, fmt.Errorf("split %q: %w", raw, err)
	}
	if len(argv) > 0 && strings.Contains(argv[0], PathPlaceholder) {
		return CommandConfig{}, fmt.Errorf("program %q cannot contain %s", argv[0], PathPlaceholder)
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

// Program is the executable the command runs, or "" when unset.
func (c CommandConfig) Program() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// Expand returns the argv that opens path.
func (c CommandConfig) Expand(path string) []string {
	if len(c.Argv) == 0 {
		return nil
	}

	argv := make([]string, 0, len(c.Argv)+1)
	substituted := false
	for _, arg := range c.Argv {
		if strings.Contains(arg, PathPlaceholder) {
			arg = strings.ReplaceAll(arg, PathPlaceholder, path)
			substituted = true
		}
		argv = append(argv, arg)
	}
	if !substituted {
		argv = append(argv, path)
	}
	return argv
}
