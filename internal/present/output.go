package present

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// document is the machine-readable envelope for --output yaml|json.
type document struct {
	Operation string `json:"operation" yaml:"operation"`
	Result    View   `json:"result" yaml:"result"`
}

// Output writes v in a structured format.
func Output(w io.Writer, v View, format Format) error {
	return Encode(w, document{Operation: string(v.Kind()), Result: v}, format)
}

// Encode writes any report value as YAML or JSON.
func Encode(w io.Writer, v any, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("format output: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// SaveArtifacts writes every artifact of v into dir and records its path.
func SaveArtifacts(dir string, v View) ([]string, error) {
	artifacts := v.Artifacts()
	if len(artifacts) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path := filepath.Join(dir, a.Name)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", a.Name, err)
		}
		a.Path = path
		paths = append(paths, path)
	}
	return paths, nil
}
