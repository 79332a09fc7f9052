package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// ParseFile loads a Scenario from a file, picking the format by extension.
// Unknown keys in the file are rejected so typos surface at load time.
func ParseFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported scenario file extension: %q", ext)
	}
}

// ParseYAML loads a Scenario from strict YAML.
func ParseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.UnmarshalWithOptions(data, &scenario, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("invalid scenario yaml: %w", err)
	}
	return &scenario, nil
}

// ParseJSON loads a Scenario from JSON.
func ParseJSON(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario json: %w", err)
	}
	return &scenario, nil
}
