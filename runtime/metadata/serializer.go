package metadata

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the encoding used for a serialized application
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported metadata file extension: %q", filepath.Ext(path))
	}
}

// EncodeJSON serializes the application as indented JSON
func (a *Application) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal application: %w", err)
	}
	return data, nil
}

// EncodeYAML serializes the application as YAML
func (a *Application) EncodeYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("failed to marshal application: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode serializes the application in the given format
func (a *Application) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return a.EncodeJSON()
	case FormatYAML:
		return a.EncodeYAML()
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}

// Decode parses a serialized application
func Decode(data []byte, format Format) (*Application, error) {
	var app Application
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &app); err != nil {
			return nil, fmt.Errorf("failed to unmarshal application: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &app); err != nil {
			return nil, fmt.Errorf("failed to unmarshal application: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
	return &app, nil
}

// Load reads an application from a .json, .yaml or .yml file
func Load(path string) (*Application, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(data, format)
}

// Save writes the application to path using the format implied by its extension
func (a *Application) Save(path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := a.Encode(format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Hash returns the hex sha256 of the compact JSON encoding
func (a *Application) Hash() (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to marshal application: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
