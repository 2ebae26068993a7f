package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrValidationFailed indicates the manifest failed validation.
var ErrValidationFailed = errors.New("manifest validation failed")

// FieldError represents a single validation issue.
type FieldError struct {
	// Path locates the problematic field (e.g. "match.includes").
	Path string

	// Message describes the validation failure.
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors aggregates all issues found in one manifest.
type ValidationErrors struct {
	Errors []FieldError
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("manifest validation failed: %s", strings.Join(msgs, "; "))
}

// Unwrap lets callers test with errors.Is(err, ErrValidationFailed).
func (e *ValidationErrors) Unwrap() error { return ErrValidationFailed }

// Load reads and validates a manifest from the given file path.
//
// The file format is determined by extension: .yaml/.yml for YAML, .json
// for JSON. If the extension is unrecognized, YAML is attempted first,
// then JSON.
//
// After parsing, the manifest is validated and defaults are applied to
// optional fields.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading manifest: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a manifest from raw bytes.
//
// The path parameter is used for error messages and format detection.
// If path is empty, format detection falls back to trying YAML first.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	m, err := parseManifest(data, path)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.ApplyDefaults()
	return m, nil
}

// LoadFromReader reads and validates a manifest from an io.Reader.
func LoadFromReader(r io.Reader, path string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return LoadFromBytes(data, path)
}

// Validate checks the manifest for structural problems, collecting every
// issue rather than stopping at the first.
func (m *Manifest) Validate() error {
	var errs []FieldError
	add := func(path, msg string) {
		errs = append(errs, FieldError{Path: path, Message: msg})
	}

	if m.Version == "" {
		add("version", "is required")
	} else if m.Version != DefaultVersion {
		add("version", fmt.Sprintf("unsupported version %q (supported: %q)", m.Version, DefaultVersion))
	}

	if m.Connection.Endpoint == "" {
		add("connection.endpoint", "is required")
	}
	if m.Connection.Region == "" {
		add("connection.region", "is required")
	}
	if m.Connection.MaxBodyBytes < 0 {
		add("connection.max_body_bytes", "must not be negative")
	}
	if m.Connection.RequestTimeout < 0 {
		add("connection.request_timeout", "must not be negative")
	}

	if len(m.Match.Includes) == 0 {
		add("match.includes", "at least one include pattern is required")
	}
	for i, p := range m.Match.Includes {
		if p == "" {
			add(fmt.Sprintf("match.includes[%d]", i), "pattern must not be empty")
		}
	}

	if m.Sweep.Concurrency < 0 || m.Sweep.Concurrency > MaxSweepConcurrency {
		add("sweep.concurrency", fmt.Sprintf("must be between 0 and %d", MaxSweepConcurrency))
	}
	if m.Sweep.PageSize < 0 {
		add("sweep.page_size", "must not be negative")
	}
	if m.Sweep.RateLimit < 0 {
		add("sweep.rate_limit", "must not be negative")
	}

	if m.Batch.Size < 0 {
		add("batch.size", "must not be negative")
	}
	if m.Batch.Spacing < 0 {
		add("batch.spacing", "must not be negative")
	}

	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}

// parseManifest parses the manifest data based on file extension.
func parseManifest(data []byte, path string) (*Manifest, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		// Unknown extension: try YAML first (more permissive), then JSON.
		m, yamlErr := parseYAML(data)
		if yamlErr == nil {
			return m, nil
		}
		m, jsonErr := parseJSON(data)
		if jsonErr == nil {
			return m, nil
		}
		// Both failed; return the YAML error as it's the preferred format.
		return nil, fmt.Errorf("failed to parse manifest (tried YAML and JSON): %w", yamlErr)
	}
}

func parseJSON(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid JSON in manifest: %w", err)
	}
	return &m, nil
}

func parseYAML(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid YAML in manifest: %w", err)
	}
	return &m, nil
}
