// Package manifest provides loading and validation of s3lite job manifests.
//
// A job manifest is a YAML or JSON file that configures a bulk job end to
// end: the endpoint connection, the glob patterns selecting objects, sweep
// behavior, and batch pacing.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	connection:
//	  endpoint: https://s3.us-east-1.amazonaws.com
//	  region: us-east-1
//	match:
//	  includes:
//	    - "data/2024/**/*.parquet"
//	  excludes:
//	    - "**/_temporary/**"
//	sweep:
//	  concurrency: 4
//	batch:
//	  size: 10
//	  spacing: 500ms
package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skylatch/s3lite/pkg/batch"
	"github.com/skylatch/s3lite/pkg/match"
	"github.com/skylatch/s3lite/pkg/s3lite"
	"github.com/skylatch/s3lite/pkg/sweep"
)

// Duration is a time.Duration that unmarshals from human-readable
// strings like "500ms" or "2m30s" in both YAML and JSON.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"500ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"500ms\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Manifest represents a validated job manifest.
//
// Required fields are Version, Connection, and Match. Sweep and Batch are
// optional with defaults applied during loading.
type Manifest struct {
	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Connection configures the storage endpoint.
	Connection ConnectionConfig `json:"connection" yaml:"connection"`

	// Match configures object selection by glob patterns.
	Match MatchConfig `json:"match" yaml:"match"`

	// Sweep configures bulk listing behavior (optional).
	Sweep SweepConfig `json:"sweep,omitempty" yaml:"sweep,omitempty"`

	// Batch configures batch pacing for mass operations (optional).
	Batch BatchConfig `json:"batch,omitempty" yaml:"batch,omitempty"`
}

// ConnectionConfig configures the storage endpoint connection.
//
// Credentials are deliberately not part of the manifest: they come from
// the environment or a config file so manifests stay shareable. See
// internal/config.
type ConnectionConfig struct {
	// Endpoint is the service URL the bucket lives under.
	// Example: "https://s3.wasabisys.com/my-bucket"
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Region is the signing region (e.g. "us-east-1").
	Region string `json:"region" yaml:"region"`

	// MaxBodyBytes caps request body size. Zero means no ceiling.
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty"`

	// RequestTimeout bounds each HTTP call. Zero means no deadline.
	RequestTimeout Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
}

// MatchConfig configures object selection by glob patterns.
type MatchConfig struct {
	// Includes is a list of glob patterns for objects to include.
	// At least one pattern is required.
	Includes []string `json:"includes" yaml:"includes"`

	// Excludes is a list of glob patterns for objects to exclude. Optional.
	Excludes []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

// SweepConfig configures bulk listing behavior.
type SweepConfig struct {
	// Concurrency is the number of prefixes listed in parallel.
	// Range: 1-32. Default: 4.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	// PageSize is the max-keys value per listing request.
	// Zero uses the provider maximum.
	PageSize int `json:"page_size,omitempty" yaml:"page_size,omitempty"`

	// RateLimit is the maximum listing requests per second (0 = unlimited).
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// BatchConfig configures fixed-size batch pacing.
type BatchConfig struct {
	// Size is the number of operations per batch. Default: 10.
	Size int `json:"size,omitempty" yaml:"size,omitempty"`

	// Spacing is the minimum interval between batch launches.
	Spacing Duration `json:"spacing,omitempty" yaml:"spacing,omitempty"`
}

// Default values for optional configuration fields.
const (
	// DefaultVersion is the current manifest schema version.
	DefaultVersion = "1.0"

	// DefaultSweepConcurrency is the default number of concurrent
	// prefix listings.
	DefaultSweepConcurrency = 4

	// MaxSweepConcurrency bounds sweep concurrency.
	MaxSweepConcurrency = 32

	// DefaultBatchSize is the default number of operations per batch.
	DefaultBatchSize = 10
)

// ApplyDefaults fills in default values for optional fields.
//
// Called after loading and validating the manifest so callers never see
// zero values for tunables that have defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Sweep.Concurrency == 0 {
		m.Sweep.Concurrency = DefaultSweepConcurrency
	}
	if m.Batch.Size == 0 {
		m.Batch.Size = DefaultBatchSize
	}
}

// ClientConfig builds an s3lite.Config from the manifest plus the
// credentials supplied by the caller.
func (m *Manifest) ClientConfig(accessKey, secretKey string) s3lite.Config {
	return s3lite.Config{
		AccessKey:    accessKey,
		SecretKey:    secretKey,
		Region:       m.Connection.Region,
		Endpoint:     m.Connection.Endpoint,
		MaxBodyBytes: m.Connection.MaxBodyBytes,
		AbortTimeout: m.Connection.RequestTimeout.Std(),
	}
}

// MatcherConfig converts the match section to a match.Config.
func (m *Manifest) MatcherConfig() match.Config {
	return match.Config{
		Includes: m.Match.Includes,
		Excludes: m.Match.Excludes,
	}
}

// SweeperConfig converts the sweep section to a sweep.Config.
func (m *Manifest) SweeperConfig() sweep.Config {
	return sweep.Config{
		Concurrency: m.Sweep.Concurrency,
		PageSize:    m.Sweep.PageSize,
		RateLimit:   m.Sweep.RateLimit,
	}
}

// BatcherConfig converts the batch section to a batch.Config.
func (m *Manifest) BatcherConfig() batch.Config {
	return batch.Config{
		Size:    m.Batch.Size,
		Spacing: m.Batch.Spacing.Std(),
	}
}
