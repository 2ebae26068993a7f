// Package output provides JSONL output for sweep and batch results.
//
// Output is structured as typed record envelopes containing objects,
// errors, summaries, and preflight checks. Each line is a self-contained
// JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/skylatch/s3lite/pkg/s3lite"
	"github.com/skylatch/s3lite/pkg/sweep"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: s3lite.<type>.v<version>
const (
	// TypeObject identifies object listing records.
	TypeObject = "s3lite.object.v1"

	// TypeError identifies error records.
	TypeError = "s3lite.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "s3lite.summary.v1"

	// TypePreflight identifies preflight capability check records.
	TypePreflight = "s3lite.preflight.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line contains a Record with a type-specific payload in the Data
// field. The type field determines how to interpret Data.
type Record struct {
	// Type identifies the record type (e.g., "s3lite.object.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this job.
	JobID string `json:"job_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ObjectRecord is the data payload for object listings.
type ObjectRecord struct {
	// Key is the full object key in the bucket.
	Key string `json:"key"`

	// Size is the object size in bytes.
	Size int64 `json:"size"`

	// ETag is the entity tag with provider quoting removed.
	ETag string `json:"etag,omitempty"`

	// LastModified is when the object was last modified.
	LastModified time.Time `json:"last_modified"`
}

// NewObjectRecord converts listing metadata to its record form.
func NewObjectRecord(obj s3lite.ObjectInfo) *ObjectRecord {
	return &ObjectRecord{
		Key:          obj.Key,
		Size:         obj.Size,
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
	}
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the whole job,
// allowing partial results when some operations fail.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Key is the object key related to this error, if applicable.
	Key string `json:"key,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeAccessDenied indicates permission failure.
	ErrCodeAccessDenied = "ACCESS_DENIED"

	// ErrCodeNotFound indicates the object or bucket was not found.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeThrottled indicates rate limiting.
	ErrCodeThrottled = "THROTTLED"

	// ErrCodeNetwork indicates a transport-level failure.
	ErrCodeNetwork = "NETWORK"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// NewErrorRecord classifies a client error into its record form.
func NewErrorRecord(key string, err error) *ErrorRecord {
	return &ErrorRecord{
		Code:    ClassifyErrorCode(err),
		Message: err.Error(),
		Key:     key,
	}
}

// ClassifyErrorCode maps a client error to a stable record error code.
func ClassifyErrorCode(err error) string {
	if svc, ok := s3lite.AsService(err); ok {
		switch {
		case svc.StatusCode == 403 || svc.Code == "AccessDenied" || svc.Code == "InvalidAccessKeyId" || svc.Code == "SignatureDoesNotMatch":
			return ErrCodeAccessDenied
		case svc.StatusCode == 404 || svc.Code == "NoSuchBucket" || svc.Code == "NoSuchKey":
			return ErrCodeNotFound
		case svc.StatusCode == 429 || svc.StatusCode == 503 || svc.Code == "SlowDown":
			return ErrCodeThrottled
		}
		return ErrCodeInternal
	}
	if s3lite.IsNetwork(err) {
		return ErrCodeNetwork
	}
	return ErrCodeInternal
}

// SummaryRecord is the data payload for final summaries.
type SummaryRecord struct {
	// ObjectsListed is the total number of objects seen.
	ObjectsListed int64 `json:"objects_listed"`

	// ObjectsMatched is the number of objects matching patterns.
	ObjectsMatched int64 `json:"objects_matched"`

	// BytesTotal is the cumulative size of matched objects in bytes.
	BytesTotal int64 `json:"bytes_total"`

	// Duration is the total job duration in nanoseconds.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// Errors is the count of errors encountered.
	Errors int64 `json:"errors"`

	// Prefixes lists the prefixes that were swept.
	Prefixes []string `json:"prefixes,omitempty"`
}

// NewSummaryRecord converts a sweep summary to its record form.
func NewSummaryRecord(sum *sweep.Summary, errCount int64) *SummaryRecord {
	return &SummaryRecord{
		ObjectsListed:  sum.ObjectsListed,
		ObjectsMatched: sum.ObjectsMatched,
		BytesTotal:     sum.BytesTotal,
		Duration:       sum.Duration,
		DurationHuman:  sum.Duration.String(),
		Errors:         errCount,
		Prefixes:       sum.Prefixes,
	}
}

// PreflightRecord is the data payload for preflight capability checks.
//
// Preflight records are emitted early, before long-running operations.
// They state what was checked and whether the principal appears to have
// the required permissions.
type PreflightRecord struct {
	Mode          string                 `json:"mode"`
	ProbeStrategy string                 `json:"probe_strategy,omitempty"`
	ProbePrefix   string                 `json:"probe_prefix,omitempty"`
	Results       []PreflightCheckResult `json:"results"`
}

// PreflightCheckResult is a single capability check result.
type PreflightCheckResult struct {
	Capability string `json:"capability"`
	Allowed    bool   `json:"allowed"`
	Method     string `json:"method,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
