// Package preflight checks that the configured principal has the
// permissions a job needs before the job starts.
//
// Preflight is a capability contract, not a data operation:
//   - plan-only: no provider calls
//   - read-safe: probes with reads only (bucket head, single-key list)
//   - write-probe: explicit opt-in minimal side effects
//
// The multipart-abort probe strategy begins a multipart upload under a
// probe prefix and immediately aborts it, proving write permission
// without ever storing an object. The put-delete strategy writes and
// removes a one-byte marker instead, for providers with incomplete
// multipart support.
package preflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/skylatch/s3lite/pkg/output"
	"github.com/skylatch/s3lite/pkg/s3lite"
)

// Mode defines how aggressive preflight checks are.
type Mode string

const (
	ModePlanOnly   Mode = "plan-only"
	ModeReadSafe   Mode = "read-safe"
	ModeWriteProbe Mode = "write-probe"
)

// ProbeStrategy selects a write probe strategy.
type ProbeStrategy string

const (
	ProbeMultipartAbort ProbeStrategy = "multipart-abort"
	ProbePutDelete      ProbeStrategy = "put-delete"
)

// DefaultProbePrefix is where probe keys are created when Spec.ProbePrefix
// is empty.
const DefaultProbePrefix = "_s3lite/probe/"

// Spec controls how preflight checks are executed.
type Spec struct {
	Mode          Mode
	ProbeStrategy ProbeStrategy
	ProbePrefix   string
}

// Capability names are stable strings used in JSONL output.
const (
	CapBucketHead = "bucket.head"
	CapList       = "bucket.list"
	CapWrite      = "bucket.write"
)

// Client is the slice of the storage client preflight exercises.
// *s3lite.Client satisfies it.
type Client interface {
	BucketExists(ctx context.Context) (bool, error)
	ListPage(ctx context.Context, opts s3lite.PageOptions) (*s3lite.ListingPage, error)
	BeginMultipart(ctx context.Context, key, contentType string) (string, error)
	AbortMultipart(ctx context.Context, key, uploadID string) error
	PutObject(ctx context.Context, key string, body []byte, contentType string) (*s3lite.ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
}

// Run executes the checks the selected mode calls for, in fail-fast
// order: bucket head, list, then the write probe when enabled.
//
// The returned record always reflects every check that ran, including
// the failing one, so callers can emit it even on error.
func Run(ctx context.Context, client Client, prefixes []string, spec Spec) (*output.PreflightRecord, error) {
	rec := &output.PreflightRecord{
		Mode:          string(spec.Mode),
		ProbeStrategy: string(spec.ProbeStrategy),
		ProbePrefix:   spec.ProbePrefix,
		Results:       []output.PreflightCheckResult{},
	}

	if spec.Mode == ModePlanOnly {
		return rec, nil
	}

	// Bucket head. A clean "does not exist" is a definitive failure for
	// every capability that follows.
	exists, err := client.BucketExists(ctx)
	if err != nil {
		rec.Results = append(rec.Results, failed(CapBucketHead, "BucketExists()", err))
		return rec, err
	}
	if !exists {
		err := fmt.Errorf("bucket does not exist")
		rec.Results = append(rec.Results, output.PreflightCheckResult{
			Capability: CapBucketHead,
			Allowed:    false,
			Method:     "BucketExists()",
			ErrorCode:  output.ErrCodeNotFound,
			Detail:     err.Error(),
		})
		return rec, err
	}
	rec.Results = append(rec.Results, passed(CapBucketHead, "BucketExists()"))

	// List under the first derived prefix with a budget of one key.
	prefix := ""
	if len(prefixes) > 0 {
		prefix = prefixes[0]
	}
	method := fmt.Sprintf("ListPage(prefix=%q,maxKeys=1)", prefix)
	if _, err := client.ListPage(ctx, s3lite.PageOptions{Prefix: prefix, MaxKeys: 1}); err != nil {
		rec.Results = append(rec.Results, failed(CapList, method, err))
		return rec, err
	}
	rec.Results = append(rec.Results, passed(CapList, method))

	if spec.Mode != ModeWriteProbe {
		return rec, nil
	}

	if err := writeProbe(ctx, client, spec, rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// writeProbe proves write permission with minimal side effects.
func writeProbe(ctx context.Context, client Client, spec Spec, rec *output.PreflightRecord) error {
	probePrefix := spec.ProbePrefix
	if probePrefix == "" {
		probePrefix = DefaultProbePrefix
	}
	probeKey := joinPrefix(probePrefix, "probe-"+uuid.NewString())

	switch spec.ProbeStrategy {
	case ProbePutDelete:
		method := "PutObject+DeleteObject(probe)"
		if _, err := client.PutObject(ctx, probeKey, []byte{0}, "application/octet-stream"); err != nil {
			rec.Results = append(rec.Results, failed(CapWrite, method, err))
			return err
		}
		if err := client.DeleteObject(ctx, probeKey); err != nil {
			rec.Results = append(rec.Results, failed(CapWrite, method, err))
			return err
		}
		rec.Results = append(rec.Results, passed(CapWrite, method))
		return nil

	case ProbeMultipartAbort, "":
		method := "BeginMultipart+AbortMultipart(probe)"
		uploadID, err := client.BeginMultipart(ctx, probeKey, "application/octet-stream")
		if err != nil {
			rec.Results = append(rec.Results, failed(CapWrite, method, err))
			return err
		}
		if err := client.AbortMultipart(ctx, probeKey, uploadID); err != nil {
			rec.Results = append(rec.Results, failed(CapWrite, method, err))
			return err
		}
		rec.Results = append(rec.Results, passed(CapWrite, method))
		return nil

	default:
		return fmt.Errorf("unknown probe strategy %q", spec.ProbeStrategy)
	}
}

func passed(capability, method string) output.PreflightCheckResult {
	return output.PreflightCheckResult{
		Capability: capability,
		Allowed:    true,
		Method:     method,
	}
}

func failed(capability, method string, err error) output.PreflightCheckResult {
	return output.PreflightCheckResult{
		Capability: capability,
		Allowed:    false,
		Method:     method,
		ErrorCode:  output.ClassifyErrorCode(err),
		Detail:     err.Error(),
	}
}

func joinPrefix(prefix, suffix string) string {
	if prefix == "" {
		return strings.TrimPrefix(suffix, "/")
	}
	if strings.HasSuffix(prefix, "/") {
		return prefix + strings.TrimPrefix(suffix, "/")
	}
	return prefix + "/" + strings.TrimPrefix(suffix, "/")
}
