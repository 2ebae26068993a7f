package preflight

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylatch/s3lite/pkg/output"
	"github.com/skylatch/s3lite/pkg/s3lite"
)

// fakeClient scripts each capability independently.
type fakeClient struct {
	bucketExists bool
	bucketErr    error
	listErr      error
	beginErr     error
	abortErr     error
	putErr       error
	deleteErr    error

	begun   []string
	aborted []string
	put     []string
	deleted []string
}

func (f *fakeClient) BucketExists(context.Context) (bool, error) {
	return f.bucketExists, f.bucketErr
}

func (f *fakeClient) ListPage(_ context.Context, opts s3lite.PageOptions) (*s3lite.ListingPage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &s3lite.ListingPage{Objects: []s3lite.ObjectInfo{}}, nil
}

func (f *fakeClient) BeginMultipart(_ context.Context, key, _ string) (string, error) {
	if f.beginErr != nil {
		return "", f.beginErr
	}
	f.begun = append(f.begun, key)
	return "upload-1", nil
}

func (f *fakeClient) AbortMultipart(_ context.Context, key, uploadID string) error {
	if f.abortErr != nil {
		return f.abortErr
	}
	f.aborted = append(f.aborted, key+"/"+uploadID)
	return nil
}

func (f *fakeClient) PutObject(_ context.Context, key string, _ []byte, _ string) (*s3lite.ObjectInfo, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.put = append(f.put, key)
	return &s3lite.ObjectInfo{Key: key}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func capabilities(rec *output.PreflightRecord) map[string]bool {
	m := make(map[string]bool, len(rec.Results))
	for _, r := range rec.Results {
		m[r.Capability] = r.Allowed
	}
	return m
}

func TestPlanOnlyMakesNoCalls(t *testing.T) {
	fc := &fakeClient{bucketErr: assert.AnError}

	rec, err := Run(context.Background(), fc, nil, Spec{Mode: ModePlanOnly})
	require.NoError(t, err)
	assert.Empty(t, rec.Results)
}

func TestReadSafePasses(t *testing.T) {
	fc := &fakeClient{bucketExists: true}

	rec, err := Run(context.Background(), fc, []string{"data/"}, Spec{Mode: ModeReadSafe})
	require.NoError(t, err)

	caps := capabilities(rec)
	assert.True(t, caps[CapBucketHead])
	assert.True(t, caps[CapList])
	assert.NotContains(t, caps, CapWrite)
	assert.Empty(t, fc.begun)
}

func TestMissingBucketFailsFast(t *testing.T) {
	fc := &fakeClient{bucketExists: false}

	rec, err := Run(context.Background(), fc, nil, Spec{Mode: ModeReadSafe})
	require.Error(t, err)

	require.Len(t, rec.Results, 1)
	assert.Equal(t, CapBucketHead, rec.Results[0].Capability)
	assert.False(t, rec.Results[0].Allowed)
	assert.Equal(t, output.ErrCodeNotFound, rec.Results[0].ErrorCode)
}

func TestListDeniedClassified(t *testing.T) {
	fc := &fakeClient{
		bucketExists: true,
		listErr:      &s3lite.ServiceError{Op: "ListPage", StatusCode: 403, Code: "AccessDenied"},
	}

	rec, err := Run(context.Background(), fc, []string{"data/"}, Spec{Mode: ModeReadSafe})
	require.Error(t, err)

	require.Len(t, rec.Results, 2)
	last := rec.Results[1]
	assert.Equal(t, CapList, last.Capability)
	assert.False(t, last.Allowed)
	assert.Equal(t, output.ErrCodeAccessDenied, last.ErrorCode)
}

func TestWriteProbeMultipartAbort(t *testing.T) {
	fc := &fakeClient{bucketExists: true}

	rec, err := Run(context.Background(), fc, nil, Spec{
		Mode:          ModeWriteProbe,
		ProbeStrategy: ProbeMultipartAbort,
	})
	require.NoError(t, err)

	caps := capabilities(rec)
	assert.True(t, caps[CapWrite])
	require.Len(t, fc.begun, 1)
	assert.True(t, strings.HasPrefix(fc.begun[0], DefaultProbePrefix))
	require.Len(t, fc.aborted, 1)
	assert.Contains(t, fc.aborted[0], "upload-1")
	assert.Empty(t, fc.put)
}

func TestWriteProbePutDelete(t *testing.T) {
	fc := &fakeClient{bucketExists: true}

	rec, err := Run(context.Background(), fc, nil, Spec{
		Mode:          ModeWriteProbe,
		ProbeStrategy: ProbePutDelete,
		ProbePrefix:   "tmp/checks/",
	})
	require.NoError(t, err)

	assert.True(t, capabilities(rec)[CapWrite])
	require.Len(t, fc.put, 1)
	assert.True(t, strings.HasPrefix(fc.put[0], "tmp/checks/"))
	assert.Equal(t, fc.put, fc.deleted)
	assert.Empty(t, fc.begun)
}

func TestWriteProbeDeniedAbortStageStillRecorded(t *testing.T) {
	fc := &fakeClient{
		bucketExists: true,
		abortErr:     &s3lite.ServiceError{Op: "AbortMultipart", StatusCode: 403, Code: "AccessDenied"},
	}

	rec, err := Run(context.Background(), fc, nil, Spec{
		Mode:          ModeWriteProbe,
		ProbeStrategy: ProbeMultipartAbort,
	})
	require.Error(t, err)

	last := rec.Results[len(rec.Results)-1]
	assert.Equal(t, CapWrite, last.Capability)
	assert.False(t, last.Allowed)
	assert.Equal(t, output.ErrCodeAccessDenied, last.ErrorCode)
}

func TestUnknownStrategyRejected(t *testing.T) {
	fc := &fakeClient{bucketExists: true}

	_, err := Run(context.Background(), fc, nil, Spec{
		Mode:          ModeWriteProbe,
		ProbeStrategy: "teleport",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown probe strategy")
}

func TestJoinPrefix(t *testing.T) {
	assert.Equal(t, "a/b", joinPrefix("a", "b"))
	assert.Equal(t, "a/b", joinPrefix("a/", "b"))
	assert.Equal(t, "a/b", joinPrefix("a/", "/b"))
	assert.Equal(t, "b", joinPrefix("", "/b"))
}
