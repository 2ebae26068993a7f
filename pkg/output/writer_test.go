package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylatch/s3lite/pkg/s3lite"
	"github.com/skylatch/s3lite/pkg/sweep"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []Record {
	t.Helper()
	var records []Record
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestJSONLWriterEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-42")

	obj := NewObjectRecord(s3lite.ObjectInfo{
		Key:          "data/a.parquet",
		Size:         1024,
		ETag:         "abc123",
		LastModified: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, w.WriteObject(context.Background(), obj))

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, TypeObject, records[0].Type)
	assert.Equal(t, "job-42", records[0].JobID)
	assert.False(t, records[0].TS.IsZero())

	var payload ObjectRecord
	require.NoError(t, json.Unmarshal(records[0].Data, &payload))
	assert.Equal(t, "data/a.parquet", payload.Key)
	assert.Equal(t, int64(1024), payload.Size)
}

func TestJSONLWriterSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-1")

	sum := NewSummaryRecord(&sweep.Summary{
		ObjectsListed:  10,
		ObjectsMatched: 4,
		BytesTotal:     4096,
		Duration:       1500 * time.Millisecond,
		Prefixes:       []string{"data/"},
	}, 2)
	require.NoError(t, w.WriteSummary(context.Background(), sum))

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)

	var payload SummaryRecord
	require.NoError(t, json.Unmarshal(records[0].Data, &payload))
	assert.Equal(t, int64(4), payload.ObjectsMatched)
	assert.Equal(t, "1.5s", payload.DurationHuman)
	assert.Equal(t, int64(2), payload.Errors)
}

func TestJSONLWriterClosed(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-1")
	require.NoError(t, w.Close())

	err := w.WriteError(context.Background(), &ErrorRecord{Code: ErrCodeInternal, Message: "x"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriterCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-1")
	err := w.WriteObject(ctx, &ObjectRecord{Key: "k"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestJSONLWriterConcurrentLinesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.WriteObject(context.Background(), &ObjectRecord{Key: "k", Size: 1})
		}()
	}
	wg.Wait()

	records := decodeLines(t, &buf)
	assert.Len(t, records, 20)
}

func TestClassifyErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "access denied",
			err:  &s3lite.ServiceError{Op: "ListPage", StatusCode: 403, Code: "AccessDenied"},
			want: ErrCodeAccessDenied,
		},
		{
			name: "missing bucket",
			err:  &s3lite.ServiceError{Op: "ListPage", StatusCode: 404, Code: "NoSuchBucket"},
			want: ErrCodeNotFound,
		},
		{
			name: "slow down",
			err:  &s3lite.ServiceError{Op: "PutObject", StatusCode: 503, Code: "SlowDown"},
			want: ErrCodeThrottled,
		},
		{
			name: "transport failure",
			err:  &s3lite.NetworkError{Op: "GetObject", Reason: s3lite.ReasonUnreachable, Err: errors.New("refused")},
			want: ErrCodeNetwork,
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: ErrCodeInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyErrorCode(tt.err))
		})
	}
}

type shortWriter struct {
	buf bytes.Buffer
}

func (s *shortWriter) Write(p []byte) (int, error) {
	// One byte at a time; the writer must loop.
	if len(p) == 0 {
		return 0, nil
	}
	s.buf.WriteByte(p[0])
	return 1, nil
}

func TestJSONLWriterHandlesShortWrites(t *testing.T) {
	sw := &shortWriter{}
	w := NewJSONLWriter(sw, "job-1")
	require.NoError(t, w.WriteObject(context.Background(), &ObjectRecord{Key: "k"}))

	var rec Record
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(sw.buf.Bytes()), &rec))
	assert.Equal(t, TypeObject, rec.Type)
}
