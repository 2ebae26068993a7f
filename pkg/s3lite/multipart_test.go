package s3lite

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginMultipart(t *testing.T) {
	r := chi.NewRouter()
	var hasUploads bool
	var contentType string
	r.Post("/video.mp4", func(w http.ResponseWriter, req *http.Request) {
		hasUploads = req.URL.Query().Has("uploads")
		contentType = req.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`<InitiateMultipartUploadResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">` +
			`<Key>video.mp4</Key><UploadId>upload-abc-123</UploadId>` +
			`</InitiateMultipartUploadResult>`))
	})

	c := newTestClient(t, r)
	uploadID, err := c.BeginMultipart(context.Background(), "video.mp4", "video/mp4")
	require.NoError(t, err)

	assert.Equal(t, "upload-abc-123", uploadID)
	assert.True(t, hasUploads, "begin must POST with the uploads query marker")
	assert.Equal(t, "video/mp4", contentType)
}

func TestUploadPart(t *testing.T) {
	r := chi.NewRouter()
	var gotUploadID, gotPartNumber string
	var gotBody []byte
	r.Put("/video.mp4", func(w http.ResponseWriter, req *http.Request) {
		gotUploadID = req.URL.Query().Get("uploadId")
		gotPartNumber = req.URL.Query().Get("partNumber")
		gotBody, _ = io.ReadAll(req.Body)
		w.Header().Set("ETag", `"part-etag-1"`)
	})

	c := newTestClient(t, r)
	part, err := c.UploadPart(context.Background(), "video.mp4", "upload-abc-123", 1, []byte("chunk-1"))
	require.NoError(t, err)

	assert.Equal(t, Part{Number: 1, ETag: "part-etag-1"}, part)
	assert.Equal(t, "upload-abc-123", gotUploadID)
	assert.Equal(t, "1", gotPartNumber)
	assert.Equal(t, "chunk-1", string(gotBody))
}

func TestUploadPart_RejectsNonPositivePartNumber(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	for _, n := range []int{0, -1} {
		_, err := c.UploadPart(context.Background(), "k", "u", n, []byte("x"))
		assert.True(t, IsValidation(err), "part number %d must fail before any network call", n)
	}
}

func TestCompleteMultipart_ManifestPreservesSuppliedOrder(t *testing.T) {
	r := chi.NewRouter()
	var manifest string
	r.Post("/video.mp4", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		manifest = string(b)
		_, _ = w.Write([]byte(`<CompleteMultipartUploadResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">` +
			`<Key>video.mp4</Key><ETag>&quot;final-etag&quot;</ETag>` +
			`</CompleteMultipartUploadResult>`))
	})

	c := newTestClient(t, r)
	info, err := c.CompleteMultipart(context.Background(), "video.mp4", "upload-abc-123",
		[]Part{{Number: 1, ETag: "e1"}, {Number: 2, ETag: "e2"}})
	require.NoError(t, err)

	first := strings.Index(manifest, "<PartNumber>1</PartNumber>")
	second := strings.Index(manifest, "<PartNumber>2</PartNumber>")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first, "parts must appear in the exact order supplied")

	assert.Equal(t, "video.mp4", info.Key)
	assert.Equal(t, "final-etag", info.ETag, "ETag normalizes regardless of quoting")
}

func TestCompleteMultipart_GapIsNotClientValidated(t *testing.T) {
	r := chi.NewRouter()
	var manifest string
	r.Post("/k", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		manifest = string(b)
		_, _ = w.Write([]byte(`<CompleteMultipartUploadResult><ETag>"e"</ETag></CompleteMultipartUploadResult>`))
	})

	c := newTestClient(t, r)
	// Part 2 is missing; the client must pass the gap through untouched.
	_, err := c.CompleteMultipart(context.Background(), "k", "u",
		[]Part{{Number: 1, ETag: "e1"}, {Number: 3, ETag: "e3"}})
	require.NoError(t, err)
	assert.Contains(t, manifest, "<PartNumber>3</PartNumber>")
}

func TestCompleteMultipart_ErrorEnvelopeInOKResponse(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/k", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`<Error><Code>InvalidPart</Code>` +
			`<Message>One or more of the specified parts could not be found.</Message></Error>`))
	})

	c := newTestClient(t, r)
	_, err := c.CompleteMultipart(context.Background(), "k", "u", []Part{{Number: 1, ETag: "e1"}})

	svc, ok := AsService(err)
	require.True(t, ok, "a 200 carrying an error envelope is still a provider failure")
	assert.Equal(t, "InvalidPart", svc.Code)
	assert.Contains(t, svc.Message, "could not be found")
}

func TestAbortMultipart(t *testing.T) {
	r := chi.NewRouter()
	var gotUploadID string
	r.Delete("/video.mp4", func(w http.ResponseWriter, req *http.Request) {
		gotUploadID = req.URL.Query().Get("uploadId")
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, r)
	require.NoError(t, c.AbortMultipart(context.Background(), "video.mp4", "upload-abc-123"))
	assert.Equal(t, "upload-abc-123", gotUploadID)
}

func TestAbortMultipart_ProviderFailureSurfacesMessage(t *testing.T) {
	r := chi.NewRouter()
	r.Delete("/video.mp4", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<Error><Code>NoSuchUpload</Code>` +
			`<Message>The specified upload does not exist.</Message></Error>`))
	})

	c := newTestClient(t, r)
	err := c.AbortMultipart(context.Background(), "video.mp4", "already-completed")

	svc, ok := AsService(err)
	require.True(t, ok)
	assert.Equal(t, "NoSuchUpload", svc.Code)
	assert.Contains(t, svc.Message, "does not exist")
}

func TestListMultipartUploads(t *testing.T) {
	r := chi.NewRouter()
	var q map[string][]string
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		q = req.URL.Query()
		_, _ = w.Write([]byte(`<ListMultipartUploadsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">` +
			`<Upload><Key>a.bin</Key><UploadId>u-1</UploadId>` +
			`<Initiated>2024-03-01T10:00:00.000Z</Initiated></Upload>` +
			`<Upload><Key>b.bin</Key><UploadId>u-2</UploadId>` +
			`<Initiated>2024-03-01T11:00:00.000Z</Initiated></Upload>` +
			`</ListMultipartUploadsResult>`))
	})

	c := newTestClient(t, r)
	uploads, err := c.ListMultipartUploads(context.Background(), "a", "/")
	require.NoError(t, err)

	assert.True(t, len(q["uploads"]) > 0)
	assert.Equal(t, "a", q["prefix"][0])
	assert.Equal(t, "/", q["delimiter"][0])

	require.Len(t, uploads, 2)
	assert.Equal(t, "a.bin", uploads[0].Key)
	assert.Equal(t, "u-1", uploads[0].UploadID)
	assert.Equal(t, "b.bin", uploads[1].Key)
}

func TestListMultipartUploads_SingleUploadStillASequence(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`<ListMultipartUploadsResult>` +
			`<Upload><Key>solo.bin</Key><UploadId>u-9</UploadId></Upload>` +
			`</ListMultipartUploadsResult>`))
	})

	c := newTestClient(t, r)
	uploads, err := c.ListMultipartUploads(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "u-9", uploads[0].UploadID)
}
