package s3lite

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Part identifies one uploaded part of a multipart session. Part numbers
// are caller-assigned; the client validates positivity but not
// contiguity, so gaps and duplicates surface as provider errors at
// completion time.
type Part struct {
	Number int
	ETag   string
}

// MultipartUpload describes one in-progress multipart session.
type MultipartUpload struct {
	Key       string
	UploadID  string
	Initiated time.Time
}

// BeginMultipart opens a multipart session for key and returns the
// provider-issued upload ID. Each call yields a fresh ID, even for a key
// with a prior session.
func (c *Client) BeginMultipart(ctx context.Context, key, contentType string) (string, error) {
	if key == "" {
		return "", &ValidationError{Field: "Key", Message: "object key is required"}
	}

	headers := map[string]string{}
	if contentType != "" {
		headers["content-type"] = contentType
	}

	resp, err := c.do(ctx, call{
		op:      "BeginMultipart",
		method:  http.MethodPost,
		key:     key,
		options: map[string]string{"uploads": ""},
		headers: headers,
	})
	if err != nil {
		return "", err
	}

	doc := asMap(c.dec.Decode(string(resp.Body)))
	result := asMap(doc["InitiateMultipartUploadResult"])
	uploadID := str(result, "UploadId")
	if uploadID == "" {
		return "", &ServiceError{
			Op:         "BeginMultipart",
			StatusCode: resp.StatusCode,
			Code:       "MalformedResponse",
			Message:    "provider response carried no UploadId",
			Body:       resp.Body,
		}
	}
	return uploadID, nil
}

// UploadPart uploads one part of an open session. partNumber must be at
// least 1. Parts may be uploaded concurrently; the client enforces no
// ordering between them.
func (c *Client) UploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (Part, error) {
	if key == "" {
		return Part{}, &ValidationError{Field: "Key", Message: "object key is required"}
	}
	if uploadID == "" {
		return Part{}, &ValidationError{Field: "UploadID", Message: "upload id is required"}
	}
	if partNumber < 1 {
		return Part{}, &ValidationError{Field: "PartNumber", Message: "part number must be a positive integer"}
	}

	resp, err := c.do(ctx, call{
		op:     "UploadPart",
		method: http.MethodPut,
		key:    key,
		options: map[string]string{
			"uploadId":   uploadID,
			"partNumber": strconv.Itoa(partNumber),
		},
		body: data,
	})
	if err != nil {
		return Part{}, err
	}
	return Part{Number: partNumber, ETag: cleanETag(resp.Header.Get("ETag"))}, nil
}

// CompleteMultipart assembles an open session from parts, in exactly the
// order supplied. The manifest is not reordered and gaps are not
// validated; a bad part list is a provider-side failure surfaced here.
// The assembled object's ETag is normalized regardless of where or how
// the provider reports it.
func (c *Client) CompleteMultipart(ctx context.Context, key, uploadID string, parts []Part) (*ObjectInfo, error) {
	if key == "" {
		return nil, &ValidationError{Field: "Key", Message: "object key is required"}
	}
	if uploadID == "" {
		return nil, &ValidationError{Field: "UploadID", Message: "upload id is required"}
	}
	if len(parts) == 0 {
		return nil, &ValidationError{Field: "Parts", Message: "at least one part is required"}
	}

	var manifest strings.Builder
	manifest.WriteString("<CompleteMultipartUpload>")
	for _, p := range parts {
		manifest.WriteString("<Part><PartNumber>")
		manifest.WriteString(strconv.Itoa(p.Number))
		manifest.WriteString("</PartNumber><ETag>")
		manifest.WriteString(xmlEscape(p.ETag))
		manifest.WriteString("</ETag></Part>")
	}
	manifest.WriteString("</CompleteMultipartUpload>")

	resp, err := c.do(ctx, call{
		op:      "CompleteMultipart",
		method:  http.MethodPost,
		key:     key,
		options: map[string]string{"uploadId": uploadID},
		headers: map[string]string{"content-type": "application/xml"},
		body:    []byte(manifest.String()),
	})
	if err != nil {
		return nil, err
	}

	doc := asMap(c.dec.Decode(string(resp.Body)))

	// Some providers answer 200 with an error envelope instead of a
	// completion result.
	if errNode := asMap(doc["Error"]); errNode != nil {
		return nil, &ServiceError{
			Op:         "CompleteMultipart",
			StatusCode: resp.StatusCode,
			Code:       str(errNode, "Code"),
			Message:    str(errNode, "Message"),
			Body:       resp.Body,
		}
	}

	result := asMap(doc["CompleteMultipartUploadResult"])
	etag := str(result, "ETag")
	if etag == "" {
		etag = resp.Header.Get("ETag")
		if etag == "" {
			etag = resp.Header.Get("Etag")
		}
	}
	return &ObjectInfo{
		Key:  str(result, "Key"),
		ETag: cleanETag(etag),
	}, nil
}

// AbortMultipart terminates an open session. Aborting a completed or
// unknown session is a provider-detected failure carrying the provider's
// message.
func (c *Client) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if key == "" {
		return &ValidationError{Field: "Key", Message: "object key is required"}
	}
	if uploadID == "" {
		return &ValidationError{Field: "UploadID", Message: "upload id is required"}
	}

	_, err := c.do(ctx, call{
		op:      "AbortMultipart",
		method:  http.MethodDelete,
		key:     key,
		options: map[string]string{"uploadId": uploadID},
	})
	return err
}

// ListMultipartUploads enumerates open multipart sessions for cleanup
// and discovery.
func (c *Client) ListMultipartUploads(ctx context.Context, prefix, delimiter string) ([]MultipartUpload, error) {
	options := map[string]string{"uploads": ""}
	if prefix != "" {
		options["prefix"] = prefix
	}
	if delimiter != "" {
		options["delimiter"] = delimiter
	}

	resp, err := c.do(ctx, call{
		op:      "ListMultipartUploads",
		method:  http.MethodGet,
		options: options,
	})
	if err != nil {
		return nil, err
	}

	doc := asMap(c.dec.Decode(string(resp.Body)))
	result := asMap(doc["ListMultipartUploadsResult"])

	uploads := make([]MultipartUpload, 0)
	for _, entry := range asSeq(result["Upload"]) {
		node := asMap(entry)
		uploads = append(uploads, MultipartUpload{
			Key:       str(node, "Key"),
			UploadID:  str(node, "UploadId"),
			Initiated: parseTimestamp(str(node, "Initiated")),
		})
	}
	return uploads, nil
}
